// Package sentiment は感情分析のドメインロジックを提供する。
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/kanjo/internal/llm"
	"github.com/hitoshi/kanjo/internal/metrics"
	"github.com/hitoshi/kanjo/internal/model"
	"github.com/hitoshi/kanjo/internal/repository"
)

// maxTextLength は分析対象テキストの最大文字数。
const maxTextLength = 10000

// promptTemplate はLLMに送る分類プロンプト。
// JSONのみを返すよう指示するが、応答が壊れている場合は
// フォールバック判定（parseFallback）で処理する。
const promptTemplate = `Analyze the sentiment of the following text and provide a JSON response with the following structure:
{
  "sentiment": "positive" | "negative" | "neutral",
  "confidence": number between 0 and 1,
  "key_phrases": ["phrase1", "phrase2", "phrase3"]
}

Text to analyze: "%s"

Provide only the JSON response, no additional text.`

// UsageChecker は月間利用上限の判定インターフェース。
// usage.Serviceの部分集合として定義する。
type UsageChecker interface {
	CheckLimit(ctx context.Context, userID string) error
}

// Service は感情分析のサービス層。
// LLMクライアントが設定されている場合はLLMで、
// 設定されていない場合は語彙ベース分類器で判定する。
type Service struct {
	usageChecker UsageChecker
	llmClient    llm.Client
	lexicon      *LexiconClassifier
	analysisRepo repository.AnalysisRepository
	collector    metrics.MetricsCollector

	llmMaxTokens int
	llmTimeout   time.Duration

	// now はテスト用に差し替え可能な現在時刻。
	now func() time.Time
}

// Config はServiceの設定。
type Config struct {
	// LLMClient がnilの場合、語彙ベース分類器のみで動作する（オフライン構成）。
	LLMClient llm.Client

	// LLMMaxTokens はLLM応答の最大トークン数。
	LLMMaxTokens int

	// LLMTimeout はLLM呼び出し1回あたりのタイムアウト。
	LLMTimeout time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	usageChecker UsageChecker,
	analysisRepo repository.AnalysisRepository,
	collector metrics.MetricsCollector,
	config Config,
) *Service {
	return &Service{
		usageChecker: usageChecker,
		llmClient:    config.LLMClient,
		lexicon:      NewLexiconClassifier(),
		analysisRepo: analysisRepo,
		collector:    collector,
		llmMaxTokens: config.LLMMaxTokens,
		llmTimeout:   config.LLMTimeout,
		now:          time.Now,
	}
}

// Analyze はテキストの感情分析を実行する。
// 処理順序: 入力検証 → 利用上限判定 → 分類 → 履歴保存（ベストエフォート）。
// 履歴保存の失敗は分析結果の返却を妨げない（ログのみ記録する）。
func (s *Service) Analyze(ctx context.Context, userID, text string) (*model.SentimentResult, error) {
	// processing_time_msは検証や利用上限判定を含むリクエスト受付からの経過時間
	start := s.now()

	if strings.TrimSpace(text) == "" {
		return nil, model.NewInvalidInputError()
	}
	if len([]rune(text)) > maxTextLength {
		return nil, model.NewTextTooLongError(maxTextLength)
	}

	// 利用上限判定。カウンタの加算は履歴保存時にDBトリガーが行う
	if err := s.usageChecker.CheckLimit(ctx, userID); err != nil {
		return nil, err
	}

	var result *model.SentimentResult
	if s.llmClient != nil {
		llmResult, err := s.classifyWithLLM(ctx, text)
		if err != nil {
			s.collector.RecordAnalysisFailure("llm_error")
			return nil, fmt.Errorf("感情分析に失敗しました: %w", err)
		}
		result = llmResult
	} else {
		result = s.lexicon.Classify(text)
	}

	result.ProcessingTimeMs = s.now().Sub(start).Milliseconds()

	s.collector.RecordAnalysisSuccess(string(result.Sentiment))
	s.collector.RecordAnalysisLatency(s.now().Sub(start))
	s.collector.RecordTokensConsumed(result.TokensUsed)

	// ベストエフォート保存。失敗しても分析結果は返す
	analysis := &model.SentimentAnalysis{
		ID:               uuid.New().String(),
		UserID:           userID,
		InputText:        text,
		Result:           *result,
		AnalysisType:     model.AnalysisTypeSingleText,
		TokensUsed:       result.TokensUsed,
		ProcessingTimeMs: result.ProcessingTimeMs,
		CreatedAt:        s.now(),
	}
	if err := s.analysisRepo.Create(ctx, analysis); err != nil {
		slog.Error("failed to store analysis",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	return result, nil
}

// parsedResult はLLM応答のJSONパース結果。
type parsedResult struct {
	Sentiment  string   `json:"sentiment"`
	Confidence float64  `json:"confidence"`
	KeyPhrases []string `json:"key_phrases"`
}

// classifyWithLLM はLLMでテキストを分類する。
// 応答のJSONパースに失敗した場合、または判定ラベルが不正な場合は
// フォールバック判定に切り替える。
func (s *Service) classifyWithLLM(ctx context.Context, text string) (*model.SentimentResult, error) {
	prompt := fmt.Sprintf(promptTemplate, text)

	llmCtx := ctx
	if s.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, s.llmTimeout)
		defer cancel()
	}

	completion, err := s.llmClient.Complete(llmCtx, prompt, s.llmMaxTokens)
	if err != nil {
		return nil, err
	}

	tokensUsed := completion.PromptTokens
	if tokensUsed == 0 {
		tokensUsed = estimateTokens(text)
	}

	var parsed parsedResult
	if err := json.Unmarshal([]byte(completion.Text), &parsed); err != nil || !isValidSentiment(parsed.Sentiment) {
		return s.parseFallback(completion.Text, tokensUsed), nil
	}

	keyPhrases := parsed.KeyPhrases
	if keyPhrases == nil {
		keyPhrases = []string{}
	}

	return &model.SentimentResult{
		Sentiment:  model.Sentiment(parsed.Sentiment),
		Confidence: parsed.Confidence,
		KeyPhrases: keyPhrases,
		TokensUsed: tokensUsed,
	}, nil
}

// parseFallback は壊れたLLM応答から判定を推定する。
// 応答本文に "positive" が含まれればpositive、"negative" が含まれれば
// negative、どちらもなければneutralとし、確信度は0.7固定とする。
func (s *Service) parseFallback(responseText string, tokensUsed int) *model.SentimentResult {
	s.collector.RecordParseFallback()

	lower := strings.ToLower(responseText)

	sentiment := model.SentimentNeutral
	if strings.Contains(lower, "positive") {
		sentiment = model.SentimentPositive
	} else if strings.Contains(lower, "negative") {
		sentiment = model.SentimentNegative
	}

	return &model.SentimentResult{
		Sentiment:  sentiment,
		Confidence: 0.7,
		KeyPhrases: []string{},
		TokensUsed: tokensUsed,
	}
}

// isValidSentiment は判定ラベルが3値のいずれかであるかを検証する。
func isValidSentiment(s string) bool {
	switch model.Sentiment(s) {
	case model.SentimentPositive, model.SentimentNegative, model.SentimentNeutral:
		return true
	}
	return false
}
