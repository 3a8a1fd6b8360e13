package sentiment

import (
	"math"
	"math/rand"
	"strings"
	"unicode"

	"github.com/hitoshi/kanjo/internal/model"
)

// positiveWords / negativeWords は語彙ベース判定の単語リスト。
var positiveWords = []string{
	"good", "great", "excellent", "amazing", "wonderful",
	"fantastic", "love", "perfect", "best", "awesome",
}

var negativeWords = []string{
	"bad", "terrible", "awful", "horrible", "hate",
	"worst", "disappointing", "poor", "useless", "annoying",
}

// maxKeyPhrases はキーフレーズの最大数。
const maxKeyPhrases = 5

// LexiconClassifier は単語リストに基づく感情分類器。
// LLM APIキーが設定されていないオフライン構成で使用される。
// ネットワーク呼び出しを一切行わない。
type LexiconClassifier struct {
	positive map[string]struct{}
	negative map[string]struct{}

	// randFloat はテスト用に差し替え可能な乱数源。[0,1)を返す。
	randFloat func() float64
}

// NewLexiconClassifier はLexiconClassifierを生成する。
func NewLexiconClassifier() *LexiconClassifier {
	c := &LexiconClassifier{
		positive:  make(map[string]struct{}, len(positiveWords)),
		negative:  make(map[string]struct{}, len(negativeWords)),
		randFloat: rand.Float64,
	}
	for _, w := range positiveWords {
		c.positive[w] = struct{}{}
	}
	for _, w := range negativeWords {
		c.negative[w] = struct{}{}
	}
	return c
}

// Classify はテキストを単語リストに基づいて分類する。
// 判定ルール:
//   - ポジティブ語が多い場合: positive、確信度は 0.6 + 差分×0.1（上限0.95）
//   - ネガティブ語が多い場合: negative、同上
//   - 同数の場合: neutral、確信度は 0.5 + 乱数×0.2
//
// キーフレーズは出現順に重複排除し、最大5件まで返す。
// トークン数は文字数/4の概算値。
func (c *LexiconClassifier) Classify(text string) *model.SentimentResult {
	words := splitWords(text)

	positiveCount := 0
	negativeCount := 0
	var foundPhrases []string

	for _, word := range words {
		if _, ok := c.positive[word]; ok {
			positiveCount++
			foundPhrases = append(foundPhrases, word)
		} else if _, ok := c.negative[word]; ok {
			negativeCount++
			foundPhrases = append(foundPhrases, word)
		}
	}

	var sentiment model.Sentiment
	var confidence float64

	switch {
	case positiveCount > negativeCount:
		sentiment = model.SentimentPositive
		confidence = math.Min(0.6+float64(positiveCount-negativeCount)*0.1, 0.95)
	case negativeCount > positiveCount:
		sentiment = model.SentimentNegative
		confidence = math.Min(0.6+float64(negativeCount-positiveCount)*0.1, 0.95)
	default:
		sentiment = model.SentimentNeutral
		confidence = 0.5 + c.randFloat()*0.2
	}

	return &model.SentimentResult{
		Sentiment:  sentiment,
		Confidence: confidence,
		KeyPhrases: dedupePhrases(foundPhrases, maxKeyPhrases),
		TokensUsed: estimateTokens(text),
	}
}

// splitWords はテキストを小文字化し、英数字以外の文字で分割する。
func splitWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// dedupePhrases は出現順を保ったまま重複を除去し、最大max件を返す。
func dedupePhrases(phrases []string, max int) []string {
	seen := make(map[string]struct{}, len(phrases))
	result := make([]string, 0, max)
	for _, p := range phrases {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		result = append(result, p)
		if len(result) == max {
			break
		}
	}
	return result
}

// estimateTokens は文字数から消費トークン数を概算する。
func estimateTokens(text string) int {
	return int(math.Ceil(float64(len(text)) / 4.0))
}
