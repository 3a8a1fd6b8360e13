package model

import "time"

// Sentiment は感情分類の結果を表す列挙型。
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// SentimentResult は1回の分類呼び出しの正規化済み結果を表す。
// ConfidenceはLLMまたはフォールバックの値をそのまま通す（再クランプしない）。
type SentimentResult struct {
	Sentiment        Sentiment `json:"sentiment"`
	Confidence       float64   `json:"confidence"`
	KeyPhrases       []string  `json:"key_phrases"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	TokensUsed       int       `json:"tokens_used"`
}

// SentimentAnalysis は分類履歴の1行を表す。
// 書き込み後は不変で、アカウント削除時に一括削除されるのみ。
type SentimentAnalysis struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	InputText        string          `json:"input_text"`
	Result           SentimentResult `json:"sentiment_result"`
	AnalysisType     string          `json:"analysis_type"`
	TokensUsed       int             `json:"tokens_used"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	CreatedAt        time.Time       `json:"created_at"`
}

// AnalysisTypeSingleText は単一テキスト分析を示すanalysis_typeタグ。
const AnalysisTypeSingleText = "single_text"

// HistoryFilter は分析履歴の検索条件を表す。
type HistoryFilter struct {
	DateFrom  *time.Time
	DateTo    *time.Time
	Sentiment *Sentiment
}

// DailyUsage はusage_trackingの日次集計行を表す。
type DailyUsage struct {
	Date           string `json:"date"`
	APICallsCount  int    `json:"api_calls_count"`
	TokensConsumed int    `json:"tokens_consumed"`
}

// KeywordCount はキーフレーズの出現頻度を表す。
type KeywordCount struct {
	Keyword   string `json:"keyword"`
	Frequency int    `json:"frequency"`
}

// SentimentDistribution は3値の感情分布を表す。
type SentimentDistribution struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}
