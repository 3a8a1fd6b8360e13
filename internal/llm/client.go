// Package llm は感情分析に使用するLLM APIのクライアントを提供する。
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// Completion はLLMの応答とトークン消費量を保持する。
type Completion struct {
	Text             string // 応答本文
	PromptTokens     int    // 入力トークン数
	CompletionTokens int    // 出力トークン数
	TotalTokens      int    // 合計トークン数
}

// Client はLLM補完のインターフェース。
type Client interface {
	// Complete はプロンプトを送信して補完結果を返す。
	// タイムアウトは呼び出し側がctxで制御する。
	Complete(ctx context.Context, prompt string, maxTokens int) (*Completion, error)
}

// StatusRecorder はLLM APIのHTTPステータスコードを記録するインターフェース。
// metrics.Collectorの部分集合として定義する。
type StatusRecorder interface {
	RecordLLMStatus(statusCode int)
}

// Config はOpenAIクライアントの設定。
type Config struct {
	APIKey string
	Model  string

	// BaseURL はテスト用にオーバーライド可能なAPIエンドポイント。
	// 空の場合はOpenAIのデフォルトを使用する。
	BaseURL string

	// StatusRecorder が設定されている場合、APIレスポンスの
	// ステータスコードを記録する。
	StatusRecorder StatusRecorder
}

// OpenAIClient はOpenAI Chat Completions APIを使用するClientの実装。
type OpenAIClient struct {
	client   *openai.Client
	model    string
	recorder StatusRecorder
}

// NewOpenAIClient はOpenAIClientを生成する。
func NewOpenAIClient(config Config) *OpenAIClient {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIClient{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    config.Model,
		recorder: config.StatusRecorder,
	}
}

// Complete はChat Completions APIでプロンプトを補完する。
// 分類タスクのため温度は0に固定し、同一入力に対する出力の揺らぎを抑える。
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, maxTokens int) (*Completion, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: 0,
	})
	if err != nil {
		c.recordStatus(err)
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	c.recordStatus(nil)

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	return &Completion{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// recordStatus はAPIレスポンスのステータスコードを記録する。
// 成功時は200、APIエラー時はエラーに含まれるステータスコードを使用する。
// ネットワークエラー等でステータスコードが得られない場合は記録しない。
func (c *OpenAIClient) recordStatus(err error) {
	if c.recorder == nil {
		return
	}

	if err == nil {
		c.recorder.RecordLLMStatus(http.StatusOK)
		return
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		c.recorder.RecordLLMStatus(apiErr.HTTPStatusCode)
	}
}

// compile-time interface check
var _ Client = (*OpenAIClient)(nil)
