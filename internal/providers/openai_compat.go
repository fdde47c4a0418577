package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	OpenAICompatName    = "openai-compatible"
	OpenAICompatBaseURL = "http://localhost:11434/v1"
)

// OpenAICompatConfig configures a client for any server speaking the OpenAI
// chat completions API (Ollama, vLLM, LM Studio, OpenAI itself).
type OpenAICompatConfig struct {
	APIKey       string // Optional for local servers
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	MaxRetries   int
	RPM          int
	HTTPClient   *http.Client
}

// OpenAICompatClient implements LLMClient over the OpenAI SDK.
type OpenAICompatClient struct {
	client       openai.Client
	apiKey       string
	baseURL      string
	defaultModel string
	rpm          int
}

// NewOpenAICompatClient creates a new OpenAI-compatible client.
func NewOpenAICompatClient(cfg OpenAICompatConfig) *OpenAICompatClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenAICompatBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "llama3.1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RPM == 0 {
		cfg.RPM = DefaultRPM
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		// Local servers ignore the key but the SDK always sends one.
		apiKey = "unused"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}

	return &OpenAICompatClient{
		client:       openai.NewClient(opts...),
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		rpm:          cfg.RPM,
	}
}

// Name returns the client identifier.
func (c *OpenAICompatClient) Name() string {
	return OpenAICompatName
}

// RequestsPerMinute returns the configured rate limit.
func (c *OpenAICompatClient) RequestsPerMinute() int {
	return c.rpm
}

// Chat sends a chat completion request.
func (c *OpenAICompatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	result := &ChatResult{
		RequestID: req.RequestID,
		Provider:  OpenAICompatName,
		ModelUsed: model,
		Attempts:  1,
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	result.ExecutionTime = time.Since(start)
	if err != nil {
		err = mapOpenAIError(err)
		result.ErrorType = "http_error"
		result.ErrorMessage = err.Error()
		return result, err
	}
	if len(resp.Choices) == 0 {
		result.ErrorType = "empty_response"
		result.ErrorMessage = "no choices in response"
		return result, fmt.Errorf("no choices in response")
	}

	result.Success = true
	result.Content = resp.Choices[0].Message.Content
	if resp.Model != "" {
		result.ModelUsed = resp.Model
	}
	if result.RequestID == "" {
		result.RequestID = resp.ID
	}
	result.PromptTokens = int(resp.Usage.PromptTokens)
	result.CompletionTokens = int(resp.Usage.CompletionTokens)
	result.TotalTokens = int(resp.Usage.TotalTokens)
	return result, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// mapOpenAIError converts SDK API errors into StatusError.
func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Message
		if body == "" {
			body = http.StatusText(apiErr.StatusCode)
		}
		return &StatusError{Provider: OpenAICompatName, StatusCode: apiErr.StatusCode, Body: body}
	}
	return err
}

var _ LLMClient = (*OpenAICompatClient)(nil)
