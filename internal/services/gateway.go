package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/studymate/backend/pkg/logger"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ollama/ollama/api"
	"github.com/sashabaranov/go-openai"
	"github.com/studymate/backend/internal/config"
	"google.golang.org/genai"
)

// TokenUsage is the billing-relevant token breakdown of one completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionRequest describes one call to the external completion API.
type CompletionRequest struct {
	SystemPrompt string
	UserContent  string
	ImageURLs    []string
	Model        string
	Temperature  float64
	MaxTokens    int
	Format       ResponseFormat
}

// Completion is the provider-neutral result of a completion call.
type Completion struct {
	Content      string
	Model        string
	Usage        TokenUsage
	FinishReason string
}

// Completer is the completion API seen by the orchestration layer.
type Completer interface {
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
}

// CompletionGateway is a thin orchestration over the external completion API.
// It dispatches to the configured provider, assembles the message list and
// returns content plus token usage. It never retries and never touches the
// cache or usage store.
type CompletionGateway struct {
	cfg *config.AIConfig
}

func NewCompletionGateway(cfg *config.AIConfig) *CompletionGateway {
	return &CompletionGateway{cfg: cfg}
}

// Complete issues one completion call. Upstream failures are wrapped in
// UpstreamError; a missing credential fails fast with ConfigurationError
// before any network traffic.
func (g *CompletionGateway) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	provider := g.cfg.Provider
	if provider == "" {
		provider = "openai"
	}

	if g.cfg.APIKey == "" && provider != "ollama" {
		return nil, &ConfigurationError{Message: fmt.Sprintf("no API key configured for provider %s", provider)}
	}

	if timeout := g.cfg.TimeoutSeconds; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	logger.Debug().
		Str("provider", provider).
		Str("model", req.Model).
		Int("images", len(req.ImageURLs)).
		Str("format", string(req.Format)).
		Msg("completion call")

	switch provider {
	case "anthropic":
		return g.completeAnthropic(ctx, req)
	case "ollama":
		return g.completeOllama(ctx, req)
	case "gemini":
		return g.completeGemini(ctx, req)
	case "azure":
		return g.completeAzure(ctx, req)
	default:
		// openai and other OpenAI-compatible services
		return g.completeOpenAI(ctx, req)
	}
}

// buildOpenAIMessages assembles system + user messages, with the user content
// as multi-part text+image when images are present.
func buildOpenAIMessages(req *CompletionRequest) []openai.ChatCompletionMessage {
	messages := []openai.ChatCompletionMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}

	if len(req.ImageURLs) == 0 {
		return append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserContent,
		})
	}

	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: req.UserContent},
	}
	for _, imageURL := range req.ImageURLs {
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: imageURL},
		})
	}
	return append(messages, openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	})
}

func (g *CompletionGateway) openAICompletionRequest(req *CompletionRequest) openai.ChatCompletionRequest {
	ccr := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    buildOpenAIMessages(req),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if req.Format == FormatJSON {
		ccr.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return ccr
}

// completeOpenAI handles OpenAI and OpenAI-compatible APIs (including custom endpoints)
func (g *CompletionGateway) completeOpenAI(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	clientConfig := openai.DefaultConfig(g.cfg.APIKey)
	if g.cfg.BaseURL != "" {
		clientConfig.BaseURL = g.cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	resp, err := client.CreateChatCompletion(ctx, g.openAICompletionRequest(req))
	if err != nil {
		return nil, &UpstreamError{Provider: "openai", Model: req.Model, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &UpstreamError{Provider: "openai", Model: req.Model, Err: fmt.Errorf("empty choices in response")}
	}

	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}

// completeAzure handles Azure OpenAI; BaseURL is the resource endpoint and
// Model is the deployment name.
func (g *CompletionGateway) completeAzure(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	clientConfig := openai.DefaultAzureConfig(g.cfg.APIKey, g.cfg.BaseURL)
	client := openai.NewClientWithConfig(clientConfig)

	resp, err := client.CreateChatCompletion(ctx, g.openAICompletionRequest(req))
	if err != nil {
		return nil, &UpstreamError{Provider: "azure", Model: req.Model, Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &UpstreamError{Provider: "azure", Model: req.Model, Err: fmt.Errorf("empty choices in response")}
	}

	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}

// completeAnthropic handles the Anthropic API using the native SDK.
func (g *CompletionGateway) completeAnthropic(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	if len(req.ImageURLs) > 0 {
		return nil, &ConfigurationError{Message: "image input requires an OpenAI-compatible provider"}
	}

	client := anthropic.NewClient(
		option.WithAPIKey(g.cfg.APIKey),
	)

	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}

	userContent := req.UserContent
	if req.Format == FormatJSON {
		// Anthropic has no response-format switch; instruct instead.
		userContent += "\n\nRespond with a single valid JSON object and nothing else."
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userContent)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, &UpstreamError{Provider: "anthropic", Model: req.Model, Err: err}
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	promptTokens := int(resp.Usage.InputTokens)
	completionTokens := int(resp.Usage.OutputTokens)

	return &Completion{
		Content: content.String(),
		Model:   string(resp.Model),
		Usage: TokenUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
		FinishReason: string(resp.StopReason),
	}, nil
}

// completeOllama handles a local Ollama instance using the native SDK.
func (g *CompletionGateway) completeOllama(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	if len(req.ImageURLs) > 0 {
		return nil, &ConfigurationError{Message: "image input requires an OpenAI-compatible provider"}
	}

	baseURL := g.cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, &ConfigurationError{Message: fmt.Sprintf("invalid Ollama base URL: %v", err)}
	}
	client := api.NewClient(u, http.DefaultClient)

	options := map[string]interface{}{
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	messages := []api.Message{}
	if req.SystemPrompt != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.UserContent})

	stream := false
	chatReq := &api.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Options:  options,
		Stream:   &stream,
	}
	if req.Format == FormatJSON {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	var content strings.Builder
	var usage TokenUsage
	finishReason := "stop"

	err = client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			usage.PromptTokens = resp.Metrics.PromptEvalCount
			usage.CompletionTokens = resp.Metrics.EvalCount
			usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
			if resp.DoneReason != "" {
				finishReason = resp.DoneReason
			}
		}
		return nil
	})
	if err != nil {
		return nil, &UpstreamError{Provider: "ollama", Model: req.Model, Err: err}
	}

	return &Completion{
		Content:      content.String(),
		Model:        req.Model,
		Usage:        usage,
		FinishReason: finishReason,
	}, nil
}

// completeGemini handles the Google Gemini API using the native SDK.
func (g *CompletionGateway) completeGemini(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	if len(req.ImageURLs) > 0 {
		return nil, &ConfigurationError{Message: "image input requires an OpenAI-compatible provider"}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: g.cfg.APIKey,
	})
	if err != nil {
		return nil, &UpstreamError{Provider: "gemini", Model: req.Model, Err: err}
	}

	genCfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		genCfg.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Format == FormatJSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.UserContent), genCfg)
	if err != nil {
		return nil, &UpstreamError{Provider: "gemini", Model: req.Model, Err: err}
	}

	var usage TokenUsage
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	finishReason := "stop"
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		finishReason = strings.ToLower(string(resp.Candidates[0].FinishReason))
	}

	return &Completion{
		Content:      resp.Text(),
		Model:        req.Model,
		Usage:        usage,
		FinishReason: finishReason,
	}, nil
}
