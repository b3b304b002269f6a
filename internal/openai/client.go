package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultBaseURL points at a local OpenAI-compatible server such as vLLM
	DefaultBaseURL = "http://localhost:8000/v1"
	// DefaultModel is the model name served by the default endpoint
	DefaultModel = "llama-3.1-8b-instruct"
	// DefaultAPIKey is the placeholder key accepted by vLLM
	DefaultAPIKey = "vllm"
	// DefaultTimeout bounds a single completion request
	DefaultTimeout = 60 * time.Second
)

// Chat roles
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

var (
	// ErrNoMessages is returned when a completion is requested without messages
	ErrNoMessages = errors.New("at least one message is required")
	// ErrEmptyResponse is returned when the server returns no choices
	ErrEmptyResponse = errors.New("no completion choices returned")
)

// Message is one role-tagged chat message
type Message struct {
	Role    string
	Content string
}

// ChatRequest is a provider-neutral chat completion request
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float32
	JSONMode    bool
}

// ChatAPI defines the interface for chat completions
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error)
}

// Completer is the model capability consumed by the extraction pipeline
type Completer interface {
	Complete(ctx context.Context, messages []Message, temperature float32) (string, error)
}

// Client wraps an OpenAI-compatible chat API
type Client struct {
	api      ChatAPI
	model    string
	jsonMode bool
}

type OpenAIAdapter struct {
	client *openai.Client
}

func NewOpenAIAdapter(baseURL, apiKey string, timeout time.Duration) *OpenAIAdapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if apiKey == "" {
		apiKey = DefaultAPIKey
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(cfg),
	}
}

// CreateChatCompletion calls the chat completions endpoint and returns the
// content of the first choice
func (a *OpenAIAdapter) CreateChatCompletion(ctx context.Context, req ChatRequest) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	creq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: wireTemperature(req.Temperature),
	}
	if req.JSONMode {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := a.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}

// wireTemperature maps 0 to the smallest positive float32, since the request
// encoder omits a zero temperature and the server would apply its default.
func wireTemperature(t float32) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
	JSONMode bool
}

// NewClient creates a new client against the default local endpoint.
func NewClient() *Client {
	return NewClientWithConfig(Config{})
}

// NewClientWithConfig creates a new client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	return NewClientWithAPI(NewOpenAIAdapter(cfg.BaseURL, cfg.APIKey, cfg.Timeout), cfg.Model, cfg.JSONMode)
}

// NewClientWithAPI creates a client over an arbitrary ChatAPI implementation.
func NewClientWithAPI(api ChatAPI, model string, jsonMode bool) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		api:      api,
		model:    model,
		jsonMode: jsonMode,
	}
}

// Model returns the model identifier sent with each request
func (c *Client) Model() string {
	return c.model
}

// Complete sends the messages to the model and returns the response text
func (c *Client) Complete(ctx context.Context, messages []Message, temperature float32) (string, error) {
	if len(messages) == 0 {
		return "", ErrNoMessages
	}

	content, err := c.api.CreateChatCompletion(ctx, ChatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		JSONMode:    c.jsonMode,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}

	return content, nil
}
