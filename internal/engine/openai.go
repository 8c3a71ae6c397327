package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAIEngine.
type OpenAIConfig struct {
	BaseURL    string // e.g. http://localhost:8080/v1 for llama.cpp server
	APIKey     string // local servers usually ignore it
	Model      string
	HTTPClient *http.Client
}

// OpenAIEngine implements Engine against any server exposing the OpenAI
// chat completions API (llama.cpp server, Ollama, vLLM).
type OpenAIEngine struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIEngine constructs an engine client. No network traffic happens until Ready or Generate.
func NewOpenAIEngine(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIEngine, error) {
	if cfg.Model == "" {
		return nil, errors.New("engine model must be provided")
	}
	if logger == nil {
		logger = slog.Default()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	base := httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	// Streams are long-lived, so no client-wide Timeout; ctx bounds each call.
	oc.HTTPClient = &http.Client{
		Transport:     &samplingTransport{base: base},
		CheckRedirect: httpClient.CheckRedirect,
		Jar:           httpClient.Jar,
	}

	return &OpenAIEngine{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		logger: logger,
	}, nil
}

// Ready lists the server's models. llama.cpp server answers 503 until the model is loaded.
func (e *OpenAIEngine) Ready(ctx context.Context) error {
	list, err := e.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	e.logger.Debug("Engine reachable", "models", ids, "requested_model", e.model)
	return nil
}

// Generate opens a streaming chat completion.
func (e *OpenAIEngine) Generate(ctx context.Context, messages []ChatMessage, params Params) (FragmentStream, error) {
	if len(messages) == 0 {
		return nil, errors.New("at least one message must be provided")
	}

	req := openai.ChatCompletionRequest{
		Model:       e.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		Stream:      true,
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	ctx = context.WithValue(ctx, samplingKey{}, samplingFields{
		Temperature:   params.Temperature,
		TopP:          params.TopP,
		RepeatPenalty: params.RepetitionPenalty,
	})

	stream, err := e.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("open completion stream: %w", err)
	}
	return &openAIStream{stream: stream}, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Next() (Fragment, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Fragment{}, io.EOF
		}
		return Fragment{}, fmt.Errorf("receive completion chunk: %w", err)
	}

	var frag Fragment
	if len(resp.Choices) > 0 {
		frag.Content = resp.Choices[0].Delta.Content
	}
	if resp.Usage != nil {
		frag.Usage = &Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		}
	}
	return frag, nil
}

func (s *openAIStream) Close() error {
	s.stream.Close()
	return nil
}

// samplingKey carries samplingFields from Generate to samplingTransport.
type samplingKey struct{}

// samplingFields are written into the request body verbatim. go-openai omits
// zero temperature and top_p, and has no repeat_penalty field at all.
type samplingFields struct {
	Temperature   float32
	TopP          float32
	RepeatPenalty float32
}

// samplingTransport writes the sampling knobs into chat completion bodies.
type samplingTransport struct {
	base http.RoundTripper
}

func (t *samplingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	fields, ok := req.Context().Value(samplingKey{}).(samplingFields)
	if !ok || req.Method != http.MethodPost || req.Body == nil || !strings.HasSuffix(req.URL.Path, "/chat/completions") {
		return t.base.RoundTrip(req)
	}

	raw, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read completion request body: %w", err)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decode completion request body: %w", err)
	}
	if err := setNumber(body, "temperature", fields.Temperature); err != nil {
		return nil, err
	}
	if err := setNumber(body, "top_p", fields.TopP); err != nil {
		return nil, err
	}
	if fields.RepeatPenalty > 0 {
		if err := setNumber(body, "repeat_penalty", fields.RepeatPenalty); err != nil {
			return nil, err
		}
	}
	patched, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode completion request body: %w", err)
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(patched))
	out.ContentLength = int64(len(patched))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(patched)), nil
	}
	return t.base.RoundTrip(out)
}

func setNumber(body map[string]json.RawMessage, key string, v float32) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	body[key] = raw
	return nil
}

var _ Engine = (*OpenAIEngine)(nil)
