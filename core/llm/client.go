package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/siherrmann/wikigraph/helper"
	"github.com/siherrmann/wikigraph/model"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const textCapability = "text understanding"

// ClientConfiguration holds the connection settings of an OpenAI compatible chat API
type ClientConfiguration struct {
	BaseURL           string
	Token             string
	Model             string
	RequestsPerMinute int
}

// NewClientConfiguration reads the client configuration from the
// WIKIGRAPH_LLM_* environment variables (a .env file is loaded if present).
func NewClientConfiguration() (*ClientConfiguration, error) {
	_ = godotenv.Load()

	config := &ClientConfiguration{
		BaseURL:           os.Getenv("WIKIGRAPH_LLM_BASE_URL"),
		Token:             os.Getenv("WIKIGRAPH_LLM_TOKEN"),
		Model:             os.Getenv("WIKIGRAPH_LLM_MODEL"),
		RequestsPerMinute: 60,
	}

	if len(config.Model) == 0 {
		return nil, fmt.Errorf("WIKIGRAPH_LLM_MODEL must be set")
	}
	if len(config.Token) == 0 {
		// Local OpenAI compatible servers do not check the token
		config.Token = "none"
	}
	if v := os.Getenv("WIKIGRAPH_LLM_RPM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid WIKIGRAPH_LLM_RPM: %q", v)
		}
		config.RequestsPerMinute = n
	}

	return config, nil
}

// Client classifies, synthesizes and verifies through a chat model
type Client struct {
	model   llms.Model
	limiter *rate.Limiter
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewClient creates a client for an OpenAI compatible chat API
func NewClient(config *ClientConfiguration, logger *slog.Logger) (*Client, error) {
	if config == nil {
		return nil, helper.NewError("llm client", errors.New("configuration is nil"))
	}

	options := []openai.Option{
		openai.WithToken(config.Token),
		openai.WithModel(config.Model),
	}
	if config.BaseURL != "" {
		options = append(options, openai.WithBaseURL(config.BaseURL))
	}
	chat, err := openai.New(options...)
	if err != nil {
		return nil, helper.NewError("llm client", err)
	}

	return NewClientWithModel(chat, config.RequestsPerMinute, logger), nil
}

// NewClientWithModel creates a client around any langchaingo model.
// requestsPerMinute < 1 disables rate limiting.
func NewClientWithModel(chat llms.Model, requestsPerMinute int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if requestsPerMinute > 0 {
		burst := requestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}

	return &Client{
		model:   chat,
		limiter: limiter,
		logger:  logger,
		tracer:  helper.Tracer("llm"),
	}
}

// Classify asks the model to classify the query. A non-empty feedback is the
// validation error of the previous answer and is sent as a reprompt.
// The raw answer is returned unvalidated.
func (c *Client) Classify(ctx context.Context, query string, feedback string) (json.RawMessage, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, classifySystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, query),
	}
	if feedback != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(classifyFeedbackPrompt, feedback)))
	}

	content, err := c.generate(ctx, "llm.classify", messages, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		return nil, err
	}
	return json.RawMessage(content), nil
}

// Synthesize writes an answer to the question from the retrieved chunks
func (c *Client) Synthesize(ctx context.Context, question string, chunks []*model.ScoredChunk) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, synthesizeSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf("Context:\n%s\nQuestion: %s", formatContext(chunks), question)),
	}

	content, err := c.generate(ctx, "llm.synthesize", messages, llms.WithTemperature(0.2))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// verification is the model output of Verify
type verification struct {
	Risk      bool     `json:"risk"`
	RiskLevel string   `json:"risk_level"`
	Reason    string   `json:"reason"`
	Issues    []string `json:"issues_found"`
}

// Verify checks the answer against the chunks it was synthesized from.
// An unparseable verdict is reported as a risk.
func (c *Client) Verify(ctx context.Context, answer string, chunks []*model.ScoredChunk) (*model.Verification, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, verifySystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf("Context:\n%s\nAnswer:\n%s", formatContext(chunks), answer)),
	}

	content, err := c.generate(ctx, "llm.verify", messages, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		return nil, err
	}

	output := verification{}
	if err := json.Unmarshal([]byte(helper.StripCodeFence(content)), &output); err != nil {
		c.logger.Warn("Unparseable verification, reporting risk", slog.String("error", err.Error()))
		return &model.Verification{Risk: true, RiskLevel: "unknown", Reason: "verification output could not be parsed"}, nil
	}

	return &model.Verification{
		Risk:      output.Risk,
		RiskLevel: output.RiskLevel,
		Reason:    output.Reason,
		Issues:    output.Issues,
	}, nil
}

func (c *Client) generate(ctx context.Context, operation string, messages []llms.MessageContent, options ...llms.CallOption) (string, error) {
	ctx, span := c.tracer.Start(ctx, operation)
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("llm.rate_limited", true))
		return "", helper.NewError(operation, err)
	}

	response, err := c.model.GenerateContent(ctx, messages, options...)
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return "", helper.NewError(operation, err)
		}
		return "", model.NewCapabilityUnavailable(textCapability, err)
	}
	if len(response.Choices) < 1 {
		return "", helper.NewError(operation, errors.New("no choices returned from model"))
	}

	return response.Choices[0].Content, nil
}

// formatContext renders chunks as [[node-chunk]] references followed by their text
func formatContext(chunks []*model.ScoredChunk) string {
	var sb strings.Builder
	for _, chunk := range chunks {
		if chunk == nil || chunk.Hit == nil {
			continue
		}
		fmt.Fprintf(&sb, "[[%s-%s]] %s: %s\n", chunk.Hit.NodeID, chunk.Hit.ChunkID.String()[:8], chunk.Hit.Title, chunk.Hit.Text)
	}
	return sb.String()
}
