package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"

	tracedopenai "github.com/run-bigpig/traceai/pkg/instrumentation/openai"
	"github.com/run-bigpig/traceai/pkg/interfaces"
	"github.com/run-bigpig/traceai/pkg/llm"
	"github.com/run-bigpig/traceai/pkg/logging"
	"github.com/run-bigpig/traceai/pkg/retry"
	"github.com/run-bigpig/traceai/pkg/tracing"
)

// OpenAIClient implements the LLM interface for OpenAI. Every completion it
// sends is traced as an LLM span and every tool it runs as a TOOL span.
type OpenAIClient struct {
	Model         string
	baseURL       string
	client        *tracedopenai.Client
	tracer        *tracing.Tracer
	logger        logging.Logger
	retryPolicy   *retry.Policy
	retryExecutor *retry.Executor
}

var _ interfaces.LLM = (*OpenAIClient)(nil)

// Option represents an option for configuring the OpenAI client
type Option func(*OpenAIClient)

// WithModel sets the model for the OpenAI client
func WithModel(model string) Option {
	return func(c *OpenAIClient) {
		c.Model = model
	}
}

// WithLogger sets the logger for the OpenAI client
func WithLogger(logger logging.Logger) Option {
	return func(c *OpenAIClient) {
		c.logger = logger
	}
}

// WithRetry configures retry policy for the client
func WithRetry(opts ...retry.Option) Option {
	return func(c *OpenAIClient) {
		c.retryPolicy = retry.NewPolicy(opts...)
	}
}

// WithTracer sets the tracer used for completions and tool runs
func WithTracer(tracer *tracing.Tracer) Option {
	return func(c *OpenAIClient) {
		c.tracer = tracer
	}
}

// WithBaseURL points the client at an OpenAI compatible endpoint
func WithBaseURL(baseURL string) Option {
	return func(c *OpenAIClient) {
		c.baseURL = baseURL
	}
}

// NewClient creates a new OpenAI client
func NewClient(apiKey string, options ...Option) *OpenAIClient {
	client := &OpenAIClient{
		Model:  "gpt-4o-mini",
		logger: logging.NewNop(),
	}

	for _, option := range options {
		option(client)
	}

	if client.retryPolicy != nil {
		client.retryExecutor = retry.NewExecutor(client.retryPolicy, client.logger)
	}

	cfg := openai.DefaultConfig(apiKey)
	if client.baseURL != "" {
		cfg.BaseURL = client.baseURL
	}
	client.client = tracedopenai.NewClient(openai.NewClientWithConfig(cfg), client.tracer)
	return client
}

// Generate generates text from a prompt
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (string, error) {
	params := interfaces.ApplyGenerateOptions(options...)
	req := c.request(params, messages(params.SystemMessage, prompt))

	resp, err := c.complete(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// Chat uses the ChatCompletion API to have a conversation (messages) with a model
func (c *OpenAIClient) Chat(ctx context.Context, messages []llm.Message, params *llm.GenerateParams) (string, error) {
	if params == nil {
		params = llm.DefaultGenerateParams()
	}

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:            c.Model,
		Messages:         chatMessages,
		Temperature:      float32(params.Temperature),
		TopP:             float32(params.TopP),
		FrequencyPenalty: float32(params.FrequencyPenalty),
		PresencePenalty:  float32(params.PresencePenalty),
		MaxTokens:        params.MaxTokens,
		Stop:             params.StopSequences,
	}

	resp, err := c.complete(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream streams the completion of prompt. The caller must drain or
// Close the returned stream.
func (c *OpenAIClient) GenerateStream(ctx context.Context, prompt string, options ...interfaces.GenerateOption) (*tracing.Stream[openai.ChatCompletionStreamResponse], error) {
	params := interfaces.ApplyGenerateOptions(options...)
	req := c.request(params, messages(params.SystemMessage, prompt))
	req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	c.logger.Debug(ctx, "Opening OpenAI stream", map[string]interface{}{"model": req.Model})
	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat completion stream: %w", err)
	}
	return stream, nil
}

// GenerateWithTools implements interfaces.LLM.GenerateWithTools. Tool calls
// requested by the model are run concurrently, then the results are sent back
// for the final answer.
func (c *OpenAIClient) GenerateWithTools(ctx context.Context, prompt string, tools []interfaces.Tool, options ...interfaces.GenerateOption) (string, error) {
	params := interfaces.ApplyGenerateOptions(options...)
	conversation := messages(params.SystemMessage, prompt)

	req := c.request(params, conversation)
	req.Tools = toolDefinitions(tools)

	c.logger.Debug(ctx, "Sending request with tools to OpenAI", map[string]interface{}{
		"model":    req.Model,
		"messages": len(req.Messages),
		"tools":    len(req.Tools),
	})
	resp, err := c.complete(ctx, req)
	if err != nil {
		return "", err
	}

	reply := resp.Choices[0].Message
	if len(reply.ToolCalls) == 0 {
		return strings.TrimSpace(reply.Content), nil
	}

	c.logger.Info(ctx, "Processing tool calls", map[string]interface{}{"count": len(reply.ToolCalls)})
	conversation = append(conversation, reply)
	conversation = append(conversation, c.runTools(ctx, tools, reply.ToolCalls)...)

	final := c.request(params, conversation)
	resp, err = c.complete(ctx, final)
	if err != nil {
		return "", fmt.Errorf("failed to create final chat completion: %w", err)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Name implements interfaces.LLM.Name
func (c *OpenAIClient) Name() string {
	return "openai"
}

// runTools executes every tool call concurrently and returns the tool
// messages in call order. Tool failures are reported to the model.
func (c *OpenAIClient) runTools(ctx context.Context, tools []interfaces.Tool, calls []openai.ToolCall) []openai.ChatCompletionMessage {
	results := make([]openai.ChatCompletionMessage, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()

			content, err := c.runTool(ctx, tools, call)
			if err != nil {
				c.logger.Error(ctx, "Error executing tool", map[string]interface{}{
					"toolName": call.Function.Name,
					"error":    err.Error(),
				})
				content = fmt.Sprintf("Error: %v", err)
			}
			results[i] = openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    content,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
			}
		}()
	}
	wg.Wait()

	return results
}

func (c *OpenAIClient) runTool(ctx context.Context, tools []interfaces.Tool, call openai.ToolCall) (string, error) {
	for _, tool := range tools {
		if tool.Name() == call.Function.Name {
			c.logger.Info(ctx, "Executing tool", map[string]interface{}{"toolName": tool.Name()})
			return tracing.NewToolOTelMiddleware(tool, c.tracer).Execute(ctx, call.Function.Arguments)
		}
	}
	return "", fmt.Errorf("tool not found: %s", call.Function.Name)
}

// complete sends req, retrying transient failures when a retry policy is set.
// Each attempt is traced on its own.
func (c *OpenAIClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var resp openai.ChatCompletionResponse

	operation := func(ctx context.Context) error {
		c.logger.Debug(ctx, "Executing OpenAI API request", map[string]interface{}{
			"model":       req.Model,
			"temperature": req.Temperature,
			"messages":    len(req.Messages),
		})

		var err error
		resp, err = c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			c.logger.Error(ctx, "Error from OpenAI API", map[string]interface{}{
				"error": err.Error(),
				"model": req.Model,
			})
			err = fmt.Errorf("failed to generate text: %w", err)
			if !retryable(err) {
				return retry.Permanent(err)
			}
			return err
		}
		return nil
	}

	var err error
	if c.retryExecutor != nil {
		err = c.retryExecutor.Do(ctx, operation)
	} else {
		err = operation(ctx)
	}
	if err != nil {
		return resp, err
	}
	if len(resp.Choices) == 0 {
		return resp, fmt.Errorf("no completions returned")
	}
	return resp, nil
}

func (c *OpenAIClient) request(params interfaces.GenerateOptions, msgs []openai.ChatCompletionMessage) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    c.Model,
		Messages: msgs,
	}
	if params.Model != "" {
		req.Model = params.Model
	}
	if cfg := params.LLMConfig; cfg != nil {
		req.Temperature = float32(cfg.Temperature)
		req.TopP = float32(cfg.TopP)
		req.FrequencyPenalty = float32(cfg.FrequencyPenalty)
		req.PresencePenalty = float32(cfg.PresencePenalty)
		req.MaxTokens = cfg.MaxTokens
		req.Stop = cfg.StopSequences
	}
	return req
}

func messages(system, prompt string) []openai.ChatCompletionMessage {
	var msgs []openai.ChatCompletionMessage
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
}

// toolDefinitions converts tools to OpenAI function definitions
func toolDefinitions(tools []interfaces.Tool) []openai.Tool {
	definitions := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		properties := make(map[string]interface{})
		required := []string{}

		for name, param := range tool.Parameters() {
			property := map[string]interface{}{
				"type":        param.Type,
				"description": param.Description,
			}
			if param.Default != nil {
				property["default"] = param.Default
			}
			if param.Enum != nil {
				property["enum"] = param.Enum
			}
			if param.Items != nil {
				items := map[string]interface{}{"type": param.Items.Type}
				if param.Items.Enum != nil {
					items["enum"] = param.Items.Enum
				}
				property["items"] = items
			}
			if param.Required {
				required = append(required, name)
			}
			properties[name] = property
		}

		definitions[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": properties,
					"required":   required,
				},
			},
		}
	}
	return definitions
}

// retryable reports whether err may succeed on a later attempt
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// WithTopP creates a GenerateOption to set the top_p
func WithTopP(topP float64) interfaces.GenerateOption {
	return func(options *interfaces.GenerateOptions) {
		if options.LLMConfig == nil {
			options.LLMConfig = &interfaces.LLMConfig{}
		}
		options.LLMConfig.TopP = topP
	}
}

// WithFrequencyPenalty creates a GenerateOption to set the frequency penalty
func WithFrequencyPenalty(frequencyPenalty float64) interfaces.GenerateOption {
	return func(options *interfaces.GenerateOptions) {
		if options.LLMConfig == nil {
			options.LLMConfig = &interfaces.LLMConfig{}
		}
		options.LLMConfig.FrequencyPenalty = frequencyPenalty
	}
}

// WithPresencePenalty creates a GenerateOption to set the presence penalty
func WithPresencePenalty(presencePenalty float64) interfaces.GenerateOption {
	return func(options *interfaces.GenerateOptions) {
		if options.LLMConfig == nil {
			options.LLMConfig = &interfaces.LLMConfig{}
		}
		options.LLMConfig.PresencePenalty = presencePenalty
	}
}
