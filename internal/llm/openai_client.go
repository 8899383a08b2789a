package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	deeperrors "deepgraph/internal/errors"
	"deepgraph/internal/logging"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Config configures an OpenAI-compatible client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// openaiClient speaks the OpenAI-compatible chat completions API.
type openaiClient struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// NewOpenAIClient constructs a reasoning-service client for the given model.
func NewOpenAIClient(model string, config Config) Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	timeout := 120 * time.Second
	if config.Timeout > 0 {
		timeout = config.Timeout
	}
	return &openaiClient{
		model:      model,
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger("llm-" + model),
	}
}

func (c *openaiClient) Model() string {
	return c.model
}

func (c *openaiClient) buildRequestBody(req CompletionRequest, stream bool) map[string]any {
	body := map[string]any{
		"model":    c.model,
		"messages": convertMessages(req.Messages),
		"stream":   stream,
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		body["tools"] = convertTools(req.Tools)
		body["tool_choice"] = "auto"
	}
	if req.JSONMode {
		body["response_format"] = map[string]any{"type": "json_object"}
	}
	return body
}

func (c *openaiClient) newHTTPRequest(ctx context.Context, body map[string]any) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return httpReq, nil
}

func (c *openaiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	httpReq, err := c.newHTTPRequest(ctx, c.buildRequestBody(req, false))
	if err != nil {
		return nil, err
	}

	c.logger.Debug("POST %s/chat/completions model=%s messages=%d tools=%d",
		c.baseURL, c.model, len(req.Messages), len(req.Tools))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, wrapRequestError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, mapHTTPError(resp.StatusCode, respBody)
	}

	var oaiResp struct {
		Choices []struct {
			Message struct {
				Content   string `json:"content"`
				ToolCalls []struct {
					ID       string `json:"id"`
					Type     string `json:"type"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
		Error *struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if oaiResp.Error != nil && oaiResp.Error.Message != "" {
		return nil, mapHTTPError(resp.StatusCode, []byte(oaiResp.Error.Message))
	}
	if len(oaiResp.Choices) == 0 {
		return nil, deeperrors.NewTransientError(errors.New("no choices in response"), "LLM returned an empty response. Please retry.")
	}

	choice := oaiResp.Choices[0]
	result := &CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: TokenUsage{
			PromptTokens:     oaiResp.Usage.PromptTokens,
			CompletionTokens: oaiResp.Usage.CompletionTokens,
			TotalTokens:      oaiResp.Usage.TotalTokens,
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		args, err := parseToolArguments(tc.Function.Arguments)
		if err != nil {
			c.logger.Warn("dropping tool call %s with unparsable arguments: %v", tc.Function.Name, err)
			continue
		}
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	c.logger.Debug("response stop=%s content=%d chars tool_calls=%d tokens=%d",
		result.StopReason, len(result.Content), len(result.ToolCalls), result.Usage.TotalTokens)

	return result, nil
}

// StreamComplete streams content deltas while aggregating the response.
// Tool-call fragments arrive piecewise keyed by index; a fragment set is
// complete when the stream ends, so dispatch happens only after aggregation.
func (c *openaiClient) StreamComplete(ctx context.Context, req CompletionRequest, callbacks StreamCallbacks) (*CompletionResponse, error) {
	httpReq, err := c.newHTTPRequest(ctx, c.buildRequestBody(req, true))
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, wrapRequestError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("read response: %w", readErr)
		}
		return nil, mapHTTPError(resp.StatusCode, respBody)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	type toolCallDelta struct {
		Index    int    `json:"index"`
		ID       string `json:"id"`
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	}
	type streamChunk struct {
		Choices []struct {
			Delta struct {
				Content   string          `json:"content"`
				ToolCalls []toolCallDelta `json:"tool_calls"`
			} `json:"delta"`
			FinishReason *string `json:"finish_reason"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}

	type toolAccumulator struct {
		id        string
		name      string
		arguments strings.Builder
	}
	accumulators := make(map[int]*toolAccumulator)
	var order []int

	var content strings.Builder
	usage := TokenUsage{}
	finishReason := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			c.logger.Debug("skipping undecodable stream chunk: %v", err)
			continue
		}

		if chunk.Usage != nil {
			usage = TokenUsage{
				PromptTokens:     chunk.Usage.PromptTokens,
				CompletionTokens: chunk.Usage.CompletionTokens,
				TotalTokens:      chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			finishReason = *choice.FinishReason
		}

		if text := choice.Delta.Content; text != "" {
			content.WriteString(text)
			if callbacks.OnContentDelta != nil {
				callbacks.OnContentDelta(ContentDelta{Delta: text})
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			acc, ok := accumulators[tc.Index]
			if !ok {
				acc = &toolAccumulator{}
				accumulators[tc.Index] = acc
				order = append(order, tc.Index)
			}
			if tc.ID != "" {
				acc.id = tc.ID
			}
			if tc.Function.Name != "" {
				acc.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				acc.arguments.WriteString(tc.Function.Arguments)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read response stream: %w", err)
	}

	if callbacks.OnContentDelta != nil {
		callbacks.OnContentDelta(ContentDelta{Final: true})
	}

	result := &CompletionResponse{
		Content:    content.String(),
		StopReason: finishReason,
		Usage:      usage,
	}
	for _, idx := range order {
		acc := accumulators[idx]
		args, err := parseToolArguments(acc.arguments.String())
		if err != nil {
			c.logger.Warn("dropping streamed tool call %s with unparsable arguments: %v", acc.name, err)
			continue
		}
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        acc.id,
			Name:      acc.name,
			Arguments: args,
		})
	}

	return result, nil
}

// parseToolArguments decodes a tool-call argument payload, repairing the
// JSON first when the model emitted a malformed fragment.
func parseToolArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args, nil
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return nil, fmt.Errorf("repair arguments: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &args); err != nil {
		return nil, fmt.Errorf("decode repaired arguments: %w", err)
	}
	return args, nil
}

func convertMessages(msgs []Message) []map[string]any {
	result := make([]map[string]any, 0, len(msgs))
	for _, msg := range msgs {
		entry := map[string]any{
			"role":    msg.Role,
			"content": msg.Content,
		}
		if msg.ToolCallID != "" {
			entry["tool_call_id"] = msg.ToolCallID
		}
		if len(msg.ToolCalls) > 0 {
			calls := make([]map[string]any, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				argJSON, err := json.Marshal(tc.Arguments)
				if err != nil {
					argJSON = []byte("{}")
				}
				calls = append(calls, map[string]any{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": string(argJSON),
					},
				})
			}
			entry["tool_calls"] = calls
		}
		result = append(result, entry)
	}
	return result
}

func convertTools(tools []ToolDefinition) []map[string]any {
	result := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			},
		})
	}
	return result
}

func wrapRequestError(err error) error {
	return deeperrors.NewTransientError(err, fmt.Sprintf("LLM request failed: %v", err))
}

func mapHTTPError(statusCode int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 500 {
		msg = msg[:500]
	}
	base := fmt.Errorf("API error %d: %s", statusCode, msg)
	switch {
	case statusCode == http.StatusTooManyRequests:
		return &deeperrors.TransientError{Err: base, StatusCode: statusCode,
			Message: "API rate limit reached. Retrying with exponential backoff."}
	case statusCode >= 500:
		return &deeperrors.TransientError{Err: base, StatusCode: statusCode,
			Message: fmt.Sprintf("Server error (%d). Retrying request.", statusCode)}
	default:
		return &deeperrors.PermanentError{Err: base, StatusCode: statusCode}
	}
}
