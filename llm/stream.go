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
)

// StreamDelta is one increment of a streamed completion.
type StreamDelta struct {
	Content      string
	FullContent  string
	FinishReason string
	Done         bool
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// CompleteStream sends the request with streaming enabled and invokes handler
// for each delta. Only the first model in the chain (or the request override)
// is used; streaming callers handle degradation themselves.
func (c *Client) CompleteStream(ctx context.Context, req Request, handler func(StreamDelta) error) (Result, error) {
	if c == nil {
		return Result{}, errors.New("llm: client is nil")
	}

	payload, err := buildPayload(req, true)
	if err != nil {
		return Result{}, err
	}
	payload.Model = c.candidateModels(req.Model)[0]

	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(payload); err != nil {
		return Result{}, fmt.Errorf("llm: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", body)
	if err != nil {
		return Result{}, fmt.Errorf("llm: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("llm: execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Result{}, fmt.Errorf("llm: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	// Some providers answer a streaming request with a plain JSON body.
	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if strings.Contains(contentType, "application/json") {
		var decoded completionResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return Result{}, fmt.Errorf("llm: decode response: %w", err)
		}
		if len(decoded.Choices) == 0 {
			return Result{}, errors.New("llm: response contains no choices")
		}
		full := strings.TrimSpace(decoded.Choices[0].Message.Content)
		if handler != nil && full != "" {
			if err := handler(StreamDelta{Content: full, FullContent: full}); err != nil {
				return Result{}, err
			}
		}
		if handler != nil {
			if err := handler(StreamDelta{FullContent: full, Done: true}); err != nil {
				return Result{}, err
			}
		}
		return Result{Content: full, Model: payload.Model, Usage: decoded.Usage}, nil
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var builder strings.Builder
	var usage *Usage

	flush := func(delta StreamDelta) error {
		if handler == nil {
			return nil
		}
		return handler(delta)
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(line[len("data:"):])
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			if err := flush(StreamDelta{FullContent: builder.String(), Done: true}); err != nil {
				return Result{}, err
			}
			return Result{Content: builder.String(), Model: payload.Model, Usage: usage}, nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		for _, choice := range chunk.Choices {
			deltaText := choice.Delta.Content
			if deltaText != "" {
				builder.WriteString(deltaText)
				if err := flush(StreamDelta{
					Content:      deltaText,
					FullContent:  builder.String(),
					FinishReason: choice.FinishReason,
				}); err != nil {
					return Result{}, err
				}
			}
			if deltaText == "" && choice.FinishReason != "" {
				if err := flush(StreamDelta{
					FullContent:  builder.String(),
					FinishReason: choice.FinishReason,
				}); err != nil {
					return Result{}, err
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return Result{}, fmt.Errorf("llm: read stream: %w", err)
	}

	if err := flush(StreamDelta{FullContent: builder.String(), Done: true}); err != nil {
		return Result{}, err
	}
	return Result{Content: builder.String(), Model: payload.Model, Usage: usage}, nil
}
