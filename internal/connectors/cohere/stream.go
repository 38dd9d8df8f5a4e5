package cohere

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const maxStreamLine = 1 << 20

const (
	eventTextGeneration = "text-generation"
	eventStreamEnd      = "stream-end"
)

// readStream parses newline delimited stream events, calling onText for
// every generated fragment. It returns the final response carried by the
// stream-end event, nil when the stream ended without one or onText
// returned false.
func readStream(body io.Reader, onText func(string) bool) (*ChatResponse, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxStreamLine)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event StreamEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return nil, fmt.Errorf("failed to decode stream event: %w", err)
		}

		switch event.EventType {
		case eventTextGeneration:
			if event.Text == "" {
				continue
			}
			if !onText(event.Text) {
				return nil, nil
			}
		case eventStreamEnd:
			if event.FinishReason != "" && event.FinishReason != "COMPLETE" && event.FinishReason != "MAX_TOKENS" {
				return event.Response, fmt.Errorf("stream finished with %s", event.FinishReason)
			}
			if event.Response == nil {
				return &ChatResponse{FinishReason: event.FinishReason}, nil
			}
			return event.Response, nil
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}
	return nil, nil
}
