package openai

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const maxStreamLine = 1 << 20

// readStream parses SSE "data:" lines until [DONE] or EOF, calling onDelta
// for every non-empty content delta. It stops early when onDelta returns
// false and returns the usage block if the upstream sent one.
func readStream(body io.Reader, onDelta func(string) bool) (*Usage, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxStreamLine)

	var usage *Usage
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return usage, nil
		}

		var chunk StreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return usage, fmt.Errorf("failed to decode stream chunk: %w", err)
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if !onDelta(choice.Delta.Content) {
				return usage, nil
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return usage, fmt.Errorf("failed to read stream: %w", err)
	}
	return usage, nil
}
