// Package streaming reshapes provider output before it is sent to clients.
package streaming

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Buffer regroups streamed text.
type Buffer interface {
	// Add appends text and returns the segments that are complete.
	Add(text string) []string
	// Flush returns whatever is still buffered.
	Flush() string
	// Reset discards buffered text.
	Reset()
}

// BufferType names a buffering strategy.
type BufferType string

const (
	BufferTypePassthrough BufferType = "passthrough"
	BufferTypeCharacter   BufferType = "character"
	BufferTypeWord        BufferType = "word"
	BufferTypeSentence    BufferType = "sentence"
	BufferTypeLine        BufferType = "line"
	BufferTypeParagraph   BufferType = "paragraph"
	BufferTypeToken       BufferType = "token"
)

// ParseBufferType validates a configured buffer type. Empty means passthrough.
func ParseBufferType(value string) (BufferType, error) {
	switch t := BufferType(strings.ToLower(strings.TrimSpace(value))); t {
	case "":
		return BufferTypePassthrough, nil
	case BufferTypePassthrough, BufferTypeCharacter, BufferTypeWord, BufferTypeSentence,
		BufferTypeLine, BufferTypeParagraph, BufferTypeToken:
		return t, nil
	default:
		return "", fmt.Errorf("unknown buffer type %q", value)
	}
}

// NewBuffer creates a buffer of the given type. tokenThreshold only applies
// to token buffers. Unknown types pass text through unchanged.
func NewBuffer(bufferType BufferType, tokenThreshold int) Buffer {
	switch bufferType {
	case BufferTypeCharacter:
		return CharacterBuffer{}
	case BufferTypeWord:
		return NewDelimiterBuffer(" ")
	case BufferTypeSentence:
		return &SentenceBuffer{}
	case BufferTypeLine:
		return NewDelimiterBuffer("\n")
	case BufferTypeParagraph:
		return NewDelimiterBuffer("\n\n")
	case BufferTypeToken:
		return NewTokenBuffer(tokenThreshold)
	default:
		return PassthroughBuffer{}
	}
}

// PassthroughBuffer returns every non-empty chunk as it arrives.
type PassthroughBuffer struct{}

func (PassthroughBuffer) Add(text string) []string {
	if text == "" {
		return nil
	}
	return []string{text}
}

func (PassthroughBuffer) Flush() string { return "" }

func (PassthroughBuffer) Reset() {}

// CharacterBuffer splits text into single runes.
type CharacterBuffer struct{}

func (CharacterBuffer) Add(text string) []string {
	if text == "" {
		return nil
	}
	result := make([]string, 0, utf8.RuneCountInString(text))
	for _, r := range text {
		result = append(result, string(r))
	}
	return result
}

func (CharacterBuffer) Flush() string { return "" }

func (CharacterBuffer) Reset() {}

// DelimiterBuffer emits segments ending with a delimiter, delimiter included.
// Words, lines and paragraphs are delimiter buffers.
type DelimiterBuffer struct {
	pending   strings.Builder
	delimiter string
}

// NewDelimiterBuffer creates a buffer splitting on delimiter, default " ".
func NewDelimiterBuffer(delimiter string) *DelimiterBuffer {
	if delimiter == "" {
		delimiter = " "
	}
	return &DelimiterBuffer{delimiter: delimiter}
}

func (b *DelimiterBuffer) Add(text string) []string {
	b.pending.WriteString(text)
	content := b.pending.String()

	var segments []string
	for {
		idx := strings.Index(content, b.delimiter)
		if idx < 0 {
			break
		}
		end := idx + len(b.delimiter)
		segments = append(segments, content[:end])
		content = content[end:]
	}

	b.pending.Reset()
	b.pending.WriteString(content)
	return segments
}

func (b *DelimiterBuffer) Flush() string {
	remaining := b.pending.String()
	b.pending.Reset()
	return remaining
}

func (b *DelimiterBuffer) Reset() {
	b.pending.Reset()
}

// SentenceBuffer emits sentences ending in '.', '!' or '?' followed by
// whitespace. Whitespace between sentences is dropped.
type SentenceBuffer struct {
	pending strings.Builder
}

func (b *SentenceBuffer) Add(text string) []string {
	b.pending.WriteString(text)
	content := b.pending.String()

	var sentences []string
	for {
		end := sentenceEnd(content)
		if end < 0 {
			break
		}
		sentences = append(sentences, content[:end])
		content = strings.TrimLeftFunc(content[end:], unicode.IsSpace)
	}

	b.pending.Reset()
	b.pending.WriteString(content)
	return sentences
}

// sentenceEnd returns the byte offset just past the first sentence
// terminator, or -1.
func sentenceEnd(s string) int {
	for i, r := range s {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next == len(s) {
			return next
		}
		if following, _ := utf8.DecodeRuneInString(s[next:]); unicode.IsSpace(following) {
			return next
		}
	}
	return -1
}

func (b *SentenceBuffer) Flush() string {
	remaining := b.pending.String()
	b.pending.Reset()
	return remaining
}

func (b *SentenceBuffer) Reset() {
	b.pending.Reset()
}

// TokenBuffer emits everything buffered once it holds threshold tokens.
type TokenBuffer struct {
	pending   strings.Builder
	tokens    int
	threshold int
}

// NewTokenBuffer creates a token buffer, default threshold 5.
func NewTokenBuffer(threshold int) *TokenBuffer {
	if threshold <= 0 {
		threshold = 5
	}
	return &TokenBuffer{threshold: threshold}
}

func (b *TokenBuffer) Add(text string) []string {
	b.pending.WriteString(text)
	b.tokens += countWords(text)

	if b.tokens < b.threshold {
		return nil
	}
	return []string{b.Flush()}
}

func (b *TokenBuffer) Flush() string {
	remaining := b.pending.String()
	b.pending.Reset()
	b.tokens = 0
	return remaining
}

func (b *TokenBuffer) Reset() {
	b.pending.Reset()
	b.tokens = 0
}

// countWords approximates tokens by whitespace separated words.
func countWords(text string) int {
	return len(strings.Fields(text))
}
