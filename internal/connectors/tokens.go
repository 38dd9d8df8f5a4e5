package connectors

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// modelEncodings maps model types to their tiktoken encoding.
var modelEncodings = map[string]tokenizer.Encoding{
	"gpt-3.5-turbo":          tokenizer.Cl100kBase,
	"gpt-3.5-turbo-16k":      tokenizer.Cl100kBase,
	"gpt-4":                  tokenizer.Cl100kBase,
	"gpt-4-32k":              tokenizer.Cl100kBase,
	"text-embedding-ada-002": tokenizer.Cl100kBase,
}

// Dated snapshots such as gpt-4-0613 share their family's encoding.
var snapshotPrefixes = []string{"gpt-3.5-turbo-", "gpt-4-"}

var codecs sync.Map // tokenizer.Encoding -> tokenizer.Codec

// EncodingFor returns the tiktoken encoding of modelType.
func EncodingFor(modelType string) (tokenizer.Encoding, bool) {
	if encoding, ok := modelEncodings[modelType]; ok {
		return encoding, true
	}
	for _, prefix := range snapshotPrefixes {
		if strings.HasPrefix(modelType, prefix) {
			return tokenizer.Cl100kBase, true
		}
	}
	return "", false
}

func codecFor(encoding tokenizer.Encoding) (tokenizer.Codec, error) {
	if cached, ok := codecs.Load(encoding); ok {
		return cached.(tokenizer.Codec), nil
	}
	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, err
	}
	actual, _ := codecs.LoadOrStore(encoding, codec)
	return actual.(tokenizer.Codec), nil
}

// CountTokens counts the tokens of text with the tokenizer of modelType.
// Models without a known encoding fall back to ApproximateTokenCount.
func CountTokens(text, modelType string) int {
	if text == "" {
		return 0
	}
	encoding, ok := EncodingFor(modelType)
	if !ok {
		return ApproximateTokenCount(text)
	}
	codec, err := codecFor(encoding)
	if err != nil {
		return ApproximateTokenCount(text)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return ApproximateTokenCount(text)
	}
	return len(ids)
}

// ApproximateTokenCount estimates the token count of text without a
// vendor tokenizer. It takes the larger of roughly four characters per
// token and four tokens per three words.
func ApproximateTokenCount(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	byChars := (utf8.RuneCountInString(text) + 3) / 4
	byWords := (len(strings.Fields(text))*4 + 2) / 3
	return max(byChars, byWords)
}
