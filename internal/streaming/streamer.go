package streaming

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"dev.helix.gateway/internal/config"
	"dev.helix.gateway/internal/models"
)

// StreamConfig controls how a prompt stream is reshaped.
type StreamConfig struct {
	// BufferType regroups content chunks. Passthrough keeps them as sent.
	BufferType BufferType `yaml:"buffer_type" json:"buffer_type"`
	// TokenThreshold applies to token buffers.
	TokenThreshold int `yaml:"token_threshold" json:"token_threshold"`
	// TokensPerSecond paces delivery, 0 = unlimited.
	TokensPerSecond float64 `yaml:"tokens_per_second" json:"tokens_per_second"`
	// ProgressInterval throttles progress callbacks.
	ProgressInterval time.Duration `yaml:"progress_interval" json:"progress_interval"`
}

// DefaultStreamConfig forwards chunks unchanged and unpaced.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		BufferType:       BufferTypePassthrough,
		TokenThreshold:   5,
		ProgressInterval: time.Second,
	}
}

// FromConfig converts the gateway streaming section.
func FromConfig(cfg config.StreamingConfig) (StreamConfig, error) {
	bufferType, err := ParseBufferType(cfg.BufferType)
	if err != nil {
		return StreamConfig{}, err
	}

	out := DefaultStreamConfig()
	out.BufferType = bufferType
	out.TokensPerSecond = cfg.TokensPerSecond
	if cfg.TokenThreshold > 0 {
		out.TokenThreshold = cfg.TokenThreshold
	}
	return out, nil
}

// Streamer applies buffering, pacing and progress tracking to a channel of
// prompt results. Every stage keeps chunk order, forwards the terminal
// result last and stops after it.
type Streamer struct {
	config StreamConfig
	log    *logrus.Logger
}

// NewStreamer creates a streamer.
func NewStreamer(cfg StreamConfig, log *logrus.Logger) *Streamer {
	if log == nil {
		log = logrus.New()
	}
	if cfg.BufferType == "" {
		cfg.BufferType = BufferTypePassthrough
	}
	return &Streamer{config: cfg, log: log}
}

// Config returns the streamer configuration.
func (s *Streamer) Config() StreamConfig {
	return s.config
}

// Shape runs in through Buffered, Paced and Tracked.
func (s *Streamer) Shape(
	ctx context.Context,
	in <-chan models.PromptResult,
	progress ProgressCallback,
) (<-chan models.PromptResult, *ProgressTracker) {
	tracker := NewProgressTracker(0)
	tracker.Start()

	out := s.Tracked(ctx, s.Paced(ctx, s.Buffered(ctx, in)), tracker, progress)
	return out, tracker
}

// Buffered regroups content chunks with the configured buffer. Buffered
// text is flushed before the terminal result, or when in closes.
func (s *Streamer) Buffered(ctx context.Context, in <-chan models.PromptResult) <-chan models.PromptResult {
	if s.config.BufferType == BufferTypePassthrough {
		return in
	}

	buffer := NewBuffer(s.config.BufferType, s.config.TokenThreshold)
	out := make(chan models.PromptResult)

	go func() {
		defer close(out)

		emit := func(result models.PromptResult) bool {
			select {
			case out <- result:
				return true
			case <-ctx.Done():
				return false
			}
		}
		flush := func() bool {
			if remaining := buffer.Flush(); remaining != "" {
				return emit(models.PromptResult{Content: &remaining})
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case result, ok := <-in:
				if !ok {
					flush()
					return
				}

				if result.Content != nil {
					for _, segment := range buffer.Add(*result.Content) {
						if !emit(models.PromptResult{Content: &segment}) {
							return
						}
					}
				}

				if result.IsTerminal() {
					if !flush() {
						return
					}
					result.Content = nil
					emit(result)
					return
				}
			}
		}
	}()

	return out
}

// Paced limits content delivery to TokensPerSecond. Terminal results are
// never delayed.
func (s *Streamer) Paced(ctx context.Context, in <-chan models.PromptResult) <-chan models.PromptResult {
	if s.config.TokensPerSecond <= 0 {
		return in
	}
	return NewPacer(s.config.TokensPerSecond, 0).Pace(ctx, in)
}

// Tracked records every content chunk in tracker and reports progress
// through callback at most once per ProgressInterval, plus once at the end.
func (s *Streamer) Tracked(
	ctx context.Context,
	in <-chan models.PromptResult,
	tracker *ProgressTracker,
	callback ProgressCallback,
) <-chan models.PromptResult {
	out := make(chan models.PromptResult)

	var throttled *ThrottledCallback
	if callback != nil {
		throttled = NewThrottledCallback(callback, s.config.ProgressInterval)
	}

	go func() {
		defer close(out)
		defer func() {
			if throttled != nil {
				throttled.ForceCall(tracker.GetProgress())
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case result, ok := <-in:
				if !ok {
					return
				}

				if result.Content != nil {
					p := tracker.Update(*result.Content)
					if throttled != nil {
						throttled.Call(p)
					}
				}

				select {
				case out <- result:
				case <-ctx.Done():
					return
				}

				if result.IsTerminal() {
					return
				}
			}
		}
	}()

	return out
}
