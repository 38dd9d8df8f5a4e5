package streaming

import (
	"context"

	"golang.org/x/time/rate"

	"dev.helix.gateway/internal/models"
)

// Pacer delays content chunks so that at most tokensPerSecond tokens are
// delivered per second, with bursts of up to burst tokens.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer. A burst below 1 defaults to one second's worth
// of tokens.
func NewPacer(tokensPerSecond float64, burst int) *Pacer {
	if tokensPerSecond <= 0 {
		return &Pacer{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst < 1 {
		burst = int(tokensPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(tokensPerSecond), burst)}
}

// Wait blocks until text may be delivered.
func (p *Pacer) Wait(ctx context.Context, text string) error {
	tokens := countWords(text)
	if tokens == 0 {
		return nil
	}
	if burst := p.limiter.Burst(); burst > 0 && tokens > burst {
		tokens = burst
	}
	return p.limiter.WaitN(ctx, tokens)
}

// Pace forwards in to the returned channel, waiting before each content
// chunk. It stops after the terminal result or when ctx ends.
func (p *Pacer) Pace(ctx context.Context, in <-chan models.PromptResult) <-chan models.PromptResult {
	out := make(chan models.PromptResult)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case result, ok := <-in:
				if !ok {
					return
				}

				if result.Content != nil && !result.IsTerminal() {
					if err := p.Wait(ctx, *result.Content); err != nil {
						return
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
