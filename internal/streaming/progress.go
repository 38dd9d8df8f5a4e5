package streaming

import (
	"sync"
	"time"
)

// StreamProgress is a snapshot of a running stream.
type StreamProgress struct {
	TokensGenerated    int           `json:"tokens_generated"`
	ChunksReceived     int           `json:"chunks_received"`
	CharactersReceived int           `json:"characters_received"`
	Elapsed            time.Duration `json:"elapsed"`
	FirstChunkLatency  time.Duration `json:"first_chunk_latency"`
	TokensPerSecond    float64       `json:"tokens_per_second"`
	PercentComplete    float64       `json:"percent_complete,omitempty"`
}

// ProgressTracker counts what a stream has delivered so far.
type ProgressTracker struct {
	mu              sync.Mutex
	estimatedTokens int
	tokens          int
	chunks          int
	characters      int
	startTime       time.Time
	firstChunk      time.Time
}

// NewProgressTracker creates a tracker. estimatedTokens enables
// PercentComplete when positive.
func NewProgressTracker(estimatedTokens int) *ProgressTracker {
	return &ProgressTracker{estimatedTokens: estimatedTokens}
}

// Start resets the counters and the clock.
func (t *ProgressTracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = time.Now()
	t.firstChunk = time.Time{}
	t.tokens = 0
	t.chunks = 0
	t.characters = 0
}

// Update records one content chunk.
func (t *ProgressTracker) Update(content string) *StreamProgress {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.firstChunk.IsZero() {
		t.firstChunk = time.Now()
	}
	t.tokens += countWords(content)
	t.chunks++
	t.characters += len(content)

	return t.snapshotLocked()
}

// GetProgress returns the current snapshot.
func (t *ProgressTracker) GetProgress() *StreamProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Elapsed returns the time since Start.
func (t *ProgressTracker) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startTime.IsZero() {
		return 0
	}
	return time.Since(t.startTime)
}

func (t *ProgressTracker) snapshotLocked() *StreamProgress {
	var elapsed, latency time.Duration
	if !t.startTime.IsZero() {
		elapsed = time.Since(t.startTime)
		if !t.firstChunk.IsZero() {
			latency = t.firstChunk.Sub(t.startTime)
		}
	}

	var tps float64
	if seconds := elapsed.Seconds(); seconds > 0 {
		tps = float64(t.tokens) / seconds
	}

	var percent float64
	if t.estimatedTokens > 0 {
		percent = min(float64(t.tokens)/float64(t.estimatedTokens)*100, 100)
	}

	return &StreamProgress{
		TokensGenerated:    t.tokens,
		ChunksReceived:     t.chunks,
		CharactersReceived: t.characters,
		Elapsed:            elapsed,
		FirstChunkLatency:  latency,
		TokensPerSecond:    tps,
		PercentComplete:    percent,
	}
}

// ProgressCallback receives progress snapshots.
type ProgressCallback func(*StreamProgress)

// ThrottledCallback fires its callback at most once per interval.
type ThrottledCallback struct {
	mu       sync.Mutex
	callback ProgressCallback
	interval time.Duration
	last     time.Time
}

// NewThrottledCallback wraps callback.
func NewThrottledCallback(callback ProgressCallback, interval time.Duration) *ThrottledCallback {
	return &ThrottledCallback{callback: callback, interval: interval}
}

// Call invokes the callback when interval has passed since the last call.
func (tc *ThrottledCallback) Call(progress *StreamProgress) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if time.Since(tc.last) >= tc.interval {
		tc.callback(progress)
		tc.last = time.Now()
	}
}

// ForceCall invokes the callback unconditionally.
func (tc *ThrottledCallback) ForceCall(progress *StreamProgress) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.callback(progress)
	tc.last = time.Now()
}
