package playback_test

import (
	"sync"
	"testing"
	"time"

	"github.com/herowayua/livevoice/pkg/audio"
	"github.com/herowayua/livevoice/pkg/audio/playback"
)

type fakeSegment struct {
	at     time.Duration
	frames int
	onDone func()
}

// fakeOutput is an OutputContext with a manually advanced clock.
type fakeOutput struct {
	mu     sync.Mutex
	now    time.Duration
	segs   []fakeSegment
	resets int
	closes int
}

func (f *fakeOutput) Now() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeOutput) StartAt(pcm []byte, at time.Duration, onDone func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segs = append(f.segs, fakeSegment{at: at, frames: len(pcm) / 2, onDone: onDone})
}

func (f *fakeOutput) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segs = nil
	f.resets++
}

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeOutput) advance(d time.Duration) {
	f.mu.Lock()
	f.now += d
	f.mu.Unlock()
}

// finish fires onDone for segment i outside the lock, like a device would.
func (f *fakeOutput) finish(i int) {
	f.mu.Lock()
	fn := f.segs[i].onDone
	f.mu.Unlock()
	fn()
}

func monoBuffer(d time.Duration) audio.Buffer {
	frames := int(d * audio.PlaybackRate / time.Second)
	return audio.Buffer{Data: [][]float32{make([]float32, frames)}, SampleRate: audio.PlaybackRate}
}

func newTestScheduler(t *testing.T) (*playback.Scheduler, *fakeOutput) {
	t.Helper()
	out := &fakeOutput{}
	s := playback.NewScheduler(playback.WithOutputFactory(func() (playback.OutputContext, error) {
		return out, nil
	}))
	return s, out
}

func TestScheduler_BackToBackChunksAreGapless(t *testing.T) {
	t.Parallel()

	s, out := newTestScheduler(t)

	// Two 100ms chunks arriving within the same instant must butt up
	// exactly, not both start at now.
	if err := s.Schedule(monoBuffer(100 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if err := s.Schedule(monoBuffer(100 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}

	if len(out.segs) != 2 {
		t.Fatalf("segments = %d, want 2", len(out.segs))
	}
	if out.segs[0].at != 0 {
		t.Errorf("first chunk at %v, want 0", out.segs[0].at)
	}
	if want := 100 * time.Millisecond; out.segs[1].at != want {
		t.Errorf("second chunk at %v, want %v", out.segs[1].at, want)
	}
}

func TestScheduler_LateChunkStartsNow(t *testing.T) {
	t.Parallel()

	s, out := newTestScheduler(t)

	if err := s.Schedule(monoBuffer(100 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}

	// The stream ran dry: the clock is well past the cursor when the next
	// chunk arrives.
	out.advance(500 * time.Millisecond)
	if err := s.Schedule(monoBuffer(100 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}

	if want := 500 * time.Millisecond; out.segs[1].at != want {
		t.Errorf("late chunk at %v, want %v", out.segs[1].at, want)
	}

	// And the cursor advanced from the late start, not the stale one.
	if err := s.Schedule(monoBuffer(100 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if want := 600 * time.Millisecond; out.segs[2].at != want {
		t.Errorf("following chunk at %v, want %v", out.segs[2].at, want)
	}
}

func TestScheduler_EmptyBufferIsNoOp(t *testing.T) {
	t.Parallel()

	s, out := newTestScheduler(t)

	if err := s.Schedule(audio.Buffer{SampleRate: audio.PlaybackRate}); err != nil {
		t.Fatal(err)
	}
	if len(out.segs) != 0 {
		t.Errorf("empty buffer scheduled %d segments", len(out.segs))
	}
}

func TestScheduler_PendingTracksOnDone(t *testing.T) {
	t.Parallel()

	s, out := newTestScheduler(t)

	s.Schedule(monoBuffer(50 * time.Millisecond))
	s.Schedule(monoBuffer(50 * time.Millisecond))
	if got := s.Pending(); got != 2 {
		t.Fatalf("pending = %d, want 2", got)
	}

	out.finish(0)
	if got := s.Pending(); got != 1 {
		t.Fatalf("pending after one onDone = %d, want 1", got)
	}
	out.finish(1)
	if got := s.Pending(); got != 0 {
		t.Fatalf("pending after both onDone = %d, want 0", got)
	}
}

func TestScheduler_InterruptDiscardsQueue(t *testing.T) {
	t.Parallel()

	s, out := newTestScheduler(t)

	s.Schedule(monoBuffer(100 * time.Millisecond))
	s.Schedule(monoBuffer(100 * time.Millisecond))
	stale := out.segs[0].onDone
	s.Interrupt()

	if out.resets != 1 {
		t.Errorf("resets = %d, want 1", out.resets)
	}
	if got := s.Pending(); got != 0 {
		t.Errorf("pending after interrupt = %d, want 0", got)
	}

	// A stale onDone from before the interrupt must not push pending
	// negative or steal from new segments.
	s.Schedule(monoBuffer(100 * time.Millisecond))
	stale()
	if got := s.Pending(); got != 1 {
		t.Errorf("pending after stale onDone = %d, want 1", got)
	}

	// Cursor rewound: the new chunk starts at the clock, not after the
	// discarded ones.
	if got := out.segs[0].at; got != out.Now() {
		t.Errorf("post-interrupt chunk at %v, want %v", got, out.Now())
	}
}

func TestScheduler_CloseIsIdempotentAndReopens(t *testing.T) {
	t.Parallel()

	var outputs []*fakeOutput
	s := playback.NewScheduler(playback.WithOutputFactory(func() (playback.OutputContext, error) {
		out := &fakeOutput{}
		outputs = append(outputs, out)
		return out, nil
	}))

	// Close before first use: nothing to do.
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if len(outputs) != 0 {
		t.Fatal("close opened an output")
	}

	s.Schedule(monoBuffer(10 * time.Millisecond))
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if outputs[0].closes != 1 {
		t.Errorf("output closed %d times, want 1", outputs[0].closes)
	}

	// Scheduling again reopens lazily with a fresh cursor.
	s.Schedule(monoBuffer(10 * time.Millisecond))
	if len(outputs) != 2 {
		t.Fatalf("outputs created = %d, want 2", len(outputs))
	}
	if outputs[1].segs[0].at != 0 {
		t.Errorf("chunk after reopen at %v, want 0", outputs[1].segs[0].at)
	}
}

func TestScheduler_ResamplesOffRateBuffers(t *testing.T) {
	t.Parallel()

	s, out := newTestScheduler(t)

	// 100ms at 48 kHz must still occupy 100ms of the 24 kHz timeline.
	buf := audio.Buffer{Data: [][]float32{make([]float32, 4800)}, SampleRate: 48000}
	if err := s.Schedule(buf); err != nil {
		t.Fatal(err)
	}
	if want := 2400; out.segs[0].frames != want {
		t.Errorf("scheduled %d frames, want %d", out.segs[0].frames, want)
	}
}
