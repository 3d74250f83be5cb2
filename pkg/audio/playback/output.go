package playback

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/herowayua/livevoice/pkg/audio"
)

// The operating system allows one audio context per process, so it is shared
// by every output the process ever opens. Players come and go; the context
// does not.
var otoContext = sync.OnceValues(func() (*oto.Context, error) {
	op := &oto.NewContextOptions{
		SampleRate:   audio.PlaybackRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   50 * time.Millisecond,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready
	return ctx, nil
})

type segment struct {
	start  int64 // frame position in the output timeline
	pcm    []byte
	onDone func()
}

// otoOutput is an [OutputContext] backed by a pull-based device player. The
// player reads continuously; frames with no scheduled segment come out as
// silence, which is what makes back-to-back StartAt calls gapless.
type otoOutput struct {
	mu     sync.Mutex
	pos    int64 // frames handed to the device so far
	segs   []segment
	closed bool

	player *oto.Player
}

// NewOtoOutput opens an output context on the default playback device at
// [audio.PlaybackRate], mono.
func NewOtoOutput() (OutputContext, error) {
	ctx, err := otoContext()
	if err != nil {
		return nil, fmt.Errorf("init device context: %w", err)
	}

	o := &otoOutput{}
	o.player = ctx.NewPlayer(o)
	o.player.Play()
	return o, nil
}

func (o *otoOutput) Now() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return framesToDuration(o.pos)
}

func (o *otoOutput) StartAt(pcm []byte, at time.Duration, onDone func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.segs = append(o.segs, segment{
		start:  durationToFrames(at),
		pcm:    pcm,
		onDone: onDone,
	})
}

func (o *otoOutput) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.segs = nil
}

func (o *otoOutput) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.segs = nil
	player := o.player
	o.mu.Unlock()

	if player != nil {
		return player.Close()
	}
	return nil
}

// Read feeds the device. Called by the player's worker goroutine. It fills p
// with silence, overlays every segment that intersects the window, and fires
// onDone for segments the window fully consumes.
func (o *otoOutput) Read(p []byte) (int, error) {
	o.mu.Lock()

	// Whole frames only; the device asks for even byte counts but don't
	// depend on it.
	n := len(p) &^ 1
	frames := int64(n / 2)
	winStart, winEnd := o.pos, o.pos+frames

	clear(p[:n])

	var done []func()
	kept := o.segs[:0]
	for _, seg := range o.segs {
		segEnd := seg.start + int64(len(seg.pcm)/2)
		if segEnd <= winStart {
			// Scheduled in the past and fully missed. Count it played.
			if seg.onDone != nil {
				done = append(done, seg.onDone)
			}
			continue
		}
		if seg.start >= winEnd {
			kept = append(kept, seg)
			continue
		}

		from := max(seg.start, winStart)
		to := min(segEnd, winEnd)
		copy(p[(from-winStart)*2:(to-winStart)*2], seg.pcm[(from-seg.start)*2:(to-seg.start)*2])

		if segEnd <= winEnd {
			if seg.onDone != nil {
				done = append(done, seg.onDone)
			}
		} else {
			kept = append(kept, seg)
		}
	}
	o.segs = kept
	o.pos = winEnd
	o.mu.Unlock()

	for _, fn := range done {
		fn()
	}
	return n, nil
}

func durationToFrames(d time.Duration) int64 {
	return int64(d) * audio.PlaybackRate / int64(time.Second)
}

func framesToDuration(f int64) time.Duration {
	return time.Duration(f) * time.Second / audio.PlaybackRate
}
