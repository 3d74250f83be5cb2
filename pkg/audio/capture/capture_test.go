package capture_test

import (
	"errors"
	"testing"

	"github.com/herowayua/livevoice/pkg/audio"
	"github.com/herowayua/livevoice/pkg/audio/capture"
)

// fakeDevice hands the registered callback back to the test so it can push
// samples as if they came from the device thread.
type fakeDevice struct {
	onSamples func([]float32)
	startErr  error
	stops     int
}

func (f *fakeDevice) Start(onSamples func([]float32)) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.onSamples = onSamples
	return nil
}

func (f *fakeDevice) Stop() error {
	f.stops++
	return nil
}

func TestPipeline_BlocksAndEncodes(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	p := capture.NewPipeline(
		capture.WithDevice(dev),
		capture.WithBlockSize(4),
	)
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	// 6 samples: one full block out, 2 carried over.
	dev.onSamples([]float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})

	select {
	case frame := <-p.Frames():
		buf, err := audio.DecodeFrame(frame.Data, audio.CaptureRate, 1)
		if err != nil {
			t.Fatal(err)
		}
		if buf.Frames() != 4 {
			t.Errorf("frame has %d samples, want 4", buf.Frames())
		}
		if frame.MIMEType != audio.CaptureMIMEType {
			t.Errorf("MIMEType = %q", frame.MIMEType)
		}
	default:
		t.Fatal("no frame produced for a full block")
	}

	select {
	case <-p.Frames():
		t.Fatal("partial block produced a frame")
	default:
	}

	// Two more samples complete the carried-over block.
	dev.onSamples([]float32{0.7, 0.8})
	select {
	case frame := <-p.Frames():
		buf, _ := audio.DecodeFrame(frame.Data, audio.CaptureRate, 1)
		// First sample of the second block is the leftover 0.5.
		if got := buf.Data[0][0]; got < 0.49 || got > 0.51 {
			t.Errorf("leftover sample = %v, want ≈ 0.5", got)
		}
	default:
		t.Fatal("carried-over block never completed")
	}
}

func TestPipeline_DropsWhenConsumerStalls(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	p := capture.NewPipeline(
		capture.WithDevice(dev),
		capture.WithBlockSize(2),
		capture.WithFrameBuffer(1),
	)
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	// Three blocks into a one-frame buffer with no reader: two drop.
	dev.onSamples(make([]float32, 6))

	if got := p.Dropped(); got != 2 {
		t.Errorf("dropped = %d, want 2", got)
	}
	if got := len(p.Frames()); got != 1 {
		t.Errorf("queued frames = %d, want 1", got)
	}
}

func TestPipeline_StartErrorPropagates(t *testing.T) {
	t.Parallel()

	devErr := errors.New("no such device")
	p := capture.NewPipeline(capture.WithDevice(&fakeDevice{startErr: devErr}))

	err := p.Start()
	if !errors.Is(err, devErr) {
		t.Fatalf("Start error = %v, want wrapped %v", err, devErr)
	}

	// A failed start leaves the pipeline restartable.
	if err := p.Start(); !errors.Is(err, devErr) {
		t.Fatalf("second Start error = %v, want wrapped %v", err, devErr)
	}
}

func TestPipeline_StartFailureReleasesDevice(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{startErr: errors.New("device busy")}
	p := capture.NewPipeline(capture.WithDevice(dev))

	if err := p.Start(); err == nil {
		t.Fatal("expected Start to fail")
	}
	// The device handle must be released on the failure path itself; Close
	// skips devices that never started.
	if dev.stops != 1 {
		t.Fatalf("device stops after failed start = %d, want 1", dev.stops)
	}

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if dev.stops != 1 {
		t.Errorf("device stops after close = %d, want 1", dev.stops)
	}
}

func TestPipeline_DoubleStart(t *testing.T) {
	t.Parallel()

	p := capture.NewPipeline(capture.WithDevice(&fakeDevice{}))
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if err := p.Start(); !errors.Is(err, capture.ErrAlreadyStarted) {
		t.Fatalf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestPipeline_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	dev := &fakeDevice{}
	p := capture.NewPipeline(capture.WithDevice(dev))
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if dev.stops != 1 {
		t.Errorf("device stopped %d times, want 1", dev.stops)
	}

	// Frames channel is closed so consumers unblock.
	if _, ok := <-p.Frames(); ok {
		t.Error("frames channel still open after Close")
	}

	// Samples arriving after close are ignored, not a panic.
	dev.onSamples(make([]float32, audio.DefaultBlockSize))
}

func TestPipeline_CloseBeforeStart(t *testing.T) {
	t.Parallel()

	p := capture.NewPipeline(capture.WithDevice(&fakeDevice{}))
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}
