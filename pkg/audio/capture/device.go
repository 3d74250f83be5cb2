package capture

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/herowayua/livevoice/pkg/audio"
)

// malgoDevice wraps a miniaudio capture device configured for mono float
// samples at [audio.CaptureRate]. miniaudio converts whatever the hardware
// produces to the requested format.
type malgoDevice struct {
	logger *slog.Logger

	mu  sync.Mutex
	ctx *malgo.AllocatedContext
	dev *malgo.Device
}

func openDefaultDevice(logger *slog.Logger) (Device, error) {
	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime

	ctx, err := malgo.InitContext(nil, cfg, func(msg string) {
		logger.Debug("miniaudio", "message", msg)
	})
	if err != nil {
		return nil, fmt.Errorf("init device context: %w", err)
	}
	return &malgoDevice{logger: logger, ctx: ctx}, nil
}

func (d *malgoDevice) Start(onSamples func([]float32)) error {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = 1
	cfg.SampleRate = audio.CaptureRate
	cfg.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			onSamples(bytesToFloat32(pInput, int(frameCount)))
		},
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	dev, err := malgo.InitDevice(d.ctx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("start capture device: %w", err)
	}
	d.dev = dev
	return nil
}

func (d *malgoDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.dev != nil {
		// Uninit stops the device and blocks until the data callback has
		// returned for the last time.
		d.dev.Uninit()
		d.dev = nil
	}
	if d.ctx != nil {
		if err := d.ctx.Uninit(); err != nil {
			d.logger.Warn("uninit device context", "error", err)
		}
		d.ctx.Free()
		d.ctx = nil
	}
	return nil
}

func bytesToFloat32(b []byte, frames int) []float32 {
	if frames > len(b)/4 {
		frames = len(b) / 4
	}
	out := make([]float32, frames)
	for i := range out {
		bits := uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}
