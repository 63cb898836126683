// Package mic captures utterances from the default input device with portaudio.
package mic

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"github.com/gordonklaus/portaudio"

	"lark/internal/audio"
)

// Microphone captures utterances from the default input device.
// Open must be called before use and Close when done.
type Microphone struct {
	Endpoint audio.EndpointConfig

	buf    []float32
	opened bool
}

func NewMicrophone() *Microphone {
	return &Microphone{
		Endpoint: audio.DefaultEndpointConfig(frameDuration()),
		buf:      make([]float32, audio.FrameSize),
	}
}

func (m *Microphone) Open() error {
	if m.opened {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	m.opened = true
	return nil
}

func (m *Microphone) Close() error {
	if !m.opened {
		return nil
	}
	m.opened = false
	return portaudio.Terminate()
}

// Calibrate listens to ambient noise for d and returns the energy threshold.
func (m *Microphone) Calibrate(ctx context.Context, d time.Duration) (float64, error) {
	cal := audio.NewCalibrator(frameDuration())
	total := int((d + frameDuration() - 1) / frameDuration())

	n := 0
	err := m.stream(ctx, func() (bool, error) {
		cal.Feed(m.buf)
		n++
		return n >= total, nil
	})
	if err != nil {
		return 0, err
	}

	return cal.Threshold(), nil
}

// Capture blocks until one phrase louder than threshold has been spoken.
func (m *Microphone) Capture(ctx context.Context, threshold float64) (audio.Utterance, error) {
	ep := audio.NewEndpointer(threshold, m.Endpoint)

	err := m.stream(ctx, func() (bool, error) {
		return ep.Feed(m.buf)
	})
	if err != nil {
		return audio.Utterance{}, err
	}

	return audio.Utterance{Samples: ep.Samples(), SampleRate: audio.SampleRate}, nil
}

// stream opens a fresh input stream and calls fn after every read until fn
// reports done, fails, or ctx ends.
func (m *Microphone) stream(ctx context.Context, fn func() (bool, error)) error {
	if !m.opened {
		return errors.New("microphone not opened")
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, audio.SampleRate, len(m.buf), m.buf)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	defer stream.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := stream.Read(); err != nil {
			if !errors.Is(err, portaudio.InputOverflowed) {
				return fmt.Errorf("read stream: %w", err)
			}
			log.Debug("Input overflowed")
		}

		done, err := fn()
		if err != nil || done {
			return err
		}
	}
}

func frameDuration() time.Duration {
	return time.Second * audio.FrameSize / audio.SampleRate
}
