package audioconv

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/zenwerk/go-wave"
)

var ErrEmpty = errors.New("no samples to encode")

type closeBuffer struct {
	bytes.Buffer
}

func (*closeBuffer) Close() error { return nil }

// EncodeWAV renders mono float32 PCM as a 16-bit WAV file.
func EncodeWAV(samples []float32, rate int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, ErrEmpty
	}
	if rate <= 0 {
		rate = TargetRate
	}

	out := &closeBuffer{}
	w, err := wave.NewWriter(wave.WriterParam{
		Out:           out,
		Channel:       1,
		SampleRate:    rate,
		BitsPerSample: 16,
	})
	if err != nil {
		return nil, fmt.Errorf("wav writer: %w", err)
	}

	if _, err := w.WriteSample16(ToPCM16(samples)); err != nil {
		w.Close()
		return nil, fmt.Errorf("write samples: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close wav: %w", err)
	}

	return out.Bytes(), nil
}

// ToPCM16 converts float samples to signed 16-bit, clipping out-of-range values.
func ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, x := range samples {
		v := math.Round(float64(x) * 32767)
		out[i] = int16(min(max(v, math.MinInt16), math.MaxInt16))
	}
	return out
}
