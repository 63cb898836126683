package audio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lark/pkg/audioconv"
)

var ErrSourceExhausted = errors.New("no more input files")

// FileSource replays audio files as successive utterances, one per Capture.
type FileSource struct {
	Paths     []string
	Threshold float64

	next int
}

func NewFileSource(paths []string, threshold float64) *FileSource {
	return &FileSource{Paths: paths, Threshold: threshold}
}

func (f *FileSource) Open() error  { return nil }
func (f *FileSource) Close() error { return nil }

func (f *FileSource) Calibrate(context.Context, time.Duration) (float64, error) {
	return f.Threshold, nil
}

func (f *FileSource) Capture(ctx context.Context, _ float64) (Utterance, error) {
	if f.next >= len(f.Paths) {
		return Utterance{}, ErrSourceExhausted
	}

	path := f.Paths[f.next]
	f.next++

	pcm, err := audioconv.ConvertFileToPCM16k(ctx, path, audioconv.Options{})
	if err != nil {
		return Utterance{}, fmt.Errorf("decode %s: %w", path, err)
	}

	return Utterance{Samples: pcm, SampleRate: SampleRate}, nil
}
