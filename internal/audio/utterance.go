package audio

import "time"

const (
	SampleRate = 16000
	FrameSize  = 1024 // samples per capture read
)

// Utterance is one captured span of mono float32 PCM in [-1, 1].
type Utterance struct {
	Samples    []float32
	SampleRate int
}

func (u Utterance) Duration() time.Duration {
	if u.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(u.Samples)) * time.Second / time.Duration(u.SampleRate)
}

func (u Utterance) Empty() bool {
	return len(u.Samples) == 0
}
