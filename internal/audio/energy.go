package audio

import (
	"errors"
	"math"
	"time"
)

const (
	// DefaultThreshold is the starting energy threshold before calibration,
	// on the int16 RMS scale.
	DefaultThreshold = 300.0

	dampingPerSecond = 0.15
	thresholdRatio   = 1.5
)

var ErrWaitTimeout = errors.New("timed out waiting for speech")

// Energy is the RMS of frame scaled to int16 amplitude.
func Energy(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}

	var s float64
	for _, x := range frame {
		v := float64(x) * 32768
		s += v * v
	}
	return math.Sqrt(s / float64(len(frame)))
}

// Calibrator derives an energy threshold from ambient noise. Each frame
// pulls the threshold toward 1.5x the frame energy with exponential damping.
type Calibrator struct {
	threshold float64
	damping   float64
}

func NewCalibrator(frame time.Duration) *Calibrator {
	return &Calibrator{
		threshold: DefaultThreshold,
		damping:   math.Pow(dampingPerSecond, frame.Seconds()),
	}
}

func (c *Calibrator) Feed(frame []float32) {
	target := Energy(frame) * thresholdRatio
	c.threshold = c.threshold*c.damping + target*(1-c.damping)
}

func (c *Calibrator) Threshold() float64 {
	return c.threshold
}

type EndpointConfig struct {
	Frame       time.Duration // duration of one fed frame
	Pause       time.Duration // trailing silence that ends a phrase
	MinPhrase   time.Duration // shorter bursts are discarded as noise
	NonSpeaking time.Duration // silence kept on both sides of the phrase
	WaitTimeout time.Duration // 0 waits forever for speech to start
	PhraseLimit time.Duration // 0 means no limit
}

func DefaultEndpointConfig(frame time.Duration) EndpointConfig {
	return EndpointConfig{
		Frame:       frame,
		Pause:       800 * time.Millisecond,
		MinPhrase:   300 * time.Millisecond,
		NonSpeaking: 500 * time.Millisecond,
	}
}

// Endpointer finds the start and end of one phrase in a stream of frames.
type Endpointer struct {
	cfg       EndpointConfig
	threshold float64

	pauseFrames  int
	phraseFrames int
	keepFrames   int

	elapsed     time.Duration
	phraseStart time.Duration
	speaking    bool
	pauseCount  int
	phraseCount int
	frames      [][]float32
}

func NewEndpointer(threshold float64, cfg EndpointConfig) *Endpointer {
	if cfg.Frame <= 0 {
		cfg.Frame = time.Second * FrameSize / SampleRate
	}

	return &Endpointer{
		cfg:          cfg,
		threshold:    threshold,
		pauseFrames:  frames(cfg.Pause, cfg.Frame),
		phraseFrames: frames(cfg.MinPhrase, cfg.Frame),
		keepFrames:   max(frames(cfg.NonSpeaking, cfg.Frame), 1),
	}
}

// Feed consumes one frame. It reports true once a phrase is complete and
// returns ErrWaitTimeout if speech never started within WaitTimeout.
// The frame is copied.
func (e *Endpointer) Feed(frame []float32) (bool, error) {
	buf := append([]float32(nil), frame...)
	e.elapsed += e.cfg.Frame
	energy := Energy(buf)

	if !e.speaking {
		if e.cfg.WaitTimeout > 0 && e.elapsed > e.cfg.WaitTimeout {
			return false, ErrWaitTimeout
		}

		e.frames = append(e.frames, buf)
		if len(e.frames) > e.keepFrames {
			e.frames = e.frames[1:]
		}

		if energy > e.threshold {
			e.speaking = true
			e.phraseStart = e.elapsed
			e.pauseCount, e.phraseCount = 0, 0
		}
		return false, nil
	}

	if e.cfg.PhraseLimit > 0 && e.elapsed-e.phraseStart > e.cfg.PhraseLimit {
		return e.finish(), nil
	}

	e.frames = append(e.frames, buf)
	e.phraseCount++

	if energy > e.threshold {
		e.pauseCount = 0
	} else {
		e.pauseCount++
	}

	if e.pauseCount > e.pauseFrames {
		return e.finish(), nil
	}

	return false, nil
}

func (e *Endpointer) finish() bool {
	if e.phraseCount-e.pauseCount < e.phraseFrames {
		// too short, back to waiting
		e.speaking = false
		e.frames = nil
		return false
	}

	if trim := e.pauseCount - e.keepFrames; trim > 0 {
		e.frames = e.frames[:len(e.frames)-trim]
	}
	return true
}

func (e *Endpointer) Samples() []float32 {
	n := 0
	for _, f := range e.frames {
		n += len(f)
	}

	out := make([]float32, 0, n)
	for _, f := range e.frames {
		out = append(out, f...)
	}
	return out
}

func frames(d, frame time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + frame - 1) / frame)
}
