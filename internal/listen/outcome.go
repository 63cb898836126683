package listen

import (
	"context"
	"errors"

	"lark/internal/audio"
	"lark/pkg/stt"
)

type Kind int

const (
	Transcribed Kind = iota
	NoSpeechDetected
	RecognitionBackendError
	FatalLoopError
	Interrupted
)

func (k Kind) String() string {
	switch k {
	case Transcribed:
		return "transcribed"
	case NoSpeechDetected:
		return "no_speech"
	case RecognitionBackendError:
		return "backend_error"
	case FatalLoopError:
		return "fatal"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Outcome is the result of one loop iteration.
type Outcome struct {
	Kind Kind
	Text string
	Err  error
}

// Continue reports whether the loop keeps running after this outcome.
func (o Outcome) Continue() bool {
	switch o.Kind {
	case Transcribed, NoSpeechDetected, RecognitionBackendError:
		return true
	default:
		return false
	}
}

// Classify maps an iteration error onto an outcome kind. A cancelled ctx
// wins over whatever error the cancellation caused.
func Classify(ctx context.Context, err error) Outcome {
	if err == nil {
		return Outcome{Kind: Transcribed}
	}
	if ctx.Err() != nil {
		return Outcome{Kind: Interrupted, Err: err}
	}

	var backendErr *stt.BackendError
	switch {
	case errors.Is(err, stt.ErrNoSpeech), errors.Is(err, audio.ErrWaitTimeout):
		return Outcome{Kind: NoSpeechDetected, Err: err}
	case errors.As(err, &backendErr):
		return Outcome{Kind: RecognitionBackendError, Err: err}
	default:
		return Outcome{Kind: FatalLoopError, Err: err}
	}
}
