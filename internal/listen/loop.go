// Package listen runs the capture, recognize and report cycle against the
// remote service.
package listen

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"lark/internal/audio"
	"lark/internal/remote"
	"lark/pkg/stt"
)

// Source yields utterances. Open and Close bracket a whole Run.
type Source interface {
	Open() error
	Close() error
	Calibrate(ctx context.Context, d time.Duration) (float64, error)
	Capture(ctx context.Context, threshold float64) (audio.Utterance, error)
}

type Recognizer interface {
	Recognize(ctx context.Context, pcm16k []float32) (string, error)
}

type Remote interface {
	StartListen(ctx context.Context) (remote.Response, error)
	StopListen(ctx context.Context) (remote.Response, error)
	Say(ctx context.Context, text string) (remote.Response, error)
}

type EventKind string

const (
	EventListenStart EventKind = "listen_start"
	EventListenStop  EventKind = "listen_stop"
	EventSay         EventKind = "say"
)

type Event struct {
	Kind EventKind
	Text string
}

// Observer receives a copy of every event. Errors are logged and ignored.
type Observer interface {
	Publish(ctx context.Context, ev Event) error
}

type Ducker interface {
	DuckOthers(ctx context.Context, factor float64, duration time.Duration) error
	UnduckOthers(ctx context.Context, duration time.Duration) error
}

type Cue interface {
	Play() error
}

type Dumper interface {
	Dump(u audio.Utterance) (string, error)
}

type Options struct {
	Calibration      time.Duration
	RecognizeTimeout time.Duration

	Observers  []Observer
	Cue        Cue
	Ducker     Ducker
	DuckFactor float64
	DuckFade   time.Duration
	Dumper     Dumper
}

type Loop struct {
	source     Source
	recognizer Recognizer
	remote     Remote
	opt        Options
}

func New(source Source, recognizer Recognizer, rem Remote, opt Options) *Loop {
	if opt.Calibration <= 0 {
		opt.Calibration = time.Second
	}
	if opt.DuckFactor <= 0 {
		opt.DuckFactor = 0.3
	}
	if opt.DuckFade <= 0 {
		opt.DuckFade = 150 * time.Millisecond
	}

	return &Loop{
		source:     source,
		recognizer: recognizer,
		remote:     rem,
		opt:        opt,
	}
}

// Run calibrates once and iterates until a fatal error or ctx is done.
// Cancellation is a clean shutdown and returns nil. The source is closed on
// every path.
func (l *Loop) Run(ctx context.Context) (err error) {
	if err := l.source.Open(); err != nil {
		return fmt.Errorf("open audio source: %w", err)
	}
	defer func() {
		if cerr := l.source.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close audio source: %w", cerr))
		}
	}()

	log.Info("A moment of silence, please...")

	threshold, err := l.source.Calibrate(ctx, l.opt.Calibration)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("calibrate: %w", err)
	}

	log.Info("Set minimum energy threshold", "threshold", threshold)

	for {
		out := l.Iterate(ctx, threshold)

		switch out.Kind {
		case NoSpeechDetected:
			log.Info("Oops! Didn't catch that")
		case RecognitionBackendError:
			log.Error("Uh oh! Couldn't request results", "err", out.Err)
		case Interrupted:
			log.Info("Interrupted, shutting down")
			return nil
		case FatalLoopError:
			log.Error("Bye.", "err", out.Err)
			return out.Err
		}
	}
}

// Iterate runs one start, capture, stop, recognize, report cycle.
func (l *Loop) Iterate(ctx context.Context, threshold float64) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Kind: Interrupted, Err: err}
	}

	if _, err := l.remote.StartListen(ctx); err != nil {
		return Classify(ctx, fmt.Errorf("start listen: %w", err))
	}
	l.publish(ctx, Event{Kind: EventListenStart})

	l.beforeCapture(ctx)
	log.Info("Say something!")

	u, captureErr := l.source.Capture(ctx, threshold)

	l.afterCapture(ctx)
	if ctx.Err() != nil {
		return Outcome{Kind: Interrupted, Err: ctx.Err()}
	}

	if _, err := l.remote.StopListen(ctx); err != nil {
		return Classify(ctx, fmt.Errorf("stop listen: %w", err))
	}
	l.publish(ctx, Event{Kind: EventListenStop})

	if captureErr != nil {
		return Classify(ctx, fmt.Errorf("capture: %w", captureErr))
	}

	log.Info("Got it! Now to recognize it...", "duration", u.Duration())
	l.dump(u)

	text, err := l.recognize(ctx, u)
	if err != nil {
		return Classify(ctx, err)
	}

	log.Info("You said", "text", text)

	resp, err := l.remote.Say(ctx, text)
	if err != nil {
		return Classify(ctx, fmt.Errorf("say: %w", err))
	}
	log.Info("Reported transcript", "response", resp.String(), "body", resp.Body)
	l.publish(ctx, Event{Kind: EventSay, Text: text})

	return Outcome{Kind: Transcribed, Text: text}
}

func (l *Loop) recognize(ctx context.Context, u audio.Utterance) (string, error) {
	rctx := ctx
	if l.opt.RecognizeTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, l.opt.RecognizeTimeout)
		defer cancel()
	}

	text, err := l.recognizer.Recognize(rctx, u.Samples)
	if err == nil {
		return text, nil
	}

	// a recognizer that overran its own deadline counts as a backend failure
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return "", &stt.BackendError{Backend: "recognizer", Err: err}
	}
	return "", err
}

func (l *Loop) beforeCapture(ctx context.Context) {
	if l.opt.Cue != nil {
		if err := l.opt.Cue.Play(); err != nil {
			log.Warn("Failed to play cue", "err", err)
		}
	}
	if l.opt.Ducker != nil {
		if err := l.opt.Ducker.DuckOthers(ctx, l.opt.DuckFactor, l.opt.DuckFade); err != nil {
			log.Warn("Failed to duck other streams", "err", err)
		}
	}
}

func (l *Loop) afterCapture(ctx context.Context) {
	if l.opt.Ducker == nil {
		return
	}
	// restore volumes even when ctx is already cancelled
	if err := l.opt.Ducker.UnduckOthers(context.WithoutCancel(ctx), l.opt.DuckFade); err != nil {
		log.Warn("Failed to restore other streams", "err", err)
	}
}

func (l *Loop) dump(u audio.Utterance) {
	if l.opt.Dumper == nil {
		return
	}
	if _, err := l.opt.Dumper.Dump(u); err != nil {
		log.Warn("Failed to dump utterance", "err", err)
	}
}

func (l *Loop) publish(ctx context.Context, ev Event) {
	for _, o := range l.opt.Observers {
		if err := o.Publish(ctx, ev); err != nil {
			log.Warn("Failed to publish event", "kind", ev.Kind, "err", err)
		}
	}
}
