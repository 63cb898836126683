// Package whispercpp recognizes speech offline with whisper.cpp.
package whispercpp

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"runtime"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"lark/pkg/stt"
)

type Options struct {
	Language      string // "auto", "en", "ru", ...
	TranslateToEn bool
	Threads       int // <=0 => NumCPU()
	InitialPrompt string
	BeamSize      int // 0 = greedy
}

type Segment struct {
	Text     string
	StartSec float64
	EndSec   float64
}

type Result struct {
	Text     string
	Segments []Segment
	Language string
}

// Transcriber runs whisper.cpp offline on 16 kHz mono PCM.
type Transcriber struct {
	model whisper.Model
	opt   Options
}

func NewTranscriber(modelPath string, opt Options) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}

	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	return &Transcriber{model: m, opt: opt}, nil
}

func (t *Transcriber) Close() error {
	if t.model == nil {
		return nil
	}
	return t.model.Close()
}

// Recognize returns the cleaned transcript of pcm16k, ErrNoSpeech when
// nothing was understood, or a *BackendError when whisper fails.
func (t *Transcriber) Recognize(ctx context.Context, pcm16k []float32) (string, error) {
	if len(pcm16k) < stt.MinSamples {
		return "", stt.ErrNoSpeech
	}

	res, err := t.TranscribePCM(ctx, pcm16k)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", &stt.BackendError{Backend: "whisper", Err: err}
	}

	if res.Text == "" {
		return "", stt.ErrNoSpeech
	}

	log.Debug("Whisper transcript", "text", res.Text, "language", res.Language, "segments", len(res.Segments))
	return res.Text, nil
}

// pcm16k must be mono @ 16 kHz, float32 in [-1, 1]
func (t *Transcriber) TranscribePCM(ctx context.Context, pcm16k []float32) (Result, error) {
	if t.model == nil {
		return Result{}, errors.New("nil model")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	wctx, err := t.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("new context: %w", err)
	}

	lang := t.opt.Language
	if lang == "" {
		lang = "auto"
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return Result{}, fmt.Errorf("set language: %w", err)
	}
	wctx.SetTranslate(t.opt.TranslateToEn)

	threads := t.opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if t.opt.BeamSize > 0 {
		wctx.SetBeamSize(t.opt.BeamSize)
	}
	if t.opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(t.opt.InitialPrompt)
	}

	// whisper_full cannot be interrupted; ctx is honoured around it
	if err := wctx.Process(pcm16k, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("process: %w", err)
	}

	var segs []Segment
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("next segment: %w", err)
		}

		segs = append(segs, Segment{
			Text:     s.Text,
			StartSec: s.Start.Seconds(),
			EndSec:   s.End.Seconds(),
		})
	}

	detected := wctx.DetectedLanguage()
	if detected == "" {
		detected = wctx.Language()
	}

	texts := make([]string, len(segs))
	for i, s := range segs {
		texts[i] = s.Text
	}

	return Result{
		Text:     stt.Clean(texts),
		Segments: segs,
		Language: detected,
	}, nil
}
