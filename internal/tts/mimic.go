package tts

import (
	"context"
	"fmt"
	log "log/slog"
	"strconv"

	"lark/internal/shell"
)

// Mimic speaks text through the mimic command-line synthesizer.
type Mimic struct {
	Bin     string
	Voice   string
	Pitch   float64 // int_f0_target_mean
	Stretch float64 // duration_stretch

	Runner shell.Runner
}

func NewMimic(bin, voice string) *Mimic {
	return &Mimic{
		Bin:     bin,
		Voice:   voice,
		Pitch:   200,
		Stretch: 0.8,
		Runner:  shell.Exec{},
	}
}

func (m *Mimic) Args(text string) []string {
	args := []string{"-t", text}
	if m.Voice != "" {
		args = append(args, "-voice", m.Voice)
	}
	args = append(args, "-pw",
		"--setf", "int_f0_target_mean="+strconv.FormatFloat(m.Pitch, 'f', -1, 64),
		"--setf", "duration_stretch="+strconv.FormatFloat(m.Stretch, 'f', -1, 64),
	)
	return args
}

func (m *Mimic) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	log.Debug("Speaking", "text", text, "voice", m.Voice)

	if _, err := m.Runner.Run(ctx, m.Bin, m.Args(text)...); err != nil {
		return fmt.Errorf("mimic: %w", err)
	}

	return nil
}
