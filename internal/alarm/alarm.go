package alarm

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strconv"
	"strings"
	"time"
)

var ErrBadTime = errors.New("alarm time must be HH:MM")

// Clock is a wall-clock time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func Parse(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Clock{}, fmt.Errorf("%w: %q", ErrBadTime, s)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("%w: bad hour %q", ErrBadTime, hh)
	}

	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("%w: bad minute %q", ErrBadTime, mm)
	}

	return Clock{Hour: hour, Minute: minute}, nil
}

// WaitDuration returns how long to sleep from now until the next
// occurrence of at. A target earlier than the current minute is
// moved to tomorrow; a target within the current minute fires at once.
func WaitDuration(now time.Time, at Clock) time.Duration {
	target := time.Date(now.Year(), now.Month(), now.Day(), at.Hour, at.Minute, 0, 0, now.Location())
	minute := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), 0, 0, now.Location())

	if target.Before(minute) {
		target = target.Add(24 * time.Hour)
	}

	if d := target.Sub(now); d > 0 {
		return d
	}
	return 0
}

type Speaker interface {
	Speak(ctx context.Context, text string) error
}

type Music interface {
	Start(ctx context.Context) error
}

type Alarm struct {
	At       Clock
	Greeting string
	Speaker  Speaker
	Music    Music

	// Now and Sleep are replaceable in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func New(at Clock, greeting string, speaker Speaker, music Music) *Alarm {
	return &Alarm{
		At:       at,
		Greeting: greeting,
		Speaker:  speaker,
		Music:    music,
		Now:      time.Now,
		Sleep:    sleep,
	}
}

// Run waits for the alarm time, speaks the greeting and starts music.
// Cancelling ctx during the wait returns ctx.Err().
func (a *Alarm) Run(ctx context.Context) error {
	d := WaitDuration(a.Now(), a.At)
	log.Info("Alarm set", "at", a.At.String(), "sleep", d.Round(time.Second), "seconds", int(d.Seconds()))

	if err := a.Sleep(ctx, d); err != nil {
		return err
	}

	log.Info("Alarm ringing", "at", a.At.String())

	if err := a.Speaker.Speak(ctx, a.Greeting); err != nil {
		log.Error("Failed to speak greeting", "err", err)
	}

	if err := a.Music.Start(ctx); err != nil {
		return fmt.Errorf("start music: %w", err)
	}

	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
