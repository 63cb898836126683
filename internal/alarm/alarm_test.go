package alarm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	valid := map[string]Clock{
		"07:30": {7, 30},
		"0:00":  {0, 0},
		"23:59": {23, 59},
		" 6:05": {6, 5},
	}
	for in, want := range valid {
		got, err := Parse(in)
		if err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Parse(%q) = %v, want %v", in, got, want)
		}
	}

	for _, in := range []string{"", "7", "24:00", "12:60", "ab:10", "10:-1", "07-30"} {
		if _, err := Parse(in); !errors.Is(err, ErrBadTime) {
			t.Errorf("Parse(%q) expected ErrBadTime, got %v", in, err)
		}
	}
}

func TestWaitDuration(t *testing.T) {
	day := func(h, m, s int) time.Time {
		return time.Date(2024, time.March, 10, h, m, s, 0, time.UTC)
	}

	cases := []struct {
		name string
		now  time.Time
		at   Clock
		want time.Duration
	}{
		{"earlier target wraps to next day", day(8, 0, 0), Clock{7, 30}, 23*time.Hour + 30*time.Minute},
		{"later target today", day(6, 0, 0), Clock{7, 30}, 90 * time.Minute},
		{"same minute fires at once", day(7, 30, 0), Clock{7, 30}, 0},
		{"same minute with seconds fires at once", day(7, 30, 42), Clock{7, 30}, 0},
		{"seconds count toward the wait", day(7, 29, 30), Clock{7, 30}, 30 * time.Second},
		{"midnight target", day(23, 0, 0), Clock{0, 0}, time.Hour},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WaitDuration(tc.now, tc.at); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}

	t.Run("earlier target equals target plus a day minus now", func(t *testing.T) {
		for h := 0; h < 24; h++ {
			for _, m := range []int{0, 17, 59} {
				now := day(h, m, 0)
				at := Clock{Hour: (h + 23) % 24, Minute: m}
				target := time.Date(2024, time.March, 10, at.Hour, at.Minute, 0, 0, time.UTC)
				want := target.Sub(now)
				if target.Before(now) {
					want = target.Add(24 * time.Hour).Sub(now)
				}
				if got := WaitDuration(now, at); got != want {
					t.Fatalf("now %s at %s: expected %s, got %s", now.Format("15:04"), at, want, got)
				}
			}
		}
	})
}

type fakeSpeaker struct{ said []string }

func (f *fakeSpeaker) Speak(_ context.Context, text string) error {
	f.said = append(f.said, text)
	return nil
}

type fakeMusic struct{ started int }

func (f *fakeMusic) Start(context.Context) error {
	f.started++
	return nil
}

func TestAlarm_Run(t *testing.T) {
	t.Run("sleeps then speaks and starts music", func(t *testing.T) {
		speaker := &fakeSpeaker{}
		music := &fakeMusic{}

		var slept time.Duration
		a := New(Clock{7, 30}, "Good morning", speaker, music)
		a.Now = func() time.Time { return time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC) }
		a.Sleep = func(_ context.Context, d time.Duration) error {
			slept = d
			return nil
		}

		if err := a.Run(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if slept != (23*3600+30*60)*time.Second {
			t.Errorf("expected 23h30m sleep, got %s", slept)
		}
		if len(speaker.said) != 1 || speaker.said[0] != "Good morning" {
			t.Errorf("expected greeting spoken once, got %v", speaker.said)
		}
		if music.started != 1 {
			t.Errorf("expected music started once, got %d", music.started)
		}
	})

	t.Run("cancelled wait skips the alarm", func(t *testing.T) {
		speaker := &fakeSpeaker{}
		music := &fakeMusic{}
		a := New(Clock{7, 30}, "Good morning", speaker, music)
		a.Now = func() time.Time { return time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC) }

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := a.Run(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if len(speaker.said) != 0 || music.started != 0 {
			t.Errorf("nothing should run after cancel")
		}
	})
}
