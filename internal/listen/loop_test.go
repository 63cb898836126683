package listen

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"lark/internal/audio"
	"lark/internal/remote"
	"lark/pkg/stt"
)

var errExhausted = errors.New("source exhausted")

type fakeSource struct {
	captures []error // nil yields an utterance
	block    bool    // block on Capture until ctx is done

	opened, closed int
	captured       int
}

func (f *fakeSource) Open() error  { f.opened++; return nil }
func (f *fakeSource) Close() error { f.closed++; return nil }

func (f *fakeSource) Calibrate(context.Context, time.Duration) (float64, error) {
	return 300, nil
}

func (f *fakeSource) Capture(ctx context.Context, _ float64) (audio.Utterance, error) {
	if f.block {
		<-ctx.Done()
		return audio.Utterance{}, ctx.Err()
	}
	if f.captured >= len(f.captures) {
		return audio.Utterance{}, errExhausted
	}
	err := f.captures[f.captured]
	f.captured++
	if err != nil {
		return audio.Utterance{}, err
	}
	return audio.Utterance{Samples: make([]float32, audio.SampleRate), SampleRate: audio.SampleRate}, nil
}

type result struct {
	text string
	err  error
}

type fakeRecognizer struct {
	results []result
	calls   int
	wait    bool // wait for ctx before answering
}

func (f *fakeRecognizer) Recognize(ctx context.Context, _ []float32) (string, error) {
	if f.wait {
		<-ctx.Done()
		return "", ctx.Err()
	}
	r := f.results[f.calls]
	f.calls++
	return r.text, r.err
}

type remoteLog struct {
	mu    sync.Mutex
	calls []string
	says  []string
}

func (r *remoteLog) paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *remoteLog) said() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.says...)
}

func newRemote(t *testing.T) (*remote.Client, *remoteLog) {
	t.Helper()

	rl := &remoteLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rl.mu.Lock()
		defer rl.mu.Unlock()

		rl.calls = append(rl.calls, r.URL.Path)
		if r.URL.Path == "/say" {
			var body struct {
				Say string `json:"say"`
			}
			data, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(data, &body); err != nil {
				t.Errorf("bad say body %q: %v", data, err)
			}
			rl.says = append(rl.says, body.Say)
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	c, err := remote.NewClient(remote.Config{BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return c, rl
}

type recordingObserver struct {
	events []Event
	err    error
}

func (r *recordingObserver) Publish(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestClassify(t *testing.T) {
	live := context.Background()
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want Kind
	}{
		{"nil", live, nil, Transcribed},
		{"no speech", live, stt.ErrNoSpeech, NoSpeechDetected},
		{"wrapped no speech", live, errors.Join(errors.New("x"), stt.ErrNoSpeech), NoSpeechDetected},
		{"wait timeout", live, audio.ErrWaitTimeout, NoSpeechDetected},
		{"backend", live, &stt.BackendError{Backend: "whisper", Err: errors.New("oom")}, RecognitionBackendError},
		{"other", live, errors.New("boom"), FatalLoopError},
		{"cancelled", cancelled, errors.New("boom"), Interrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(tt.ctx, tt.err)
			if out.Kind != tt.want {
				t.Errorf("expected %s, got %s", tt.want, out.Kind)
			}
		})
	}
}

func TestLoop_Iterate(t *testing.T) {
	t.Run("transcript is reported once after a start/stop pair", func(t *testing.T) {
		rem, rl := newRemote(t)
		obs := &recordingObserver{}
		l := New(&fakeSource{captures: []error{nil}},
			&fakeRecognizer{results: []result{{text: "hello there"}}},
			rem, Options{Observers: []Observer{obs}})

		out := l.Iterate(context.Background(), 300)
		if out.Kind != Transcribed || out.Text != "hello there" {
			t.Fatalf("unexpected outcome %+v", out)
		}

		want := []string{"/startListen", "/stopListen", "/say"}
		if got := rl.paths(); strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("expected calls %v, got %v", want, got)
		}
		if len(rl.said()) != 1 || rl.said()[0] != "hello there" {
			t.Errorf("unexpected says %v", rl.said())
		}

		kinds := []EventKind{EventListenStart, EventListenStop, EventSay}
		if len(obs.events) != len(kinds) {
			t.Fatalf("expected %d events, got %v", len(kinds), obs.events)
		}
		for i, k := range kinds {
			if obs.events[i].Kind != k {
				t.Errorf("event %d: expected %s, got %s", i, k, obs.events[i].Kind)
			}
		}
	})

	t.Run("no speech makes no say call", func(t *testing.T) {
		rem, rl := newRemote(t)
		l := New(&fakeSource{captures: []error{nil}},
			&fakeRecognizer{results: []result{{err: stt.ErrNoSpeech}}}, rem, Options{})

		out := l.Iterate(context.Background(), 300)
		if out.Kind != NoSpeechDetected || !out.Continue() {
			t.Fatalf("unexpected outcome %+v", out)
		}
		if len(rl.said()) != 0 {
			t.Errorf("expected no say calls, got %v", rl.said())
		}
	})

	t.Run("capture wait timeout is no speech", func(t *testing.T) {
		rem, rl := newRemote(t)
		l := New(&fakeSource{captures: []error{audio.ErrWaitTimeout}}, &fakeRecognizer{}, rem, Options{})

		out := l.Iterate(context.Background(), 300)
		if out.Kind != NoSpeechDetected {
			t.Fatalf("unexpected outcome %+v", out)
		}
		if got := rl.paths(); len(got) != 2 || got[1] != "/stopListen" {
			t.Errorf("expected start/stop pair, got %v", got)
		}
	})

	t.Run("recognizer overrunning its timeout is a backend error", func(t *testing.T) {
		rem, rl := newRemote(t)
		l := New(&fakeSource{captures: []error{nil}}, &fakeRecognizer{wait: true}, rem,
			Options{RecognizeTimeout: 20 * time.Millisecond})

		out := l.Iterate(context.Background(), 300)
		if out.Kind != RecognitionBackendError {
			t.Fatalf("unexpected outcome %+v", out)
		}
		if len(rl.said()) != 0 {
			t.Errorf("expected no say calls, got %v", rl.said())
		}
	})

	t.Run("unreachable remote is fatal", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		rem, _ := remote.NewClient(remote.Config{BaseURL: url, Timeout: time.Second})
		src := &fakeSource{captures: []error{nil}}
		l := New(src, &fakeRecognizer{}, rem, Options{})

		out := l.Iterate(context.Background(), 300)
		if out.Kind != FatalLoopError || out.Continue() {
			t.Fatalf("unexpected outcome %+v", out)
		}
		if src.captured != 0 {
			t.Errorf("expected no capture, got %d", src.captured)
		}
	})

	t.Run("observer errors are ignored", func(t *testing.T) {
		rem, rl := newRemote(t)
		obs := &recordingObserver{err: errors.New("mirror down")}
		l := New(&fakeSource{captures: []error{nil}},
			&fakeRecognizer{results: []result{{text: "lights"}}},
			rem, Options{Observers: []Observer{obs}})

		if out := l.Iterate(context.Background(), 300); out.Kind != Transcribed {
			t.Fatalf("unexpected outcome %+v", out)
		}
		if len(rl.said()) != 1 {
			t.Errorf("expected one say call, got %v", rl.said())
		}
	})
}

func TestLoop_Run(t *testing.T) {
	t.Run("misses and backend errors continue", func(t *testing.T) {
		rem, rl := newRemote(t)
		src := &fakeSource{captures: []error{nil, nil, nil}}
		rec := &fakeRecognizer{results: []result{
			{err: stt.ErrNoSpeech},
			{err: &stt.BackendError{Backend: "whisper", Err: errors.New("model crashed")}},
			{text: "play music"},
		}}

		err := New(src, rec, rem, Options{}).Run(context.Background())
		if !errors.Is(err, errExhausted) {
			t.Fatalf("expected exhaustion error, got %v", err)
		}
		if rec.calls != 3 {
			t.Errorf("expected 3 recognitions, got %d", rec.calls)
		}
		if len(rl.said()) != 1 || rl.said()[0] != "play music" {
			t.Errorf("unexpected says %v", rl.said())
		}
		if src.opened != 1 || src.closed != 1 {
			t.Errorf("expected source opened and closed once, got %d/%d", src.opened, src.closed)
		}
	})

	t.Run("unclassified error ends the loop and closes the source", func(t *testing.T) {
		rem, rl := newRemote(t)
		boom := errors.New("boom")
		src := &fakeSource{captures: []error{nil, nil}}
		rec := &fakeRecognizer{results: []result{{err: boom}, {text: "never"}}}

		err := New(src, rec, rem, Options{}).Run(context.Background())
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if src.captured != 1 || rec.calls != 1 {
			t.Errorf("expected loop to stop after first iteration, captured=%d calls=%d", src.captured, rec.calls)
		}
		if src.closed != 1 {
			t.Errorf("expected source closed")
		}
		if len(rl.said()) != 0 {
			t.Errorf("expected no say calls, got %v", rl.said())
		}
	})

	t.Run("cancellation is a clean shutdown", func(t *testing.T) {
		rem, _ := newRemote(t)
		src := &fakeSource{block: true}

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)

		if err := New(src, &fakeRecognizer{}, rem, Options{}).Run(ctx); err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
		if src.closed != 1 {
			t.Errorf("expected source closed")
		}
	})
}
