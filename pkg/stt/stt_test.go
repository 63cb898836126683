package stt

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openai/openai-go/v3/option"
)

func TestClean(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{[]string{" Hello there. ", " How are you?"}, "Hello there. How are you?"},
		{[]string{"[BLANK_AUDIO]"}, ""},
		{[]string{"(music)", " turn on the lamp", "*coughs*"}, "turn on the lamp"},
		{[]string{"again", "again", " "}, "again"},
		{nil, ""},
		{[]string{"(laughs) turn on the lights"}, "(laughs) turn on the lights"},
		{[]string{"I said it (quietly)"}, "I said it (quietly)"},
	}

	for _, tc := range cases {
		if got := Clean(tc.in); got != tc.want {
			t.Errorf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBackendError(t *testing.T) {
	inner := errors.New("connection refused")
	err := error(&BackendError{Backend: "whisper", Err: inner})

	if !errors.Is(err, inner) {
		t.Errorf("expected BackendError to unwrap to its cause")
	}

	var be *BackendError
	if !errors.As(err, &be) || be.Backend != "whisper" {
		t.Errorf("expected errors.As to find the backend error")
	}

	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected cause in message: %s", err)
	}
}

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	o, err := NewOpenAI(OpenAIConfig{
		APIKey:   "test",
		Language: "en",
		Options: []option.RequestOption{
			option.WithBaseURL(srv.URL + "/v1/"),
			option.WithMaxRetries(0),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func speech() []float32 {
	s := make([]float32, 16000)
	for i := range s {
		s[i] = 0.1
	}
	return s
}

func TestOpenAI_Recognize(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		if _, err := NewOpenAI(OpenAIConfig{}); err == nil {
			t.Fatal("expected error without api key")
		}
	})

	t.Run("transcript", func(t *testing.T) {
		var gotPath, gotType string
		o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotType = r.Header.Get("Content-Type")
			io.Copy(io.Discard, r.Body)
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"text":" turn on the lamp "}`)
		})

		text, err := o.Recognize(context.Background(), speech())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "turn on the lamp" {
			t.Errorf("unexpected transcript %q", text)
		}
		if gotPath != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", gotPath)
		}
		if !strings.HasPrefix(gotType, "multipart/form-data") {
			t.Errorf("expected multipart upload, got %s", gotType)
		}
	})

	t.Run("empty transcript is no speech", func(t *testing.T) {
		o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"text":""}`)
		})

		if _, err := o.Recognize(context.Background(), speech()); !errors.Is(err, ErrNoSpeech) {
			t.Fatalf("expected ErrNoSpeech, got %v", err)
		}
	})

	t.Run("server error is a backend error", func(t *testing.T) {
		o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
		})

		_, err := o.Recognize(context.Background(), speech())
		var be *BackendError
		if !errors.As(err, &be) || be.Backend != "openai" {
			t.Fatalf("expected openai BackendError, got %v", err)
		}
	})

	t.Run("too short is no speech without a request", func(t *testing.T) {
		called := false
		o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) { called = true })

		if _, err := o.Recognize(context.Background(), make([]float32, 10)); !errors.Is(err, ErrNoSpeech) {
			t.Fatalf("expected ErrNoSpeech, got %v", err)
		}
		if called {
			t.Errorf("no request expected for a too short utterance")
		}
	})
}
