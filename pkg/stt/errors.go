// Package stt holds the speech recognition backends and the errors they
// share.
package stt

import (
	"errors"
	"fmt"
	"strings"
)

// MinSamples is the shortest input sent to a backend (100ms at 16 kHz);
// anything shorter counts as no speech.
const MinSamples = 1600

// ErrNoSpeech means the backend ran but understood nothing.
var ErrNoSpeech = errors.New("no speech detected")

// BackendError means the recognition backend itself failed or could not
// be reached. The caller may retry with the next utterance.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Clean joins segment texts into one transcript, dropping non-speech
// annotations such as "[BLANK_AUDIO]" or "(music)" and repeated segments.
func Clean(segments []string) string {
	seen := make(map[string]bool, len(segments))
	out := make([]string, 0, len(segments))

	for _, s := range segments {
		s = strings.TrimSpace(s)
		if s == "" || isAnnotation(s) || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}

	return strings.Join(out, " ")
}

var annotationPairs = map[byte]byte{'[': ']', '(': ')', '*': '*'}

// isAnnotation reports whether s is wholly wrapped in one bracket pair and
// holds nothing else, like "[BLANK_AUDIO]" but not "(laughs) hello".
func isAnnotation(s string) bool {
	if len(s) < 2 {
		return false
	}

	closing, ok := annotationPairs[s[0]]
	if !ok || s[len(s)-1] != closing {
		return false
	}

	inner := s[1 : len(s)-1]
	return !strings.ContainsAny(inner, "[]()*")
}
