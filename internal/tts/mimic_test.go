package tts

import (
	"context"
	"reflect"
	"testing"
)

type fakeRunner struct {
	name string
	args []string
	n    int
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.n++
	f.name = name
	f.args = args
	return nil, nil
}

func TestMimic_Speak(t *testing.T) {
	t.Run("builds the mimic command line", func(t *testing.T) {
		runner := &fakeRunner{}
		m := NewMimic("./mimic/bin/mimic", "mimic/voices/cmu_us_slt.flitevox")
		m.Runner = runner

		if err := m.Speak(context.Background(), "Good morning"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expected := []string{
			"-t", "Good morning",
			"-voice", "mimic/voices/cmu_us_slt.flitevox",
			"-pw",
			"--setf", "int_f0_target_mean=200",
			"--setf", "duration_stretch=0.8",
		}
		if runner.name != "./mimic/bin/mimic" {
			t.Errorf("expected mimic binary, got %s", runner.name)
		}
		if !reflect.DeepEqual(runner.args, expected) {
			t.Errorf("expected %v, got %v", expected, runner.args)
		}
	})

	t.Run("empty text does nothing", func(t *testing.T) {
		runner := &fakeRunner{}
		m := NewMimic("mimic", "")
		m.Runner = runner

		if err := m.Speak(context.Background(), ""); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if runner.n != 0 {
			t.Errorf("expected no calls, got %d", runner.n)
		}
	})
}
