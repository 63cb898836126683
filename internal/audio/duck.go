package audio

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"lark/internal/shell"
)

const maxVolume = 150

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type sinkInput struct {
	ID      int
	Volume  int
	AppName string
}

type fade struct {
	id   int
	from int
	to   int
}

// Ducker lowers the volume of other PulseAudio sink inputs while lark is
// listening and restores them afterwards. Inputs whose application.name
// contains one of selfNames are left alone.
type Ducker struct {
	mu        sync.Mutex
	runner    shell.Runner
	selfNames []string
	minVolume int

	active   bool
	original map[int]int
}

func NewDucker(runner shell.Runner, selfNames []string, minVolume int) *Ducker {
	if runner == nil {
		runner = shell.Exec{}
	}

	return &Ducker{
		runner:    runner,
		selfNames: append([]string(nil), selfNames...),
		minVolume: clampVolume(minVolume),
		original:  make(map[int]int),
	}
}

// DuckOthers fades every foreign sink input to factor of its volume,
// never below minVolume. Calling it twice without UnduckOthers is a no-op.
func (d *Ducker) DuckOthers(ctx context.Context, factor float64, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	inputs, err := d.listInputs(ctx)
	if err != nil {
		return err
	}

	d.original = make(map[int]int)

	var fades []fade
	for _, in := range inputs {
		if d.isSelf(in.AppName) {
			continue
		}

		to := int(math.Round(float64(in.Volume) * factor))
		to = max(to, d.minVolume)

		d.original[in.ID] = in.Volume
		fades = append(fades, fade{id: in.ID, from: in.Volume, to: clampVolume(to)})
	}

	// mark active before fading so a partial fade is still undone
	d.active = true
	return d.fade(ctx, fades, duration)
}

// UnduckOthers fades ducked inputs back to their original volume. Inputs
// that appeared after DuckOthers are not touched.
func (d *Ducker) UnduckOthers(ctx context.Context, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	inputs, err := d.listInputs(ctx)
	if err != nil {
		return err
	}

	var fades []fade
	for _, in := range inputs {
		orig, ok := d.original[in.ID]
		if !ok {
			continue
		}
		fades = append(fades, fade{id: in.ID, from: in.Volume, to: orig})
	}

	if err := d.fade(ctx, fades, duration); err != nil {
		return err
	}

	d.original = make(map[int]int)
	d.active = false
	return nil
}

// isSelf matches selfNames as substrings, so names wrapped by ALSA such as
// "ALSA plug-in [lark-listen]" still count.
func (d *Ducker) isSelf(app string) bool {
	for _, name := range d.selfNames {
		if name != "" && strings.Contains(app, name) {
			return true
		}
	}
	return false
}

// fade steps every input from its start to its target volume over duration.
func (d *Ducker) fade(ctx context.Context, fades []fade, duration time.Duration) error {
	if len(fades) == 0 {
		return nil
	}

	const minStep = 10 * time.Millisecond

	steps := max(int(duration/minStep), 1)
	if duration <= 0 {
		steps = 0
	}

	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := 1.0
		if steps > 0 {
			frac = float64(i) / float64(steps)
		}

		for _, f := range fades {
			v := int(math.Round(float64(f.from) + float64(f.to-f.from)*frac))
			if err := d.setVolume(ctx, f.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", f.id, err)
			}
		}

		if i < steps {
			time.Sleep(duration / time.Duration(steps))
		}
	}

	return nil
}

func (d *Ducker) listInputs(ctx context.Context) ([]sinkInput, error) {
	out, err := d.runner.Run(ctx, "pactl", "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("list sink inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (d *Ducker) setVolume(ctx context.Context, id, percent int) error {
	_, err := d.runner.Run(ctx, "pactl", "set-sink-input-volume",
		strconv.Itoa(id), fmt.Sprintf("%d%%", clampVolume(percent)))
	return err
}

// parseSinkInputs reads the output of `pactl list sink-inputs`.
func parseSinkInputs(text string) []sinkInput {
	blocks := strings.Split(text, "Sink Input #")
	if len(blocks) <= 1 {
		return nil
	}

	var res []sinkInput
	for _, block := range blocks[1:] {
		header, body, ok := strings.Cut(block, "\n")
		if !ok {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(header))
		if err != nil {
			continue
		}

		in := sinkInput{ID: id}
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && in.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); len(m) >= 2 {
					if v, err := strconv.Atoi(m[1]); err == nil {
						in.Volume = v
					}
				}
			}

			if rest, ok := strings.CutPrefix(line, "application.name ="); ok && in.AppName == "" {
				in.AppName = strings.Trim(strings.TrimSpace(rest), `"`)
			}
		}

		if in.Volume == 0 && in.AppName == "" {
			continue
		}
		res = append(res, in)
	}

	return res
}

func clampVolume(v int) int {
	return min(max(v, 0), maxVolume)
}
