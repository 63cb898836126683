package audio

import (
	"fmt"
	log "log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"lark/pkg/audioconv"
)

// Dumper keeps captured utterances as WAV files for later inspection.
type Dumper struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

func NewDumper(fs afero.Fs, dir string) *Dumper {
	return &Dumper{fs: fs, dir: dir, now: time.Now}
}

// Dump writes u to <dir>/utterance-<unix-millis>.wav and returns the path.
func (d *Dumper) Dump(u Utterance) (string, error) {
	data, err := audioconv.EncodeWAV(u.Samples, u.SampleRate)
	if err != nil {
		return "", err
	}

	if err := d.fs.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("create dump dir: %w", err)
	}

	path := filepath.Join(d.dir, fmt.Sprintf("utterance-%d.wav", d.now().UnixMilli()))
	if err := afero.WriteFile(d.fs, path, data, 0o644); err != nil {
		return "", fmt.Errorf("write dump: %w", err)
	}

	log.Debug("Dumped utterance", "path", path, "duration", u.Duration())
	return path, nil
}
