// Package notify plays the short cue heard when lark starts listening.
package notify

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

// Chime holds a decoded mp3 in memory and plays it through the default
// output device.
type Chime struct {
	buf *beep.Buffer

	initOnce sync.Once
	initErr  error
}

func NewChime(path string) (*Chime, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chime: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decode chime %s: %w", path, err)
	}
	defer streamer.Close()

	buf := beep.NewBuffer(format)
	buf.Append(streamer)
	if err := streamer.Err(); err != nil {
		return nil, fmt.Errorf("decode chime %s: %w", path, err)
	}

	return &Chime{buf: buf}, nil
}

func (c *Chime) Len() int {
	return c.buf.Len()
}

// Play blocks until the chime has finished.
func (c *Chime) Play() error {
	c.initOnce.Do(func() {
		rate := c.buf.Format().SampleRate
		c.initErr = speaker.Init(rate, rate.N(time.Second/10))
	})
	if c.initErr != nil {
		return fmt.Errorf("init speaker: %w", c.initErr)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(c.buf.Streamer(0, c.buf.Len()), beep.Callback(func() {
		close(done)
	})))
	<-done

	return nil
}
