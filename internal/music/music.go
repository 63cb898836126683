package music

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	"lark/internal/shell"
)

// Player flags per command. previous is issued twice; whether the
// player needs that or it was a slip is unknown, so it stays.
var commands = map[string][]string{
	"start":    {"--play"},
	"stop":     {"--stop"},
	"pause":    {"--pause"},
	"next":     {"--next"},
	"previous": {"--previous", "--previous"},
}

type Player struct {
	bin    string
	runner shell.Runner
}

func NewPlayer(bin string, runner shell.Runner) *Player {
	if bin == "" {
		bin = "rhythmbox-client"
	}
	if runner == nil {
		runner = shell.Exec{}
	}
	return &Player{bin: bin, runner: runner}
}

// Known reports whether cmd is one of the recognized control commands.
func Known(cmd string) bool {
	_, ok := commands[cmd]
	return ok
}

// Control issues the player calls for cmd. Unknown commands are a no-op.
func (p *Player) Control(ctx context.Context, cmd string) error {
	flags, ok := commands[cmd]
	if !ok {
		log.Debug("Ignoring unknown music command", "cmd", cmd)
		return nil
	}

	log.Info(cmd + " music")

	// every flag is issued even if an earlier call failed
	var errs []error
	for _, flag := range flags {
		if _, err := p.runner.Run(ctx, p.bin, flag); err != nil {
			errs = append(errs, fmt.Errorf("music %s: %w", cmd, err))
		}
	}

	return errors.Join(errs...)
}

func (p *Player) Start(ctx context.Context) error {
	return p.Control(ctx, "start")
}
