package main

import (
	"context"
	log "log/slog"
	"os"

	cli "github.com/spf13/pflag"

	"lark/internal/config"
	"lark/internal/logging"
	"lark/internal/music"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	logging.Setup(os.Stdout, *logLevel)

	if cli.NArg() == 0 || !music.Known(cli.Arg(0)) {
		return
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Error("Failed to load config", "env", *envFile, "err", err)
		os.Exit(1)
	}

	if err := music.NewPlayer(cfg.PlayerBin, nil).Control(context.Background(), cli.Arg(0)); err != nil {
		log.Error("Music control failed", "err", err)
		os.Exit(1)
	}
}
