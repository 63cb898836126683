package main

import (
	"context"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/spf13/pflag"

	"lark/internal/alarm"
	"lark/internal/config"
	"lark/internal/logging"
	"lark/internal/music"
	"lark/internal/shell"
	"lark/internal/tts"
)

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	greeting := cli.StringP("greeting", "g", "", "Text spoken when the alarm rings")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: lark-alarm [flags] HH:MM")
		cli.PrintDefaults()
	}
	cli.Parse()

	if cli.NArg() != 1 {
		cli.Usage()
		os.Exit(2)
	}

	logging.Setup(os.Stdout, *logLevel)

	at, err := alarm.Parse(cli.Arg(0))
	if err != nil {
		log.Error("Bad alarm time", "arg", cli.Arg(0), "err", err)
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Error("Failed to load config", "env", *envFile, "err", err)
		os.Exit(1)
	}
	if *greeting != "" {
		cfg.Greeting = *greeting
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	speaker := tts.NewMimic(cfg.MimicBin, cfg.MimicVoice)
	player := music.NewPlayer(cfg.PlayerBin, shell.Exec{})

	a := alarm.New(at, cfg.Greeting, speaker, player)
	if err := a.Run(ctx); err != nil {
		if ctx.Err() != nil {
			log.Info("Alarm cancelled")
			return
		}
		log.Error("Alarm failed", "err", err)
		os.Exit(1)
	}
}
