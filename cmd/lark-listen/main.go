package main

import (
	"context"
	"io"
	log "log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
	cli "github.com/spf13/pflag"

	"lark/internal/audio"
	"lark/internal/bus"
	"lark/internal/config"
	"lark/internal/ipc"
	"lark/internal/listen"
	"lark/internal/logging"
	"lark/internal/mic"
	"lark/internal/mqtt"
	"lark/internal/notify"
	"lark/internal/proxy"
	"lark/internal/remote"
	"lark/internal/shell"
	"lark/pkg/stt"
	"lark/pkg/stt/whispercpp"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup happens before exit.
func run() int {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	remoteURL := cli.StringP("remote", "r", "", "Remote service url")
	backend := cli.StringP("backend", "b", "", "Recognition backend: whisper or openai")
	model := cli.StringP("model", "m", "", "Whisper model path")
	inputs := cli.StringSliceP("input", "i", nil, "Audio files to replay instead of the microphone")
	dumpDir := cli.String("dump", "", "Directory to keep captured utterances in")
	chime := cli.String("chime", "", "mp3 played when listening starts")
	duck := cli.Bool("duck", false, "Lower other audio streams while listening")
	socket := cli.String("socket", "", "Control socket path")
	cli.Parse()

	logging.Setup(os.Stdout, *logLevel)
	log.Info("Booting up")

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Error("Failed to load config", "env", *envFile, "err", err)
		return 1
	}
	override(&cfg.RemoteURL, *remoteURL)
	override(&cfg.Backend, *backend)
	override(&cfg.WhisperModel, *model)
	override(&cfg.DumpDir, *dumpDir)
	override(&cfg.Chime, *chime)
	override(&cfg.Socket, *socket)
	if cli.CommandLine.Changed("duck") {
		cfg.Duck = *duck
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rem, err := remote.NewClient(remote.Config{BaseURL: cfg.RemoteURL, Timeout: cfg.RemoteTimeout})
	if err != nil {
		log.Error("Failed to create remote client", "err", err)
		return 1
	}

	recognizer, closer, err := newRecognizer(cfg)
	if err != nil {
		log.Error("Failed to init recognizer", "backend", cfg.Backend, "err", err)
		return 1
	}
	defer closer.Close()

	log.Debug("Loaded recognizer", "backend", cfg.Backend)

	var source listen.Source
	if len(*inputs) > 0 {
		source = audio.NewFileSource(*inputs, cfg.InputThreshold)
	} else {
		m := mic.NewMicrophone()
		m.Endpoint.WaitTimeout = cfg.CaptureTimeout
		m.Endpoint.PhraseLimit = cfg.PhraseLimit
		source = m
	}

	opt := listen.Options{
		Calibration:      cfg.Calibration,
		RecognizeTimeout: cfg.RecognizeTimeout,
		DuckFactor:       cfg.DuckFactor,
	}

	if cfg.Chime != "" {
		c, err := notify.NewChime(cfg.Chime)
		if err != nil {
			log.Warn("Chime disabled", "err", err)
		} else {
			opt.Cue = c
		}
	}
	if cfg.Duck {
		opt.Ducker = audio.NewDucker(shell.Exec{}, []string{filepath.Base(os.Args[0])}, 5)
	}
	if cfg.DumpDir != "" {
		opt.Dumper = audio.NewDumper(afero.NewOsFs(), cfg.DumpDir)
	}

	handle := func(cmd string) {
		switch cmd {
		case "stop":
			log.Info("Stop requested")
			stop()
		default:
			log.Warn("Unknown command", "cmd", cmd)
		}
	}

	srv, err := ipc.StartServer(cfg.Socket, func(msg ipc.ControlMessage) { handle(msg.Cmd) })
	if err != nil {
		log.Error("Failed ipc server", "socket", cfg.Socket, "err", err)
		return 1
	}
	defer srv.Close()

	if cfg.BusURL != "" {
		b, err := bus.Dial(ctx, cfg.BusURL)
		if err != nil {
			log.Warn("Bus mirror disabled", "err", err)
		} else {
			defer b.Close()
			opt.Observers = append(opt.Observers, b)
			go func() {
				err := b.Serve(ctx, func(m bus.Message) {
					if m.Kind == "cmd" {
						handle(m.Content)
					}
				})
				if err != nil {
					log.Warn("Bus connection closed", "err", err)
				}
			}()
		}
	}

	if cfg.MQTTBroker != "" {
		p, err := mqtt.Connect(mqtt.Config{Broker: cfg.MQTTBroker, Topic: cfg.MQTTTopic})
		if err != nil {
			log.Warn("MQTT mirror disabled", "err", err)
		} else {
			defer p.Close()
			opt.Observers = append(opt.Observers, p)
		}
	}

	log.Info("Boot up - successful")

	if err := listen.New(source, recognizer, rem, opt).Run(ctx); err != nil {
		log.Error("Listen loop stopped", "err", err)
		return 1
	}

	return 0
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

type noClose struct{}

func (noClose) Close() error { return nil }

func newRecognizer(cfg *config.Config) (listen.Recognizer, io.Closer, error) {
	switch cfg.Backend {
	case "openai":
		o := stt.OpenAIConfig{
			APIKey:   cfg.OpenAIKey,
			Model:    cfg.OpenAIModel,
			Language: cfg.WhisperLanguage,
		}
		if cfg.Proxy != "" {
			hc, err := proxy.NewSocksClient(cfg.Proxy, cfg.RecognizeTimeout)
			if err != nil {
				return nil, nil, err
			}
			o.HTTPClient = hc
		}

		rec, err := stt.NewOpenAI(o)
		if err != nil {
			return nil, nil, err
		}
		return rec, noClose{}, nil

	default:
		t, err := whispercpp.NewTranscriber(cfg.WhisperModel, whispercpp.Options{
			Language: cfg.WhisperLanguage,
			Threads:  cfg.WhisperThreads,
		})
		if err != nil {
			return nil, nil, err
		}
		return t, t, nil
	}
}
