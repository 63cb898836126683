package config

import (
	"errors"
	"io/fs"
	log "log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the lark binaries read from the environment.
// Flags in cmd/ override individual fields after Load.
type Config struct {
	// Remote service
	RemoteURL     string
	RemoteTimeout time.Duration

	// Recognition
	Backend          string
	WhisperModel     string
	WhisperLanguage  string
	WhisperThreads   int
	OpenAIKey        string
	OpenAIModel      string
	Proxy            string
	RecognizeTimeout time.Duration

	// Capture
	Calibration    time.Duration
	CaptureTimeout time.Duration
	PhraseLimit    time.Duration
	Chime          string
	Duck           bool
	DuckFactor     float64
	DumpDir        string
	InputThreshold float64

	// Mirrors
	BusURL     string
	MQTTBroker string
	MQTTTopic  string

	// Control socket
	Socket string

	// Alarm / music
	MimicBin   string
	MimicVoice string
	Greeting   string
	PlayerBin  string
}

const DefaultGreeting = "Hei! Good morning here! It's time to begin new tests!"

// Load reads envFile (a missing file is not an error) and builds a Config
// from LARK_* variables, falling back to defaults.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return &Config{
		RemoteURL:     getEnv("LARK_REMOTE_URL", "http://localhost:3000"),
		RemoteTimeout: getEnvDuration("LARK_REMOTE_TIMEOUT", 10*time.Second),

		Backend:          getEnv("LARK_BACKEND", "whisper"),
		WhisperModel:     getEnv("LARK_WHISPER_MODEL", "third_party/whisper.cpp/models/ggml-base.en.bin"),
		WhisperLanguage:  getEnv("LARK_WHISPER_LANGUAGE", "en"),
		WhisperThreads:   getEnvInt("LARK_WHISPER_THREADS", 0),
		OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      getEnv("LARK_OPENAI_MODEL", "whisper-1"),
		Proxy:            getEnv("LARK_PROXY", ""),
		RecognizeTimeout: getEnvDuration("LARK_RECOGNIZE_TIMEOUT", 60*time.Second),

		Calibration:    getEnvDuration("LARK_CALIBRATION", time.Second),
		CaptureTimeout: getEnvDuration("LARK_CAPTURE_TIMEOUT", 30*time.Second),
		PhraseLimit:    getEnvDuration("LARK_PHRASE_LIMIT", 15*time.Second),
		Chime:          getEnv("LARK_CHIME", ""),
		Duck:           getEnvBool("LARK_DUCK", false),
		DuckFactor:     getEnvFloat("LARK_DUCK_FACTOR", 0.3),
		DumpDir:        getEnv("LARK_DUMP_DIR", ""),
		InputThreshold: getEnvFloat("LARK_INPUT_THRESHOLD", 300),

		BusURL:     getEnv("LARK_BUS_URL", ""),
		MQTTBroker: getEnv("LARK_MQTT_BROKER", ""),
		MQTTTopic:  getEnv("LARK_MQTT_TOPIC", "lark/events"),

		Socket: getEnv("LARK_SOCKET", "/tmp/lark.sock"),

		MimicBin:   getEnv("LARK_MIMIC_BIN", "./mimic/bin/mimic"),
		MimicVoice: getEnv("LARK_MIMIC_VOICE", "mimic/voices/cmu_us_slt.flitevox"),
		Greeting:   getEnv("LARK_GREETING", DefaultGreeting),
		PlayerBin:  getEnv("LARK_PLAYER_BIN", "rhythmbox-client"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Warn("Failed to parse env as int, using default", "key", key, "err", err)
		return defaultValue
	}
	return intValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Warn("Failed to parse env as float, using default", "key", key, "err", err)
		return defaultValue
	}
	return floatValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Warn("Failed to parse env as bool, using default", "key", key, "err", err)
		return defaultValue
	}
	return boolValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn("Failed to parse env as duration, using default", "key", key, "err", err)
		return defaultValue
	}
	return d
}
