package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Client     Client
	Server     Server
	Conditions Conditions
}

type Client struct {
	APIRoot        string        `env:"API_ROOT" env-default:"http://localhost:8000/api"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" env-default:"30s"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" env-default:"2s"`
	UserAgent      string        `env:"USER_AGENT" env-default:"web2json-client"`
	LogFormat      string        `env:"LOG_FORMAT" env-default:"pretty"`
	LogLevel       string        `env:"LOG_LEVEL" env-default:"info"`
	LocaleFile     string        `env:"LOCALE_FILE"`
}

type Server struct {
	Host        string        `env:"HOST" env-default:"localhost"`
	Port        string        `env:"PORT" env-default:"8000"`
	Timeout     time.Duration `env:"TIMEOUT" env-default:"30s"`
	IdleTimeout time.Duration `env:"IDLE_TIMEOUT" env-default:"60s"`
}

type Conditions struct {
	MaxActiveTasks   int           `env:"MAX_ACTIVE_TASKS" env-default:"3"`
	PhaseDelay       time.Duration `env:"PHASE_DELAY" env-default:"1s"`
	PollIntervalHint time.Duration `env:"POLL_INTERVAL_HINT" env-default:"1s"`
	MaxFetchSize     int64         `env:"MAX_FETCH_SIZE" env-default:"10485760"`
	IterationRounds  int           `env:"ITERATION_ROUNDS" env-default:"3"`
	TaskRetention    time.Duration `env:"TASK_RETENTION" env-default:"1h"`
}

const DefaultPath = "config/local.env"

// Load reads the env file at path when it exists and fills the rest from the
// process environment and defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return nil, fmt.Errorf("cannot load env file %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("cannot stat env file %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if cfg.Client.LocaleFile == "" {
		cfg.Client.LocaleFile = defaultLocaleFile()
	}

	return &cfg, nil
}

func MustLoad() *Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}

	cfg, err := Load(path)
	if err != nil {
		log.Fatal(err)
	}

	return cfg
}

func defaultLocaleFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "web2json", "locale.json")
}
