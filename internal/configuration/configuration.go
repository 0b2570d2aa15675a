package configuration

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	Application ApplicationSettings `yaml:"application"`
	Limits      LimitSettings       `yaml:"limits"`
	Rooms       RoomSettings        `yaml:"rooms"`
	Metrics     MetricsSettings     `yaml:"metrics"`
	Audit       AuditSettings       `yaml:"audit"`
}

type ApplicationSettings struct {
	Port           uint16   `yaml:"port" envconfig:"COLLAB_OS_PORT"`
	PasswordSalt   string   `yaml:"password_salt" envconfig:"COLLAB_OS_PASSWORD_SALT"`
	DefaultName    string   `yaml:"default_name"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type LimitSettings struct {
	MaxMessageBytes     int           `yaml:"max_message_bytes"`
	MaxContentLength    int           `yaml:"max_content_length"`
	UpdateWindow        time.Duration `yaml:"update_window"`
	MaxUpdatesPerWindow int           `yaml:"max_updates_per_window"`
	SendBuffer          int           `yaml:"send_buffer"`
}

type RoomSettings struct {
	IdleTTL       time.Duration `yaml:"idle_ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type MetricsSettings struct {
	// Port of the separate metrics listener, 0 disables it.
	Port uint16 `yaml:"port" envconfig:"METRICS_PORT"`
}

type AuditSettings struct {
	Brokers []string `yaml:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic   string   `yaml:"topic"`
}

// Default holds the values used when neither a file nor the environment
// overrides them.
func Default() Settings {
	return Settings{
		Application: ApplicationSettings{
			Port:           3456,
			PasswordSalt:   "flymd-os-collab",
			DefaultName:    "Anonymous",
			AllowedOrigins: []string{"*"},
		},
		Limits: LimitSettings{
			MaxMessageBytes:     256 * 1024,
			MaxContentLength:    1024 * 1024,
			UpdateWindow:        10 * time.Second,
			MaxUpdatesPerWindow: 60,
			SendBuffer:          256,
		},
		Rooms: RoomSettings{
			IdleTTL:       10 * time.Minute,
			SweepInterval: time.Minute,
		},
		Audit: AuditSettings{
			Topic: "collab-audit",
		},
	}
}

// ReadConfiguration layers base.yml, <ENVIRONMENT>.yml and the process
// environment on top of the defaults. Missing files are skipped.
func ReadConfiguration(dir string) (Settings, error) {
	settings := Default()

	if err := readFile(dir, &settings, "base"); err != nil {
		return settings, err
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "local"
	}

	if err := readFile(dir, &settings, environment); err != nil {
		return settings, err
	}

	if err := readEnv(&settings); err != nil {
		return settings, err
	}

	return settings, settings.Validate()
}

func (s Settings) Validate() error {
	switch {
	case s.Application.PasswordSalt == "":
		return errors.New("application.password_salt must not be empty")
	case s.Limits.MaxMessageBytes <= 0:
		return errors.New("limits.max_message_bytes must be positive")
	case s.Limits.MaxContentLength <= 0:
		return errors.New("limits.max_content_length must be positive")
	case s.Limits.UpdateWindow <= 0:
		return errors.New("limits.update_window must be positive")
	case s.Limits.MaxUpdatesPerWindow <= 0:
		return errors.New("limits.max_updates_per_window must be positive")
	case s.Limits.SendBuffer <= 0:
		return errors.New("limits.send_buffer must be positive")
	case s.Rooms.SweepInterval <= 0:
		return errors.New("rooms.sweep_interval must be positive")
	}
	return nil
}

func readFile(dir string, settings *Settings, name string) error {
	path := filepath.Join(dir, name+".yml")
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err = decoder.Decode(settings); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func readEnv(settings *Settings) error {
	// PORT is honoured when the more specific variable is unset.
	if _, ok := os.LookupEnv("COLLAB_OS_PORT"); !ok {
		if value, ok := os.LookupEnv("PORT"); ok {
			port, err := strconv.ParseUint(value, 10, 16)
			if err != nil {
				return fmt.Errorf("read PORT: %w", err)
			}
			settings.Application.Port = uint16(port)
		}
	}

	if err := envconfig.Process("", settings); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	return nil
}
