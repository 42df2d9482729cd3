// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort       = 3000
	DefaultAPIBaseURL = "https://graph.facebook.com/v18.0"
	DefaultTimeout    = 15 * time.Second
	DefaultCapacity   = 100
	DefaultQueue      = "whatsapp_inbound"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	WhatsApp struct {
		VerifyToken   string        `yaml:"verify_token"`
		AccessToken   string        `yaml:"access_token"`
		PhoneNumberID string        `yaml:"phone_number_id"`
		APIBaseURL    string        `yaml:"api_base_url"`
		Timeout       time.Duration `yaml:"timeout"`
	} `yaml:"whatsapp"`

	History struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"history"`

	RabbitMQ struct {
		URL   string `yaml:"url"`
		Queue string `yaml:"queue"`
	} `yaml:"rabbitmq"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// LoadConfig reads the yaml file at path (if present), then applies .env and
// environment overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		}
	}

	// .env never overrides variables already set in the process environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.WhatsApp.VerifyToken, "VERIFY_TOKEN")
	setString(&c.WhatsApp.AccessToken, "WHATSAPP_TOKEN")
	setString(&c.WhatsApp.PhoneNumberID, "PHONE_NUMBER_ID")
	setString(&c.WhatsApp.APIBaseURL, "GRAPH_API_URL")
	setString(&c.RabbitMQ.URL, "RABBITMQ_URL")
	setString(&c.RabbitMQ.Queue, "RABBITMQ_QUEUE")
	setString(&c.Log.Level, "LOG_LEVEL")

	if err := setInt(&c.Server.Port, "PORT"); err != nil {
		return err
	}
	if err := setInt(&c.History.Capacity, "HISTORY_CAPACITY"); err != nil {
		return err
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		pretty, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid LOG_PRETTY %q: %w", v, err)
		}
		c.Log.Pretty = pretty
	}
	if v := os.Getenv("GRAPH_API_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid GRAPH_API_TIMEOUT %q: %w", v, err)
		}
		c.WhatsApp.Timeout = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.WhatsApp.APIBaseURL == "" {
		c.WhatsApp.APIBaseURL = DefaultAPIBaseURL
	}
	if c.WhatsApp.Timeout <= 0 {
		c.WhatsApp.Timeout = DefaultTimeout
	}
	if c.History.Capacity < 1 {
		c.History.Capacity = DefaultCapacity
	}
	if c.RabbitMQ.Queue == "" {
		c.RabbitMQ.Queue = DefaultQueue
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Missing returns the names of required settings that are not set.
func (c *Config) Missing() []string {
	var missing []string
	if c.WhatsApp.VerifyToken == "" {
		missing = append(missing, "VERIFY_TOKEN")
	}
	if c.WhatsApp.AccessToken == "" {
		missing = append(missing, "WHATSAPP_TOKEN")
	}
	if c.WhatsApp.PhoneNumberID == "" {
		missing = append(missing, "PHONE_NUMBER_ID")
	}
	return missing
}

func (c *Config) OutboundEnabled() bool {
	return c.WhatsApp.AccessToken != "" && c.WhatsApp.PhoneNumberID != ""
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}
