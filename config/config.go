package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	defaultDatasource = "file:jobs?mode=memory&cache=shared"
	defaultLogLevel   = "info"
)

// Bot represents telegram bot parameters.
type Bot struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

type Sqlite struct {
	Datasource string `yaml:"datasource"`
}

// Listing represents the remote job listing endpoint.
type Listing struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Config represents parent config group.
type Config struct {
	Bot     Bot     `yaml:"bot"`
	Sqlite  Sqlite  `yaml:"sqlite"`
	Listing Listing `yaml:"listing"`
	Log     Log     `yaml:"log"`
}

// GetConfig returns config. Variables from an optional .env file next to the
// working directory are loaded before env overrides are applied.
func GetConfig(cfgPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(errors.Cause(err)) {
		return nil, errors.Wrap(err, "failed to load .env")
	}
	filename, err := filepath.Abs(cfgPath)
	if err != nil {
		return nil, err
	}
	yamlFile, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return parse(yamlFile)
}

func parse(raw []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if config.Bot.Token == "" {
		config.Bot.Token = os.Getenv("BOT_TOKEN")
	}
	if config.Listing.URL == "" {
		config.Listing.URL = os.Getenv("LISTING_URL")
	}
	if config.Sqlite.Datasource == "" {
		config.Sqlite.Datasource = defaultDatasource
	}
	if config.Log.Level == "" {
		config.Log.Level = defaultLogLevel
	}
	if config.Bot.Token == "" {
		return nil, errors.New("bot token is required")
	}
	if config.Listing.URL == "" {
		return nil, errors.New("listing url is required")
	}
	if config.Bot.ChatID == 0 {
		return nil, errors.New("bot chat_id is required")
	}
	if config.Listing.Timeout < 0 {
		return nil, errors.Errorf("listing timeout must not be negative, got %s", config.Listing.Timeout)
	}
	return &config, nil
}
