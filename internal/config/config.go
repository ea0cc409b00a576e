// Package config loads the client configuration file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Client ClientConfig `yaml:"client"`
	Store  StoreConfig  `yaml:"store"`
}

type ServerConfig struct {
	// URL is the websocket endpoint of the chat hub.
	URL string `yaml:"url"`
	// HTTPBase overrides the REST base URL. When empty it is derived
	// from URL.
	HTTPBase string `yaml:"http_base"`
}

type ClientConfig struct {
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	InvokeTimeout time.Duration `yaml:"invoke_timeout"`
	PingInterval  time.Duration `yaml:"ping_interval"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "ws://127.0.0.1:5062/hub",
		},
		Client: ClientConfig{
			DialTimeout:   10 * time.Second,
			InvokeTimeout: 10 * time.Second,
			PingInterval:  30 * time.Second,
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "livechat.db"
	}
	return filepath.Join(home, ".livechat", "livechat.db")
}

// Load reads the config file at path over the coded defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to the defaults when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// HTTPBase returns the REST base URL, derived from the websocket URL when
// not configured explicitly: ws://host:port/hub → http://host:port.
func (c *Config) HTTPBase() string {
	if c.Server.HTTPBase != "" {
		return strings.TrimRight(c.Server.HTTPBase, "/")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return "http://127.0.0.1:5062"
	}
	scheme := "http"
	if strings.HasPrefix(u.Scheme, "wss") {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}
