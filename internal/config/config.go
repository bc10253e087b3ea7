// Package config loads and validates the YAML configuration: global
// settings plus one server block per network.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"gopkg.in/yaml.v3"
)

// Config holds the full configuration.
type Config struct {
	Login   LoginConfig              `yaml:"login"`
	DataDir string                   `yaml:"data_dir"`
	Global  GlobalConfig             `yaml:"global"`
	Servers map[string]*ServerConfig `yaml:"servers" validate:"required,min=1,dive,required"`
}

// LoginConfig is the administrative login; the shipped default password
// must be changed before the service will start.
type LoginConfig struct {
	User     string `yaml:"user"`
	Password string `yaml:"password" validate:"required"`
}

// GlobalConfig configures the network-wide announcement fanout.
type GlobalConfig struct {
	Format string `yaml:"format"`
}

// ProxyConfig routes one network's connection through a proxy.
type ProxyConfig struct {
	Type     string `yaml:"type" validate:"required,oneof=socks4 socks5 http"`
	Address  string `yaml:"address" validate:"required"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ServerConfig is one per-network server block. Which keys are required
// beyond the static ones is declared by the protocol dialect and checked
// with CheckRequired.
type ServerConfig struct {
	Protocol    string       `yaml:"protocol" validate:"required"`
	IP          string       `yaml:"ip"`
	Port        int          `yaml:"port" validate:"gt=0,lt=65535"`
	SendPass    string       `yaml:"sendpass"`
	RecvPass    string       `yaml:"recvpass"`
	Hostname    string       `yaml:"hostname"`
	SID         string       `yaml:"sid"`
	Netname     string       `yaml:"netname"`
	Encoding    string       `yaml:"encoding"`
	SSL         bool         `yaml:"ssl"`
	Autoconnect float64      `yaml:"autoconnect"`
	Proxy       *ProxyConfig `yaml:"proxy"`
}

// Load reads and parses a YAML configuration file and applies static
// validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Addr returns the uplink's dial address.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.IP, s.Port)
}

// CheckRequired verifies the dialect-declared required keys are present in
// this server block.
func (s *ServerConfig) CheckRequired(network string, keys []string) error {
	for _, key := range keys {
		present := false
		switch key {
		case "ip":
			present = s.IP != ""
		case "port":
			present = s.Port != 0
		case "sendpass":
			present = s.SendPass != ""
		case "recvpass":
			present = s.RecvPass != ""
		case "hostname":
			present = s.Hostname != ""
		case "sid":
			present = s.SID != ""
		case "netname":
			present = s.Netname != ""
		default:
			return fmt.Errorf("unsupported option %q required by the protocol of network %s", key, network)
		}
		if !present {
			return fmt.Errorf("missing option %q in server block for network %s", key, network)
		}
	}
	return nil
}

// WireEncoding resolves the configured encoding name to a transform; empty
// means UTF-8 passthrough.
func (s *ServerConfig) WireEncoding() (encoding.Encoding, error) {
	if s.Encoding == "" {
		return nil, nil
	}
	enc, err := ianaindex.IANA.Encoding(s.Encoding)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", s.Encoding)
	}
	return enc, nil
}
