package sessgate

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig is the TOML shape accepted by LoadConfig. All fields are
// optional except base_url.
//
//	base_url = "https://quotes.example.com"
//	proxy_prefix = "/api/"
//	token_path = "/api/auth/csrf-token"
//	refresh_path = "/api/auth/refresh"
//	timeout = "30s"
//	strict_tokens = false
type FileConfig struct {
	BaseURL      string `toml:"base_url"`
	ProxyPrefix  string `toml:"proxy_prefix"`
	TokenPath    string `toml:"token_path"`
	RefreshPath  string `toml:"refresh_path"`
	Timeout      string `toml:"timeout"`
	StrictTokens bool   `toml:"strict_tokens"`
}

// LoadConfig reads a TOML config file and returns the base URL plus the
// options it implies, ready to hand to New.
func LoadConfig(path string) (string, []Option, error) {
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return "", nil, fmt.Errorf("sessgate: reading config %s: %w", path, err)
	}
	options, err := cfg.Options()
	if err != nil {
		return "", nil, err
	}
	return cfg.BaseURL, options, nil
}

// Options converts the file config into functional options.
func (cfg FileConfig) Options() ([]Option, error) {
	var options []Option

	if cfg.ProxyPrefix != "" {
		options = append(options, WithProxyPrefix(cfg.ProxyPrefix))
	}
	if cfg.TokenPath != "" {
		options = append(options, WithTokenEndpoint(cfg.TokenPath))
	}
	if cfg.RefreshPath != "" {
		options = append(options, WithRefreshEndpoint(cfg.RefreshPath))
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("sessgate: invalid timeout %q: %w", cfg.Timeout, err)
		}
		options = append(options, WithTimeout(d))
	}
	if cfg.StrictTokens {
		options = append(options, WithStrictTokens())
	}

	return options, nil
}
