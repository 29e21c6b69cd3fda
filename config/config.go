// Package config holds the process-wide configuration. It is constructed once
// at startup and passed by reference to the components that need it.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Debug turns on debug logging across the whole process.
var Debug = false

type ContextKey string

const LoggerCtxKey ContextKey = "logger"

// ProxyConfig defines an optional outbound HTTP proxy. The proxy is only used
// when both host and port are set.
type ProxyConfig struct {
	Host     string `yaml:"host" env:"PROXY_HOST"`
	Port     string `yaml:"port" env:"PROXY_PORT"`
	User     string `yaml:"user" env:"PROXY_USER"`
	Password string `yaml:"password" env:"PROXY_PASS"`
}

func (p *ProxyConfig) Enabled() bool {
	return p.Host != "" && p.Port != ""
}

func (p *ProxyConfig) HasAuth() bool {
	return p.User != "" && p.Password != ""
}

// ServerURL returns the proxy in the form chrome expects for --proxy-server.
func (p *ProxyConfig) ServerURL() string {
	return fmt.Sprintf("http://%s:%s", p.Host, p.Port)
}

// Config defines the overall runner configuration. Values are taken from a
// config yml file or environment variables or both.
type Config struct {
	Port       int         `yaml:"port" env:"PORT" env-default:"3000"`
	ChromePath string      `yaml:"chrome_path" env:"CHROME_PATH"`
	Proxy      ProxyConfig `yaml:"proxy"`
	RulesFile  string      `yaml:"rules_file" env:"RULES_FILE"`

	NavTimeoutMS     int    `yaml:"nav_timeout_ms" env:"NAV_TIMEOUT_MS" env-default:"60000"`
	NavWait          string `yaml:"nav_wait" env:"NAV_WAIT" env-default:"load"` // "load" or "ready"
	SettleDelayMS    int    `yaml:"settle_delay_ms" env:"SETTLE_DELAY_MS" env-default:"2000"`
	ExtractSettleMS  int    `yaml:"extract_settle_ms" env:"EXTRACT_SETTLE_MS" env-default:"1500"`
	ExtractLimit     int    `yaml:"extract_limit" env:"EXTRACT_LIMIT" env-default:"20"`
	ScrollIterations int    `yaml:"scroll_iterations" env:"SCROLL_ITERATIONS" env-default:"20"`
	ScrollPauseMS    int    `yaml:"scroll_pause_ms" env:"SCROLL_PAUSE_MS" env-default:"700"`
	// PlanBudgetMS bounds the wall-clock time of one whole plan. 0 disables
	// the budget.
	PlanBudgetMS int `yaml:"plan_budget_ms" env:"PLAN_BUDGET_MS" env-default:"300000"`
}

// New reads the configuration from the given yml file plus the environment,
// or from the environment alone when no file is given.
func New(configPath string) (*Config, error) {
	var config Config
	if configPath != "" {
		if err := cleanenv.ReadConfig(configPath, &config); err != nil {
			return nil, err
		}
		return &config, nil
	}
	if err := cleanenv.ReadEnv(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutMS) * time.Millisecond
}

func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMS) * time.Millisecond
}

func (c *Config) ScrollPause() time.Duration {
	return time.Duration(c.ScrollPauseMS) * time.Millisecond
}

func (c *Config) PlanBudget() time.Duration {
	return time.Duration(c.PlanBudgetMS) * time.Millisecond
}

func GetLogLevel() slog.Level {
	if Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
