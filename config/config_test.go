package config

import (
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 3000 {
		t.Errorf("default port = %d, want 3000", cfg.Port)
	}
	if cfg.ExtractLimit != 20 {
		t.Errorf("default extract limit = %d, want 20", cfg.ExtractLimit)
	}
	if cfg.NavTimeout() != 60*time.Second {
		t.Errorf("default nav timeout = %v, want 60s", cfg.NavTimeout())
	}
	if cfg.SettleDelay() != 2*time.Second {
		t.Errorf("default settle delay = %v, want 2s", cfg.SettleDelay())
	}
	if cfg.ScrollIterations != 20 {
		t.Errorf("default scroll iterations = %d, want 20", cfg.ScrollIterations)
	}
	if cfg.Proxy.Enabled() {
		t.Error("proxy must be disabled without host and port")
	}
}

func TestNewFromFile(t *testing.T) {
	// cleanenv layers env on top of the file; here only the file is set
	cfg, err := New("testdata/config.yml")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080 from file", cfg.Port)
	}
	if !cfg.Proxy.Enabled() {
		t.Error("proxy must be enabled with host and port set")
	}
	if got := cfg.Proxy.ServerURL(); got != "http://gate.proxy.example:3128" {
		t.Errorf("proxy server url = %q", got)
	}
	if !cfg.Proxy.HasAuth() {
		t.Error("proxy auth must be detected")
	}
}

func TestProxyConfig(t *testing.T) {
	p := ProxyConfig{Host: "10.0.0.1", Port: "8080"}
	if !p.Enabled() {
		t.Error("host+port must enable the proxy")
	}
	if p.HasAuth() {
		t.Error("no credentials, no auth")
	}
	if got := p.ServerURL(); got != "http://10.0.0.1:8080" {
		t.Errorf("ServerURL() = %q", got)
	}
	if (&ProxyConfig{Host: "10.0.0.1"}).Enabled() {
		t.Error("host alone must not enable the proxy")
	}
}
