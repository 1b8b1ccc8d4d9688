package common

import (
	"strings"
	"testing"
	"time"
)

func validServerConfig() ServerConfig {
	return ServerConfig{
		DataDir:          "./docdb",
		CacheTimeMinutes: 1,
		FlushTimeMinutes: 5,
		Compression:      "none",
		Transport:        ServerTransportConfig{Endpoint: "0.0.0.0:8009"},
	}
}

func TestServerConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *ServerConfig)
		valid  bool
	}{
		{"Defaults", func(c *ServerConfig) {}, true},
		{"EmptyDataDir", func(c *ServerConfig) { c.DataDir = "" }, false},
		{"ZeroCacheTime", func(c *ServerConfig) { c.CacheTimeMinutes = 0 }, false},
		{"NegativeFlushTime", func(c *ServerConfig) { c.FlushTimeMinutes = -1 }, false},
		{"EmptyEndpoint", func(c *ServerConfig) { c.Transport.Endpoint = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validServerConfig()
			tt.modify(&c)
			err := c.Validate()
			if tt.valid && err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}

func TestServerConfigIntervals(t *testing.T) {
	c := validServerConfig()
	if c.CacheTime() != time.Minute {
		t.Errorf("expected cache time of one minute, got %v", c.CacheTime())
	}
	if c.FlushTime() != 5*time.Minute {
		t.Errorf("expected flush time of five minutes, got %v", c.FlushTime())
	}
	if !strings.Contains(c.String(), "./docdb") {
		t.Errorf("expected data dir in string representation")
	}
}
