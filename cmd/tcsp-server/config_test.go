package main

import (
	"testing"
	"time"
)

func TestConfigValidate_OK(t *testing.T) {
	c := &appConfig{
		adaptor:    "can",
		canBitrate: 1000000,
		uartBaud:   115200,
		uartReadTO: 10 * time.Millisecond,
		logFormat:  "text",
		logLevel:   "info",
		fallbackDB: 0,
	}
	if err := c.validate(); err != nil {
		t.Fatalf("expected ok got %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"badAdaptor", func(c *appConfig) { c.adaptor = "x" }},
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
		{"badLevel", func(c *appConfig) { c.logLevel = "nope" }},
		{"badBitrate", func(c *appConfig) { c.canBitrate = 0 }},
		{"badBaud", func(c *appConfig) { c.uartBaud = 0 }},
		{"badReadTO", func(c *appConfig) { c.uartReadTO = 0 }},
		{"badFallbackDB", func(c *appConfig) { c.fallbackDB = -1 }},
	}
	for _, tc := range tests {
		base := &appConfig{
			adaptor:    "can",
			canBitrate: 1000000,
			uartBaud:   115200,
			uartReadTO: 10 * time.Millisecond,
			logFormat:  "text",
			logLevel:   "info",
			fallbackDB: 0,
		}
		tc.mod(base)
		if err := base.validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}
