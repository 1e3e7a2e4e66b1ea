package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := &appConfig{
		adaptor:    "can",
		canBitrate: 1000000,
		uartBaud:   115200,
		uartReadTO: 50 * time.Millisecond,
		logFormat:  "text",
		logLevel:   "info",
	}

	os.Setenv("TCSP_CAN_BITRATE", "500000")
	os.Setenv("TCSP_MDNS_ENABLE", "true")
	os.Setenv("TCSP_UART_READ_TIMEOUT", "100ms")
	t.Cleanup(func() {
		os.Unsetenv("TCSP_CAN_BITRATE")
		os.Unsetenv("TCSP_MDNS_ENABLE")
		os.Unsetenv("TCSP_UART_READ_TIMEOUT")
	})
	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.canBitrate != 500000 {
		t.Fatalf("expected canBitrate override, got %d", base.canBitrate)
	}
	if !base.mdnsEnable {
		t.Fatalf("expected mdnsEnable true")
	}
	if base.uartReadTO != 100*time.Millisecond {
		t.Fatalf("expected uartReadTO 100ms got %v", base.uartReadTO)
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := &appConfig{canBitrate: 1000000}
	os.Setenv("TCSP_CAN_BITRATE", "500000")
	t.Cleanup(func() { os.Unsetenv("TCSP_CAN_BITRATE") })
	// Simulate user passed -can-bitrate flag (so env should be ignored)
	if err := applyEnvOverrides(base, map[string]struct{}{"can-bitrate": {}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.canBitrate != 1000000 {
		t.Fatalf("expected canBitrate unchanged, got %d", base.canBitrate)
	}
}

func TestApplyEnvOverrides_BadInt(t *testing.T) {
	base := &appConfig{fallbackDB: 0}
	os.Setenv("TCSP_FALLBACK_DB", "notint")
	t.Cleanup(func() { os.Unsetenv("TCSP_FALLBACK_DB") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad integer")
	}
}
