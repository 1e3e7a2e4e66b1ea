package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// appConfig holds every construction-time parameter needed to wire an
// adaptor, the application table, and the ambient services (metrics, mDNS,
// fallback side-channel).
type appConfig struct {
	adaptor string // "can" | "uart" | "channel"

	// Ty CAN adaptor.
	canSelfID      uint8
	canOBCID       uint8
	canPrimaryIf   string
	canSecondaryIf string
	canBitrate     int

	// Ty UART adaptor.
	uartDevice   string
	uartBaud     int
	uartReadTO   time.Duration
	uartPlatform uint8
	uartVerifyCRC bool

	logFormat   string
	logLevel    string
	metricsAddr string

	fallbackAddr string
	fallbackDB   int

	mdnsEnable bool
	mdnsName   string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}

	adaptor := flag.String("adaptor", "can", "Bus adaptor: can|uart|channel")

	canSelfID := flag.Uint("can-self-id", 0x2a, "Own 8-bit CAN node id")
	canOBCID := flag.Uint("can-obc-id", 0, "OBC peer's 8-bit CAN node id (parsed only; the CAN adaptor always uses the fixed OBC id 0)")
	canPrimaryIf := flag.String("can-primary-if", "can0", "Primary CAN interface")
	canSecondaryIf := flag.String("can-secondary-if", "can1", "Secondary CAN interface used during recovery probes")
	canBitrate := flag.Int("can-bitrate", 1000000, "CAN bus bitrate")

	uartDevice := flag.String("uart-device", "/dev/ttyUSB0", "UART device path")
	uartBaud := flag.Int("uart-baud", 115200, "UART baud rate")
	uartReadTO := flag.Duration("uart-read-timeout", 50*time.Millisecond, "UART read timeout")
	uartPlatform := flag.Uint("uart-platform-id", 1, "UART platform id placed in outgoing frames")
	uartVerifyCRC := flag.Bool("uart-verify-crc", false, "Verify the UART CRC-8 trailer on receive (off by default, matching the reference build)")

	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")

	fallbackAddr := flag.String("fallback-addr", "", "Redis address for the fallback side-channel; empty uses an in-process loopback")
	fallbackDB := flag.Int("fallback-db", 0, "Redis database index for the fallback side-channel")

	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default tcsp-server-<hostname>)")

	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Track which flags were explicitly set to give them precedence over env.
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.adaptor = *adaptor
	cfg.canSelfID = uint8(*canSelfID)
	cfg.canOBCID = uint8(*canOBCID)
	cfg.canPrimaryIf = *canPrimaryIf
	cfg.canSecondaryIf = *canSecondaryIf
	cfg.canBitrate = *canBitrate
	cfg.uartDevice = *uartDevice
	cfg.uartBaud = *uartBaud
	cfg.uartReadTO = *uartReadTO
	cfg.uartPlatform = uint8(*uartPlatform)
	cfg.uartVerifyCRC = *uartVerifyCRC
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.fallbackAddr = *fallbackAddr
	cfg.fallbackDB = *fallbackDB
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to open devices — only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.adaptor {
	case "can", "uart", "channel":
	default:
		return fmt.Errorf("invalid adaptor: %s", c.adaptor)
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.canBitrate <= 0 {
		return fmt.Errorf("can-bitrate must be > 0 (got %d)", c.canBitrate)
	}
	if c.uartBaud <= 0 {
		return fmt.Errorf("uart-baud must be > 0 (got %d)", c.uartBaud)
	}
	if c.uartReadTO <= 0 {
		return fmt.Errorf("uart-read-timeout must be > 0")
	}
	if c.fallbackDB < 0 {
		return fmt.Errorf("fallback-db must be >= 0")
	}
	return nil
}

// applyEnvOverrides maps TCSP_* environment variables to config fields
// unless a corresponding flag was explicitly set (flag wins over env).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["adaptor"]; !ok {
		if v, ok := get("TCSP_ADAPTOR"); ok && v != "" {
			c.adaptor = v
		}
	}
	if _, ok := set["can-self-id"]; !ok {
		if v, ok := get("TCSP_CAN_SELF_ID"); ok && v != "" {
			if n, err := strconv.ParseUint(v, 10, 8); err == nil {
				c.canSelfID = uint8(n)
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid TCSP_CAN_SELF_ID: %w", err)
			}
		}
	}
	if _, ok := set["can-obc-id"]; !ok {
		if v, ok := get("TCSP_CAN_OBC_ID"); ok && v != "" {
			if n, err := strconv.ParseUint(v, 10, 8); err == nil {
				c.canOBCID = uint8(n)
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid TCSP_CAN_OBC_ID: %w", err)
			}
		}
	}
	if _, ok := set["can-primary-if"]; !ok {
		if v, ok := get("TCSP_CAN_PRIMARY_IF"); ok && v != "" {
			c.canPrimaryIf = v
		}
	}
	if _, ok := set["can-secondary-if"]; !ok {
		if v, ok := get("TCSP_CAN_SECONDARY_IF"); ok && v != "" {
			c.canSecondaryIf = v
		}
	}
	if _, ok := set["can-bitrate"]; !ok {
		if v, ok := get("TCSP_CAN_BITRATE"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.canBitrate = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TCSP_CAN_BITRATE: %w", err)
			}
		}
	}
	if _, ok := set["uart-device"]; !ok {
		if v, ok := get("TCSP_UART_DEVICE"); ok && v != "" {
			c.uartDevice = v
		}
	}
	if _, ok := set["uart-baud"]; !ok {
		if v, ok := get("TCSP_UART_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.uartBaud = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TCSP_UART_BAUD: %w", err)
			}
		}
	}
	if _, ok := set["uart-read-timeout"]; !ok {
		if v, ok := get("TCSP_UART_READ_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.uartReadTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TCSP_UART_READ_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["uart-platform-id"]; !ok {
		if v, ok := get("TCSP_UART_PLATFORM_ID"); ok && v != "" {
			if n, err := strconv.ParseUint(v, 10, 8); err == nil {
				c.uartPlatform = uint8(n)
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid TCSP_UART_PLATFORM_ID: %w", err)
			}
		}
	}
	if _, ok := set["uart-verify-crc"]; !ok {
		if v, ok := get("TCSP_UART_VERIFY_CRC"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.uartVerifyCRC = true
			case "0", "false", "no", "off":
				c.uartVerifyCRC = false
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("TCSP_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("TCSP_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("TCSP_METRICS_ADDR"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["fallback-addr"]; !ok {
		if v, ok := get("TCSP_FALLBACK_ADDR"); ok {
			c.fallbackAddr = v
		}
	}
	if _, ok := set["fallback-db"]; !ok {
		if v, ok := get("TCSP_FALLBACK_DB"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.fallbackDB = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid TCSP_FALLBACK_DB: %w", err)
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("TCSP_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("TCSP_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	return firstErr
}
