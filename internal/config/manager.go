package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"braces.dev/errtrace"
	"gopkg.in/yaml.v3"
)

// Manager implements the ConfigManager interface
type Manager struct {
	codes *ReasonTable
}

// NewManager creates a new configuration manager validating languages against the embedded reason table
func NewManager() *Manager {
	return &Manager{codes: DefaultReasonTable()}
}

// Load reads and parses the configuration file.
// Keys missing from the file keep their default values.
func (m *Manager) Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("failed to read config file %s: %w", filename, err))
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("failed to parse config file %s: %w", filename, err))
	}

	if config.Server.CodesFile != "" {
		codes, err := LoadReasonTable(config.Server.CodesFile)
		if err != nil {
			return nil, errtrace.Wrap(err)
		}
		m.codes = codes
	}

	if err := m.Validate(config); err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("config validation failed: %w", err))
	}

	return config, nil
}

// Codes returns the reason table the last loaded configuration refers to
func (m *Manager) Codes() *ReasonTable {
	return m.codes
}

// Validate checks if the configuration values are valid
func (m *Manager) Validate(config *Config) error {
	// 0 is allowed for testing - means "use any available port"
	if config.Server.UDPPort < 0 || config.Server.UDPPort > 65535 {
		return errtrace.Errorf("invalid UDP port: %d (must be 0-65535)", config.Server.UDPPort)
	}

	if config.Server.Address != "" && !isIPv4(config.Server.Address) {
		return errtrace.Errorf("invalid server address: %s (must be an IPv4 address)", config.Server.Address)
	}

	if !m.codes.HasLanguage(config.Server.Language) {
		return errtrace.Wrap(fmt.Errorf("%w: %q", ErrUnknownLanguage, config.Server.Language))
	}

	if config.WebAdmin.Enabled {
		if config.WebAdmin.Port < 0 || config.WebAdmin.Port > 65535 {
			return errtrace.Errorf("invalid web admin port: %d (must be 0-65535)", config.WebAdmin.Port)
		}
		if config.WebAdmin.Port > 0 && config.WebAdmin.Port == config.Server.UDPPort {
			return errtrace.Errorf("web admin port %d conflicts with SIP server port", config.WebAdmin.Port)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return errtrace.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	switch strings.ToLower(config.Logging.Format) {
	case "", "console", "dev", "json":
	default:
		return errtrace.Errorf("invalid log format: %s (must be console, dev, or json)", config.Logging.Format)
	}

	return nil
}

// GetDefaultConfig returns a configuration with default values
func GetDefaultConfig() *Config {
	config := &Config{}
	config.Server.UDPPort = 5060
	config.Server.Language = "en"
	config.Logging.Level = "info"
	config.Logging.File = "sip.log"
	config.Logging.Format = "console"
	config.WebAdmin.Port = 8080
	config.Console.Enabled = true
	return config
}

// TopVia returns the Via line the proxy pushes on forwarded requests
func TopVia(ip string, port int) string {
	return fmt.Sprintf("Via: SIP/2.0/UDP %s:%d", ip, port)
}

// RecordRoute returns the Record-Route line the proxy inserts on forwarded requests
func RecordRoute(ip string, port int) string {
	return fmt.Sprintf("Record-Route: <sip:%s:%d;lr>", ip, port)
}

func isIPv4(address string) bool {
	ip := net.ParseIP(address)
	return ip != nil && ip.To4() != nil
}

// ErrUnknownLanguage is returned when the configured language has no reason table
var ErrUnknownLanguage = errors.New("unknown reason phrase language")
