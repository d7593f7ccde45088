package config

// Config represents the proxy configuration
type Config struct {
	Server struct {
		Address   string `yaml:"address"`
		UDPPort   int    `yaml:"udp_port"`
		Language  string `yaml:"language"`
		CodesFile string `yaml:"codes_file"`
	} `yaml:"server"`

	Logging struct {
		Level  string `yaml:"level"`
		File   string `yaml:"file"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	WebAdmin struct {
		Port    int  `yaml:"port"`
		Enabled bool `yaml:"enabled"`
	} `yaml:"web_admin"`

	Console struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"console"`
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	Load(filename string) (*Config, error)
	Validate(config *Config) error
}

// PhraseLookup maps a language tag and numeric status code to a full status text
type PhraseLookup interface {
	Phrase(lang string, code int) string
	HasLanguage(lang string) bool
}
