// Package config loads the service deployment configuration from YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath, when set, names the config file loaded by LoadDefault.
const EnvConfigPath = "SN_DEPLOYMENT_CONFIG"

// Config is the full deployment configuration.
type Config struct {
	// Remote KBase service endpoints.
	WorkspaceURL     string `yaml:"workspace-url"`
	ServiceWizardURL string `yaml:"service-wizard-url"`
	NMSURL           string `yaml:"nms-url"`
	NMSImageURL      string `yaml:"nms-image-url"`
	AuthURL          string `yaml:"auth-url"`

	// Public front-end origin and link bases.
	KBaseEndpoint  string `yaml:"kbase-endpoint"`
	ProfilePageURL string `yaml:"profile-page-url"`
	AssetsBaseURL  string `yaml:"assets-base-url"`
	AssetsVersion  string `yaml:"assets-version"`

	// Filesystem layout.
	Scratch        string `yaml:"scratch"`
	StaticFileRoot string `yaml:"static-file-root"`
	URLPrefix      string `yaml:"url-prefix"`

	// Server.
	ListenAddr string `yaml:"listen-addr"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration defaults targeting the production
// KBase environment.
func DefaultConfig() *Config {
	return &Config{
		WorkspaceURL:     "https://kbase.us/services/ws",
		ServiceWizardURL: "https://kbase.us/services/service_wizard",
		NMSURL:           "https://kbase.us/services/narrative_method_store/rpc",
		NMSImageURL:      "https://kbase.us/services/narrative_method_store/",
		AuthURL:          "https://kbase.us/services/auth",
		KBaseEndpoint:    "https://narrative.kbase.us",
		ProfilePageURL:   "https://narrative.kbase.us/#people/",
		AssetsBaseURL:    "https://kbase.us/static-narrative-assets",
		AssetsVersion:    "0.4.5",
		Scratch:          "/tmp/static_narrative",
		StaticFileRoot:   "/kb/static",
		URLPrefix:        "/n",
		ListenAddr:       ":5000",
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a YAML config from path over the defaults. A missing file
// yields the defaults; environment overrides apply last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// LoadDefault loads from $SN_DEPLOYMENT_CONFIG, or the defaults when unset.
func LoadDefault() (*Config, error) {
	return Load(os.Getenv(EnvConfigPath))
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.WorkspaceURL, "SN_WORKSPACE_URL")
	set(&c.ServiceWizardURL, "SN_SERVICE_WIZARD_URL")
	set(&c.NMSURL, "SN_NMS_URL")
	set(&c.NMSImageURL, "SN_NMS_IMAGE_URL")
	set(&c.AuthURL, "SN_AUTH_URL")
	set(&c.KBaseEndpoint, "SN_KBASE_ENDPOINT")
	set(&c.Scratch, "SN_SCRATCH")
	set(&c.StaticFileRoot, "SN_STATIC_FILE_ROOT")
	set(&c.URLPrefix, "SN_URL_PREFIX")
	set(&c.ListenAddr, "SN_LISTEN_ADDR")
	set(&c.Logging.Level, "SN_LOG_LEVEL")
}

// Validate checks that every endpoint and path the pipeline depends on is
// configured.
func (c *Config) Validate() error {
	var missing []string
	for _, check := range []struct {
		name  string
		value string
	}{
		{"workspace-url", c.WorkspaceURL},
		{"service-wizard-url", c.ServiceWizardURL},
		{"nms-url", c.NMSURL},
		{"auth-url", c.AuthURL},
		{"kbase-endpoint", c.KBaseEndpoint},
		{"scratch", c.Scratch},
		{"static-file-root", c.StaticFileRoot},
	} {
		if check.value == "" {
			missing = append(missing, check.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config keys: %s", strings.Join(missing, ", "))
	}
	return nil
}
