package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the runtime configuration: where definitions live, where the
// archive goes, and how fetching behaves. Everything here can also be set
// per invocation with CLI flags, which win over the profile.
type Config struct {
	Definitions string `yaml:"definitions"`
	Archive     string `yaml:"archive"`
	Workers     int    `yaml:"workers"`
	Debug       bool   `yaml:"debug"`

	DefaultGroup string `yaml:"default_group"`
	CSSFile      string `yaml:"css_file"`

	UserAgent        string `yaml:"user_agent"`
	CABundle         string `yaml:"ca_bundle"`
	CloudflareBypass bool   `yaml:"cloudflare_bypass"`
}

type Options struct {
	IgnoreConfig bool
	Debug        bool

	Definitions  string
	Archive      string
	Workers      int
	DefaultGroup string
	CSSFile      string

	UserAgent        string
	CABundle         string
	CloudflareBypass bool
}

func DefaultConfig() *Config {
	return &Config{
		Definitions:  "strips.yaml",
		Archive:      "",
		Workers:      4,
		Debug:        false,
		DefaultGroup: "",
		CSSFile:      "dailystrips-style.css",
		UserAgent:    "",
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

// LoadMerged layers defaults, the active profile (unless ignored), and
// the CLI flags, in that order.
func LoadMerged(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	activePath, err := ActiveProfilePath()
	if err == ErrNoProfile || activePath == "" {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(default config in memory)\nRun `stripd config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, activePath, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Definitions != "" {
		c.Definitions = o.Definitions
	}
	if o.Archive != "" {
		c.Archive = o.Archive
	}
	if o.Workers != 0 {
		c.Workers = o.Workers
	}
	if o.Debug {
		c.Debug = true
	}
	if o.DefaultGroup != "" {
		c.DefaultGroup = o.DefaultGroup
	}
	if o.CSSFile != "" {
		c.CSSFile = o.CSSFile
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
	if o.CABundle != "" {
		c.CABundle = o.CABundle
	}
	if o.CloudflareBypass {
		c.CloudflareBypass = true
	}
}

func normalizeDefaults(c *Config) {
	if c.Definitions == "" {
		c.Definitions = "strips.yaml"
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
}

func (c *Config) Print() {
	fmt.Printf(" -definitions: %s\n", c.Definitions)
	if c.Archive != "" {
		fmt.Printf(" -archive: %s\n", c.Archive)
	}
	fmt.Printf(" -workers: %d\n", c.Workers)
	if c.Debug {
		fmt.Printf(" -debug: %t\n", c.Debug)
	}
	if c.DefaultGroup != "" {
		fmt.Printf(" -default_group: %s\n", c.DefaultGroup)
	}
	if c.CSSFile != "" {
		fmt.Printf(" -css_file: %s\n", c.CSSFile)
	}
	if c.UserAgent != "" {
		fmt.Printf(" -user_agent: %s\n", c.UserAgent)
	}
	if c.CABundle != "" {
		fmt.Printf(" -ca_bundle: %s\n", c.CABundle)
	}
	if c.CloudflareBypass {
		fmt.Printf(" -cloudflare_bypass: %t\n", c.CloudflareBypass)
	}
}
