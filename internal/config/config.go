// Package config assembles the settings of the ddnscf command from a YAML file,
// the environment, and a Cloudflare key file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.yaml.in/yaml/v3"
)

// Config holds everything the updater needs for the lifetime of the process.
type Config struct {
	// Required.
	Token  string `yaml:"token" envconfig:"AUTH_BEARER"`
	ZoneID string `yaml:"zone_id" envconfig:"ZONE_ID"`
	Domain string `yaml:"domain" envconfig:"DOMAIN"`

	RouterURL       string        `yaml:"router_url" envconfig:"DDNS_ROUTER_URL"`
	APIURL          string        `yaml:"api_url" envconfig:"DDNS_API_URL"`
	Interval        time.Duration `yaml:"interval" envconfig:"DDNS_INTERVAL"`
	KeyFile         string        `yaml:"key_file" envconfig:"DDNS_KEY_FILE"`
	MetricsTextfile string        `yaml:"metrics_textfile" envconfig:"DDNS_METRICS_TEXTFILE"`
	Verbose         bool          `yaml:"verbose" envconfig:"DDNS_VERBOSE"`
}

// Load reads the YAML file at path, if path is not empty, and then applies environment overrides.
// ${VAR} references in string values of the file are expanded.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		cfg.expandEnv()
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	return &cfg, nil
}

func (c *Config) expandEnv() {
	for _, s := range []*string{&c.Token, &c.ZoneID, &c.Domain, &c.RouterURL, &c.APIURL, &c.KeyFile, &c.MetricsTextfile} {
		*s = os.ExpandEnv(*s)
	}
}

// ResolveToken fills Token from KeyFile when no token was given directly.
// A key file that does not exist is not an error; Validate reports the missing token.
func (c *Config) ResolveToken() error {
	if c.Token != "" || c.KeyFile == "" {
		return nil
	}
	if _, err := os.Stat(c.KeyFile); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := VerifyPermissions(c.KeyFile); err != nil {
		return err
	}
	key, err := ReadKey(c.KeyFile)
	if err != nil {
		return err
	}
	c.Token = key
	return nil
}

// Validate reports every missing or invalid required value.
func (c *Config) Validate() error {
	var errs []error
	if c.Token == "" {
		errs = append(errs, errors.New("API token is required (AUTH_BEARER, key file, or config file)"))
	}
	if c.ZoneID == "" {
		errs = append(errs, errors.New("zone ID is required (ZONE_ID)"))
	}
	switch {
	case c.Domain == "":
		errs = append(errs, errors.New("domain is required (DOMAIN)"))
	case !strings.Contains(c.Domain, "."):
		errs = append(errs, errors.New("domain must have at least one dot"))
	}
	if c.Interval < 0 {
		errs = append(errs, fmt.Errorf("interval cannot be negative: %s", c.Interval))
	}
	return errors.Join(errs...)
}

// String formats the config for logs without revealing the token.
func (c Config) String() string {
	token := ""
	if c.Token != "" {
		token = "<redacted>"
	}
	return fmt.Sprintf("{Token:%s ZoneID:%s Domain:%s RouterURL:%s APIURL:%s Interval:%s KeyFile:%s MetricsTextfile:%s Verbose:%t}",
		token, c.ZoneID, c.Domain, c.RouterURL, c.APIURL, c.Interval, c.KeyFile, c.MetricsTextfile, c.Verbose)
}
