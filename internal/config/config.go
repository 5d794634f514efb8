// Package config loads the settings of the ddnspod command from a TOML or
// YAML file, with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. DDNS_SECRET_KEY.
const EnvPrefix = "DDNS"

const (
	ProviderDNSPod     = "dnspod"
	ProviderCloudflare = "cloudflare"
)

const (
	DiscoveryJSON      = "json"
	DiscoveryText      = "text"
	DiscoveryDNS       = "dns"
	DiscoveryInterface = "interface"
	DiscoveryStatic    = "static"
)

// Config is the full set of settings.
type Config struct {
	Provider  string `toml:"provider" yaml:"provider" envconfig:"PROVIDER"`
	SecretID  string `toml:"secret_id" yaml:"secret_id" envconfig:"SECRET_ID"`
	SecretKey string `toml:"secret_key" yaml:"secret_key" envconfig:"SECRET_KEY"`

	Domain     string `toml:"domain" yaml:"domain" envconfig:"DOMAIN"`
	Subdomain  string `toml:"subdomain" yaml:"subdomain" envconfig:"SUBDOMAIN"`
	RecordType string `toml:"record_type" yaml:"record_type" envconfig:"RECORD_TYPE"`

	Interval      Duration `toml:"interval" yaml:"interval" envconfig:"INTERVAL"`
	RetryAttempts int      `toml:"retry_attempts" yaml:"retry_attempts" envconfig:"RETRY_ATTEMPTS"`
	RetryBackoff  Duration `toml:"retry_backoff" yaml:"retry_backoff" envconfig:"RETRY_BACKOFF"`
	Timeout       Duration `toml:"timeout" yaml:"timeout" envconfig:"TIMEOUT"`

	Discovery string `toml:"discovery" yaml:"discovery" envconfig:"DISCOVERY"`

	// DiscoveryURLs are the services queried by the json and text backends.
	// Empty selects the default services of the backend.
	DiscoveryURLs  []string `toml:"discovery_urls" yaml:"discovery_urls" envconfig:"DISCOVERY_URLS"`
	DiscoveryField string   `toml:"discovery_field" yaml:"discovery_field" envconfig:"DISCOVERY_FIELD"`
	DNSServer      string   `toml:"dns_server" yaml:"dns_server" envconfig:"DNS_SERVER"`
	Interface      string   `toml:"interface" yaml:"interface" envconfig:"INTERFACE"`
	StaticAddress  string   `toml:"static_address" yaml:"static_address" envconfig:"STATIC_ADDRESS"`
}

// Default returns the settings used for anything a file or the environment leaves out.
func Default() *Config {
	return &Config{
		Provider:       ProviderDNSPod,
		Interval:       Duration{5 * time.Second},
		RetryAttempts:  10,
		RetryBackoff:   Duration{10 * time.Second},
		Timeout:        Duration{15 * time.Second},
		Discovery:      DiscoveryJSON,
		DiscoveryField: "query",
	}
}

// Load reads path, if not empty, over the defaults and then applies environment overrides.
// Files that hold a secret key must not be readable by group or others.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		if err := c.readFile(path); err != nil {
			return nil, err
		}
		if c.SecretKey != "" {
			if err := VerifyPermissions(path); err != nil {
				return nil, err
			}
		}
	}
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}
	return c, nil
}

func (c *Config) readFile(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.DecodeFile(path, c)
		if err != nil {
			return fmt.Errorf("error parsing %q: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			sort.Strings(keys)
			return fmt.Errorf("error parsing %q: unknown keys %s", path, strings.Join(keys, ", "))
		}
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("error reading config: %w", err)
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("error parsing %q: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q; use .toml, .yaml or .yml", ext)
	}
	return nil
}

// Validate reports the first setting that prevents startup.
func (c *Config) Validate() error {
	if c.Domain == "" {
		return errors.New("domain cannot be empty")
	}
	if !strings.Contains(c.Domain, ".") {
		return errors.New("domain must have at least one dot")
	}
	if c.Subdomain == "" {
		return errors.New("subdomain cannot be empty; use \"@\" for the apex")
	}
	switch c.Provider {
	case ProviderDNSPod:
		if c.SecretID == "" {
			return errors.New("secret_id is required for the dnspod provider")
		}
	case ProviderCloudflare:
	default:
		return fmt.Errorf("unknown provider %q; expected %q or %q", c.Provider, ProviderDNSPod, ProviderCloudflare)
	}
	if c.SecretKey == "" {
		return errors.New("secret_key cannot be empty")
	}
	switch c.RecordType {
	case "", "A", "AAAA":
	default:
		return fmt.Errorf("record_type must be \"A\" or \"AAAA\"; got %q", c.RecordType)
	}
	switch c.Discovery {
	case DiscoveryJSON, DiscoveryText, DiscoveryDNS, DiscoveryInterface:
	case DiscoveryStatic:
		if c.StaticAddress == "" {
			return errors.New("discovery \"static\" needs static_address")
		}
	default:
		return fmt.Errorf("unknown discovery %q", c.Discovery)
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry_attempts must be positive; got %d", c.RetryAttempts)
	}
	if c.RetryBackoff.Duration < 0 || c.Interval.Duration < 0 || c.Timeout.Duration < 0 {
		return errors.New("durations cannot be negative")
	}
	return nil
}

// VerifyPermissions rejects secret-bearing files that group or others can access.
// 0600 and the stricter 0400 are accepted; the file might be provided by secrets managing software as readonly.
func VerifyPermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking config file permissions: %w", err)
	}

	perms := info.Mode().Perm()
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": expected file permissions \"-rw-------\"; found \"%s\"", path, fs.FileMode(perms))
	}
	return nil
}

// Duration is a time.Duration written as a string such as "5s" or "1m30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
