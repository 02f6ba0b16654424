package config

import (
	"fmt"
	"time"
)

const (
	// DefaultDelay is used when delay is missing or unparseable.
	DefaultDelay = 300 * time.Second
	// MinDelay bounds how often the remote API can be called.
	MinDelay = 30 * time.Second

	// PlaceholderToken is the api_token value shipped in example configs.
	PlaceholderToken = "api_token_here"
)

// Detection strategies for the public address.
const (
	DetectionTrace = "trace"
	DetectionDNS   = "dns"
)

// Config is the normalized configuration.
type Config struct {
	IPv4    bool
	IPv6    bool
	Delay   time.Duration
	Targets []Target

	Detection     string
	GeoIPDB       string
	MetricsListen string
	LogLevel      string
	LogJSON       bool
}

// Target identifies one remote firewall rule to keep in sync.
type Target struct {
	ZoneID         string `hcl:"zone_id" json:"zone_id" yaml:"zone_id"`
	RuleID         string `hcl:"rule_id" json:"rule_id" yaml:"rule_id"`
	Authentication Auth   `hcl:"authentication,block" json:"authentication" yaml:"authentication"`
}

// String identifies the target in log output.
func (t Target) String() string {
	return fmt.Sprintf("%s/%s", t.ZoneID, t.RuleID)
}

// Auth holds either an API token or a global API key pair.
type Auth struct {
	APIToken string  `hcl:"api_token,optional" json:"api_token" yaml:"api_token"`
	APIKey   *APIKey `hcl:"api_key,block" json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// APIKey is the legacy email + global key credential.
type APIKey struct {
	Key          string `hcl:"api_key" json:"api_key" yaml:"api_key"`
	AccountEmail string `hcl:"account_email" json:"account_email" yaml:"account_email"`
}

// UsesToken reports whether the bearer token takes precedence over the key
// pair. The shipped placeholder value counts as unset.
func (a Auth) UsesToken() bool {
	return a.APIToken != "" && a.APIToken != PlaceholderToken
}

// Email returns the account email of the key pair, or "".
func (a Auth) Email() string {
	if a.APIKey == nil {
		return ""
	}
	return a.APIKey.AccountEmail
}

// Key returns the global API key of the key pair, or "".
func (a Auth) Key() string {
	if a.APIKey == nil {
		return ""
	}
	return a.APIKey.Key
}

// Families describes the enabled address families for log output.
func (c *Config) Families() string {
	switch {
	case c.IPv4 && c.IPv6:
		return "IPv4 (A) & IPv6 (AAAA)"
	case c.IPv4:
		return "IPv4 (A)"
	case c.IPv6:
		return "IPv6 (AAAA)"
	}
	return "no"
}
