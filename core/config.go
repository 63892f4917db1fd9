package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

type EnvironmentURLs struct {
	AuthorizeURL string
	TokenURL     string
	APIURL       string
}

var environmentURLs = map[Environment]EnvironmentURLs{
	EnvironmentSandbox: {
		AuthorizeURL: "https://oauth.sandbox.bunq.com/auth",
		TokenURL:     "https://api-oauth.sandbox.bunq.com/v1/token",
		APIURL:       "https://public-api.sandbox.bunq.com",
	},
	EnvironmentProduction: {
		AuthorizeURL: "https://oauth.bunq.com/auth",
		TokenURL:     "https://api.oauth.bunq.com/v1/token",
		APIURL:       "https://api.bunq.com",
	},
}

func URLsFor(env Environment) (EnvironmentURLs, bool) {
	urls, ok := environmentURLs[Environment(strings.ToLower(strings.TrimSpace(string(env))))]
	return urls, ok
}

const (
	defaultRequestTimeout    = 8 * time.Second
	defaultUpdateInterval    = 55 * time.Second
	defaultDeviceDescription = "go-bunq"
	defaultUserAgent         = "go-bunq"
)

type Config struct {
	Environment       Environment   `koanf:"environment" mapstructure:"environment"`
	APIURL            string        `koanf:"api_url" mapstructure:"api_url"`
	Secret            string        `koanf:"secret" mapstructure:"secret"`
	DeviceDescription string        `koanf:"device_description" mapstructure:"device_description"`
	PermittedIPs      []string      `koanf:"permitted_ips" mapstructure:"permitted_ips"`
	RequestTimeout    time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
	UserAgent         string        `koanf:"user_agent" mapstructure:"user_agent"`
	UpdateInterval    time.Duration `koanf:"update_interval" mapstructure:"update_interval"`
}

func DefaultConfig() Config {
	return Config{
		Environment:       EnvironmentProduction,
		DeviceDescription: defaultDeviceDescription,
		RequestTimeout:    defaultRequestTimeout,
		UserAgent:         defaultUserAgent,
		UpdateInterval:    defaultUpdateInterval,
	}
}

func (c Config) Validate() error {
	env := Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	if _, ok := environmentURLs[env]; !ok && strings.TrimSpace(c.APIURL) == "" {
		return fmt.Errorf("core: unknown environment %q", c.Environment)
	}
	if raw := strings.TrimSpace(c.APIURL); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("core: api_url %q is invalid", raw)
		}
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("core: request_timeout must not be negative")
	}
	if c.UpdateInterval < 0 {
		return fmt.Errorf("core: update_interval must not be negative")
	}
	return nil
}

// BaseURL resolves the API root, preferring the explicit api_url override.
func (c Config) BaseURL() string {
	if raw := strings.TrimSpace(c.APIURL); raw != "" {
		return strings.TrimRight(raw, "/")
	}
	urls, _ := URLsFor(c.Environment)
	return urls.APIURL
}

func (c Config) normalized() Config {
	out := c
	out.Environment = Environment(strings.ToLower(strings.TrimSpace(string(c.Environment))))
	out.APIURL = strings.TrimSpace(c.APIURL)
	out.Secret = strings.TrimSpace(c.Secret)
	out.DeviceDescription = strings.TrimSpace(c.DeviceDescription)
	if out.DeviceDescription == "" {
		out.DeviceDescription = defaultDeviceDescription
	}
	out.UserAgent = strings.TrimSpace(c.UserAgent)
	if out.UserAgent == "" {
		out.UserAgent = defaultUserAgent
	}
	if out.RequestTimeout <= 0 {
		out.RequestTimeout = defaultRequestTimeout
	}
	if out.UpdateInterval <= 0 {
		out.UpdateInterval = defaultUpdateInterval
	}
	out.PermittedIPs = NormalizePermittedIPs(c.PermittedIPs)
	return out
}

// ParsePermittedIPs splits a comma separated allowlist such as
// "1.2.3.4, 5.6.7.8" into its entries.
func ParsePermittedIPs(raw string) []string {
	return NormalizePermittedIPs(strings.Split(raw, ","))
}

// NormalizePermittedIPs trims entries, drops empties and duplicates, and also
// splits entries that still carry commas.
func NormalizePermittedIPs(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.ReplaceAll(strings.TrimSpace(part), " ", "")
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
