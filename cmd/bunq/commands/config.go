package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-bunq/core"
)

const apiKeyEnv = "BUNQ_API_KEY"

// fileConfig is the on-disk shape of bunq.yaml.
type fileConfig struct {
	Environment       string        `yaml:"environment"`
	APIURL            string        `yaml:"api_url"`
	Secret            string        `yaml:"secret"`
	DeviceDescription string        `yaml:"device_description"`
	PermittedIPs      ipList        `yaml:"permitted_ips"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	UserAgent         string        `yaml:"user_agent"`
	UpdateInterval    time.Duration `yaml:"update_interval"`
}

// ipList accepts either a comma separated scalar or a YAML sequence.
type ipList []string

func (l *ipList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = core.ParsePermittedIPs(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = core.NormalizePermittedIPs(items)
		return nil
	default:
		return fmt.Errorf("permitted_ips: expected a string or a list, line %d", value.Line)
	}
}

func (c fileConfig) toCore() core.Config {
	return core.Config{
		Environment:       core.Environment(strings.TrimSpace(c.Environment)),
		APIURL:            strings.TrimSpace(c.APIURL),
		Secret:            strings.TrimSpace(c.Secret),
		DeviceDescription: strings.TrimSpace(c.DeviceDescription),
		PermittedIPs:      []string(c.PermittedIPs),
		RequestTimeout:    c.RequestTimeout,
		UserAgent:         strings.TrimSpace(c.UserAgent),
		UpdateInterval:    c.UpdateInterval,
	}
}

// loadConfigFile reads path, expands environment references and decodes it.
// A missing file is only an error when required is set.
func loadConfigFile(path string, required bool) (core.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return core.Config{}, nil
		}
		return core.Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return core.Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.toCore(), nil
}

func loadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// configLayers splits settings into the file layer and the runtime layer
// built from flags and the environment. The API key falls back to
// BUNQ_API_KEY when the file does not set one.
func configLayers(fromFile core.Config, environment, apiURL string) (map[string]any, core.Config) {
	runtime := core.Config{
		Environment: core.Environment(strings.TrimSpace(environment)),
		APIURL:      strings.TrimSpace(apiURL),
	}
	if fromFile.Secret == "" {
		runtime.Secret = strings.TrimSpace(os.Getenv(apiKeyEnv))
	}
	return core.ConfigToLayerMap(fromFile, false), runtime
}
