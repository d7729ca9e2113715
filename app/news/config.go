package news

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-pkgz/requester"
	"gopkg.in/yaml.v3"
)

//go:embed data/providers.yaml
var defaultProviders []byte

// ChainConfig describes the ordered list of sources to load articles from.
type ChainConfig struct {
	Country   string           `yaml:"country"`
	Topic     string           `yaml:"topic,omitempty"`
	PageSize  int              `yaml:"page_size"`
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes a single source.
type ProviderConfig struct {
	Name    string            `yaml:"name"`
	Kind    string            `yaml:"kind"`
	URL     string            `yaml:"url"`
	Proxy   string            `yaml:"proxy,omitempty"`
	Key     string            `yaml:"key,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// LoadChainConfig reads the chain config from the file,
// empty path means the bundled default chain.
func LoadChainConfig(path string) (ChainConfig, error) {
	data := defaultProviders
	if path != "" {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return ChainConfig{}, fmt.Errorf("read providers config: %w", err)
		}
	}

	var cfg ChainConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ChainConfig{}, fmt.Errorf("parse providers config: %w", err)
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = 8
	}

	if err := cfg.validate(); err != nil {
		return ChainConfig{}, err
	}

	return cfg, nil
}

func (c ChainConfig) validate() error {
	seen := map[string]bool{}
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("provider %q: duplicate name", p.Name)
		}
		seen[p.Name] = true

		if _, ok := decoders[p.Kind]; !ok {
			return fmt.Errorf("provider %q: unknown kind %q (valid: %s, %s, %s, %s)",
				p.Name, p.Kind, KindNewsAPI, KindGNews, KindRSS, KindPage)
		}
		if p.URL == "" {
			return fmt.Errorf("provider %q: url is required", p.Name)
		}
		if p.Proxy != "" {
			u, err := url.Parse(p.Proxy)
			if err != nil {
				return fmt.Errorf("provider %q: invalid proxy: %w", p.Name, err)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("provider %q: proxy scheme must be http or https, got %q", p.Name, u.Scheme)
			}
		}
	}
	return nil
}

// Build makes providers in the configured order. keys maps the
// provider's key name to the credential, bound to the APIKey param.
func (c ChainConfig) Build(cl *requester.Requester, keys map[string]string, timeout time.Duration) ([]Provider, error) {
	res := make([]Provider, 0, len(c.Providers))
	for _, pc := range c.Providers {
		params := Params{
			Country:  c.Country,
			Topic:    c.Topic,
			PageSize: c.PageSize,
			APIKey:   keys[pc.Key],
		}

		p, err := NewHTTPProvider(pc, params, cl, timeout)
		if err != nil {
			return nil, fmt.Errorf("make provider %s: %w", pc.Name, err)
		}
		res = append(res, p)
	}
	return res, nil
}
