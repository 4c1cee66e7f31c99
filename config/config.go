package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ProviderKind selects which client implementation serves a provider entry.
type ProviderKind string

const (
	// KindMCP marks a streaming provider reached over MCP.
	KindMCP ProviderKind = "mcp"
	// KindA2A marks a stateless provider reached over A2A JSON-RPC.
	KindA2A ProviderKind = "a2a"
)

// AuthConfig names the environment variable holding a provider secret.
type AuthConfig struct {
	// Type of the secret: "hmac" for request signing, "bearer" for an
	// Authorization header.
	Type string `yaml:"type"`
	// EnvVar is the environment variable the secret is read from. The
	// secret itself never appears in the config file.
	EnvVar string `yaml:"env_var"`
}

// ProviderConfig is one entry of the servers list.
type ProviderConfig struct {
	Name         string            `yaml:"name"`
	URL          string            `yaml:"url"`
	Kind         ProviderKind      `yaml:"type"`
	Headers      map[string]string `yaml:"headers"`
	AllowedTools []string          `yaml:"allowed_tools"`
	Auth         *AuthConfig       `yaml:"auth"`
}

// ResolveSecret reads the provider's auth secret from the environment.
// It returns "" when no auth block is configured or the variable is unset.
func (p *ProviderConfig) ResolveSecret() string {
	if p.Auth == nil || p.Auth.EnvVar == "" {
		return ""
	}
	return os.Getenv(p.Auth.EnvVar)
}

type configFile struct {
	Servers []ProviderConfig `yaml:"servers"`
}

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// ExpandEnvVars replaces every ${NAME} in value with the environment
// variable NAME, or the empty string when unset.
func ExpandEnvVars(value string) string {
	return envVarPattern.ReplaceAllStringFunc(value, func(m string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(m)[1])
	})
}

// Load reads the provider list from path. Header values are env-expanded,
// the kind defaults to "mcp", and stateless providers with a bearer auth
// block get an Authorization header injected from the resolved secret.
func Load(path string) ([]ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	for i := range file.Servers {
		p := &file.Servers[i]
		if p.URL == "" {
			return nil, fmt.Errorf("provider %q: url is required", p.Name)
		}
		if p.Kind == "" {
			p.Kind = KindMCP
		}
		if p.Kind != KindMCP && p.Kind != KindA2A {
			return nil, fmt.Errorf("provider %q: unknown type %q", p.Name, p.Kind)
		}

		for k, v := range p.Headers {
			p.Headers[k] = ExpandEnvVars(v)
		}

		if p.Kind == KindA2A {
			applyBearerAuth(p)
		}
	}

	return file.Servers, nil
}

// applyBearerAuth injects the Authorization header for a stateless provider.
// Without an auth block any configured Authorization header is dropped, so a
// provider never receives a stale token from copy-pasted config.
func applyBearerAuth(p *ProviderConfig) {
	if p.Auth == nil || p.Auth.EnvVar == "" {
		delete(p.Headers, "Authorization")
		return
	}
	token := os.Getenv(p.Auth.EnvVar)
	if token == "" {
		return
	}
	if p.Headers == nil {
		p.Headers = map[string]string{}
	}
	p.Headers["Authorization"] = "Bearer " + token
}

// AllowedToolsMap collects the per-provider tool filters keyed by provider
// name. Providers without a filter are omitted, which means "allow all".
func AllowedToolsMap(providers []ProviderConfig) map[string][]string {
	out := make(map[string][]string)
	for _, p := range providers {
		if len(p.AllowedTools) > 0 {
			out[p.Name] = p.AllowedTools
		}
	}
	return out
}
