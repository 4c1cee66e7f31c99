// Package config loads the provider list from a YAML file. Each entry names
// a provider, its endpoint URL and kind (streaming "mcp" or stateless "a2a"),
// plus optional request headers, an allowed-tool filter and an auth block
// pointing at the environment variable that carries the secret.
//
// Header values may reference environment variables as ${NAME}; unset
// variables expand to the empty string.
package config
