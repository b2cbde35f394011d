// Package credential resolves API credentials for named external
// services. Absence of a credential is a configuration error for the
// caller, not a transport failure.
package credential

import (
	"os"
	"strings"
)

// Store looks up the credential for a service. The second return is
// false when no credential is configured.
type Store interface {
	Get(service string) (string, bool)
}

// EnvStore resolves credentials from environment variables using the
// conventional <SERVICE>_API_KEY name, e.g. service "anthropic" reads
// ANTHROPIC_API_KEY.
type EnvStore struct{}

// Get implements Store.
func (EnvStore) Get(service string) (string, bool) {
	name := strings.ToUpper(strings.ReplaceAll(service, "-", "_")) + "_API_KEY"
	value := os.Getenv(name)
	return value, value != ""
}

// StaticStore resolves credentials from a fixed map, typically loaded
// from the config file.
type StaticStore map[string]string

// Get implements Store.
func (s StaticStore) Get(service string) (string, bool) {
	value, ok := s[service]
	return value, ok && value != ""
}

// Chain tries each store in order and returns the first hit.
type Chain []Store

// Get implements Store.
func (c Chain) Get(service string) (string, bool) {
	for _, store := range c {
		if value, ok := store.Get(service); ok {
			return value, true
		}
	}
	return "", false
}
