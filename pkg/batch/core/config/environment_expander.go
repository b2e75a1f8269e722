package config

import (
	"os"
	"strings"
)

// EnvironmentExpander expands environment variable placeholders in configuration data.
type EnvironmentExpander interface {
	// Expand replaces ${VAR}, ${VAR:-default} and $VAR placeholders in input.
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander expands placeholders from the process environment. Unset
// variables expand to their default, or to the empty string when there is none.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander creates an OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

// Expand implements EnvironmentExpander. A variable that is set but empty also takes
// the default, as in the shell.
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	return []byte(os.Expand(string(input), lookupWithDefault)), nil
}

func lookupWithDefault(placeholder string) string {
	name, def, hasDefault := strings.Cut(placeholder, ":-")
	if v := os.Getenv(name); v != "" || !hasDefault {
		return v
	}
	return def
}
