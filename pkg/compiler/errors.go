package compiler

import "fmt"

// ConfigError indicates a user-facing configuration problem: bad inputs,
// missing metadata, an unsupported file. It is reported without a stack
// trace and maps to a distinct exit code.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// Configf builds a ConfigError.
func Configf(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}
