// Package shared provides common helpers used across multiple packages in
// the aptlyctl codebase, mostly the error kinds every layer agrees on.
package shared

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// CommandError wraps a command execution error with its trimmed output
// for cleaner error messages.
func CommandError(output []byte, err error) error {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return err
	}
	return fmt.Errorf("%s: %w", trimmed, err)
}

// CommandFailed reports a non-zero exit of an external program. The
// captured stderr travels in the cause.
func CommandFailed(program string, stderr string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(fmt.Sprintf("%s command failed", program)).
		WithCause(CommandError([]byte(stderr), err))
}

// InvalidReference reports a name that the desired state does not declare.
func InvalidReference(kind string, name string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("unknown %s: %s", kind, name))
}

// UnresolvedDependency reports an entity that is neither present in aptly
// nor produced by an earlier command of the same run.
func UnresolvedDependency(kind string, name string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(fmt.Sprintf("unresolved dependency: %s %s", kind, name))
}

// InvalidConfig reports a desired-state document that cannot be used.
func InvalidConfig(format string, args ...any) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf(format, args...))
}

// IsInvalidReference reports whether err was produced by InvalidReference.
func IsInvalidReference(err error) bool {
	return err != nil && errbuilder.CodeOf(err) == errbuilder.CodeNotFound
}
