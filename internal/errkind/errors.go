// Package errkind defines the shared error vocabulary for pixie.
//
// Components tag failures with one of the exported sentinel markers so
// callers can classify them with errors.Is without depending on concrete
// error types. The CLI treats ErrAuth and ErrConfiguration as immediately
// fatal, while ErrDownload failures are recorded per page and the run
// continues.
package errkind

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAuth marks missing, invalid, or expired sessions and failed
	// re-authentication.
	ErrAuth = errors.New("auth error")
	// ErrFetch marks a remote API rejection of a record page request.
	ErrFetch = errors.New("fetch error")
	// ErrDownload marks a page transfer or conversion that failed after
	// exhausting retries.
	ErrDownload = errors.New("download error")
	// ErrConfiguration marks bad predicates, unknown lookup names, and
	// missing required arguments. Never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrTimeout marks a wait that exceeded its deadline.
	ErrTimeout = errors.New("timeout")
)

// Wrap builds an error that includes component context while tagging it with
// the provided marker. The marker should be one of the exported sentinel
// errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrDownload
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "failure"
	}
	return strings.Join(parts, ": ")
}

// Fatal reports whether an error should abort the run outright rather than
// be recorded and skipped.
func Fatal(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrConfiguration)
}
