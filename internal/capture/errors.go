package capture

import "fmt"

// ConfigError covers device or session setup problems. Not recoverable for
// the request; the caller must fix the configuration.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture config: %s: %v", e.Reason, e.Err)
	}
	return "capture config: " + e.Reason
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// CaptureError covers session-level failures: nothing accumulated or the
// final encode failed. The whole session may be retried.
type CaptureError struct {
	Reason string
	Err    error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture failed: %s: %v", e.Reason, e.Err)
	}
	return "capture failed: " + e.Reason
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
