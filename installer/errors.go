package installer

import "fmt"

// ErrConfiguration covers a missing API key with no prior install to fall
// back to, and a 403 from the Registry rewritten to name the API-key
// environment variable.
type ErrConfiguration struct {
	Message string
}

func (e *ErrConfiguration) Error() string { return e.Message }

// ErrAccessDenied is returned when the resolved pack file has no
// downloadUrl (the pack author opted the file out of redistribution) and
// there is no prior install to fall back to.
type ErrAccessDenied struct {
	Message string
}

func (e *ErrAccessDenied) Error() string { return e.Message }

func configError(format string, args ...interface{}) error {
	return &ErrConfiguration{Message: fmt.Sprintf(format, args...)}
}

func accessDeniedError(format string, args ...interface{}) error {
	return &ErrAccessDenied{Message: fmt.Sprintf(format, args...)}
}
