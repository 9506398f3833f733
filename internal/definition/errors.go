package definition

import "fmt"

// ValidationError reports a malformed definition file. It is fatal to the
// affected test only; the orchestrator never retries it.
type ValidationError struct {
	Path    string
	Section string
	Msg     string
}

func (e *ValidationError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("%s: section %s: %s", e.Path, e.Section, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

func validationErrorf(path, section, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Path: path, Section: section, Msg: fmt.Sprintf(format, args...)}
}

// IOError reports an unreadable definition file. Fatal to the affected test.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
