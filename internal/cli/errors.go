package cli

import "fmt"

const usage = "Usage: render-template <template_file> <variables_json>"

// UsageError is returned when the invocation itself is wrong: missing
// arguments, unknown flags or invalid settings.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string {
	if e.Err == nil {
		return usage
	}
	return fmt.Sprintf("%v\n%s", e.Err, usage)
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// InputError is returned when the variables cannot be read or are rejected.
type InputError struct {
	Op  string
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("Error %s: %v", e.Op, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// RenderError wraps any failure to load or render the template.
type RenderError struct {
	Template string
	Err      error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("Error rendering template: %v", e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
