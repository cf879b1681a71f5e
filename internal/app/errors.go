package app

import "errors"

var (
	// ErrCodeRequired indicates the request carried no code.
	ErrCodeRequired     = errors.New("code required")
	ErrLanguageRequired = errors.New("language required")
)

// GenerationError carries an upstream failure. Its message is the upstream
// message unchanged.
type GenerationError struct {
	Operation string
	Err       error
}

func (e *GenerationError) Error() string {
	return e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
