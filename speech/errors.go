package speech

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyRecording      = errors.New("already recording")
	ErrCapabilityUnavailable = errors.New("speech capture unavailable")
	ErrClosed                = errors.New("speech session closed")
)

// RecognitionError ends a session early. Code is a short machine-readable
// reason such as "start", "upload" or "device".
type RecognitionError struct {
	Code string
	Err  error
}

func (e *RecognitionError) Error() string {
	if e.Err == nil {
		return "recognition error: " + e.Code
	}
	return fmt.Sprintf("recognition error (%s): %v", e.Code, e.Err)
}

func (e *RecognitionError) Unwrap() error { return e.Err }

func asRecognitionError(code string, err error) *RecognitionError {
	var re *RecognitionError
	if errors.As(err, &re) {
		return re
	}
	return &RecognitionError{Code: code, Err: err}
}
