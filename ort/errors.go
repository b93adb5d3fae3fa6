package ort

import "fmt"

// StatusError is returned when an ONNX Runtime C API call reports a non-OK
// OrtStatus. Op describes the operation that failed.
type StatusError struct {
	Op      string
	Code    ErrorCode
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// statusError converts a non-zero OrtStatus into a StatusError and releases it.
func statusError(op string, status uintptr) error {
	err := &StatusError{
		Op:      op,
		Code:    getErrorCode(status),
		Message: getErrorMessage(status),
	}
	releaseStatus(status)
	return err
}
