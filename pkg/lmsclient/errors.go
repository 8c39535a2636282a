package lmsclient

import (
	"errors"
	"fmt"
)

// ErrFileTooLarge is returned by UploadFile before any request is sent.
var ErrFileTooLarge = errors.New("file exceeds the 1 MiB upload limit")

// NetworkError wraps transport failures: the request never produced an HTTP response.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
	Details map[string]interface{}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
