package stream

import "fmt"

// StatusError is a response the service answered with an unexpected status.
type StatusError struct {
	Op         string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}
