package api

import "fmt"

type RequestError struct {
	StatusCode int
	Body       string
}

func (r *RequestError) Error() string {
	return fmt.Sprintf("remote service returned status %d: %s", r.StatusCode, r.Body)
}
