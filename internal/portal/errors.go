package portal

import (
	"errors"
	"fmt"
)

// ErrNotFound marks an item id the content service does not know or will not
// serve.
var ErrNotFound = errors.New("item does not exist or is inaccessible")

// HTTPError wraps non-2xx responses.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("request failed: %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("request failed: %s", e.Status)
}

// RESTError is the JSON error envelope the content service returns inside an
// HTTP 200 response.
type RESTError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details"`
}

func (e *RESTError) Error() string {
	return fmt.Sprintf("portal error %d: %s", e.Code, e.Message)
}

// NotFound reports whether the envelope describes a missing or inaccessible
// item rather than a transport or authorization failure.
func (e *RESTError) NotFound() bool {
	return e.Code == 400 || e.Code == 404
}
