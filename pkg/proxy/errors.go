package proxy

import "fmt"

// FetchError means the relay could not be reached at all.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UpstreamError carries a non-2xx relay response.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream responded %d: %s", e.Status, e.Body)
}

// ContentTypeError is returned when the payload is not the expected kind of
// document.
type ContentTypeError struct {
	Expected string
	Declared string
	Detected string
}

func (e *ContentTypeError) Error() string {
	return fmt.Sprintf("expected %s document, got declared %q detected %q", e.Expected, e.Declared, e.Detected)
}
