package explorer

import "fmt"

// FetchError indicates the explorer was unreachable or answered with a
// non-success response. Not retried inside the client; retry policy, if any,
// belongs to the caller.
type FetchError struct {
	StatusCode int // HTTP status, 0 for transport failures
	Message    string
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("explorer fetch: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("explorer fetch: %s", e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// SchemaError indicates a page decoded but did not match the expected summary
// shape (missing or malformed hash, from, to or value field).
type SchemaError struct {
	Index int    // position of the offending record within the page
	Field string // offending field name
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("explorer schema: record %d has missing or malformed %q", e.Index, e.Field)
}
