package upstream

import "errors"

var (
	// ErrUnreachable is returned when the upstream could not be contacted or
	// answered with a non-2xx status.
	ErrUnreachable = errors.New("upstream unreachable")

	// ErrStreamMissing is returned when the upstream answered successfully
	// but without a body.
	ErrStreamMissing = errors.New("upstream response has no body")

	// ErrMidStream is returned from a stream's Next when the upstream stream
	// broke or reported an error after it had started.
	ErrMidStream = errors.New("upstream stream failed")
)
