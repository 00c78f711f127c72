package sse

import (
	"context"
	"io"
)

// BodyPipe is the read end of an event stream response body. The HTTP server
// closes it once the response is done or the client is gone. Closing it also
// cancels the call producing the events.
type BodyPipe struct {
	*io.PipeReader
	cancel context.CancelFunc
}

// NewBodyPipe returns a connected BodyPipe and writer. cancel is called when
// the BodyPipe is closed.
func NewBodyPipe(cancel context.CancelFunc) (*BodyPipe, *io.PipeWriter) {
	pr, pw := io.Pipe()
	return &BodyPipe{PipeReader: pr, cancel: cancel}, pw
}

// Close cancels the producing call and closes the pipe. Later writes fail
// with io.ErrClosedPipe.
func (p *BodyPipe) Close() error {
	p.cancel()
	return p.PipeReader.Close()
}

// CloseWithError is Close with a cause reported to the writer.
func (p *BodyPipe) CloseWithError(err error) error {
	p.cancel()
	return p.PipeReader.CloseWithError(err)
}
