package emitter_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mcprelay/pkg/content"
	"github.com/papercomputeco/mcprelay/pkg/dispatch"
	"github.com/papercomputeco/mcprelay/pkg/emitter"
	"github.com/papercomputeco/mcprelay/pkg/registry"
	"github.com/papercomputeco/mcprelay/pkg/sse"
	"github.com/papercomputeco/mcprelay/pkg/upstream"
)

// failingStream yields chunks, then err. It records pulls and Close.
type failingStream struct {
	chunks []content.Chunk
	err    error
	pulls  int
	closed bool
}

func (s *failingStream) Next() (content.Chunk, error) {
	s.pulls++
	if len(s.chunks) == 0 {
		return content.Chunk{}, s.err
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *failingStream) Close() error {
	s.closed = true
	return nil
}

// slowStream yields a chunk every delay until closed.
type slowStream struct {
	delay  time.Duration
	closed bool
}

func (s *slowStream) Next() (content.Chunk, error) {
	time.Sleep(s.delay)
	return content.NewText("tick"), nil
}

func (s *slowStream) Close() error {
	s.closed = true
	return nil
}

// limitWriter accepts n writes and then fails.
type limitWriter struct {
	buf bytes.Buffer
	n   int
}

func (w *limitWriter) Write(p []byte) (int, error) {
	if w.n == 0 {
		return 0, io.ErrClosedPipe
	}
	w.n--
	return w.buf.Write(p)
}

// flushRecorder counts flushes.
type flushRecorder struct {
	bytes.Buffer
	flushes int
}

func (w *flushRecorder) Flush() {
	w.flushes++
}

func readEvents(raw string) []sse.Event {
	r := sse.NewReader(strings.NewReader(raw))
	var events []sse.Event
	for {
		ev, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		if ev == nil {
			return events
		}
		events = append(events, *ev)
	}
}

var _ = Describe("Stream", func() {
	var (
		ctx context.Context
		buf *bytes.Buffer
	)

	BeforeEach(func() {
		ctx = context.Background()
		buf = &bytes.Buffer{}
	})

	It("writes one data frame per chunk and an end frame", func() {
		res := content.Result{Content: []content.Chunk{content.NewText("a"), content.NewText("b")}}
		s := &failingStream{chunks: res.Content, err: io.EOF}

		sum, err := emitter.Stream(ctx, buf, &dispatch.Outcome{Stream: s}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Chunks).To(Equal(2))
		Expect(sum.Terminal).To(Equal(emitter.TerminalEnd))
		Expect(s.closed).To(BeTrue())

		Expect(buf.String()).To(Equal(
			"data: {\"type\":\"text\",\"text\":\"a\"}\n\n" +
				"data: {\"type\":\"text\",\"text\":\"b\"}\n\n" +
				"event: end\n\n",
		))
	})

	It("streams a buffered result", func() {
		res := content.TextResult("3")
		sum, err := emitter.Stream(ctx, buf, &dispatch.Outcome{Result: &res}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Chunks).To(Equal(1))
		Expect(buf.String()).To(Equal("data: {\"type\":\"text\",\"text\":\"3\"}\n\nevent: end\n\n"))
	})

	It("does not escape HTML in chunk text", func() {
		res := content.TextResult("<b>&</b>")
		_, err := emitter.Stream(ctx, buf, &dispatch.Outcome{Result: &res}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring(`"text":"<b>&</b>"`))
	})

	It("writes two data frames and one error frame when the third pull fails", func() {
		s := &failingStream{
			chunks: []content.Chunk{content.NewText("a"), content.NewText("b")},
			err:    fmt.Errorf("%w: connection reset", upstream.ErrMidStream),
		}

		sum, err := emitter.Stream(ctx, buf, &dispatch.Outcome{Stream: s}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Chunks).To(Equal(2))
		Expect(sum.Terminal).To(Equal(emitter.TerminalError))
		Expect(sum.Err).To(MatchError(upstream.ErrMidStream))

		events := readEvents(buf.String())
		Expect(events).To(HaveLen(3))
		Expect(events[0].Type).To(BeEmpty())
		Expect(events[1].Type).To(BeEmpty())
		Expect(events[2].Type).To(Equal("error"))
		Expect(events[2].Data).To(MatchJSON(`{"message":"upstream stream failed: connection reset"}`))
		Expect(buf.String()).NotTo(ContainSubstring("event: end"))
		Expect(s.closed).To(BeTrue())
	})

	It("writes only an error frame for a dispatch error", func() {
		sum, err := emitter.Stream(ctx, buf, nil, registry.ErrMethodNotFound{Method: "nope"})
		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Terminal).To(Equal(emitter.TerminalError))
		Expect(buf.String()).To(Equal("event: error\ndata: {\"message\":\"method not found: nope\"}\n\n"))
	})

	It("stops pulling and closes the stream when a write fails", func() {
		s := &failingStream{
			chunks: []content.Chunk{content.NewText("a"), content.NewText("b"), content.NewText("c")},
			err:    io.EOF,
		}
		w := &limitWriter{n: 1}

		sum, err := emitter.Stream(ctx, w, &dispatch.Outcome{Stream: s}, nil)
		Expect(err).To(MatchError(io.ErrClosedPipe))
		Expect(sum.Chunks).To(Equal(1))
		Expect(sum.Terminal).To(BeEmpty())
		Expect(s.pulls).To(Equal(2))
		Expect(s.closed).To(BeTrue())
	})

	It("stops when the context is canceled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		s := &failingStream{chunks: []content.Chunk{content.NewText("a")}, err: io.EOF}

		_, err := emitter.Stream(cctx, buf, &dispatch.Outcome{Stream: s}, nil)
		Expect(err).To(MatchError(context.Canceled))
		Expect(s.pulls).To(BeZero())
		Expect(s.closed).To(BeTrue())
		Expect(buf.Len()).To(BeZero())
	})

	It("ends with an error frame when the deadline expires", func() {
		dctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		s := &slowStream{delay: 30 * time.Millisecond}

		sum, err := emitter.Stream(dctx, buf, &dispatch.Outcome{Stream: s}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Terminal).To(Equal(emitter.TerminalError))
		Expect(sum.Err).To(MatchError(context.DeadlineExceeded))
		Expect(s.closed).To(BeTrue())

		events := readEvents(buf.String())
		Expect(events).NotTo(BeEmpty())
		Expect(strings.Count(buf.String(), "event: ")).To(Equal(1))
		last := events[len(events)-1]
		Expect(last.Type).To(Equal(emitter.TerminalError))
		Expect(last.Data).To(MatchJSON(`{"message":"context deadline exceeded"}`))
		Expect(sum.Chunks).To(Equal(len(events) - 1))
	})

	It("flushes after every frame", func() {
		w := &flushRecorder{}
		res := content.Result{Content: []content.Chunk{content.NewText("a"), content.NewText("b")}}

		_, err := emitter.Stream(ctx, w, &dispatch.Outcome{Result: &res}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(w.flushes).To(Equal(3))
	})
})

var _ = Describe("WriteJSON", func() {
	var buf *bytes.Buffer

	BeforeEach(func() {
		buf = &bytes.Buffer{}
	})

	It("writes a result document", func() {
		res := content.TextResult("3")
		Expect(emitter.WriteJSON(buf, &dispatch.Outcome{Result: &res}, nil)).To(Succeed())
		Expect(buf.String()).To(MatchJSON(`{"result":{"content":[{"type":"text","text":"3"}]}}`))
	})

	It("writes an error document", func() {
		Expect(emitter.WriteJSON(buf, nil, errors.New("boom"))).To(Succeed())
		Expect(buf.String()).To(MatchJSON(`{"error":"boom"}`))
	})

	It("keeps the error key for an empty message", func() {
		Expect(emitter.WriteJSON(buf, nil, errors.New(""))).To(Succeed())
		Expect(buf.String()).To(MatchJSON(`{"error":""}`))
	})

	It("writes an empty result for an outcome without one", func() {
		Expect(emitter.WriteJSON(buf, &dispatch.Outcome{}, nil)).To(Succeed())
		Expect(buf.String()).To(MatchJSON(`{"result":{"content":[]}}`))
	})

	It("collects a stream outcome", func() {
		s := content.FromResult(content.Result{Content: []content.Chunk{content.NewText("a"), content.NewText("b")}})
		Expect(emitter.WriteJSON(buf, &dispatch.Outcome{Stream: s}, nil)).To(Succeed())
		Expect(buf.String()).To(MatchJSON(`{"result":{"content":[{"type":"text","text":"a"},{"type":"text","text":"b"}]}}`))
	})

	It("reports a failing stream as an error", func() {
		s := &failingStream{chunks: []content.Chunk{content.NewText("a")}, err: upstream.ErrMidStream}
		Expect(emitter.WriteJSON(buf, &dispatch.Outcome{Stream: s}, nil)).To(Succeed())
		Expect(buf.String()).To(MatchJSON(`{"error":"upstream stream failed"}`))
	})
})
