package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mcprelay/pkg/content"
	"github.com/papercomputeco/mcprelay/pkg/logger"
)

// sseHandler answers every call with the given SSE frames, flushing after each.
func sseHandler(frames ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, ok := w.(http.Flusher)
		Expect(ok).To(BeTrue())

		for _, f := range frames {
			_, _ = io.WriteString(w, f)
			flusher.Flush()
		}
	}
}

func collectAll(s content.Stream) ([]string, error) {
	res, err := content.Collect(s)
	texts := make([]string, 0, len(res.Content))
	for _, c := range res.Content {
		texts = append(texts, c.Text)
	}
	return texts, err
}

// closeTracker records whether Close was called on the wrapped reader.
type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

var _ = Describe("Relay", func() {
	var upstream *httptest.Server

	newRelay := func(h http.Handler) *Relay {
		upstream = httptest.NewServer(h)
		r, err := New(Config{Endpoint: upstream.URL, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	AfterEach(func() {
		if upstream != nil {
			upstream.Close()
			upstream = nil
		}
	})

	Describe("New", func() {
		It("requires an endpoint", func() {
			_, err := New(Config{})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Call", func() {
		It("posts the method, params and stream flag", func() {
			var got Request
			var contentType string
			r := newRelay(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				contentType = req.Header.Get("Content-Type")
				Expect(req.Method).To(Equal(http.MethodPost))
				Expect(json.NewDecoder(req.Body).Decode(&got)).To(Succeed())
				sseHandler("data: {\"content\":[{\"type\":\"text\",\"text\":\"ok\"}]}\n\n")(w, req)
			}))

			s, err := r.Call(context.Background(), Request{
				Method: "query",
				Params: json.RawMessage(`{"query":"what is mcp"}`),
				Stream: true,
			})
			Expect(err).NotTo(HaveOccurred())
			texts, err := collectAll(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(texts).To(Equal([]string{"ok"}))

			Expect(contentType).To(Equal("application/json"))
			Expect(got.Method).To(Equal("query"))
			Expect(got.Stream).To(BeTrue())
			Expect(string(got.Params)).To(MatchJSON(`{"query":"what is mcp"}`))
		})

		It("decodes structured and plain events in order", func() {
			r := newRelay(sseHandler(
				"data: {\"content\":[{\"type\":\"text\",\"text\":\"a\"},{\"type\":\"text\",\"text\":\"b\"}]}\n\n",
				": keep-alive\n\n",
				"data: plain message\n\n",
				"event: end\n\n",
			))

			s, err := r.Call(context.Background(), Request{Method: "query", Stream: true})
			Expect(err).NotTo(HaveOccurred())
			texts, err := collectAll(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(texts).To(Equal([]string{"a", "b", "plain message"}))
		})

		It("decodes frames split across writes", func() {
			payload := "data: {\"content\":[{\"type\":\"text\",\"text\":\"hi\"}]}\n\n"
			r := newRelay(sseHandler(payload[:17], payload[17:]))

			s, err := r.Call(context.Background(), Request{Method: "query", Stream: true})
			Expect(err).NotTo(HaveOccurred())
			texts, err := collectAll(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(texts).To(Equal([]string{"hi"}))
		})

		It("normalizes a JSON document response as one event", func() {
			r := newRelay(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"doc"}]}}`)
			}))

			s, err := r.Call(context.Background(), Request{Method: "query"})
			Expect(err).NotTo(HaveOccurred())
			texts, err := collectAll(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(texts).To(Equal([]string{"doc"}))
		})

		It("makes exactly one request", func() {
			var calls atomic.Int32
			r := newRelay(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				calls.Add(1)
				w.WriteHeader(http.StatusServiceUnavailable)
			}))

			_, err := r.Call(context.Background(), Request{Method: "query"})
			Expect(err).To(HaveOccurred())
			Expect(calls.Load()).To(Equal(int32(1)))
		})

		It("returns ErrUnreachable on a non-2xx status", func() {
			r := newRelay(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "bad gateway", http.StatusBadGateway)
			}))

			_, err := r.Call(context.Background(), Request{Method: "query"})
			Expect(err).To(MatchError(ErrUnreachable))
			Expect(err.Error()).To(ContainSubstring("502"))
			Expect(err.Error()).To(ContainSubstring("bad gateway"))
		})

		It("returns ErrUnreachable when the upstream cannot be contacted", func() {
			srv := httptest.NewServer(http.NotFoundHandler())
			endpoint := srv.URL
			srv.Close()

			r, err := New(Config{Endpoint: endpoint})
			Expect(err).NotTo(HaveOccurred())

			_, err = r.Call(context.Background(), Request{Method: "query"})
			Expect(err).To(MatchError(ErrUnreachable))
		})

		It("returns ErrStreamMissing for an empty body", func() {
			r := newRelay(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				w.WriteHeader(http.StatusOK)
			}))

			_, err := r.Call(context.Background(), Request{Method: "query", Stream: true})
			Expect(err).To(MatchError(ErrStreamMissing))
		})

		It("ends the stream with ErrMidStream on an upstream error event", func() {
			r := newRelay(sseHandler(
				"data: {\"content\":[{\"type\":\"text\",\"text\":\"a\"}]}\n\n",
				"event: error\ndata: {\"message\":\"index unavailable\"}\n\n",
				"data: never\n\n",
			))

			s, err := r.Call(context.Background(), Request{Method: "query", Stream: true})
			Expect(err).NotTo(HaveOccurred())
			texts, err := collectAll(s)
			Expect(texts).To(Equal([]string{"a"}))
			Expect(err).To(MatchError(ErrMidStream))
			Expect(err.Error()).To(ContainSubstring("index unavailable"))
		})
	})
})

var _ = Describe("eventStream", func() {
	It("reports a read failure as ErrMidStream and keeps reporting it", func() {
		failing := errors.New("connection reset")
		body := &closeTracker{Reader: io.MultiReader(
			strings.NewReader("data: one\n\ndata: two\n\n"),
			iotest.ErrReader(failing),
		)}
		s := newEventStream(body, "query", logger.Nop())

		c, err := s.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Text).To(Equal("one"))

		c, err = s.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Text).To(Equal("two"))

		_, err = s.Next()
		Expect(err).To(MatchError(ErrMidStream))
		Expect(err).To(MatchError(failing))
		Expect(body.closed).To(BeTrue())

		_, err = s.Next()
		Expect(err).To(MatchError(ErrMidStream))
	})

	It("returns io.EOF after the last chunk and closes the body", func() {
		body := &closeTracker{Reader: strings.NewReader("data: only")}
		s := newEventStream(body, "query", logger.Nop())

		c, err := s.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Text).To(Equal("only"))

		_, err = s.Next()
		Expect(err).To(Equal(io.EOF))
		Expect(body.closed).To(BeTrue())

		_, err = s.Next()
		Expect(err).To(Equal(io.EOF))
	})

	It("releases the body on Close without reading further", func() {
		body := &closeTracker{Reader: strings.NewReader("data: a\n\ndata: b\n\n")}
		s := newEventStream(body, "query", logger.Nop())

		Expect(s.Close()).To(Succeed())
		Expect(body.closed).To(BeTrue())

		_, err := s.Next()
		Expect(err).To(Equal(io.EOF))
	})
})

var _ = DescribeTable("errorMessage",
	func(data, expected string) {
		Expect(errorMessage(data)).To(Equal(expected))
	},
	Entry("message field", `{"message":"boom"}`, "boom"),
	Entry("error string", `{"error":"boom"}`, "boom"),
	Entry("nested error object", `{"error":{"code":-32000,"message":"boom"}}`, "boom"),
	Entry("raw text", "boom", "boom"),
	Entry("empty", "", "upstream reported an error"),
)
