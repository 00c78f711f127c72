package sse_test

import (
	"context"
	"errors"
	"io"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mcprelay/pkg/sse"
)

var _ = Describe("BodyPipe", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		DeferCleanup(cancel)
	})

	It("passes frames from the writer to the reader", func() {
		pr, pw := sse.NewBodyPipe(cancel)

		go func() {
			defer GinkgoRecover()
			Expect(sse.WriteEvent(pw, sse.Event{Type: "end"})).To(Succeed())
			pw.Close()
		}()

		data, err := io.ReadAll(pr)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("event: end\n\n"))
		Expect(ctx.Err()).NotTo(HaveOccurred())
	})

	It("cancels the producing call when the reader is closed", func() {
		pr, pw := sse.NewBodyPipe(cancel)

		Expect(pr.Close()).To(Succeed())
		Expect(ctx.Err()).To(MatchError(context.Canceled))

		_, err := pw.Write([]byte("data: late\n\n"))
		Expect(err).To(MatchError(io.ErrClosedPipe))
	})

	It("unblocks a pending write on close", func() {
		pr, pw := sse.NewBodyPipe(cancel)

		done := make(chan error, 1)
		go func() {
			_, err := pw.Write([]byte("data: a\n\n"))
			done <- err
		}()

		Expect(pr.CloseWithError(errors.New("client gone"))).To(Succeed())
		Eventually(done).Should(Receive(MatchError("client gone")))
		Expect(ctx.Err()).To(MatchError(context.Canceled))
	})
})
