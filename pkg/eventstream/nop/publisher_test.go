package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mcprelay/pkg/eventstream"
	"github.com/papercomputeco/mcprelay/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	var p eventstream.Publisher

	BeforeEach(func() {
		p = nop.NewPublisher()
	})

	It("returns ErrNilCallEvent for nil events", func() {
		Expect(p.PublishCall(context.Background(), nil)).To(MatchError(eventstream.ErrNilCallEvent))
	})

	It("accepts call events", func() {
		event := eventstream.NewCallCompletedEvent(
			eventstream.EventSource{Component: eventstream.ComponentAPI},
			eventstream.CallMeta{Method: "add"},
		)
		Expect(p.PublishCall(context.Background(), event)).To(Succeed())
	})

	It("closes successfully", func() {
		Expect(p.Close()).To(Succeed())
	})
})
