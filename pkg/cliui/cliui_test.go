package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mcprelay/pkg/cliui"
)

var _ = Describe("Step", func() {
	It("runs fn and reports success", func() {
		var buf bytes.Buffer
		ran := false

		err := cliui.Step(&buf, "calling add", func() error {
			ran = true
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ran).To(BeTrue())
		Expect(buf.String()).To(ContainSubstring("calling add"))
		Expect(buf.String()).To(HaveSuffix("\n"))
	})

	It("returns the error from fn", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")

		err := cliui.Step(&buf, "calling deepwiki", func() error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
	})
})

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds under a second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("uses seconds with one decimal otherwise", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("RenderEntries", func() {
	It("renders one line per entry", func() {
		out := cliui.RenderEntries([]cliui.Entry{
			{Name: "add", Kind: "tool", Description: "Adds two numbers"},
			{Name: "flowgram", Kind: "prompt", Description: "Builds a flowgram URL"},
		})
		Expect(out).To(ContainSubstring("add"))
		Expect(out).To(ContainSubstring("Builds a flowgram URL"))
		Expect(bytes.Count([]byte(out), []byte("\n"))).To(Equal(2))
	})

	It("renders nothing for no entries", func() {
		Expect(cliui.RenderEntries(nil)).To(BeEmpty())
	})
})

var _ = Describe("RenderMarkdown", func() {
	It("keeps the text of the document", func() {
		out, err := cliui.RenderMarkdown("# Title\n\nsome body text")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Title"))
		Expect(out).To(ContainSubstring("some body text"))
	})
})
