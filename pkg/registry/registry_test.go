package registry_test

import (
	"context"
	"encoding/json"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mcprelay/pkg/content"
	"github.com/papercomputeco/mcprelay/pkg/registry"
)

func echo(text string) registry.HandlerFunc {
	return func(context.Context, json.RawMessage) (content.Result, error) {
		return content.TextResult(text), nil
	}
}

type streamer struct {
	registry.HandlerFunc
}

func (streamer) Stream(context.Context, json.RawMessage) (content.Stream, error) {
	return content.FromResult(content.TextResult("s")), nil
}

var _ = Describe("Registry", func() {
	var b *registry.Builder

	BeforeEach(func() {
		b = registry.NewBuilder()
	})

	Describe("Register", func() {
		It("rejects duplicate names", func() {
			Expect(b.Register(registry.Entry{Name: "add", Handler: echo("1")})).To(Succeed())

			err := b.Register(registry.Entry{Name: "add", Handler: echo("2")})
			Expect(err).To(MatchError(registry.ErrDuplicateMethod))

			entry, err := b.Build().Lookup("add")
			Expect(err).NotTo(HaveOccurred())
			res, err := entry.Handler.Call(context.Background(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Text()).To(Equal("1"))
		})

		It("rejects an empty name", func() {
			Expect(b.Register(registry.Entry{Handler: echo("x")})).NotTo(Succeed())
		})

		It("rejects a nil handler", func() {
			Expect(b.Register(registry.Entry{Name: "x"})).NotTo(Succeed())
		})

		It("defaults the kind to tool", func() {
			Expect(b.Register(registry.Entry{Name: "x", Handler: echo("x")})).To(Succeed())
			entry, err := b.Build().Lookup("x")
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.Kind).To(Equal(registry.KindTool))
		})

		It("fails once the registry is built", func() {
			reg := b.Build()
			Expect(b.Register(registry.Entry{Name: "late", Handler: echo("x")})).To(MatchError(registry.ErrRegistryBuilt))

			_, err := reg.Lookup("late")
			Expect(registry.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("MustRegister", func() {
		It("panics on duplicates", func() {
			Expect(func() {
				b.MustRegister(
					registry.Entry{Name: "a", Handler: echo("a")},
					registry.Entry{Name: "a", Handler: echo("a")},
				)
			}).To(Panic())
		})
	})

	Describe("Lookup", func() {
		It("returns ErrMethodNotFound for unknown methods", func() {
			_, err := b.Build().Lookup("nope")
			Expect(err).To(MatchError(registry.ErrMethodNotFound{Method: "nope"}))
			Expect(err.Error()).To(Equal("method not found: nope"))
		})

		It("finds a method among many", func() {
			for i := range 50 {
				b.MustRegister(registry.Entry{Name: fmt.Sprintf("m%02d", i), Handler: echo(fmt.Sprint(i))})
			}
			reg := b.Build()

			entry, err := reg.Lookup("m42")
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.Name).To(Equal("m42"))
			Expect(reg.Len()).To(Equal(50))
		})
	})

	Describe("Entries", func() {
		It("lists entries sorted by name", func() {
			b.MustRegister(
				registry.Entry{Name: "flowgram", Handler: echo("f")},
				registry.Entry{Name: "add", Handler: echo("a")},
				registry.Entry{Name: "deepwiki", Handler: streamer{echo("d")}},
			)

			entries := b.Build().Entries()
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name)
			}
			Expect(names).To(Equal([]string{"add", "deepwiki", "flowgram"}))
			Expect(entries[1].Streaming()).To(BeTrue())
			Expect(entries[0].Streaming()).To(BeFalse())
		})
	})

	Describe("errors", func() {
		It("formats invalid params", func() {
			err := fmt.Errorf("wrapped: %w", registry.ErrInvalidParams{Method: "add", Reason: "a must be a number"})
			Expect(registry.IsInvalidParams(err)).To(BeTrue())
			Expect(err.Error()).To(Equal("wrapped: invalid params for add: a must be a number"))
		})
	})
})
