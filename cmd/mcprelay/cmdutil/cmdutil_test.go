package cmdutil_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/mcprelay/cmd/mcprelay/cmdutil"
	"github.com/papercomputeco/mcprelay/pkg/logger"
)

var _ = Describe("WaitForShutdown", func() {
	It("returns the first server error", func() {
		errChan := make(chan error, 1)
		errChan <- errors.New("listen failed")

		err := cmdutil.WaitForShutdown(context.Background(), logger.Nop(), errChan)
		Expect(err).To(MatchError("listen failed"))
	})

	It("returns nil once the context is done", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Expect(cmdutil.WaitForShutdown(ctx, logger.Nop(), make(chan error))).To(Succeed())
	})
})

var _ = Describe("NewLogger", func() {
	newCmd := func() *cobra.Command {
		cmd := &cobra.Command{Use: "test"}
		cmd.Flags().Bool("debug", false, "")
		cmd.Flags().Bool("log-json", false, "")
		cmd.Flags().Bool("log-pretty", false, "")
		cmd.Flags().String("log-file", "", "")
		return cmd
	}

	It("enables debug logging from the debug flag", func() {
		cmd := newCmd()
		Expect(cmd.Flags().Set("debug", "true")).To(Succeed())

		l, closeLog, err := cmdutil.NewLogger(cmd, io.Discard)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(closeLog)
		Expect(l.Enabled(context.Background(), slog.LevelDebug)).To(BeTrue())
	})

	It("defaults to info without flags", func() {
		l, closeLog, err := cmdutil.NewLogger(&cobra.Command{Use: "test"}, io.Discard)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(closeLog)
		Expect(l.Enabled(context.Background(), slog.LevelDebug)).To(BeFalse())
	})

	It("writes JSON logs to stdout when asked", func() {
		var out bytes.Buffer
		cmd := newCmd()
		Expect(cmd.Flags().Set("log-json", "true")).To(Succeed())

		l, closeLog, err := cmdutil.NewLogger(cmd, &out)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(closeLog)

		l.Info("listening", "addr", ":8081")
		Expect(out.String()).To(ContainSubstring(`"msg":"listening"`))
	})

	It("also appends JSON records to the log file", func() {
		var out bytes.Buffer
		path := filepath.Join(GinkgoT().TempDir(), "mcprelay.log")

		cmd := newCmd()
		Expect(cmd.Flags().Set("log-pretty", "true")).To(Succeed())
		Expect(cmd.Flags().Set("log-file", path)).To(Succeed())

		l, closeLog, err := cmdutil.NewLogger(cmd, &out)
		Expect(err).NotTo(HaveOccurred())

		l.Info("relay started", "methods", 5)
		Expect(closeLog()).To(Succeed())

		Expect(out.String()).To(ContainSubstring("relay started"))

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"msg":"relay started"`))
		Expect(string(data)).To(ContainSubstring(`"methods":5`))
	})

	It("fails when the log file cannot be opened", func() {
		cmd := newCmd()
		Expect(cmd.Flags().Set("log-file", filepath.Join(GinkgoT().TempDir(), "missing", "x.log"))).To(Succeed())

		_, _, err := cmdutil.NewLogger(cmd, io.Discard)
		Expect(err).To(MatchError(ContainSubstring("opening log file")))
	})
})
