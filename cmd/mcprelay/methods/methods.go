// Package methodscmder provides the methods command, listing the methods
// registered on a running API server.
package methodscmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mcprelay/pkg/client"
	"github.com/papercomputeco/mcprelay/pkg/cliui"
	"github.com/papercomputeco/mcprelay/pkg/config"
)

type methodsCommander struct {
	apiTarget string

	cfg *config.Config
}

const methodsLongDesc string = `List the methods registered on a running mcprelay API server.

Each line shows the method name, its kind (tool, prompt or resource) and
its description. Streaming methods are marked with "~".`

const methodsShortDesc string = "List registered methods"

func NewMethodsCmd() *cobra.Command {
	cmder := &methodsCommander{}

	cmd := &cobra.Command{
		Use:   "methods",
		Short: methodsShortDesc,
		Long:  methodsLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = config.Load(cmd, config.Flags, []string{config.FlagAPITarget})
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)

	return cmd
}

func (c *methodsCommander) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cl, err := client.New(c.cfg.Client.APITarget)
	if err != nil {
		return err
	}

	list, err := cl.Methods(ctx)
	if err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Fprintln(out, "No methods registered.")
		return nil
	}

	entries := make([]cliui.Entry, 0, len(list))
	for _, m := range list {
		name := m.Name
		if m.Streaming {
			name += " ~"
		}
		entries = append(entries, cliui.Entry{
			Name:        name,
			Kind:        m.Kind,
			Description: m.Description,
		})
	}

	fmt.Fprintf(out, "\n%s\n", cliui.RenderEntries(entries))
	return nil
}
