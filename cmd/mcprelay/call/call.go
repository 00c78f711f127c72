// Package callcmder provides the call command for invoking a method on a
// running API server.
package callcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/mcprelay/pkg/client"
	"github.com/papercomputeco/mcprelay/pkg/cliui"
	"github.com/papercomputeco/mcprelay/pkg/config"
	"github.com/papercomputeco/mcprelay/pkg/content"
)

type callCommander struct {
	method     string
	params     []string
	jsonParams string
	stream     bool
	render     bool
	apiTarget  string

	cfg *config.Config
}

var callFlags = []string{
	config.FlagAPITarget,
}

const callLongDesc string = `Call a method on a running mcprelay API server.

Parameters are given as key=value pairs. Values that parse as JSON (numbers,
booleans, objects) are sent as such; anything else is sent as a string.
Use --params to pass the whole parameter object as JSON instead.

With --stream the call goes to the streaming endpoint and chunks are printed
as they arrive. With --render the collected text is rendered as markdown.

Examples:
  mcprelay call add --param a=2 --param b=3
  mcprelay call deepwiki --param query="how does the relay work" --stream
  mcprelay call review-code --params '{"code":"fmt.Println(1)"}' --render`

const callShortDesc string = "Call a method"

func NewCallCmd() *cobra.Command {
	cmder := &callCommander{}

	cmd := &cobra.Command{
		Use:   "call <method>",
		Short: callShortDesc,
		Long:  callLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = config.Load(cmd, config.Flags, callFlags)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.method = args[0]
			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringArrayVarP(&cmder.params, "param", "p", nil, "Method parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&cmder.jsonParams, "params", "", "Method parameters as a JSON object")
	cmd.Flags().BoolVarP(&cmder.stream, "stream", "s", false, "Stream the response as it arrives")
	cmd.Flags().BoolVarP(&cmder.render, "render", "r", false, "Render the response text as markdown")
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.MarkFlagsMutuallyExclusive("param", "params")

	return cmd
}

func (c *callCommander) run(ctx context.Context, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	params, err := BuildParams(c.params, c.jsonParams)
	if err != nil {
		return err
	}

	cl, err := client.New(c.cfg.Client.APITarget)
	if err != nil {
		return err
	}

	if c.stream && !c.render {
		return streamTo(ctx, out, cl, c.method, params)
	}

	var res content.Result
	err = cliui.Step(errOut, fmt.Sprintf("Calling %s", c.method), func() error {
		var callErr error
		if c.stream {
			res, callErr = collectStream(ctx, cl, c.method, params)
		} else {
			res, callErr = cl.Call(ctx, c.method, params)
		}
		return callErr
	})
	if err != nil {
		return err
	}

	text := res.Text()
	if c.render {
		rendered, rerr := cliui.RenderMarkdown(text)
		if rerr == nil {
			text = rendered
		}
	}

	fmt.Fprintln(out, strings.TrimRight(text, "\n"))
	return nil
}

// streamTo prints chunk text as it arrives.
func streamTo(ctx context.Context, out io.Writer, cl *client.Client, method string, params json.RawMessage) error {
	s, err := cl.Stream(ctx, method, params)
	if err != nil {
		return err
	}
	defer s.Close()

	for {
		chunk, err := s.Next()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		if chunk.Type == content.TypeText {
			fmt.Fprint(out, chunk.Text)
		}
	}
}

func collectStream(ctx context.Context, cl *client.Client, method string, params json.RawMessage) (content.Result, error) {
	s, err := cl.Stream(ctx, method, params)
	if err != nil {
		return content.Result{}, err
	}
	return content.Collect(s)
}

// BuildParams assembles the JSON params object from key=value pairs, or
// validates and returns jsonParams when it is set. No parameters yields nil.
func BuildParams(pairs []string, jsonParams string) (json.RawMessage, error) {
	if jsonParams != "" {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(jsonParams), &obj); err != nil {
			return nil, fmt.Errorf("--params must be a JSON object: %w", err)
		}
		return json.RawMessage(jsonParams), nil
	}

	if len(pairs) == 0 {
		return nil, nil
	}

	obj := make(map[string]json.RawMessage, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: expected key=value", pair)
		}
		obj[key] = paramValue(value)
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encoding params: %w", err)
	}
	return data, nil
}

// paramValue keeps values that are valid JSON and quotes everything else.
func paramValue(v string) json.RawMessage {
	if json.Valid([]byte(v)) {
		return json.RawMessage(v)
	}
	quoted, _ := json.Marshal(v)
	return quoted
}
