package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/mcprelay/pkg/content"
	"github.com/papercomputeco/mcprelay/pkg/eventstream"
	"github.com/papercomputeco/mcprelay/pkg/worker"
)

// handleTool returns the tool handler for method. Method failures are
// reported in-band with IsError set so the model can see them.
func (s *Server) handleTool(method string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var params json.RawMessage
		if req.Params != nil {
			params = req.Params.Arguments
		}

		res, err := s.call(ctx, method, params)
		if err != nil {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{
					&mcp.TextContent{Text: err.Error()},
				},
			}, nil
		}

		return &mcp.CallToolResult{Content: toContent(res.Content)}, nil
	}
}

func (s *Server) handlePrompt(method string) mcp.PromptHandler {
	return func(ctx context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		var args map[string]string
		if req.Params != nil {
			args = req.Params.Arguments
		}

		params, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encoding prompt arguments: %w", err)
		}

		res, err := s.call(ctx, method, params)
		if err != nil {
			return nil, err
		}

		messages := make([]*mcp.PromptMessage, 0, len(res.Content))
		for _, c := range res.Content {
			messages = append(messages, &mcp.PromptMessage{
				Role:    "user",
				Content: &mcp.TextContent{Text: c.Text},
			})
		}
		return &mcp.GetPromptResult{Messages: messages}, nil
	}
}

func (s *Server) handleResource(method string) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := ResourceURIPrefix + method
		if req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}

		params, err := json.Marshal(map[string]string{"uri": uri})
		if err != nil {
			return nil, err
		}

		res, err := s.call(ctx, method, params)
		if err != nil {
			return nil, err
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: uri, MIMEType: "text/plain", Text: res.Text()},
			},
		}, nil
	}
}

// call dispatches method in buffered mode and records telemetry.
func (s *Server) call(ctx context.Context, method string, params json.RawMessage) (content.Result, error) {
	start := time.Now()

	outcome, err := s.config.Dispatcher.Dispatch(ctx, method, params, false)
	var res content.Result
	if err == nil {
		res = *outcome.Result
	}

	s.logger.Debug("mcp call",
		"method", method,
		"duration", time.Since(start),
		"error", err,
	)
	s.publish(method, start, len(res.Content), err)

	return res, err
}

func (s *Server) publish(method string, start time.Time, chunks int, err error) {
	if s.config.Pool == nil {
		return
	}

	meta := eventstream.CallMeta{
		Method:    method,
		StartedAt: start,
		Chunks:    chunks,
	}
	if err != nil {
		meta.Error = err.Error()
	}

	s.config.Pool.Enqueue(worker.Job{
		Event: eventstream.NewCallCompletedEvent(eventstream.EventSource{
			Component: eventstream.ComponentMCP,
			Upstream:  s.config.Upstream,
		}, meta),
	})
}

func toContent(chunks []content.Chunk) []mcp.Content {
	out := make([]mcp.Content, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, &mcp.TextContent{Text: c.Text})
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
