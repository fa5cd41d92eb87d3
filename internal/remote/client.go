// Package remote runs submissions through a lab-runner MCP tool server
// instead of a local sandbox.
package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// Connection wraps an mcp-go stdio client for a single tool server.
type Connection struct {
	name   string
	client *client.Client
	tools  []mcp.Tool
}

// Dial launches an MCP server subprocess and initializes the connection.
func Dial(ctx context.Context, name, binary string, env []string) (*Connection, error) {
	c, err := client.NewStdioMCPClient(binary, env)
	if err != nil {
		return nil, fmt.Errorf("starting MCP server %s (%s): %w", name, binary, err)
	}

	// Initialize the MCP protocol
	_, err = c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ClientInfo: mcp.Implementation{
				Name:    "vlab",
				Version: "0.1.0",
			},
		},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("initializing MCP server %s: %w", name, err)
	}

	// Discover tools
	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("listing tools from %s: %w", name, err)
	}

	return &Connection{
		name:   name,
		client: c,
		tools:  result.Tools,
	}, nil
}

// HasTool reports whether the server advertises a tool.
func (mc *Connection) HasTool(name string) bool {
	for _, t := range mc.tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// CallTool invokes a tool on this MCP server and returns its text result.
// isError mirrors the tool's own error flag; err reports transport failures.
func (mc *Connection) CallTool(ctx context.Context, name string, args map[string]any) (text string, isError bool, err error) {
	result, err := mc.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("calling tool %s on %s: %w", name, mc.name, err)
	}

	// Extract text content from the result
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n"), result.IsError, nil
}

// Close shuts down the MCP server subprocess.
func (mc *Connection) Close() error {
	return mc.client.Close()
}
