// Package mcpserver implements the upstream-facing MCP server (C7): a
// fixed mcp.router.* tool vocabulary backed by the router's semantic layer,
// served over stdio, SSE, or streamable HTTP.
//
// Errors from the router are encoded as a text content part with IsError
// set, rather than as protocol-level JSON-RPC errors — callers see a tool
// result they can display, not a transport failure.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/mark3labs/mcp-go/mcp"
	sdkserver "github.com/mark3labs/mcp-go/server"

	"github.com/mcprouter/mcprouter/internal/mcpconfig"
	"github.com/mcprouter/mcprouter/internal/router"
	"github.com/mcprouter/mcprouter/internal/routererr"
)

// toolHandler matches mcp-go's ToolHandlerFunc signature; kept as our own
// alias so the hand-rolled HTTP transport can dispatch through the exact
// same handlers registered with the SDK, without depending on any
// SDK-internal dispatch path.
type toolHandler func(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error)

// Server wires the router's operations into an mcp-go MCPServer as the
// fixed mcp.router.* tool vocabulary. It also keeps its own tool/handler
// lists so the hand-rolled streamable-HTTP transport can list and invoke
// tools without touching stdio/SSE-specific SDK machinery.
type Server struct {
	router                  *router.Router
	allowInstanceManagement bool
	mcpServer               *sdkserver.MCPServer
	dataDir                 string

	tools    []mcpsdk.Tool
	handlers map[string]toolHandler
}

// New builds the mcp-go server instance and registers every meta-tool.
// dataDir is stored on the Server but not read by any handler; mcp.router.add
// writes settings through the router's registry, which has its own root.
func New(r *router.Router, allowInstanceManagement bool, dataDir, version string) *Server {
	mcpServer := sdkserver.NewMCPServer(
		"mcprouter", version,
		sdkserver.WithToolCapabilities(true),
		sdkserver.WithLogging(),
		sdkserver.WithRecovery(),
	)

	s := &Server{
		router:                  r,
		allowInstanceManagement: allowInstanceManagement,
		mcpServer:               mcpServer,
		dataDir:                 dataDir,
		handlers:                make(map[string]toolHandler),
	}
	s.registerTools()
	return s
}

// MCPServer exposes the underlying mcp-go server, for the SSE/HTTP mounting
// code that lives alongside this package.
func (s *Server) MCPServer() *sdkserver.MCPServer {
	return s.mcpServer
}

// Tools returns the registered tool definitions, for the hand-rolled HTTP
// transport's tools/list response.
func (s *Server) Tools() []mcpsdk.Tool {
	return s.tools
}

// CallTool dispatches to the handler registered for name, for the
// hand-rolled HTTP transport's tools/call method. An unknown tool name
// (e.g. a management tool raw-called while allowInstanceManagement is
// false) is encoded as an errorResult(), never returned as a Go error, so
// every transport shares the same tool-result failure shape.
func (s *Server) CallTool(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	h, ok := s.handlers[req.Params.Name]
	if !ok {
		return errorResult(routererr.Internal("unknown tool: %s", req.Params.Name)), nil
	}
	return h(ctx, req)
}

// add registers tool with both the SDK server and this façade's own lookup
// table, so every transport sees the same tool set.
func (s *Server) add(tool mcpsdk.Tool, handler toolHandler) {
	s.mcpServer.AddTool(tool, sdkserver.ToolHandlerFunc(handler))
	s.tools = append(s.tools, tool)
	s.handlers[tool.Name] = handler
}

func (s *Server) registerTools() {
	s.add(mcpsdk.NewTool("mcp.router.use",
		mcpsdk.WithDescription("Select an MCP instance as the default target for subsequent mcp.router.call invocations that omit an instance name."),
		mcpsdk.WithString("instance", mcpsdk.Required(), mcpsdk.Description("The instance name to select.")),
	), s.handleUse)

	s.add(mcpsdk.NewTool("mcp.router.list",
		mcpsdk.WithDescription("List every configured MCP instance and its connection status."),
	), s.handleList)

	s.add(mcpsdk.NewTool("mcp.router.help",
		mcpsdk.WithDescription("Describe the tools exposed by an instance (or the currently selected instance if omitted)."),
		mcpsdk.WithString("instance", mcpsdk.Description("The instance name to describe. Defaults to the currently selected instance.")),
	), s.handleHelp)

	s.add(mcpsdk.NewTool("mcp.router.call",
		mcpsdk.WithDescription("Invoke a tool on an MCP instance (the currently selected instance if none is given)."),
		mcpsdk.WithString("instance", mcpsdk.Description("The instance to call. Defaults to the currently selected instance.")),
		mcpsdk.WithString("tool", mcpsdk.Required(), mcpsdk.Description("The tool name to invoke.")),
		mcpsdk.WithObject("arguments", mcpsdk.Description("Arguments to pass to the tool.")),
	), s.handleCall)

	if !s.allowInstanceManagement {
		return
	}

	s.add(mcpsdk.NewTool("mcp.router.add",
		mcpsdk.WithDescription("Register a new MCP instance."),
		mcpsdk.WithString("provider_name", mcpsdk.Required(), mcpsdk.Description("On-disk provider directory name.")),
		mcpsdk.WithObject("config", mcpsdk.Required(), mcpsdk.Description("Instance settings: name, type, command, args, env, isActive.")),
	), s.handleAdd)

	s.add(mcpsdk.NewTool("mcp.router.remove",
		mcpsdk.WithDescription("Disconnect and permanently delete an MCP instance."),
		mcpsdk.WithString("instance", mcpsdk.Required(), mcpsdk.Description("The instance name to remove.")),
	), s.handleRemove)

	s.add(mcpsdk.NewTool("mcp.router.enable",
		mcpsdk.WithDescription("Mark an MCP instance active and connect it."),
		mcpsdk.WithString("instance", mcpsdk.Required(), mcpsdk.Description("The instance name to enable.")),
	), s.handleEnable)

	s.add(mcpsdk.NewTool("mcp.router.disable",
		mcpsdk.WithDescription("Mark an MCP instance inactive. Does not disconnect an already-connected instance."),
		mcpsdk.WithString("instance", mcpsdk.Required(), mcpsdk.Description("The instance name to disable.")),
	), s.handleDisable)
}

func (s *Server) handleUse(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["instance"].(string)
	return textResult(s.router.Use(name)), nil
}

func (s *Server) handleList(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	summaries := s.router.List()
	out, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(string(out)), nil
}

func (s *Server) handleHelp(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["instance"].(string)
	tools, err := s.router.Help(name)
	if err != nil {
		return errorResult(err), nil
	}
	out, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(string(out)), nil
}

func (s *Server) handleCall(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args := req.GetArguments()
	instance, _ := args["instance"].(string)
	tool, _ := args["tool"].(string)
	toolArgs, _ := args["arguments"].(map[string]any)

	result, err := s.router.Call(ctx, instance, tool, toolArgs)
	if err != nil {
		return errorResult(err), nil
	}
	return textResult(result), nil
}

func (s *Server) handleAdd(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args := req.GetArguments()
	providerName, _ := args["provider_name"].(string)
	configRaw, ok := args["config"].(map[string]any)
	if !ok {
		return errorResult(routererr.Validation("config must be an object")), nil
	}

	settings, err := settingsFromArgs(providerName, configRaw)
	if err != nil {
		return errorResult(err), nil
	}

	outcome := s.router.Add(ctx, providerName, settings)
	return textResult(outcome), nil
}

func (s *Server) handleRemove(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["instance"].(string)
	return textResult(s.router.Remove(name)), nil
}

func (s *Server) handleEnable(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["instance"].(string)
	return textResult(s.router.Enable(ctx, name)), nil
}

func (s *Server) handleDisable(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["instance"].(string)
	return textResult(s.router.Disable(name)), nil
}

func settingsFromArgs(providerName string, config map[string]any) (*mcpconfig.Settings, error) {
	name, _ := config["name"].(string)
	if name == "" {
		name = providerName
	}
	typ, _ := config["type"].(string)
	if typ == "" {
		typ = "stdio"
	}
	command, _ := config["command"].(string)

	var args []string
	if rawArgs, ok := config["args"].([]any); ok {
		for _, a := range rawArgs {
			if s, ok := a.(string); ok {
				args = append(args, s)
			}
		}
	}

	env := map[string]string{}
	if rawEnv, ok := config["env"].(map[string]any); ok {
		for k, v := range rawEnv {
			if s, ok := v.(string); ok {
				env[k] = s
			}
		}
	}

	isActive := true
	if v, ok := config["isActive"].(bool); ok {
		isActive = v
	}

	return &mcpconfig.Settings{
		Name:     name,
		Type:     typ,
		Command:  command,
		Args:     args,
		Env:      env,
		IsActive: isActive,
		Provider: providerName,
	}, nil
}

func textResult(s string) *mcpsdk.CallToolResult {
	return mcpsdk.NewToolResultText(s)
}

func errorResult(err error) *mcpsdk.CallToolResult {
	return mcpsdk.NewToolResultError(fmt.Sprintf("{\"error\": %q, \"code\": %q}", err.Error(), string(routererr.AsRouterError(err).Code)))
}
