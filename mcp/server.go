// Package mcp provides the MCP (Model Context Protocol) server for classgraph.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gitlab.com/tozd/go/errors"

	"github.com/Benny93/classgraph/internal/graph"
	"github.com/Benny93/classgraph/internal/ingestion"
)

const (
	serverName    = "classgraph"
	serverVersion = "0.1.0"

	schemaURI = "classgraph://schema"
)

// ErrUnknownMember is returned by classgraph_member for names the class does
// not declare.
var ErrUnknownMember = errors.Base("member not declared")

// Server represents the MCP server.
type Server struct {
	analyzer *ingestion.Analyzer
	server   *mcp.Server
}

// AnalyzeArgs are the arguments of classgraph_analyze and classgraph_unused.
type AnalyzeArgs struct {
	Path string `json:"path" jsonschema:"path to a .java source file"`
}

// MemberArgs are the arguments of classgraph_member.
type MemberArgs struct {
	Path   string `json:"path" jsonschema:"path to a .java source file"`
	Member string `json:"member" jsonschema:"field or method name; <init> for constructors"`
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server analyzing files with analyzer.
func NewServer(analyzer *ingestion.Analyzer) *Server {
	s := &Server{analyzer: analyzer}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "classgraph_analyze",
			Description: "Analyze one Java class: its fields, methods, read/write/call edges and diagnostics.",
			InputSchema: schemaFor[AnalyzeArgs](),
		},
		{
			Name:        "classgraph_member",
			Description: "Show what one field or method touches and what touches it.",
			InputSchema: schemaFor[MemberArgs](),
		},
		{
			Name:        "classgraph_unused",
			Description: "List fields no method reads or writes and methods no other method calls.",
			InputSchema: schemaFor[AnalyzeArgs](),
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         schemaURI,
			Name:        "Member Graph Schema",
			Description: "Node and edge kinds of the member graph",
			MimeType:    "text/markdown",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	path, _ := args["path"].(string)

	switch name {
	case "classgraph_analyze":
		return s.handleAnalyze(ctx, path)
	case "classgraph_member":
		member, _ := args["member"].(string)
		return s.handleMember(ctx, path, member)
	case "classgraph_unused":
		return s.handleUnused(ctx, path)
	default:
		return "", errors.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case schemaURI:
		return getSchema(), nil
	default:
		return "", errors.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return errors.New("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// One compact message per line.

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			if err := encoder.Encode(errorResponse(nil, -32700, "Parse error")); err != nil {
				return err
			}
			continue
		}

		// Notifications carry no id and get no response.
		if _, ok := req["id"]; !ok {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

// RunSDK serves the same tools through the go-sdk stdio transport.
func (s *Server) RunSDK(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// SDK returns the underlying go-sdk server.
func (s *Server) SDK() *mcp.Server {
	return s.server
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "ping":
		return map[string]any{"jsonrpc": "2.0", "id": id, "result": map[string]any{}}
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    serverName,
				"version": serverVersion,
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": tool.InputSchema,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return map[string]any{
			"jsonrpc": "2.0",
			"id":      id,
			"result": map[string]any{
				"content": []map[string]any{{"type": "text", "text": err.Error()}},
				"isError": true,
			},
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32002, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/markdown",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func (s *Server) analyze(ctx context.Context, path string) (*ingestion.Result, error) {
	if path == "" {
		return nil, errors.New("no path provided")
	}
	return s.analyzer.AnalyzeFile(ctx, path)
}

func (s *Server) handleAnalyze(ctx context.Context, path string) (string, error) {
	res, err := s.analyze(ctx, path)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n", res.Path)
	if res.Package != "" {
		fmt.Fprintf(&sb, "Package: `%s`\n\n", res.Package)
	}

	fmt.Fprintf(&sb, "### Fields (%d)\n", len(res.Declarations.Fields))
	for _, f := range res.Declarations.Fields {
		fmt.Fprintf(&sb, "- %s\n", f)
	}
	fmt.Fprintf(&sb, "\n### Methods (%d)\n", len(res.Declarations.Methods))
	for _, m := range res.Declarations.Methods {
		fmt.Fprintf(&sb, "- %s\n", displayName(res, m))
	}

	fmt.Fprintf(&sb, "\n### Edges (%d)\n", len(res.Graph.Relationships))
	for _, rel := range res.Graph.Relationships {
		fmt.Fprintf(&sb, "- %s %s %s\n", displayName(res, rel.Source), rel.Type, displayName(res, rel.Target))
	}

	writeDiagnostics(&sb, res.Diagnostics)

	sb.WriteString("\nNext: Use `classgraph_member` on a field or method for its neighbours.")
	return sb.String(), nil
}

func (s *Server) handleMember(ctx context.Context, path, member string) (string, error) {
	if member == "" {
		return "", errors.New("no member provided")
	}
	res, err := s.analyze(ctx, path)
	if err != nil {
		return "", err
	}

	g := res.KnowledgeGraph()
	node := g.GetNode(member)
	if node == nil {
		return "", errors.Errorf("%s in %s: %w", member, res.Path, ErrUnknownMember)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s (%s)\n\n", node.Name, node.Label)

	section := func(title string, rels []*graph.GraphRelationship, other func(*graph.GraphRelationship) string) {
		if len(rels) == 0 {
			return
		}
		fmt.Fprintf(&sb, "### %s (%d)\n", title, len(rels))
		for _, rel := range rels {
			fmt.Fprintf(&sb, "- %s\n", displayName(res, other(rel)))
		}
		sb.WriteString("\n")
	}
	source := func(rel *graph.GraphRelationship) string { return rel.Source }
	target := func(rel *graph.GraphRelationship) string { return rel.Target }

	if node.Label == graph.NodeField {
		section("Read by", g.GetIncoming(member, graph.RelRead), source)
		section("Written by", g.GetIncoming(member, graph.RelWrite), source)
	} else {
		section("Reads", g.GetOutgoing(member, graph.RelRead), target)
		section("Writes", g.GetOutgoing(member, graph.RelWrite), target)
		section("Calls", g.GetOutgoing(member, graph.RelCall), target)
		section("Called by", g.GetIncoming(member, graph.RelCall), source)
	}

	if len(g.GetIncoming(member)) == 0 && len(g.GetOutgoing(member)) == 0 {
		sb.WriteString("No edges. The member is isolated within the class.\n")
	}

	return sb.String(), nil
}

func (s *Server) handleUnused(ctx context.Context, path string) (string, error) {
	res, err := s.analyze(ctx, path)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("## Unused Members\n\n")

	if len(res.Unused) == 0 {
		fmt.Fprintf(&sb, "Every member of %s is referenced within the class.\n", res.Path)
		return sb.String(), nil
	}

	fmt.Fprintf(&sb, "Found %d unused members in %s:\n\n", len(res.Unused), res.Path)
	g := res.KnowledgeGraph()
	for _, id := range res.Unused {
		label := ""
		if node := g.GetNode(id); node != nil {
			label = string(node.Label)
		}
		fmt.Fprintf(&sb, "- `%s` (%s)\n", id, label)
	}
	sb.WriteString("\nCallers outside the class are not visible to this analysis.")

	return sb.String(), nil
}

// Resource Handlers

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# classgraph Member Graph Schema\n\n")
	sb.WriteString("## Node Labels\n\n")
	sb.WriteString("| Label | Description |\n")
	sb.WriteString("|-------|-------------|\n")
	fmt.Fprintf(&sb, "| `%s` | Declared field variable |\n", graph.NodeField)
	fmt.Fprintf(&sb, "| `%s` | Declared method, by name |\n", graph.NodeMethod)
	fmt.Fprintf(&sb, "| `%s` | All constructors, id `<init>` |\n", graph.NodeConstructor)
	sb.WriteString("\n## Relationship Types\n\n")
	sb.WriteString("| Type | Source → Target |\n")
	sb.WriteString("|------|-----------------|\n")
	fmt.Fprintf(&sb, "| `%s` | Method → Field |\n", graph.RelRead)
	fmt.Fprintf(&sb, "| `%s` | Method → Field |\n", graph.RelWrite)
	fmt.Fprintf(&sb, "| `%s` | Method → Method |\n", graph.RelCall)
	sb.WriteString("\nNames that resolve to no declared member are reported as diagnostics, not edges.\n")

	return sb.String()
}

// Helper functions

func displayName(res *ingestion.Result, id string) string {
	for _, n := range res.Graph.Nodes {
		if n.ID == id {
			return n.Name
		}
	}
	return id
}

func writeDiagnostics(sb *strings.Builder, diags []graph.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n### Diagnostics (%d)\n", len(diags))
	for _, d := range diags {
		fmt.Fprintf(sb, "- %s\n", d.String())
	}
}

func schemaFor[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("inferring schema: %v", err))
	}
	return schema
}

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

// registerTools registers the tools with the go-sdk server, sharing the
// handlers used by CallTool.
func (s *Server) registerTools() {
	tools := s.ListTools()
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}

	sdkTool := func(name string) *mcp.Tool {
		t := byName[name]
		return &mcp.Tool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}

	mcp.AddTool(s.server, sdkTool("classgraph_analyze"), func(ctx context.Context, req *mcp.CallToolRequest, args AnalyzeArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.handleAnalyze(ctx, args.Path)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(s.server, sdkTool("classgraph_member"), func(ctx context.Context, req *mcp.CallToolRequest, args MemberArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.handleMember(ctx, args.Path, args.Member)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})

	mcp.AddTool(s.server, sdkTool("classgraph_unused"), func(ctx context.Context, req *mcp.CallToolRequest, args AnalyzeArgs) (*mcp.CallToolResult, any, error) {
		text, err := s.handleUnused(ctx, args.Path)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(text), nil, nil
	})
}

// registerResources registers the resources with the go-sdk server.
func (s *Server) registerResources() {
	for _, r := range s.ListResources() {
		uri := r.URI
		s.server.AddResource(&mcp.Resource{
			URI:         uri,
			Name:        r.Name,
			Description: r.Description,
			MIMEType:    r.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, uri)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{URI: uri, MIMEType: r.MimeType, Text: text}},
			}, nil
		})
	}
}
