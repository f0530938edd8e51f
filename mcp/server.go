package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	x402 "github.com/x402-foundation/x402-cardano"
)

// Tool names
const (
	ToolVerify    = "verify"
	ToolSettle    = "settle"
	ToolStatus    = "status"
	ToolSupported = "supported"
)

// Options configures the MCP server
type Options struct {
	// Name reported to clients (optional, defaults to "x402-cardano-facilitator")
	Name string

	// Version reported to clients (optional, defaults to "1.0.0")
	Version string
}

// Server wraps an MCP server whose tools call a facilitator
type Server struct {
	facilitator *x402.Facilitator
	server      *mcpsdk.Server
}

// NewServer creates an MCP server with the facilitator tools registered
func NewServer(facilitator *x402.Facilitator, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "x402-cardano-facilitator"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}

	s := &Server{
		facilitator: facilitator,
		server: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    opts.Name,
			Version: opts.Version,
		}, nil),
	}

	paymentProperty := map[string]interface{}{
		"type":        "string",
		"description": "Base64 encoded x402 payment envelope (the X-PAYMENT header value)",
	}
	requirementsProperty := map[string]interface{}{
		"type":        "object",
		"description": "x402 payment required document; accepts[0] is used",
	}

	s.server.AddTool(&mcpsdk.Tool{
		Name:        ToolVerify,
		Description: "Check that an x402 payment envelope is well formed",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"x_payment_b64": paymentProperty},
			"required":   []string{"x_payment_b64"},
		},
	}, s.handleVerify)

	s.server.AddTool(&mcpsdk.Tool{
		Name:        ToolSettle,
		Description: "Submit the payment transaction once and report its confirmation state",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"x_payment_b64":        paymentProperty,
				"payment_requirements": requirementsProperty,
			},
			"required": []string{"x_payment_b64", "payment_requirements"},
		},
	}, s.handleSettle)

	s.server.AddTool(&mcpsdk.Tool{
		Name:        ToolStatus,
		Description: "Report whether a submitted payment transaction is confirmed",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"transaction": map[string]interface{}{
					"type":        "string",
					"description": "Transaction hash returned by settle",
				},
				"payment_requirements": requirementsProperty,
			},
			"required": []string{"transaction", "payment_requirements"},
		},
	}, s.handleStatus)

	s.server.AddTool(&mcpsdk.Tool{
		Name:        ToolSupported,
		Description: "List the payment kinds this facilitator supports",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}, s.handleSupported)

	return s
}

// MCPServer returns the underlying SDK server
func (s *Server) MCPServer() *mcpsdk.Server {
	return s.server
}

// SSEHandler serves the tools over the MCP SSE transport
func (s *Server) SSEHandler() http.Handler {
	return mcpsdk.NewSSEHandler(func(*http.Request) *mcpsdk.Server {
		return s.server
	}, nil)
}

// ============================================================================
// Tool Handlers
// ============================================================================

type toolArgs struct {
	XPaymentB64         string          `json:"x_payment_b64"`
	Transaction         string          `json:"transaction"`
	PaymentRequirements json.RawMessage `json:"payment_requirements"`
}

func (s *Server) handleVerify(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errorResult(err), nil
	}
	result := s.facilitator.Verify(ctx, args.XPaymentB64)
	return jsonResult(result, !result.IsValid)
}

func (s *Server) handleSettle(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errorResult(err), nil
	}
	result := s.facilitator.Settle(ctx, args.XPaymentB64, args.PaymentRequirements)
	return jsonResult(result, isFailure(result))
}

func (s *Server) handleStatus(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errorResult(err), nil
	}
	result := s.facilitator.Status(ctx, args.Transaction, args.PaymentRequirements)
	return jsonResult(result, isFailure(result))
}

func (s *Server) handleSupported(_ context.Context, _ *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	return jsonResult(s.facilitator.Supported(), false)
}

// ============================================================================
// Helpers
// ============================================================================

func parseArgs(req *mcpsdk.CallToolRequest) (toolArgs, error) {
	var args toolArgs
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return args, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return args, nil
}

// isFailure reports terminal failures; pending settlements are not errors
func isFailure(resp x402.SettleResponse) bool {
	return !resp.Success && !resp.Pending
}

func jsonResult(v interface{}, isError bool) (*mcpsdk.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		IsError: isError,
	}, nil
}

func errorResult(err error) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}
}
