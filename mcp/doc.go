// Package mcp exposes the facilitator as Model Context Protocol tools.
//
// Agents that speak MCP can verify an X-PAYMENT value, settle it and poll its
// status without going through the REST endpoints. Each tool returns the same JSON
// document the matching HTTP endpoint would.
//
// # Tools
//
//   - verify: {x_payment_b64}
//   - settle: {x_payment_b64, payment_requirements}
//   - status: {transaction, payment_requirements}
//   - supported: {}
//
// # Usage
//
//	server := mcp.NewServer(facilitator, mcp.Options{})
//	router.Any("/mcp/*path", gin.WrapH(server.SSEHandler()))
package mcp
