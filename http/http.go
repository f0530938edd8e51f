// Package http serves the facilitator over HTTP with gin.
package http

import (
	"encoding/json"
)

// Header and context keys
const (
	PaymentHeader   = "X-PAYMENT"
	RequestIDHeader = "X-Request-ID"

	ContextKeyRequestID = "requestID"
	ContextKeyPayment   = "x402Payment"
)

// Route paths
const (
	PathVerify    = "/verify"
	PathSettle    = "/settle"
	PathStatus    = "/status"
	PathSupported = "/supported"
	PathHealth    = "/health"
	PathMetrics   = "/metrics"
	PathMCP       = "/mcp"
)

// FacilitatorRequest is the body of /verify and /settle
type FacilitatorRequest struct {
	XPaymentB64         string          `json:"x_payment_b64"`
	PaymentRequirements json.RawMessage `json:"payment_requirements"`
}

// StatusRequest is the body of /status
type StatusRequest struct {
	Transaction         string          `json:"transaction"`
	PaymentRequirements json.RawMessage `json:"payment_requirements"`
}

// HealthResponse is the body of /health
type HealthResponse struct {
	OK bool `json:"ok"`
}

// ErrorResponse is returned for requests that are not JSON
type ErrorResponse struct {
	Error string `json:"error"`
}
