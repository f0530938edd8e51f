package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	x402 "github.com/x402-foundation/x402-cardano"
)

// ServerConfig configures the facilitator router
type ServerConfig struct {
	// Facilitator handles verify, settle and status (required)
	Facilitator *x402.Facilitator

	// Resource, when set, is served behind the 402 paywall at Resource.Resource
	Resource *x402.PaymentRequirements

	// MetricsHandler is mounted at /metrics (optional)
	MetricsHandler http.Handler

	// MCPHandler is mounted under /mcp (optional)
	MCPHandler http.Handler

	// Logger for access logs (optional)
	Logger *zap.Logger
}

// NewRouter builds the gin engine serving the facilitator endpoints
func NewRouter(config ServerConfig) *gin.Engine {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(AccessLog(logger))

	h := &handlers{facilitator: config.Facilitator}

	router.POST(PathVerify, h.verify)
	router.POST(PathSettle, h.settle)
	router.POST(PathStatus, h.status)
	router.GET(PathSupported, h.supported)
	router.GET(PathHealth, func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{OK: true})
	})

	if config.MetricsHandler != nil {
		router.GET(PathMetrics, gin.WrapH(config.MetricsHandler))
	}
	if config.MCPHandler != nil {
		router.Any(PathMCP+"/*path", gin.WrapH(config.MCPHandler))
	}

	if config.Resource != nil {
		router.Any(config.Resource.Resource,
			PaymentMiddleware(config.Facilitator, *config.Resource),
			func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{
					"message": "You've unlocked the protected resource via x402.",
				})
			})
	}

	return router
}

type handlers struct {
	facilitator *x402.Facilitator
}

func (h *handlers) verify(c *gin.Context) {
	var req FacilitatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.facilitator.Verify(c.Request.Context(), req.XPaymentB64))
}

func (h *handlers) settle(c *gin.Context) {
	var req FacilitatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	writeSettle(c, h.facilitator.Settle(c.Request.Context(), req.XPaymentB64, req.PaymentRequirements))
}

func (h *handlers) status(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	writeSettle(c, h.facilitator.Status(c.Request.Context(), req.Transaction, req.PaymentRequirements))
}

func (h *handlers) supported(c *gin.Context) {
	c.JSON(http.StatusOK, h.facilitator.Supported())
}

// writeSettle answers 202 for pending settlements and 200 otherwise
func writeSettle(c *gin.Context, resp x402.SettleResponse) {
	status := http.StatusOK
	if resp.Pending {
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}
