package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	x402 "github.com/x402-foundation/x402-cardano"
)

// PaymentMiddleware guards a route with a 402 challenge.
// Requests without X-PAYMENT, or with an envelope that fails Verify, receive
// the payment requirements. Settlement is left to the client via /settle.
func PaymentMiddleware(facilitator *x402.Facilitator, requirements x402.PaymentRequirements) gin.HandlerFunc {
	return func(c *gin.Context) {
		paymentRequired := x402.PaymentRequired{
			X402Version: x402.ProtocolVersion,
			Accepts:     []x402.PaymentRequirements{requirements},
		}

		header := c.GetHeader(PaymentHeader)
		if header == "" {
			paymentRequired.Error = "Payment required"
			c.AbortWithStatusJSON(http.StatusPaymentRequired, paymentRequired)
			return
		}

		result := facilitator.Verify(c.Request.Context(), header)
		if !result.IsValid {
			paymentRequired.Error = result.InvalidReason
			c.AbortWithStatusJSON(http.StatusPaymentRequired, paymentRequired)
			return
		}

		c.Set(ContextKeyPayment, header)
		c.Next()
	}
}
