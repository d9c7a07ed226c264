// Package middleware contains the gin middleware for the HTTP surface.
package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orderbridge/backend/internal/interfaces/http/dto"
)

// SignatureHeader carries the platform's webhook HMAC signature
const SignatureHeader = "X-Shopify-Hmac-Sha256"

// maxWebhookPayloadSize bounds webhook bodies; order payloads are small
const maxWebhookPayloadSize = 1 << 20 // 1MB

// SignatureVerifier checks a raw webhook body against its signature.
// shopcommerce.Config.VerifyWebhookSignature is the production implementation.
type SignatureVerifier func(body []byte, signature string) bool

// WebhookSignature verifies the HMAC signature of the raw request body before
// any handler parses it. The body is restored on the request so handlers can
// read it again. Unsigned or tampered deliveries are rejected with 401; the
// platform does not retry those.
func WebhookSignature(verify SignatureVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayloadSize+1))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				dto.NewErrorResponse(dto.ErrCodeBadRequest, "failed to read request body"))
			return
		}
		if len(body) > maxWebhookPayloadSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse(dto.ErrCodePayloadTooLarge, "webhook payload too large"))
			return
		}

		signature := c.GetHeader(SignatureHeader)
		if signature == "" || !verify(body, signature) {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				dto.NewErrorResponse(dto.ErrCodeUnauthorized, "webhook signature verification failed"))
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}
