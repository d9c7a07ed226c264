package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signatureTestRouter(verify SignatureVerifier) (*gin.Engine, *string) {
	gin.SetMode(gin.TestMode)
	var seenBody string
	engine := gin.New()
	engine.POST("/hook", WebhookSignature(verify), func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		seenBody = string(body)
		c.Status(http.StatusOK)
	})
	return engine, &seenBody
}

func TestWebhookSignature_ValidSignaturePassesAndBodyIsRestored(t *testing.T) {
	var verifiedBody []byte
	engine, seenBody := signatureTestRouter(func(body []byte, signature string) bool {
		verifiedBody = body
		return signature == "good"
	})

	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{"id":1}`))
	req.Header.Set(SignatureHeader, "good")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"id":1}`, string(verifiedBody))
	// Handler reads the same bytes the signature was computed over
	assert.Equal(t, `{"id":1}`, *seenBody)
}

func TestWebhookSignature_MissingSignatureRejected(t *testing.T) {
	engine, _ := signatureTestRouter(func([]byte, string) bool { return true })

	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "signature")
}

func TestWebhookSignature_TamperedBodyRejected(t *testing.T) {
	engine, _ := signatureTestRouter(func([]byte, string) bool { return false })

	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(`{}`))
	req.Header.Set(SignatureHeader, "forged")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookSignature_OversizedPayloadRejected(t *testing.T) {
	engine, _ := signatureTestRouter(func([]byte, string) bool { return true })

	body := bytes.Repeat([]byte("x"), maxWebhookPayloadSize+1)
	req := httptest.NewRequest(http.MethodPost, "/hook", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, "good")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
