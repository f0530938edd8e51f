package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402 "github.com/x402-foundation/x402-cardano"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubGateway accepts every submission and confirms hashes on demand
type stubGateway struct {
	mu          sync.Mutex
	hash        string
	submitErr   error
	confirmed   map[string]bool
	submitCalls int
}

func newStubGateway(hash string) *stubGateway {
	return &stubGateway{hash: hash, confirmed: make(map[string]bool)}
}

func (g *stubGateway) Submit(context.Context, []byte) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitCalls++
	if g.submitErr != nil {
		return "", g.submitErr
	}
	return g.hash, nil
}

func (g *stubGateway) FetchConfirmedOutput(_ context.Context, query x402.ConfirmationQuery, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.confirmed[query.TxHash], nil
}

const requirementsJSON = `{"x402Version":1,"accepts":[{"scheme":"exact","network":"cardano-mainnet","maxAmountRequired":"10000","asset":"policy","payTo":"addr1qxpayto","resource":"/premium","extra":{"assetNameHex":"4e4654"}}]}`

func envelope(t *testing.T, tx []byte) string {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"x402Version": 1,
		"scheme":      "exact",
		"network":     "cardano",
		"payload":     map[string]interface{}{"transaction": base64.StdEncoding.EncodeToString(tx)},
	})
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(data)
}

func newTestRouter(gateway x402.LedgerGateway, resource *x402.PaymentRequirements) *gin.Engine {
	return NewRouter(ServerConfig{
		Facilitator: x402.NewFacilitator(gateway, x402.WithConfirmBudget(0)),
		Resource:    resource,
	})
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(http.MethodPost, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeSettle(t *testing.T, w *httptest.ResponseRecorder) x402.SettleResponse {
	t.Helper()
	var resp x402.SettleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	router := newTestRouter(newStubGateway("H1"), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, PathHealth, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequestIDPropagation(t *testing.T) {
	router := newTestRouter(newStubGateway("H1"), nil)

	req := httptest.NewRequest(http.MethodGet, PathHealth, nil)
	req.Header.Set(RequestIDHeader, "7b0f6c3e-6c55-4c1b-9a3d-2f0e8d1f4a10")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "7b0f6c3e-6c55-4c1b-9a3d-2f0e8d1f4a10", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, PathHealth, nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.NotEqual(t, "not-a-uuid", w.Header().Get(RequestIDHeader))
}

func TestSupported(t *testing.T) {
	router := newTestRouter(newStubGateway("H1"), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, PathSupported, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"kinds":[{"x402Version":1,"scheme":"exact","network":"cardano-mainnet"}]}`, w.Body.String())
}

func TestVerify(t *testing.T) {
	router := newTestRouter(newStubGateway("H1"), nil)

	w := postJSON(t, router, PathVerify, FacilitatorRequest{XPaymentB64: envelope(t, []byte{0x84, 0x01})})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"isValid":true}`, w.Body.String())

	w = postJSON(t, router, PathVerify, FacilitatorRequest{XPaymentB64: "garbage"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"isValid":false,"invalidReason":"invalid_payload"}`, w.Body.String())
}

func TestSettle_PendingThenConfirmed(t *testing.T) {
	gateway := newStubGateway("H1")
	router := newTestRouter(gateway, nil)
	body := map[string]interface{}{
		"x_payment_b64":        envelope(t, []byte{0x84, 0x01}),
		"payment_requirements": json.RawMessage(requirementsJSON),
	}

	w := postJSON(t, router, PathSettle, body)
	assert.Equal(t, http.StatusAccepted, w.Code)
	resp := decodeSettle(t, w)
	assert.True(t, resp.Pending)
	assert.Equal(t, "H1", resp.Transaction)
	assert.Equal(t, x402.ReasonInvalidTransactionState, resp.ErrorReason)

	gateway.confirmed["H1"] = true

	w = postJSON(t, router, PathSettle, body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"transaction":"H1","network":"cardano-mainnet"}`, w.Body.String())
	assert.Equal(t, 1, gateway.submitCalls)
}

func TestSettle_Rejected(t *testing.T) {
	gateway := newStubGateway("")
	gateway.submitErr = x402.NewSubmitError("BadInputsUTxO", nil)
	router := newTestRouter(gateway, nil)

	w := postJSON(t, router, PathSettle, map[string]interface{}{
		"x_payment_b64":        envelope(t, []byte{0x84, 0x02}),
		"payment_requirements": json.RawMessage(requirementsJSON),
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":false,"errorReason":"BadInputsUTxO","transaction":""}`, w.Body.String())
}

func TestSettle_MissingRequirements(t *testing.T) {
	router := newTestRouter(newStubGateway("H1"), nil)

	w := postJSON(t, router, PathSettle, FacilitatorRequest{XPaymentB64: envelope(t, []byte{0x84, 0x03})})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, x402.ReasonInvalidPaymentRequirements, decodeSettle(t, w).ErrorReason)
}

func TestStatus(t *testing.T) {
	gateway := newStubGateway("H1")
	router := newTestRouter(gateway, nil)
	body := map[string]interface{}{
		"transaction":          "H1",
		"payment_requirements": json.RawMessage(requirementsJSON),
	}

	w := postJSON(t, router, PathStatus, body)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, decodeSettle(t, w).Pending)

	gateway.confirmed["H1"] = true
	w = postJSON(t, router, PathStatus, body)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeSettle(t, w).Success)

	w = postJSON(t, router, PathStatus, map[string]interface{}{
		"payment_requirements": json.RawMessage(requirementsJSON),
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, x402.ReasonInvalidPaymentRequirements, decodeSettle(t, w).ErrorReason)
	assert.Equal(t, 0, gateway.submitCalls)
}

func TestMalformedBody(t *testing.T) {
	router := newTestRouter(newStubGateway("H1"), nil)

	for _, path := range []string{PathVerify, PathSettle, PathStatus} {
		w := postJSON(t, router, path, "{not json")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Error)
	}
}

func TestOptionalMounts(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics"))
	})
	router := NewRouter(ServerConfig{
		Facilitator:    x402.NewFacilitator(newStubGateway("H1")),
		MetricsHandler: metrics,
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, PathMetrics, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, PathMCP+"/sse", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
