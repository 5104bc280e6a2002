package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coingraph/server/internal/agent/model"
	errx "github.com/coingraph/server/internal/core/error"
	"github.com/coingraph/server/internal/server"
)

type stubWorkflow struct {
	out   *model.QueryOutput
	err   error
	calls int
}

func (s *stubWorkflow) Invoke(ctx context.Context, in model.QueryInput) (*model.QueryOutput, error) {
	s.calls++
	return s.out, s.err
}

func newTestRouter(wf server.Workflow) http.Handler {
	h := server.NewHandler(wf, server.Config{
		QueryRateLimit:  5,
		HealthRateLimit: 10,
		RateWindow:      "1m",
	})
	return server.NewRouter(h)
}

func postQuery(router http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestQuerySuccess(t *testing.T) {
	wf := &stubWorkflow{out: &model.QueryOutput{
		Result: "Bitcoin is trading at $65,000.",
		Data:   map[string]any{"bitcoin": map[string]any{"usd": 65000.0}},
	}}
	router := newTestRouter(wf)

	rec := postQuery(router, `{"query":"price of bitcoin"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeBody(t, rec)
	assert.Equal(t, "Bitcoin is trading at $65,000.", body["result"])
	assert.NotNil(t, body["data"])
	assert.Equal(t, 1, wf.calls)
}

func TestQueryEmptyIsRejectedWithoutInvoking(t *testing.T) {
	wf := &stubWorkflow{}
	router := newTestRouter(wf)

	for _, body := range []string{`{"query":""}`, `{"query":"   "}`, `{}`} {
		rec := postQuery(router, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errx.EmptyQueryMessage, decodeBody(t, rec)["error"])
	}
	assert.Equal(t, 0, wf.calls)
}

func TestQueryInvalidBody(t *testing.T) {
	wf := &stubWorkflow{}
	router := newTestRouter(wf)

	rec := postQuery(router, `{"query":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decodeBody(t, rec)["error"])
	assert.Equal(t, 0, wf.calls)
}

func TestQueryUnresolvedMapsToClientError(t *testing.T) {
	wf := &stubWorkflow{err: errx.QueryUnresolved()}
	router := newTestRouter(wf)

	rec := postQuery(router, `{"query":"what's the weather"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errx.QueryUnresolvedMessage, decodeBody(t, rec)["error"])
}

func TestQueryInternalErrorIsOpaque(t *testing.T) {
	wf := &stubWorkflow{err: fmt.Errorf("llm call failed: connection refused")}
	router := newTestRouter(wf)

	rec := postQuery(router, `{"query":"price of bitcoin"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, errx.SystemErrorMessage, body["error"])
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestQueryRateLimitPerClient(t *testing.T) {
	wf := &stubWorkflow{out: &model.QueryOutput{Result: "ok", Data: map[string]any{}}}
	router := newTestRouter(wf)

	for i := 0; i < 5; i++ {
		rec := postQuery(router, `{"query":"price of bitcoin"}`)
		require.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	rec := postQuery(router, `{"query":"price of bitcoin"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", decodeBody(t, rec)["error"])

	// A different client is unaffected.
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"price of bitcoin"}`))
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	other := httptest.NewRecorder()
	router.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&stubWorkflow{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestPanicInWorkflowYieldsJSONEnvelope(t *testing.T) {
	h := server.NewHandler(panickingWorkflow{}, server.Config{
		QueryRateLimit:  5,
		HealthRateLimit: 10,
		RateWindow:      "1m",
	})
	router := server.NewRouter(h)

	rec := postQuery(router, `{"query":"price of bitcoin"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errx.SystemErrorMessage, decodeBody(t, rec)["error"])
}

type panickingWorkflow struct{}

func (panickingWorkflow) Invoke(ctx context.Context, in model.QueryInput) (*model.QueryOutput, error) {
	panic("boom")
}
