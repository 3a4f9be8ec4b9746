package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/taskmanager-auth/internal/httputil"
)

func TestRecoverer_RendersEnvelope(t *testing.T) {
	var hookStatus int
	boundary := httputil.NewBoundary(true, func(_ *http.Request, status int, _ error) {
		hookStatus = status
	})

	h := Recoverer(boundary)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, http.StatusInternalServerError, hookStatus)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Internal Server Error", resp.Message)
	assert.Equal(t, httputil.CodeInternalError, resp.Code)
	assert.NotNil(t, resp.Errors)
	assert.Contains(t, resp.Stack, "panic: boom")
}

func TestRecoverer_RepanicsOnAbort(t *testing.T) {
	h := Recoverer(httputil.NewBoundary(false, nil))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRecoverer_PassesThrough(t *testing.T) {
	h := Recoverer(httputil.NewBoundary(false, nil))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
