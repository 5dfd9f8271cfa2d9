package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
	handler(c)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return resp
}

func TestOK(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		OK(c, gin.H{"name": "ns1"})
	})

	if w.Code != http.StatusOK {
		t.Errorf("status = %d; want %d", w.Code, http.StatusOK)
	}
	resp := decodeResponse(t, w)
	if resp.Code != CodeSuccess {
		t.Errorf("code = %d; want %d", resp.Code, CodeSuccess)
	}
	if resp.Message != "success" {
		t.Errorf("message = %q; want %q", resp.Message, "success")
	}
}

func TestFail_AppError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Fail(c, ErrNotFound("node not found"))
	})

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d; want %d", w.Code, http.StatusNotFound)
	}
	resp := decodeResponse(t, w)
	if resp.Code != CodeNotFound {
		t.Errorf("code = %d; want %d", resp.Code, CodeNotFound)
	}
	if resp.Message != "node not found" {
		t.Errorf("message = %q; want %q", resp.Message, "node not found")
	}
}

func TestFail_PlainError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Fail(c, errors.New("boom"))
	})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d; want %d", w.Code, http.StatusInternalServerError)
	}
	resp := decodeResponse(t, w)
	if resp.Code != CodeInternalError {
		t.Errorf("code = %d; want %d", resp.Code, CodeInternalError)
	}
	// Internal details must not leak to the client.
	if resp.Message != "internal error" {
		t.Errorf("message = %q; want %q", resp.Message, "internal error")
	}
}

func TestFail_WrappedAppError(t *testing.T) {
	inner := ErrStateConflict("plan is stale")
	wrapped := errors.Join(errors.New("context"), inner)

	w := performRequest(func(c *gin.Context) {
		Fail(c, wrapped)
	})

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d; want %d", w.Code, http.StatusConflict)
	}
	resp := decodeResponse(t, w)
	if resp.Code != CodeStateConflict {
		t.Errorf("code = %d; want %d", resp.Code, CodeStateConflict)
	}
}

func TestErrUpstreamError(t *testing.T) {
	err := ErrUpstreamError("", errors.New("connection refused"))
	if err.HTTPStatus != http.StatusBadGateway {
		t.Errorf("HTTPStatus = %d; want %d", err.HTTPStatus, http.StatusBadGateway)
	}
	if err.Code != CodeUpstreamError {
		t.Errorf("Code = %d; want %d", err.Code, CodeUpstreamError)
	}
	if err.Message != "DNS node request failed" {
		t.Errorf("Message = %q; want %q", err.Message, "DNS node request failed")
	}
}

func TestAppError_WithData(t *testing.T) {
	err := ErrParamInvalid("bad prefix").WithData(gin.H{"field": "ipv4PrefixLength"})
	if err.Data == nil {
		t.Fatal("Data = nil; want non-nil")
	}

	w := performRequest(func(c *gin.Context) {
		Fail(c, err)
	})
	resp := decodeResponse(t, w)
	if resp.Data == nil {
		t.Error("response data = nil; want conflict details")
	}
}
