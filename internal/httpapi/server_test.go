package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestServer() *Server {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewServer(0, nil, log)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer()

	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "healthy")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyzeWalletValidation(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"walletAddress":`},
		{"missing wallet address", `{"inviteCode":"ABCDEFGH"}`},
		{"wallet address too short", `{"walletAddress":"0xabc","inviteCode":"ABCDEFGH"}`},
		{"wallet address with symbols", `{"walletAddress":"0x!!invalid!!address!!here!!","inviteCode":"ABCDEFGH"}`},
		{"missing invite code", `{"walletAddress":"0x1234567890abcdef1234567890abcdef12345678"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/wallet/analyze", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestGetPortfolioRequiresUserID(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest("GET", "/api/wallet/portfolio", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWalletAddressPattern(t *testing.T) {
	valid := []string{
		"0x1234567890abcdef1234567890abcdef12345678",
		"So11111111111111111111111111111111111111112",
	}
	for _, addr := range valid {
		assert.True(t, walletAddressPattern.MatchString(addr), addr)
	}

	invalid := []string{"", "short", "0x", "has spaces in it 123456789012345678"}
	for _, addr := range invalid {
		assert.False(t, walletAddressPattern.MatchString(addr), addr)
	}
}
