package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gorilla/mux"

	"github.com/walletrank/walletrank/internal/nansen"
	"github.com/walletrank/walletrank/internal/processor"
	"github.com/walletrank/walletrank/internal/referral"
)

// Accepts hex (0x-prefixed) and base58 style addresses without committing to
// one chain's format; the provider rejects anything it cannot resolve.
var walletAddressPattern = regexp.MustCompile(`^(0x)?[0-9a-zA-Z]{20,64}$`)

type analyzeRequest struct {
	WalletAddress string `json:"walletAddress"`
	InviteCode    string `json:"inviteCode"`
	UTMSource     string `json:"utmSource"`
	UTMMedium     string `json:"utmMedium"`
	UTMCampaign   string `json:"utmCampaign"`
	GAClientID    string `json:"gaClientId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAnalyzeWallet(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.WalletAddress = strings.TrimSpace(req.WalletAddress)
	req.InviteCode = strings.TrimSpace(req.InviteCode)
	if !walletAddressPattern.MatchString(req.WalletAddress) {
		s.writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}
	if req.InviteCode == "" {
		s.writeError(w, http.StatusBadRequest, "invite code is required")
		return
	}

	result, err := s.proc.AnalyzeWallet(r.Context(), processor.AnalyzeParams{
		WalletAddress: req.WalletAddress,
		InviteCode:    req.InviteCode,
		UTMSource:     req.UTMSource,
		UTMMedium:     req.UTMMedium,
		UTMCampaign:   req.UTMCampaign,
		GAClientID:    req.GAClientID,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		s.writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	portfolio, err := s.proc.GetPortfolio(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, portfolio)
}

func (s *Server) handleCompleteShare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	if err := s.proc.CompleteShare(r.Context(), req.UserID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"shareCompleted": true})
}

func (s *Server) handleInviteStats(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(mux.Vars(r)["inviteCode"])
	if code == "" {
		s.writeError(w, http.StatusBadRequest, "invite code is required")
		return
	}

	stats, err := s.proc.InviteStats(r.Context(), code)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// writeDomainError maps processor errors onto HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var providerErr *nansen.ProviderError
	switch {
	case errors.Is(err, processor.ErrInviteNotFound):
		s.writeError(w, http.StatusNotFound, "invite code not found")
	case errors.Is(err, processor.ErrUserNotFound):
		s.writeError(w, http.StatusNotFound, "user not found")
	case errors.As(err, &providerErr):
		s.log.WithError(err).WithField("path", r.URL.Path).Error("Provider request failed")
		s.writeError(w, http.StatusBadGateway, "upstream data provider unavailable")
	case errors.Is(err, referral.ErrCyclicReferralGraph):
		s.log.WithError(err).WithField("path", r.URL.Path).Error("Referral graph is cyclic")
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	default:
		s.log.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}
