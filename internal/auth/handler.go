package auth

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/propstack/buyer-leads/pkg/logging"
)

// Handler issues tokens for local development. Production deployments put a
// real identity provider in front of the API and never mount this route.
type Handler struct {
	secret string
	logger *logging.Logger
}

// NewHandler creates a dev token handler.
func NewHandler(secret string, logger *logging.Logger) *Handler {
	return &Handler{secret: secret, logger: logger}
}

type tokenRequest struct {
	ActorID string `json:"actorId"`
	Role    string `json:"role"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// IssueDevToken handles POST /auth/token in development mode.
func (h *Handler) IssueDevToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ActorID == "" {
		http.Error(w, "actorId is required", http.StatusBadRequest)
		return
	}
	role := req.Role
	if role != RoleAdmin {
		role = RoleUser
	}
	token, err := IssueToken(h.secret, req.ActorID, role, 24*time.Hour)
	if err != nil {
		h.logger.Error("failed to issue token", "error", err)
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tokenResponse{Token: token})
}
