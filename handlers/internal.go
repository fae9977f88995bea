package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"megatrade-web/models"
	"megatrade-web/services/auth"
	"megatrade-web/utils"
)

// InternalHandler serves endpoints called by the platform backend itself.
type InternalHandler struct {
	jwtService     *auth.JWTService
	internalSecret string
}

func NewInternalHandler(jwtService *auth.JWTService, internalSecret string) *InternalHandler {
	return &InternalHandler{
		jwtService:     jwtService,
		internalSecret: internalSecret,
	}
}

// RequireInternalSecret rejects calls without the shared X-Internal-Secret.
// With no secret configured every call is rejected.
func (h *InternalHandler) RequireInternalSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := r.Header.Get("X-Internal-Secret")
		if h.internalSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.internalSecret)) != 1 {
			log.Printf("Invalid or missing internal secret from %s", utils.ClientIP(r))
			utils.SendErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GenerateSessionToken mints a session token for a user or an admin. The
// browser then exchanges it for a session cookie at /session/start.
func (h *InternalHandler) GenerateSessionToken(w http.ResponseWriter, r *http.Request) {
	var req models.SessionTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding session token request: %v", err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	identity, err := auth.IdentityFor(req)
	if err != nil {
		utils.SendErrorResponse(w, http.StatusBadRequest, "userId or adminId is required")
		return
	}

	issued, err := h.jwtService.GenerateToken(identity)
	if err != nil {
		log.Printf("Error generating session token: %v", err)
		utils.SendErrorResponse(w, http.StatusInternalServerError, "Failed to generate session token")
		return
	}

	log.WithFields(log.Fields{
		"user_id":  identity.UserID,
		"admin_id": identity.AdminID,
		"role":     identity.Role,
	}).Info("Generated session token")

	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Session token generated successfully",
		Data:    issued,
	})
}

// InternalHealthCheck answers the platform's liveness probe.
func (h *InternalHandler) InternalHealthCheck(w http.ResponseWriter, r *http.Request) {
	utils.SendSuccessResponse(w, models.APIResponse{
		Status:  "success",
		Message: "Internal API is healthy",
		Data: map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   "megatrade-web-internal",
		},
	})
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken):
		return "Invalid token"
	}
	return "Authentication failed"
}
