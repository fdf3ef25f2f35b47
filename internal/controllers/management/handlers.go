package management

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/chrissnell/aeroaqua/internal/log"
)

// Handlers contains the HTTP handlers for the management API
type Handlers struct {
	controller *Controller
}

// NewHandlers creates a new Handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
	}
}

// sendJSON sends a JSON response with optional status code
func (h *Handlers) sendJSON(w http.ResponseWriter, data any) {
	h.sendJSONWithStatus(w, http.StatusOK, data)
}

// sendJSONWithStatus sends a JSON response with a specific status code
func (h *Handlers) sendJSONWithStatus(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Errorf("error encoding management response: %v", err)
	}
}

// sendError sends an error response in JSON format
func (h *Handlers) sendError(w http.ResponseWriter, statusCode int, message string, err error) {
	errorResponse := map[string]any{
		"error":     message,
		"status":    statusCode,
		"timestamp": time.Now().Unix(),
	}
	if err != nil {
		errorResponse["details"] = err.Error()
	}

	h.sendJSONWithStatus(w, statusCode, errorResponse)
}

// Login handles the login request and sets a session cookie
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Token string `json:"token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid JSON payload", err)
		return
	}

	if request.Token == "" {
		h.sendError(w, http.StatusBadRequest, "Token is required", nil)
		return
	}

	if !tokenMatches(request.Token, h.controller.managementConfig.AuthToken) {
		h.sendError(w, http.StatusUnauthorized, "Invalid token", nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    request.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400 * 7,
	})

	h.sendJSON(w, map[string]any{
		"success": true,
		"message": "Login successful",
	})
}

// Logout handles the logout request and clears the session cookie
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	h.sendJSON(w, map[string]any{
		"success": true,
		"message": "Logout successful",
	})
}

// GetAuthStatus checks if the current session is authenticated
func (h *Handlers) GetAuthStatus(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, map[string]any{
		"authenticated": h.controller.authenticated(r),
	})
}
