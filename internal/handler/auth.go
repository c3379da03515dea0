package handler

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/fitcheckhq/fitcheck/internal/config"
	"github.com/fitcheckhq/fitcheck/internal/ctxkeys"
	"github.com/fitcheckhq/fitcheck/internal/model"
	"github.com/fitcheckhq/fitcheck/internal/orchestrator"
	"github.com/fitcheckhq/fitcheck/internal/service"
	"github.com/fitcheckhq/fitcheck/internal/session"
)

type authHandler struct {
	authService       *service.AuthService
	sessions          *session.Manager
	googleOAuthConfig *oauth2.Config
	isProduction      bool
}

func NewAuthHandler(authService *service.AuthService, sessions *session.Manager, cfg *config.Config) *authHandler {
	return &authHandler{
		authService:  authService,
		sessions:     sessions,
		isProduction: cfg.IsProduction(),
		googleOAuthConfig: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.AppURL + "/auth/google/callback",
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
	}
}

// GoogleAuth redirects user to Google OAuth consent screen
func (h *authHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	// Generate secure state token for CSRF protection
	state := generateOAuthState()

	// Store state in secure cookie
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600, // 10 minutes
	})

	url := h.googleOAuthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// GoogleCallback handles the OAuth callback from Google
func (h *authHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	// Validate state parameter for CSRF protection
	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie("oauth_state")
	if err != nil || cookie.Value != state || state == "" {
		slog.Warn("google oauth state validation failed", "error", err)
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "oauth state validation failed"})
		return
	}

	// Clear state cookie
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("google oauth callback missing code")
		respondJSON(w, http.StatusBadRequest, errorResponse{Error: "oauth callback missing code"})
		return
	}

	// Exchange code for token
	token, err := h.googleOAuthConfig.Exchange(r.Context(), code)
	if err != nil {
		slog.Error("google oauth token exchange failed", "error", err)
		respondJSON(w, http.StatusBadGateway, errorResponse{Error: "oauth token exchange failed"})
		return
	}

	// Get user info from Google
	client := h.googleOAuthConfig.Client(r.Context(), token)
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		slog.Error("failed to get google user info", "error", err)
		respondJSON(w, http.StatusBadGateway, errorResponse{Error: "failed to get user info"})
		return
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Error("failed to close response body", "error", closeErr)
		}
	}()

	var userInfo struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Error("failed to decode google user info", "error", err)
		respondJSON(w, http.StatusBadGateway, errorResponse{Error: "failed to decode user info"})
		return
	}
	if userInfo.ID == "" {
		slog.Error("google user info missing id", "email", userInfo.Email)
		respondJSON(w, http.StatusBadGateway, errorResponse{Error: "incomplete user info"})
		return
	}

	user := &model.User{
		ID:       userInfo.ID,
		Email:    userInfo.Email,
		Name:     userInfo.Name,
		SignedIn: true,
	}

	// Generate JWT
	jwtToken, err := h.authService.GenerateJWT(user)
	if err != nil {
		slog.Error("failed to generate JWT", "error", err, "user_id", user.ID)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	h.authService.SetJWTCookie(w, jwtToken, h.authService.Expiry())

	slog.Info("user logged in with google oauth", "user_id", user.ID, "email", user.Email)

	// Warm the session so the first app request sees hydrated libraries.
	h.sessions.Get(r.Context(), user)

	http.Redirect(w, r, "/app", http.StatusSeeOther)
}

// Logout clears the auth cookie and drops the in-memory session. The
// remote store keeps everything; signing back in reloads it. A session
// with a generation still running is not torn down.
func (h *authHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if user := ctxkeys.User(r.Context()); user != nil {
		if sess, ok := h.sessions.Peek(user.ID); ok {
			if sess.TryOn.InFlight() || sess.CatalogGen.InFlight() {
				respondError(w, r, orchestrator.ErrRequestInProgress)
				return
			}
			h.sessions.End(user.ID)
		}
		slog.Info("user logged out", "user_id", user.ID)
	}
	h.authService.ClearJWTCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"signed_out": true})
}

// generateOAuthState creates cryptographically secure random state token for OAuth CSRF protection
func generateOAuthState() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		panic("failed to generate oauth state: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(bytes)
}
