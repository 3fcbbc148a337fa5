package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tastebook/apiserver/internal/services"
	"github.com/tastebook/apiserver/internal/store"
	"github.com/tastebook/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const sessionCookieName = "session"

// SessionClaims is the JWT payload carried by the session cookie.
type SessionClaims struct {
	UserID int    `json:"uid"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Sessions issues and validates signed session tokens delivered via an
// http-only cookie.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

// NewSessions constructs session tooling with the given signing secret
// and expiry. secure controls the cookie's Secure flag.
func NewSessions(secret string, ttl time.Duration, secure bool) *Sessions {
	return &Sessions{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
	}
}

// Issue signs a token for the user and returns it with its cookie.
func (s *Sessions) Issue(user types.User) (string, *http.Cookie, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return token, s.cookie(token, int(s.ttl.Seconds())), nil
}

// Parse verifies a token and returns the identity it encodes.
func (s *Sessions) Parse(tokenString string) (types.User, error) {
	claims := SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return types.User{}, err
	}
	if !token.Valid || claims.UserID < 1 {
		return types.User{}, errors.New("invalid token")
	}
	return types.User{
		ID:    claims.UserID,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  claims.Role,
	}, nil
}

// ClearCookie returns an expired session cookie.
func (s *Sessions) ClearCookie() *http.Cookie {
	return s.cookie("", -1)
}

func (s *Sessions) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// AuthOptional attaches the caller's identity when a valid session
// token is present. Any token failure (missing, malformed, expired, bad
// signature) leaves the request anonymous; it never fails the request.
func (s *Sessions) AuthOptional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := sessionToken(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		user, err := s.Parse(tokenString)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), user)))
	})
}

// RequireAuth rejects anonymous callers. Must run after AuthOptional.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := identityFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionToken reads the token from the session cookie, falling back to
// a bearer Authorization header for non-browser clients.
func sessionToken(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && strings.TrimSpace(cookie.Value) != "" {
		return cookie.Value, nil
	}

	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// AuthHandler provides session authentication endpoints.
type AuthHandler struct {
	userService *services.UserService
	sessions    *Sessions
	logger      *zap.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, sessions *Sessions, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		sessions:    sessions,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, sessions *Sessions, logger *zap.Logger) {
	handler := NewAuthHandler(userService, sessions, logger)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/logout", handler.Logout)
	r.Get("/me", handler.Me)
}

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"displayName" validate:"required,max=128"`
	Password    string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register creates a new user account and starts a session.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid registration payload")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user, err := h.userService.Create(r.Context(), types.User{
		Email:        req.Email,
		Name:         req.DisplayName,
		Role:         types.RoleUser,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "email already in use")
			return
		}
		h.logger.Error("create user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	_, cookie, err := h.sessions.Issue(user)
	if err != nil {
		h.logger.Error("issue session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, cookie)
	writeJSON(w, http.StatusOK, user)
}

// Login verifies credentials and starts a session. Wrong email and
// wrong password are indistinguishable to the caller.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, err := h.userService.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.logger.Error("load user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	_, cookie, err := h.sessions.Issue(user)
	if err != nil {
		h.logger.Error("issue session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, cookie)
	writeJSON(w, http.StatusOK, user)
}

// Logout clears the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessions.ClearCookie())
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me returns the current user, or null for anonymous callers.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	user, err := h.userService.GetByID(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		h.logger.Error("load user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}
