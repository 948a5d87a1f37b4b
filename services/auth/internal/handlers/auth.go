package handlers

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/study-spots/internal/platform/analytics"
	"github.com/example/study-spots/internal/platform/api"
	"github.com/example/study-spots/internal/platform/auth"
	"github.com/example/study-spots/internal/platform/httpserver"
	"github.com/example/study-spots/internal/platform/validation"
	"github.com/example/study-spots/services/auth/internal/store"
	"github.com/example/study-spots/services/auth/internal/tokens"
)

type credentials struct {
	Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	UserID      int64     `json:"user_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type meResponse struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type Deps struct {
	Users      store.UserStore
	Tokens     tokens.Service
	BcryptCost int
	Analytics  *analytics.Publisher
	Log        *zap.Logger
}

// dummyHashes holds one throwaway bcrypt hash per cost.
var dummyHashes sync.Map

func dummyHash(cost int) []byte {
	if h, ok := dummyHashes.Load(cost); ok {
		return h.([]byte)
	}
	h, err := bcrypt.GenerateFromPassword([]byte("study-spots-no-such-user"), cost)
	if err != nil {
		h, _ = bcrypt.GenerateFromPassword([]byte("study-spots-no-such-user"), bcrypt.DefaultCost)
	}
	actual, _ := dummyHashes.LoadOrStore(cost, h)
	return actual.([]byte)
}

// Register handles POST /register.
func Register(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req credentials
		if err := api.DecodeJSON(w, r, &req); err != nil {
			api.InvalidJSON(w, rid)
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if verr := validation.Struct(&req); verr != nil {
			validation.Write(w, verr, rid)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), d.BcryptCost)
		if err != nil {
			d.Log.Error("hash password", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}

		u, err := d.Users.CreateUser(r.Context(), req.Username, string(hash))
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				api.Conflict(w, "USER_ALREADY_EXISTS", "User already exists", rid, nil)
				return
			}
			d.Log.Error("create user", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}

		d.Analytics.Publish(analytics.SubjectAuthRegistered, "auth.registered", u.ID, nil)
		issue(w, rid, d, u, http.StatusCreated)
	}
}

// Login handles POST /login. Unknown users and wrong passwords are
// indistinguishable to the caller.
func Login(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req loginRequest
		if err := api.DecodeJSON(w, r, &req); err != nil {
			api.InvalidJSON(w, rid)
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if verr := validation.Struct(&req); verr != nil {
			validation.Write(w, verr, rid)
			return
		}

		u, err := d.Users.FindByUsername(r.Context(), req.Username)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			d.Log.Error("find user", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		hash := []byte(u.PasswordHash)
		if err != nil {
			// Unknown users still pay for a bcrypt comparison.
			hash = dummyHash(d.BcryptCost)
		}
		if bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil || err != nil {
			api.Unauthorized(w, "AUTH_INVALID_CREDENTIALS", "Invalid credentials", rid)
			return
		}

		d.Analytics.Publish(analytics.SubjectAuthLoggedIn, "auth.logged_in", u.ID, nil)
		issue(w, rid, d, u, http.StatusOK)
	}
}

// Logout handles POST /logout. Tokens are stateless, so the client discards
// its copy.
func Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// Me handles GET /me behind auth.RequireUser.
func Me(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok {
			api.Unauthorized(w, api.CodeUnauthorized, "authentication required", rid)
			return
		}
		u, err := d.Users.FindByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				api.NotFound(w, "USER_NOT_FOUND", "user not found", rid)
				return
			}
			d.Log.Error("find user", zap.String("request_id", rid), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, meResponse{UserID: u.ID, Username: u.Username})
	}
}

func issue(w http.ResponseWriter, rid string, d Deps, u store.User, status int) {
	tok, exp, err := d.Tokens.NewAccessToken(u.ID, u.Username, time.Now().UTC())
	if err != nil {
		d.Log.Error("issue token", zap.String("request_id", rid), zap.Error(err))
		api.Internal(w, rid)
		return
	}
	api.WriteJSON(w, status, tokenResponse{UserID: u.ID, AccessToken: tok, ExpiresAt: exp})
}
