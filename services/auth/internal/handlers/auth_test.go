package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/study-spots/internal/platform/auth"
	"github.com/example/study-spots/services/auth/internal/store"
	"github.com/example/study-spots/services/auth/internal/tokens"
)

var secret = []byte("test-jwt-secret-32-bytes-padded!")

func newDeps() Deps {
	return Deps{
		Users:      store.NewInMemoryUserStore(),
		Tokens:     tokens.Service{Secret: secret, AccessTokenTTL: time.Hour},
		BcryptCost: bcrypt.MinCost,
		Log:        zap.NewNop(),
	}
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body)))
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env.Error.Code
}

func TestRegisterAndLogin(t *testing.T) {
	d := newDeps()

	rr := post(Register(d), `{"username":"ada","password":"correct-horse"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var reg tokenResponse
	if err := json.NewDecoder(rr.Body).Decode(&reg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reg.UserID != 1 || reg.AccessToken == "" || !reg.ExpiresAt.After(time.Now()) {
		t.Fatalf("unexpected register response %+v", reg)
	}

	claims, err := auth.JWTVerifier{Secret: secret}.Parse(reg.AccessToken)
	if err != nil {
		t.Fatalf("token rejected: %v", err)
	}
	if uid, _ := claims.UserID(); uid != 1 {
		t.Fatalf("expected subject 1, got %d", uid)
	}

	rr = post(Login(d), `{"username":"ADA","password":"correct-horse"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var login tokenResponse
	if err := json.NewDecoder(rr.Body).Decode(&login); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if login.UserID != 1 {
		t.Fatalf("expected user 1, got %d", login.UserID)
	}
}

func TestRegister_Errors(t *testing.T) {
	d := newDeps()
	if rr := post(Register(d), `{"username":"ada","password":"correct-horse"}`); rr.Code != http.StatusCreated {
		t.Fatalf("seed: %d", rr.Code)
	}

	tests := []struct {
		name string
		body string
		want int
		code string
	}{
		{"duplicate", `{"username":"Ada","password":"another-one"}`, http.StatusConflict, "USER_ALREADY_EXISTS"},
		{"short password", `{"username":"grace","password":"short"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad username", `{"username":"no spaces!","password":"long-enough"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing username", `{"password":"long-enough"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad json", `{"username":`, http.StatusBadRequest, "INVALID_JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := post(Register(d), tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
			if code := errorCode(t, rr); code != tt.code {
				t.Fatalf("expected %s, got %s", tt.code, code)
			}
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	d := newDeps()
	post(Register(d), `{"username":"ada","password":"correct-horse"}`)

	for _, body := range []string{
		`{"username":"ada","password":"wrong-horse"}`,
		`{"username":"nobody","password":"correct-horse"}`,
	} {
		rr := post(Login(d), body)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s, got %d", body, rr.Code)
		}
		if code := errorCode(t, rr); code != "AUTH_INVALID_CREDENTIALS" {
			t.Fatalf("unexpected code %s", code)
		}
	}

	if rr := post(Login(d), `{"username":"ada"}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", rr.Code)
	}
}

func TestLogin_TrimsUsername(t *testing.T) {
	d := newDeps()
	post(Register(d), `{"username":"ada","password":"correct-horse"}`)

	rr := post(Login(d), `{"username":"  ada ","password":"correct-horse"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestLogin_UnknownUserComparesDummyHash(t *testing.T) {
	d := newDeps()
	dummyHashes.Delete(d.BcryptCost)

	if rr := post(Login(d), `{"username":"nobody","password":"correct-horse"}`); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	h, ok := dummyHashes.Load(d.BcryptCost)
	if !ok {
		t.Fatal("unknown user skipped the password comparison")
	}
	if cost, err := bcrypt.Cost(h.([]byte)); err != nil || cost != d.BcryptCost {
		t.Fatalf("dummy hash cost = %d (%v), want %d", cost, err, d.BcryptCost)
	}
}

func TestLogout(t *testing.T) {
	rr := post(Logout(), "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}

func TestMe(t *testing.T) {
	d := newDeps()
	post(Register(d), `{"username":"ada","password":"correct-horse"}`)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	Me(d).ServeHTTP(rr, req.WithContext(auth.WithUserID(req.Context(), 1)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var me meResponse
	if err := json.NewDecoder(rr.Body).Decode(&me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me.UserID != 1 || me.Username != "ada" {
		t.Fatalf("unexpected me %+v", me)
	}

	rr = httptest.NewRecorder()
	Me(d).ServeHTTP(rr, req.WithContext(auth.WithUserID(req.Context(), 9)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	Me(d).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestMe_ThroughMiddleware(t *testing.T) {
	d := newDeps()
	rr := post(Register(d), `{"username":"ada","password":"correct-horse"}`)
	var reg tokenResponse
	if err := json.NewDecoder(rr.Body).Decode(&reg); err != nil {
		t.Fatalf("decode: %v", err)
	}

	h := auth.RequireUser(auth.JWTVerifier{Secret: secret})(Me(d))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+reg.AccessToken)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}
