package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
)

func TestForgotResetFlow(t *testing.T) {
	store := newFakeStore()
	hash, err := argon2id.CreateHash("hunter2!!", argon2id.DefaultParams)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	now := time.Now()
	store.seedUser(Account{
		ID:           uuid.New(),
		Name:         "Reset User",
		Email:        "reset@example.com",
		PasswordHash: hash,
		Roles:        []string{"shopper"},
		CreatedAt:    now,
		UpdatedAt:    now,
	})

	svc, err := NewService(Config{
		Store:           store,
		Secret:          "test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		ResetTokenTTL:   time.Hour,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	handler := &Handler{
		Service:           svc,
		RefreshCookieName: "rt",
		CookieSameSite:    http.SameSiteLaxMode,
	}

	// Seed a session that should be revoked after password reset.
	loginBody := bytes.NewBufferString(`{"email":"reset@example.com","password":"hunter2!!"}`)
	loginReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", loginBody)
	loginRec := httptest.NewRecorder()
	handler.Login(loginRec, loginReq)
	loginRes := loginRec.Result()
	if loginRes.StatusCode != http.StatusOK {
		t.Fatalf("unexpected login status: %d", loginRes.StatusCode)
	}
	_ = loginRes.Body.Close()
	if len(store.sessionsByToken) == 0 {
		t.Fatalf("expected session created during login")
	}

	// Trigger forgot password. The token comes back in the response meta.
	forgotBody := bytes.NewBufferString(`{"email":"reset@example.com"}`)
	forgotReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/password/forgot", forgotBody)
	forgotRec := httptest.NewRecorder()
	handler.ForgotPassword(forgotRec, forgotReq)
	forgotRes := forgotRec.Result()
	if forgotRes.StatusCode != http.StatusAccepted {
		t.Fatalf("unexpected forgot status: %d", forgotRes.StatusCode)
	}
	var forgotPayload struct {
		Meta struct {
			ResetToken string `json:"reset_token"`
		} `json:"meta"`
	}
	if err := json.NewDecoder(forgotRes.Body).Decode(&forgotPayload); err != nil {
		t.Fatalf("decode forgot payload: %v", err)
	}
	_ = forgotRes.Body.Close()
	token := forgotPayload.Meta.ResetToken
	if token == "" {
		t.Fatalf("expected reset token in response meta")
	}

	// Unknown email must not leak account existence.
	unknownBody := bytes.NewBufferString(`{"email":"nobody@example.com"}`)
	unknownReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/password/forgot", unknownBody)
	unknownRec := httptest.NewRecorder()
	handler.ForgotPassword(unknownRec, unknownReq)
	if unknownRec.Code != http.StatusAccepted {
		t.Fatalf("expected accepted for unknown email, got %d", unknownRec.Code)
	}

	// Complete reset with the token.
	buf, _ := json.Marshal(map[string]string{
		"token":    token,
		"password": "newPassw0rd!",
	})
	resetReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/password/reset", bytes.NewBuffer(buf))
	resetRec := httptest.NewRecorder()
	handler.ResetPassword(resetRec, resetReq)
	resetRes := resetRec.Result()
	if resetRes.StatusCode != http.StatusOK {
		t.Fatalf("unexpected reset status: %d", resetRes.StatusCode)
	}
	_ = resetRes.Body.Close()

	if len(store.resetsByToken) != 0 {
		t.Fatalf("expected password reset entries cleared")
	}
	if len(store.sessionsByToken) != 0 {
		t.Fatalf("expected sessions revoked after reset")
	}

	// Token reuse should fail.
	reuseReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/password/reset", bytes.NewBuffer(buf))
	reuseRec := httptest.NewRecorder()
	handler.ResetPassword(reuseRec, reuseReq)
	reuseRes := reuseRec.Result()
	if reuseRes.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request on token reuse, got %d", reuseRes.StatusCode)
	}
	_ = reuseRes.Body.Close()

	// Login with new password should succeed.
	newLoginBody := bytes.NewBufferString(`{"email":"reset@example.com","password":"newPassw0rd!"}`)
	newLoginReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", newLoginBody)
	newLoginRec := httptest.NewRecorder()
	handler.Login(newLoginRec, newLoginReq)
	newLoginRes := newLoginRec.Result()
	if newLoginRes.StatusCode != http.StatusOK {
		t.Fatalf("expected successful login with new password, got %d", newLoginRes.StatusCode)
	}
	_ = newLoginRes.Body.Close()
}
