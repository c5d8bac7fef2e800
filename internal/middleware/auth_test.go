package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func validClaims(role string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"user_id": "u-1",
		"email":   "admin@binsight.local",
		"role":    role,
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
	}
}

func protected(role string) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, found := GetUserFromContext(r)
		if !found {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Write([]byte(claims.UserID))
	})
	return Auth(testSecret)(RequireRole(role)(ok))
}

func TestAuthAndRequireRole(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Token abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other", validClaims("admin")), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"user_id": "u-1", "role": "admin", "exp": time.Now().Add(-time.Minute).Unix()}), http.StatusUnauthorized},
		{"missing role", "Bearer " + signToken(t, testSecret, jwt.MapClaims{"user_id": "u-1"}), http.StatusUnauthorized},
		{"operator", "Bearer " + signToken(t, testSecret, validClaims("operator")), http.StatusForbidden},
		{"admin", "Bearer " + signToken(t, testSecret, validClaims("admin")), http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/bins/bin-01", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			protected("admin").ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
			if tc.want == http.StatusOK && rec.Body.String() != "u-1" {
				t.Fatalf("claims not propagated: %q", rec.Body.String())
			}
		})
	}
}

func TestAuthWithoutSecret(t *testing.T) {
	rec := httptest.NewRecorder()
	Auth("")(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestParseTokenRejectsNoneAlgorithm(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims("admin")).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseToken(token, testSecret); err == nil {
		t.Fatal("unsigned token must be rejected")
	}
}
