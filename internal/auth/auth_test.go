package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/account"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/auth"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := auth.NewVerifier("s3cret", "voice-studio")
	actor := account.Actor{AccountID: uuid.New(), Role: account.RoleClient}

	token, err := v.Sign(actor, time.Hour)
	require.NoError(t, err)

	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, actor, got)
}

func TestVerifier_Rejects(t *testing.T) {
	v := auth.NewVerifier("s3cret", "voice-studio")
	id := uuid.New()

	sign := func(secret string, method jwt.SigningMethod, claims jwt.Claims) string {
		var key any = []byte(secret)
		if method == jwt.SigningMethodNone {
			key = jwt.UnsafeAllowNoneSignatureType
		}

		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)

		return s
	}

	valid := func(role account.Role) auth.Claims {
		return auth.Claims{
			Role: role,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   id.String(),
				Issuer:    "voice-studio",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
	}

	expired := valid(account.RoleAdmin)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	otherIssuer := valid(account.RoleAdmin)
	otherIssuer.Issuer = "someone-else"

	badSubject := valid(account.RoleAdmin)
	badSubject.Subject = "admin|1"

	tests := map[string]string{
		"WrongSecret": sign("other", jwt.SigningMethodHS256, valid(account.RoleAdmin)),
		"NoneAlg":     sign("", jwt.SigningMethodNone, valid(account.RoleAdmin)),
		"Expired":     sign("s3cret", jwt.SigningMethodHS256, expired),
		"OtherIssuer": sign("s3cret", jwt.SigningMethodHS256, otherIssuer),
		"BadSubject":  sign("s3cret", jwt.SigningMethodHS256, badSubject),
		"SystemRole":  sign("s3cret", jwt.SigningMethodHS256, valid(account.RoleSystem)),
		"Garbage":     "not-a-token",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			require.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestMiddleware(t *testing.T) {
	v := auth.NewVerifier("s3cret", "voice-studio")
	admin := account.Actor{AccountID: uuid.New(), Role: account.RoleAdmin}
	client := account.Actor{AccountID: uuid.New(), Role: account.RoleClient}

	adminToken, err := v.Sign(admin, time.Hour)
	require.NoError(t, err)

	clientToken, err := v.Sign(client, time.Hour)
	require.NoError(t, err)

	var seen account.Actor

	h := v.Middleware(auth.RequireRole(account.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "NoHeader", want: http.StatusUnauthorized},
		{name: "NotBearer", header: "Basic abc", want: http.StatusUnauthorized},
		{name: "Invalid", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "WrongRole", header: "Bearer " + clientToken, want: http.StatusForbidden},
		{name: "Admin", header: "bearer " + adminToken, want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}

	assert.Equal(t, admin, seen)
}
