package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stocky-project/backend/internal/config"
	"github.com/stretchr/testify/require"
)

const testKID = "test-key"

func jwksServer(t *testing.T, key *rsa.PrivateKey) *httptest.Server {
	t.Helper()
	enc := base64.RawURLEncoding
	body, err := json.Marshal(map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKID,
			"alg": "RS256",
			"use": "sig",
			"n":   enc.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   enc.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signRS256(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func protectedApp(a *Authenticator) *fiber.App {
	app := fiber.New()
	app.Post("/reward", a.Protected(), func(c *fiber.Ctx) error {
		sub, err := GetSubject(c)
		if err != nil {
			return c.SendString("anonymous")
		}
		return c.SendString(sub)
	})
	return app
}

func call(t *testing.T, app *fiber.App, authorization string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/reward", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestProtectedWithJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := jwksServer(t, key)

	auth, err := NewAuthenticator(&config.Config{Auth: config.AuthConfig{JWKSURL: srv.URL}})
	require.NoError(t, err)
	t.Cleanup(auth.Close)
	require.True(t, auth.Enabled())

	app := protectedApp(auth)
	valid := signRS256(t, key, jwt.MapClaims{"sub": "ops-admin", "exp": time.Now().Add(time.Hour).Unix()})

	status, body := call(t, app, "Bearer "+valid)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ops-admin", body)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"garbage":        "Bearer not-a-token",
		"expired":        "Bearer " + signRS256(t, key, jwt.MapClaims{"sub": "ops-admin", "exp": time.Now().Add(-time.Hour).Unix()}),
		"wrong key":      "Bearer " + signRS256(t, other, jwt.MapClaims{"sub": "ops-admin", "exp": time.Now().Add(time.Hour).Unix()}),
		"no subject":     "Bearer " + signRS256(t, key, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			status, _ := call(t, app, header)
			require.Equal(t, http.StatusUnauthorized, status)
		})
	}
}

func TestProtectedDisabledPassesThrough(t *testing.T) {
	auth, err := NewAuthenticator(&config.Config{})
	require.NoError(t, err)
	require.False(t, auth.Enabled())

	status, body := call(t, protectedApp(auth), "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "anonymous", body)

	var nilAuth *Authenticator
	status, _ = call(t, protectedApp(nilAuth), "")
	require.Equal(t, http.StatusOK, status)
}

func TestDeadlineSetsUserContext(t *testing.T) {
	app := fiber.New()
	app.Get("/", Deadline(time.Second), func(c *fiber.Ctx) error {
		deadline, ok := c.UserContext().Deadline()
		require.True(t, ok)
		require.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}
