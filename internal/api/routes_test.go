package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stocky-project/backend/internal/api/middleware"
	"github.com/stocky-project/backend/internal/calendar"
	"github.com/stocky-project/backend/internal/config"
	"github.com/stocky-project/backend/internal/pricing"
	"github.com/stocky-project/backend/internal/testutil"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Env:            "test",
			RequestTimeout: 5 * time.Second,
			AllowOrigins:   "*",
		},
	}
}

// prices quotes RELIANCE at 2800 and nothing else.
var prices = pricing.ProviderFunc(func(_ context.Context, symbol string, asOf time.Time) (pricing.Quote, error) {
	if symbol == "RELIANCE" {
		return pricing.Quote{Symbol: symbol, Price: decimal.RequireFromString("2800"), AsOf: asOf}, nil
	}
	return pricing.Quote{}, pricing.Unavailable(symbol, asOf, nil)
})

func newTestApp(t *testing.T, auth *middleware.Authenticator) *fiber.App {
	t.Helper()
	cfg := testConfig()
	app := NewServer(cfg)
	SetupRoutes(app, Dependencies{
		DB:       testutil.NewTestDB(t),
		Config:   cfg,
		Calendar: calendar.New(time.UTC).WithClock(func() time.Time { return testNow }),
		Prices:   prices,
		Auth:     auth,
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string, headers ...string) (int, map[string]interface{}, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&out), string(raw))
	return resp.StatusCode, out, string(raw)
}

const rewardBody = `{
	"user_id": "user-1",
	"stock_symbol": "reliance",
	"quantity": "10.5",
	"reward_timestamp": "2024-05-10T09:30:00Z",
	"event_type": "onboarding",
	"reference_id": "ref-1"
}`

func TestCreateRewardLifecycle(t *testing.T) {
	app := newTestApp(t, nil)

	status, body, raw := do(t, app, http.MethodPost, "/api/v1/reward", rewardBody)
	require.Equal(t, http.StatusCreated, status, raw)
	require.Equal(t, "Reward created successfully", body["message"])
	reward := body["reward"].(map[string]interface{})
	require.Equal(t, "RELIANCE", reward["stock_symbol"])
	require.Contains(t, raw, `"quantity":10.500000`)
	id := reward["id"]

	status, body, _ = do(t, app, http.MethodPost, "/api/v1/reward", rewardBody)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, id, body["reward"].(map[string]interface{})["id"])

	conflicting := strings.Replace(rewardBody, `"10.5"`, `11`, 1)
	status, body, _ = do(t, app, http.MethodPost, "/api/v1/reward", conflicting)
	require.Equal(t, http.StatusConflict, status)
	require.NotEmpty(t, body["error"])
}

func TestCreateRewardValidation(t *testing.T) {
	app := newTestApp(t, nil)

	cases := map[string]string{
		"zero quantity":     strings.Replace(rewardBody, `"10.5"`, `0`, 1),
		"negative quantity": strings.Replace(rewardBody, `"10.5"`, `-3`, 1),
		"empty symbol":      strings.Replace(rewardBody, `"reliance"`, `""`, 1),
		"bad timestamp":     strings.Replace(rewardBody, `2024-05-10T09:30:00Z`, `yesterday`, 1),
		"malformed json":    `{"user_id":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			status, out, raw := do(t, app, http.MethodPost, "/api/v1/reward", body)
			require.Equal(t, http.StatusBadRequest, status, raw)
			require.NotEmpty(t, out["error"])
		})
	}

	status, out, _ := do(t, app, http.MethodGet, "/api/v1/today-stocks/user-1", "")
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, out["rewards"])
}

func TestReadEndpoints(t *testing.T) {
	app := newTestApp(t, nil)

	status, _, raw := do(t, app, http.MethodPost, "/api/v1/reward", rewardBody)
	require.Equal(t, http.StatusCreated, status, raw)
	unpriced := strings.NewReplacer(`"reliance"`, `"TCS"`, `"10.5"`, `"2"`, `ref-1`, `ref-2`, `09:30:00Z`, `10:00:00`).Replace(rewardBody)
	status, _, raw = do(t, app, http.MethodPost, "/api/v1/reward", unpriced)
	require.Equal(t, http.StatusCreated, status, raw)

	status, body, raw := do(t, app, http.MethodGet, "/api/v1/today-stocks/user-1", "")
	require.Equal(t, http.StatusOK, status)
	rewards := body["rewards"].([]interface{})
	require.Len(t, rewards, 2)
	require.Equal(t, "TCS", rewards[0].(map[string]interface{})["stock_symbol"], raw)

	status, body, raw = do(t, app, http.MethodGet, "/api/v1/portfolio/user-1", "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, raw, `"total_value":29400.00`)
	holdings := body["holdings"].([]interface{})
	require.Len(t, holdings, 2)
	first := holdings[0].(map[string]interface{})
	require.Equal(t, "RELIANCE", first["stock_symbol"])
	require.Equal(t, json.Number("2800.00"), first["price"])
	require.Equal(t, json.Number("29400.00"), first["current_value"])
	second := holdings[1].(map[string]interface{})
	require.Equal(t, false, second["price_available"])
	require.Nil(t, second["price"])

	status, body, raw = do(t, app, http.MethodGet, "/api/v1/stats/user-1", "")
	require.Equal(t, http.StatusOK, status)
	stats := body["stats"].(map[string]interface{})
	require.Equal(t, json.Number("29400.00"), stats["current_portfolio_value_inr"], raw)
	require.Equal(t, json.Number("2.000000"), stats["today_stocks"].(map[string]interface{})["TCS"])

	status, body, raw = do(t, app, http.MethodGet, "/api/v1/historical-inr/user-1", "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, raw, `{"date":"2024-05-10","value":29400.00}`)
	require.Len(t, body["historical_values"], 1)
}

func TestUnknownUserGetsEmptyResults(t *testing.T) {
	app := newTestApp(t, nil)

	status, _, raw := do(t, app, http.MethodGet, "/api/v1/portfolio/nobody", "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, raw, `"holdings":[]`)
	require.Contains(t, raw, `"total_value":0.00`)

	status, _, raw = do(t, app, http.MethodGet, "/api/v1/historical-inr/nobody", "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, raw, `"historical_values":[]`)

	status, _, raw = do(t, app, http.MethodGet, "/api/v1/stats/nobody", "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, raw, `"today_stocks":{}`)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, nil)

	for _, path := range []string{"/health", "/api/v1/health"} {
		status, body, _ := do(t, app, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, status)
		require.Equal(t, "ok", body["status"])
		require.Equal(t, "disabled", body["redis"])
	}
}

func TestRewardRequiresTokenWhenAuthEnabled(t *testing.T) {
	secret := []byte("test-secret")
	auth := middleware.NewAuthenticatorWithKeyfunc(func(*jwt.Token) (interface{}, error) { return secret, nil })
	app := newTestApp(t, auth)

	status, _, _ := do(t, app, http.MethodPost, "/api/v1/reward", rewardBody)
	require.Equal(t, http.StatusUnauthorized, status)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)

	status, _, raw := do(t, app, http.MethodPost, "/api/v1/reward", rewardBody, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusCreated, status, raw)

	// Reads stay public.
	status, _, _ = do(t, app, http.MethodGet, "/api/v1/portfolio/user-1", "")
	require.Equal(t, http.StatusOK, status)
}
