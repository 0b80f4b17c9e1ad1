package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/ses-client-auth/auth"
	"github.com/jrsteele09/ses-client-auth/credentials"
	credentialrepofake "github.com/jrsteele09/ses-client-auth/credentials/repofake"
	"github.com/jrsteele09/ses-client-auth/engineers"
	engineerrepofake "github.com/jrsteele09/ses-client-auth/engineers/repofake"
	"github.com/jrsteele09/ses-client-auth/internal/config"
	"github.com/jrsteele09/ses-client-auth/internal/metrics"
	"github.com/jrsteele09/ses-client-auth/lockout"
	"github.com/jrsteele09/ses-client-auth/partnerships"
	partnershiprepofakes "github.com/jrsteele09/ses-client-auth/partnerships/repofakes"
	"github.com/jrsteele09/ses-client-auth/server"
	"github.com/jrsteele09/ses-client-auth/session"
	"github.com/jrsteele09/ses-client-auth/visibility"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testIdentifier    = "buyer@client.example.com"
	testPassword      = "Correct-Horse-9"
	testUserID        = "user-1"
	testPartnershipID = "partnership-1"
)

var (
	hashOnce sync.Once
	hash     string
)

type testFixture struct {
	credentials  *credentialrepofake.FakeCredentialRepo
	partnerships *partnershiprepofakes.FakePartnershipRepo
	engineers    *engineerrepofake.FakeEngineerRepo
	metrics      *metrics.Metrics
	server       *server.Server
}

func setupTestFixture(t *testing.T, opts ...func(*config.Config)) *testFixture {
	t.Helper()

	hashOnce.Do(func() {
		h, err := credentials.HashPassword(testPassword)
		require.NoError(t, err)
		hash = h
	})

	cfg := &config.Config{
		Env:     config.EnvDev,
		AppName: "test",
		Security: config.Security{
			AccessTokenSecret:  "access-secret-for-tests-0123456789",
			RefreshTokenSecret: "refresh-secret-for-tests-987654321",
			Issuer:             "ses-test",
		},
		Cors: config.Cors{AllowedOrigins: config.AllowedOrigins{"https://portal.example.com": {}}},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	creds := credentialrepofake.NewFakeCredentialRepo()
	registry := partnershiprepofakes.NewFakePartnershipRepo()
	directory := engineerrepofake.NewFakeEngineerRepo()

	require.NoError(t, registry.UpsertPartnership(&partnerships.Partnership{ID: testPartnershipID, Active: true}))
	require.NoError(t, creds.Upsert(&credentials.Credential{
		ID:            testUserID,
		Identifier:    testIdentifier,
		DisplayName:   "Client Buyer",
		PasswordHash:  hash,
		PartnershipID: testPartnershipID,
		Active:        true,
		Roles:         []credentials.Role{{Name: "client_viewer", Permissions: []string{"engineers:read"}}},
	}))
	for _, e := range []engineers.Engineer{
		{ID: "e1", Name: "Aoki", Status: engineers.StatusWaiting},
		{ID: "e2", Name: "Baba", Status: engineers.StatusAssigned},
		{ID: "e3", Name: "Chiba", Status: engineers.StatusWaitingSoon},
	} {
		e := e
		require.NoError(t, directory.Upsert(&e))
	}

	m := metrics.New()
	resolver, err := visibility.NewResolver(registry, directory)
	require.NoError(t, err)
	codec, err := session.NewCodec(&cfg.Security)
	require.NoError(t, err)
	authenticator, err := auth.NewAuthenticator(creds, resolver, codec, auth.WithMetrics(m))
	require.NoError(t, err)

	s, err := server.New(cfg, server.Deps{
		Auth:      authenticator,
		Resolver:  resolver,
		Engineers: directory,
		Metrics:   m,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	return &testFixture{
		credentials:  creds,
		partnerships: registry,
		engineers:    directory,
		metrics:      m,
		server:       s,
	}
}

func (tf *testFixture) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	tf.server.ServeHTTP(rec, req)
	return rec
}

func (tf *testFixture) login(t *testing.T) auth.Result {
	t.Helper()
	rec := tf.do(t, http.MethodPost, server.RouteLogin, map[string]string{"identifier": testIdentifier, "password": testPassword}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res auth.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		tf := setupTestFixture(t)
		rec := tf.do(t, http.MethodPost, server.RouteLogin, map[string]string{"identifier": testIdentifier, "password": testPassword}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

		body := decodeBody(t, rec)
		require.NotEmpty(t, body["accessToken"])
		require.NotEmpty(t, body["refreshToken"])
		principal := body["principal"].(map[string]any)
		require.Equal(t, testUserID, principal["userId"])
		require.Equal(t, testPartnershipID, principal["partnershipId"])
	})

	t.Run("wrong password is 401 with remaining attempts", func(t *testing.T) {
		tf := setupTestFixture(t)
		rec := tf.do(t, http.MethodPost, server.RouteLogin, map[string]string{"identifier": testIdentifier, "password": "wrong"}, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody(t, rec)
		require.Equal(t, "invalid_credentials", body["error"])
		require.EqualValues(t, 9, body["remainingAttempts"])
	})

	t.Run("unknown user is 401 without hint", func(t *testing.T) {
		tf := setupTestFixture(t)
		rec := tf.do(t, http.MethodPost, server.RouteLogin, map[string]string{"identifier": "nobody", "password": "wrong"}, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotContains(t, decodeBody(t, rec), "remainingAttempts")
	})

	t.Run("tenth failure then locked", func(t *testing.T) {
		tf := setupTestFixture(t)
		require.NoError(t, tf.credentials.UpdateLockoutState(context.Background(), testUserID, 9, nil))

		rec := tf.do(t, http.MethodPost, server.RouteLogin, map[string]string{"identifier": testIdentifier, "password": "wrong"}, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody(t, rec)
		require.EqualValues(t, 0, body["remainingAttempts"])
		require.NotEmpty(t, body["lockedUntil"])

		rec = tf.do(t, http.MethodPost, server.RouteLogin, map[string]string{"identifier": testIdentifier, "password": testPassword}, "")
		require.Equal(t, http.StatusLocked, rec.Code)
		body = decodeBody(t, rec)
		lockedUntil, err := time.Parse(time.RFC3339Nano, body["lockedUntil"].(string))
		require.NoError(t, err)
		require.WithinDuration(t, time.Now().Add(30*time.Minute), lockedUntil, time.Minute)
	})

	t.Run("inactive account is 403", func(t *testing.T) {
		tf := setupTestFixture(t)
		require.NoError(t, tf.credentials.SetActive(testUserID, false))
		rec := tf.do(t, http.MethodPost, server.RouteLogin, map[string]string{"identifier": testIdentifier, "password": testPassword}, "")
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "account_inactive", decodeBody(t, rec)["error"])
	})

	t.Run("inactive partnership is 403", func(t *testing.T) {
		tf := setupTestFixture(t)
		require.NoError(t, tf.partnerships.SetPartnershipActive(testPartnershipID, false))
		rec := tf.do(t, http.MethodPost, server.RouteLogin, map[string]string{"identifier": testIdentifier, "password": testPassword}, "")
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "partnership_inactive", decodeBody(t, rec)["error"])
	})

	t.Run("store failure is 503 without details", func(t *testing.T) {
		tf := setupTestFixture(t)
		tf.credentials.FailWith(stderrors.New("pq: connection to 10.0.0.5 refused"))
		rec := tf.do(t, http.MethodPost, server.RouteLogin, map[string]string{"identifier": testIdentifier, "password": testPassword}, "")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.NotContains(t, rec.Body.String(), "10.0.0.5")
	})

	t.Run("bad body is 400", func(t *testing.T) {
		tf := setupTestFixture(t)
		req := httptest.NewRequest(http.MethodPost, server.RouteLogin, bytes.NewBufferString("{"))
		rec := httptest.NewRecorder()
		tf.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		rec = tf.do(t, http.MethodPost, server.RouteLogin, map[string]string{"identifier": testIdentifier}, "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRefresh(t *testing.T) {
	t.Run("success echoes refresh token", func(t *testing.T) {
		tf := setupTestFixture(t)
		res := tf.login(t)

		rec := tf.do(t, http.MethodPost, server.RouteRefresh, map[string]string{"refreshToken": res.RefreshToken}, "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		require.Equal(t, res.RefreshToken, body["refreshToken"])
		require.NotEmpty(t, body["accessToken"])
	})

	t.Run("access token is rejected", func(t *testing.T) {
		tf := setupTestFixture(t)
		res := tf.login(t)

		rec := tf.do(t, http.MethodPost, server.RouteRefresh, map[string]string{"refreshToken": res.AccessToken}, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "invalid_token", decodeBody(t, rec)["error"])
	})

	t.Run("partnership deactivated after login", func(t *testing.T) {
		tf := setupTestFixture(t)
		res := tf.login(t)
		require.NoError(t, tf.partnerships.SetPartnershipActive(testPartnershipID, false))

		rec := tf.do(t, http.MethodPost, server.RouteRefresh, map[string]string{"refreshToken": res.RefreshToken}, "")
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Equal(t, "partnership_inactive", decodeBody(t, rec)["error"])
	})

	t.Run("locked account cannot refresh", func(t *testing.T) {
		tf := setupTestFixture(t)
		res := tf.login(t)
		require.NoError(t, tf.credentials.UpdateLockoutState(context.Background(), testUserID, 30, lockout.LockedUntil(30, time.Now())))

		rec := tf.do(t, http.MethodPost, server.RouteRefresh, map[string]string{"refreshToken": res.RefreshToken}, "")
		require.Equal(t, http.StatusLocked, rec.Code)
		require.Equal(t, "account_locked", decodeBody(t, rec)["error"])
	})
}

func TestEngineersAPI(t *testing.T) {
	t.Run("deactivated account is refused with a live token", func(t *testing.T) {
		tf := setupTestFixture(t)
		res := tf.login(t)
		require.NoError(t, tf.credentials.SetActive(testUserID, false))

		for _, path := range []string{server.RouteAPIEngineers, server.RouteAPIMe, "/api/engineers/e1"} {
			rec := tf.do(t, http.MethodGet, path, nil, res.AccessToken)
			require.Equal(t, http.StatusForbidden, rec.Code, path)
			require.Equal(t, "account_inactive", decodeBody(t, rec)["error"])
		}
	})

	t.Run("requires a token", func(t *testing.T) {
		tf := setupTestFixture(t)
		rec := tf.do(t, http.MethodGet, server.RouteAPIEngineers, nil, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

		res := tf.login(t)
		rec = tf.do(t, http.MethodGet, server.RouteAPIEngineers, nil, res.RefreshToken)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("list is filtered by the live grant", func(t *testing.T) {
		tf := setupTestFixture(t)
		res := tf.login(t)

		rec := tf.do(t, http.MethodGet, server.RouteAPIEngineers, nil, res.AccessToken)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		require.EqualValues(t, 2, body["count"])

		require.NoError(t, tf.partnerships.UpsertGrant(&partnerships.Grant{
			PartnershipID:  testPartnershipID,
			PermissionType: partnerships.FullAccess,
			Active:         true,
		}))
		rec = tf.do(t, http.MethodGet, server.RouteAPIEngineers, nil, res.AccessToken)
		require.Equal(t, http.StatusOK, rec.Code)
		require.EqualValues(t, 3, decodeBody(t, rec)["count"])

		require.NoError(t, tf.partnerships.UpsertGrant(&partnerships.Grant{
			PartnershipID:  testPartnershipID,
			PermissionType: partnerships.SelectedOnly,
			Active:         true,
		}))
		rec = tf.do(t, http.MethodGet, server.RouteAPIEngineers, nil, res.AccessToken)
		require.Equal(t, http.StatusOK, rec.Code)
		require.EqualValues(t, 0, decodeBody(t, rec)["count"])
	})

	t.Run("detail uses the same filter", func(t *testing.T) {
		tf := setupTestFixture(t)
		res := tf.login(t)

		rec := tf.do(t, http.MethodGet, "/api/engineers/e3", nil, res.AccessToken)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "WAITING_SOON", decodeBody(t, rec)["status"])

		rec = tf.do(t, http.MethodGet, "/api/engineers/e2", nil, res.AccessToken)
		require.Equal(t, http.StatusNotFound, rec.Code)

		rec = tf.do(t, http.MethodGet, "/api/engineers/missing", nil, res.AccessToken)
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("suspended partnership denies a valid access token", func(t *testing.T) {
		tf := setupTestFixture(t)
		res := tf.login(t)
		require.NoError(t, tf.partnerships.SetPartnershipActive(testPartnershipID, false))

		rec := tf.do(t, http.MethodGet, server.RouteAPIEngineers, nil, res.AccessToken)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("registry failure denies", func(t *testing.T) {
		tf := setupTestFixture(t)
		res := tf.login(t)
		tf.partnerships.FailWith(context.DeadlineExceeded)

		rec := tf.do(t, http.MethodGet, server.RouteAPIEngineers, nil, res.AccessToken)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.NotContains(t, rec.Body.String(), "engineers")
	})
}

func TestMe(t *testing.T) {
	tf := setupTestFixture(t)
	res := tf.login(t)

	rec := tf.do(t, http.MethodGet, server.RouteAPIMe, nil, res.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, testIdentifier, body["principal"].(map[string]any)["identifier"])
	require.Equal(t, "by_status", body["visibility"].(map[string]any)["kind"])
}

func TestRateLimit(t *testing.T) {
	tf := setupTestFixture(t, func(c *config.Config) {
		c.RateLimit = config.RateLimit{PerSecond: 0.001, Burst: 2}
	})

	for i := 0; i < 2; i++ {
		rec := tf.do(t, http.MethodPost, server.RouteLogin, map[string]string{"identifier": "nobody", "password": "x"}, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := tf.do(t, http.MethodPost, server.RouteLogin, map[string]string{"identifier": "nobody", "password": "x"}, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimit_ForwardedFor(t *testing.T) {
	loginFrom := func(tf *testFixture, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodPost, server.RouteLogin, bytes.NewBufferString(`{"identifier":"nobody","password":"x"}`))
		req.RemoteAddr = "192.0.2.10:40000"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		rec := httptest.NewRecorder()
		tf.server.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("rotating header from an untrusted peer is ignored", func(t *testing.T) {
		tf := setupTestFixture(t, func(c *config.Config) {
			c.RateLimit = config.RateLimit{PerSecond: 0.001, Burst: 2}
		})

		limited := 0
		for i := 0; i < 50; i++ {
			if loginFrom(tf, fmt.Sprintf("10.0.0.%d", i)) == http.StatusTooManyRequests {
				limited++
			}
		}
		require.Equal(t, 48, limited)
	})

	t.Run("trusted proxy reports distinct clients", func(t *testing.T) {
		tf := setupTestFixture(t, func(c *config.Config) {
			c.RateLimit = config.RateLimit{PerSecond: 0.001, Burst: 2}
			proxies, err := config.ParseTrustedProxies("192.0.2.0/24")
			require.NoError(t, err)
			c.TrustedProxies = proxies
		})

		for i := 0; i < 5; i++ {
			require.Equal(t, http.StatusUnauthorized, loginFrom(tf, fmt.Sprintf("10.0.0.%d", i)))
		}
	})

	t.Run("client cannot prepend hops behind a trusted proxy", func(t *testing.T) {
		tf := setupTestFixture(t, func(c *config.Config) {
			c.RateLimit = config.RateLimit{PerSecond: 0.001, Burst: 2}
			proxies, err := config.ParseTrustedProxies("192.0.2.0/24")
			require.NoError(t, err)
			c.TrustedProxies = proxies
		})

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			codes = append(codes, loginFrom(tf, fmt.Sprintf("10.9.9.%d, 203.0.113.7", i)))
		}
		require.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
	})
}

func TestCorsPreflight(t *testing.T) {
	tf := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodOptions, server.RouteLogin, nil)
	req.Header.Set("Origin", "https://portal.example.com")
	rec := httptest.NewRecorder()
	tf.server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://portal.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, server.RouteLogin, nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	tf.server.ServeHTTP(rec, req)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthzAndMetrics(t *testing.T) {
	tf := setupTestFixture(t)
	tf.login(t)

	rec := tf.do(t, http.MethodGet, server.RouteHealthz, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = tf.do(t, http.MethodGet, server.RouteMetrics, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `ses_auth_login_total{outcome="success"} 1`)
}

func TestMetrics_RouteLabels(t *testing.T) {
	tf := setupTestFixture(t)
	res := tf.login(t)

	for i := 0; i < 5; i++ {
		tf.do(t, http.MethodGet, fmt.Sprintf("/random-%d", i), nil, "")
		tf.do(t, http.MethodGet, fmt.Sprintf("/api/engineers/unknown-%d", i), nil, res.AccessToken)
	}

	body := tf.do(t, http.MethodGet, server.RouteMetrics, nil, "").Body.String()
	require.Contains(t, body, `http_requests_total{method="GET",path="unmatched",status="404"} 5`)
	require.Contains(t, body, `http_requests_total{method="GET",path="/api/engineers/{id}",status="404"} 5`)
	require.NotContains(t, body, "random-")
	require.NotContains(t, body, "unknown-")
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusLocked, server.StatusFor("account_locked"))
	require.Equal(t, http.StatusServiceUnavailable, server.StatusFor("something_else"))
}
