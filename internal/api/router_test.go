package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/99minutos/identity-service/internal/core/service"
	"github.com/99minutos/identity-service/internal/infrastructure/db/memory"
	"github.com/99minutos/identity-service/internal/infrastructure/token"
	"github.com/99minutos/identity-service/pkg/passhash"
)

const (
	rootPassword  = "Adm1n-Passw0rd!"
	alicePassword = "Secret123!"
)

func newTestRouter(t *testing.T, loginRate rate.Limit, loginBurst int) *echo.Echo {
	t.Helper()

	issuer, err := token.NewIssuer("0123456789abcdef0123456789abcdef", "identity-test")
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	svc, err := service.NewCredentialService(service.Dependencies{
		Users:    memory.NewUserStore(),
		Sessions: memory.NewSessionStore(),
		Tokens:   issuer,
		Hasher:   passhash.New(passhash.Params{Memory: 64, Iterations: 1, Parallelism: 1}),
		Limiter:  memory.NewAttemptLimiter(5, 15*time.Minute),
	}, service.Options{TokenTTL: time.Hour, PasswordMinLength: 10}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewCredentialService: %v", err)
	}
	if _, err := svc.BootstrapAdmin(context.Background(), "root", rootPassword); err != nil {
		t.Fatalf("BootstrapAdmin: %v", err)
	}

	reg := prometheus.NewRegistry()
	return NewRouter(RouterConfig{
		Credentials:       svc,
		Logger:            zerolog.Nop(),
		LoginRate:         loginRate,
		LoginBurst:        loginBurst,
		MetricsRegisterer: reg,
		MetricsGatherer:   reg,
	})
}

func do(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, e *echo.Echo, username, password string) string {
	t.Helper()
	rec := do(e, http.MethodPost, "/v1/auth/login", "", `{"username":"`+username+`","password":"`+password+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d %s", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login %s: bad body %s", username, rec.Body.String())
	}
	return resp.Token
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestRouter_AccountLifecycle(t *testing.T) {
	e := newTestRouter(t, rate.Inf, 100)
	adminToken := login(t, e, "root", rootPassword)

	rec := do(e, http.MethodPost, "/v1/users", adminToken, `{"username":"alice","password":"`+alicePassword+`","role":"user"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "$argon2id$") || strings.Contains(rec.Body.String(), alicePassword) {
		t.Fatalf("create response leaks secret material: %s", rec.Body.String())
	}

	aliceToken := login(t, e, "alice", alicePassword)

	if rec := do(e, http.MethodGet, "/v1/users", aliceToken, ""); rec.Code != http.StatusForbidden || errorBody(t, rec) != "access denied" {
		t.Fatalf("list as user: got %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/v1/users/alice", aliceToken, ""); rec.Code != http.StatusOK {
		t.Fatalf("self details: got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/v1/auth/me", aliceToken, ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"username":"alice"`) {
		t.Fatalf("me: got %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodDelete, "/v1/users/alice", aliceToken, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("delete as user: got %d", rec.Code)
	}
	if rec := do(e, http.MethodDelete, "/v1/users/alice", adminToken, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete as admin: got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(e, http.MethodPost, "/v1/auth/login", "", `{"username":"alice","password":"`+alicePassword+`"}`)
	if rec.Code != http.StatusUnauthorized || errorBody(t, rec) != "access denied" {
		t.Fatalf("login after delete: got %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/v1/auth/me", aliceToken, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("deleted user's token: got %d", rec.Code)
	}
}

func TestRouter_DenialsShareOneMessage(t *testing.T) {
	e := newTestRouter(t, rate.Inf, 100)
	adminToken := login(t, e, "root", rootPassword)
	if rec := do(e, http.MethodPost, "/v1/users", adminToken, `{"username":"alice","password":"`+alicePassword+`","role":"user"}`); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	aliceToken := login(t, e, "alice", alicePassword)

	wrongPassword := do(e, http.MethodPost, "/v1/auth/login", "", `{"username":"alice","password":"Wrong-Passw0rd"}`)
	unknownUser := do(e, http.MethodPost, "/v1/auth/login", "", `{"username":"ghost","password":"Wrong-Passw0rd"}`)
	forbidden := do(e, http.MethodPut, "/v1/users/root/password", aliceToken, `{"password":"Hijack-Passw0rd"}`)

	msgs := []string{errorBody(t, wrongPassword), errorBody(t, unknownUser), errorBody(t, forbidden)}
	for _, m := range msgs {
		if m != "access denied" {
			t.Fatalf("expected generic denial, got %v", msgs)
		}
	}
}

func TestRouter_RoleChangeRequiresNewLogin(t *testing.T) {
	e := newTestRouter(t, rate.Inf, 100)
	adminToken := login(t, e, "root", rootPassword)
	do(e, http.MethodPost, "/v1/users", adminToken, `{"username":"alice","password":"`+alicePassword+`","role":"user"}`)
	aliceToken := login(t, e, "alice", alicePassword)

	rec := do(e, http.MethodPut, "/v1/users/alice/role", adminToken, `{"role":"admin"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"role":"admin"`) {
		t.Fatalf("change role: got %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(e, http.MethodGet, "/v1/users", aliceToken, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("old session should be revoked, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/v1/users", login(t, e, "alice", alicePassword), ""); rec.Code != http.StatusOK {
		t.Fatalf("new admin session: got %d", rec.Code)
	}
}

func TestRouter_Logout(t *testing.T) {
	e := newTestRouter(t, rate.Inf, 100)
	adminToken := login(t, e, "root", rootPassword)

	if rec := do(e, http.MethodPost, "/v1/auth/logout", adminToken, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("logout: got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/v1/users", adminToken, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("token after logout: got %d", rec.Code)
	}
}

func TestRouter_InputErrors(t *testing.T) {
	e := newTestRouter(t, rate.Inf, 100)
	adminToken := login(t, e, "root", rootPassword)

	weak := do(e, http.MethodPost, "/v1/users", adminToken, `{"username":"alice","password":"weak","role":"user"}`)
	if weak.Code != http.StatusBadRequest || !strings.HasPrefix(errorBody(t, weak), "invalid input") {
		t.Fatalf("weak password: got %d %s", weak.Code, weak.Body.String())
	}

	do(e, http.MethodPost, "/v1/users", adminToken, `{"username":"alice","password":"`+alicePassword+`","role":"user"}`)
	dup := do(e, http.MethodPost, "/v1/users", adminToken, `{"username":"alice","password":"`+alicePassword+`","role":"user"}`)
	if dup.Code != http.StatusConflict {
		t.Fatalf("duplicate: got %d", dup.Code)
	}

	if rec := do(e, http.MethodGet, "/v1/users/ghost", adminToken, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing user: got %d", rec.Code)
	}
	for name, header := range map[string]string{"missing header": "", "unknown token": "not-a-jwt"} {
		rec := do(e, http.MethodGet, "/v1/auth/me", header, "")
		if rec.Code != http.StatusUnauthorized || errorBody(t, rec) != "access denied" {
			t.Fatalf("%s: got %d %s", name, rec.Code, rec.Body.String())
		}
	}
}

func TestRouter_LoginIsRateLimitedPerIP(t *testing.T) {
	e := newTestRouter(t, rate.Every(time.Hour), 2)

	body := `{"username":"root","password":"Wrong-Passw0rd"}`
	for i := 0; i < 2; i++ {
		if rec := do(e, http.MethodPost, "/v1/auth/login", "", body); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, rec.Code)
		}
	}
	if rec := do(e, http.MethodPost, "/v1/auth/login", "", body); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestRouter_InfraEndpoints(t *testing.T) {
	e := newTestRouter(t, rate.Inf, 100)

	if rec := do(e, http.MethodGet, "/health", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("health: got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/health/ready", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready: got %d", rec.Code)
	}

	login(t, e, "root", rootPassword)
	rec := do(e, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("metrics: got %d", rec.Code)
	}
}
