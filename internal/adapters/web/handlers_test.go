package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hardstock/internal/adapters/web"
	"hardstock/internal/app"
	"hardstock/internal/core"
)

const testSecret = "test-secret"

// stubService implements only the ApplicationService methods these tests
// touch; everything else panics via the embedded nil interface.
type stubService struct {
	app.ApplicationService

	createClientErr error
	products        []core.Product
}

func (s *stubService) AuthenticateUser(_ context.Context, username, password string) (*app.UserSession, error) {
	if username == "admin" && password == "admin" {
		return &app.UserSession{UserID: 1, Username: "admin", Role: "admin"}, nil
	}
	return nil, errors.New("invalid credentials")
}

func (s *stubService) GetUser(_ context.Context, userID int) (*core.User, error) {
	if userID != 1 {
		return nil, errors.New("user not found")
	}
	return &core.User{ID: 1, Username: "admin", Role: "admin"}, nil
}

func (s *stubService) ListProducts(_ context.Context) ([]core.Product, error) {
	return s.products, nil
}

func (s *stubService) GetProduct(_ context.Context, id int) (*core.Product, error) {
	return nil, fmt.Errorf("product id=%d not found", id)
}

func (s *stubService) CreateClient(_ context.Context, _ core.ClientInput) (*core.Client, error) {
	if s.createClientErr != nil {
		return nil, s.createClientErr
	}
	return &core.Client{ID: 7, Name: "Cafe du Port"}, nil
}

func newTestServer(t *testing.T, svc *stubService) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(web.NewHandler(svc, "http://localhost:3000", testSecret))
	t.Cleanup(srv.Close)
	return srv
}

// loginCookie authenticates as admin/admin and returns the session cookie.
func loginCookie(t *testing.T, srv *httptest.Server) *http.Cookie {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"username":"admin","password":"admin"}`))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "auth_token" {
			return c
		}
	}
	t.Fatal("login response did not set auth_token cookie")
	return nil
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-ID"); got == "" {
		t.Error("response missing X-Request-ID header")
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf(`body = %v, want {"status":"ok"}`, body)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	for _, path := range []string{"/api/products", "/api/clients", "/api/dashboard", "/api/auth/me"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without cookie: status = %d, want 401", path, resp.StatusCode)
		}
		var body struct {
			Code string `json:"code"`
		}
		decodeBody(t, resp, &body)
		if body.Code != "UNAUTHORIZED" {
			t.Errorf("GET %s: code = %q, want UNAUTHORIZED", path, body.Code)
		}
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json",
		strings.NewReader(`{"username":"admin","password":"wrong"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == "auth_token" {
			t.Error("failed login must not set a session cookie")
		}
	}
}

func TestLoginAndMe(t *testing.T) {
	srv := newTestServer(t, &stubService{})
	cookie := loginCookie(t, srv)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/auth/me", nil)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body struct {
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	decodeBody(t, resp, &body)
	if body.Username != "admin" || body.Role != "admin" {
		t.Errorf("me = %+v, want admin/admin", body)
	}
}

func TestForgedTokenRejected(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/products", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: "not-a-jwt"})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestValidationErrorsMapTo422(t *testing.T) {
	svc := &stubService{
		createClientErr: core.FieldErrors{
			"name":                    "is required",
			"assignments[0].quantity": "insufficient stock for TERM-01: requested 99, available 6",
		},
	}
	srv := newTestServer(t, svc)
	cookie := loginCookie(t, srv)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/clients",
		bytes.NewReader([]byte(`{"name":""}`)))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	var body struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	}
	decodeBody(t, resp, &body)
	if body.Code != "VALIDATION_ERROR" {
		t.Errorf("code = %q, want VALIDATION_ERROR", body.Code)
	}
	if body.Fields["name"] != "is required" {
		t.Errorf("fields = %v, missing name error", body.Fields)
	}
	if body.Fields["assignments[0].quantity"] == "" {
		t.Errorf("fields = %v, missing line-level stock error", body.Fields)
	}
}

func TestNotFoundMapsTo404(t *testing.T) {
	srv := newTestServer(t, &stubService{})
	cookie := loginCookie(t, srv)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/products/42", nil)
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	var body struct {
		Code      string `json:"code"`
		RequestID string `json:"request_id"`
	}
	decodeBody(t, resp, &body)
	if body.Code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", body.Code)
	}
	if body.RequestID == "" {
		t.Error("error envelope missing request_id")
	}
}

func TestInvalidIDParamIsBadRequest(t *testing.T) {
	srv := newTestServer(t, &stubService{})
	cookie := loginCookie(t, srv)

	for _, path := range []string{"/api/products/abc", "/api/products/0", "/api/products/-3"} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		req.AddCookie(cookie)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("GET %s: status = %d, want 400", path, resp.StatusCode)
		}
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	srv := newTestServer(t, &stubService{})
	cookie := loginCookie(t, srv)

	big := `{"name":"` + strings.Repeat("x", 2<<20) + `"}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/clients", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want configured origin", got)
	}

	req, _ = http.NewRequest(http.MethodOptions, srv.URL+"/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unrecognized origin must not be allowed, got %q", got)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	srv := newTestServer(t, &stubService{})

	resp, err := http.Post(srv.URL+"/api/auth/logout", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	found := false
	for _, c := range resp.Cookies() {
		if c.Name == "auth_token" {
			found = true
			if c.MaxAge >= 0 {
				t.Errorf("logout cookie MaxAge = %d, want negative to expire it", c.MaxAge)
			}
		}
	}
	if !found {
		t.Error("logout did not reset the auth_token cookie")
	}
}
