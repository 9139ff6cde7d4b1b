package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/identity-service/internal/core/domain"
)

func TestUserHandler_Create(t *testing.T) {
	stub := &stubCredentials{
		createUserFn: func(_ context.Context, token, username, password string, role domain.Role) (*domain.PublicUserView, error) {
			if token != "admin-tok" || username != "alice" || password != "Secret123!" || role != domain.RoleUser {
				t.Fatalf("unexpected args: %s %s %s", token, username, role)
			}
			return &domain.PublicUserView{ID: "1", Username: "alice", Role: domain.RoleUser}, nil
		},
	}
	c, rec := newTestContext(http.MethodPost, "/v1/users", `{"username":"alice","password":"Secret123!","role":"user"}`)
	withCaller(c, "admin-tok", "root", domain.RoleAdmin)

	if err := NewUserHandler(stub).Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/users/alice" {
		t.Fatalf("unexpected Location %q", loc)
	}

	var view domain.PublicUserView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if view.Username != "alice" || view.Role != domain.RoleUser {
		t.Fatalf("unexpected view: %+v", view)
	}
}

func TestUserHandler_Create_RejectsUnknownRole(t *testing.T) {
	c, _ := newTestContext(http.MethodPost, "/v1/users", `{"username":"alice","password":"Secret123!","role":"root"}`)
	withCaller(c, "admin-tok", "root", domain.RoleAdmin)

	if code := httpStatus(t, NewUserHandler(&stubCredentials{}).Create(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestUserHandler_Create_PropagatesDomainErrors(t *testing.T) {
	for _, want := range []error{domain.ErrForbidden, domain.ErrConflict, domain.ErrInvalidInput} {
		stub := &stubCredentials{
			createUserFn: func(context.Context, string, string, string, domain.Role) (*domain.PublicUserView, error) {
				return nil, want
			},
		}
		c, _ := newTestContext(http.MethodPost, "/v1/users", `{"username":"alice","password":"Secret123!","role":"user"}`)
		withCaller(c, "tok", "bob", domain.RoleUser)

		if err := NewUserHandler(stub).Create(c); !errors.Is(err, want) {
			t.Fatalf("expected %v, got %v", want, err)
		}
	}
}

func TestUserHandler_List(t *testing.T) {
	stub := &stubCredentials{
		listUsersFn: func(context.Context, string) ([]domain.PublicUserView, error) {
			return []domain.PublicUserView{{Username: "alice"}, {Username: "root"}}, nil
		},
	}
	c, rec := newTestContext(http.MethodGet, "/v1/users", "")
	withCaller(c, "admin-tok", "root", domain.RoleAdmin)

	if err := NewUserHandler(stub).List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp listUsersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Count != 2 || len(resp.Users) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestUserHandler_PathParamIsForwarded(t *testing.T) {
	var got []string
	stub := &stubCredentials{
		getUserFn: func(_ context.Context, _, username string) (*domain.PublicUserView, error) {
			got = append(got, "get:"+username)
			return &domain.PublicUserView{Username: username}, nil
		},
		resetPasswordFn: func(_ context.Context, _, username, password string) error {
			got = append(got, "reset:"+username)
			return nil
		},
		changeRoleFn: func(_ context.Context, _, username string, role domain.Role) (*domain.PublicUserView, error) {
			got = append(got, "role:"+username+":"+string(role))
			return &domain.PublicUserView{Username: username, Role: role}, nil
		},
		deleteUserFn: func(_ context.Context, _, username string) error {
			got = append(got, "delete:"+username)
			return nil
		},
	}
	h := NewUserHandler(stub)

	cases := []struct {
		name   string
		method string
		body   string
		call   echo.HandlerFunc
		status int
	}{
		{"get", http.MethodGet, "", h.Get, http.StatusOK},
		{"reset", http.MethodPut, `{"password":"N3w-Password!"}`, h.ResetPassword, http.StatusNoContent},
		{"role", http.MethodPut, `{"role":"admin"}`, h.ChangeRole, http.StatusOK},
		{"delete", http.MethodDelete, "", h.Delete, http.StatusNoContent},
	}
	for _, tc := range cases {
		c, rec := newTestContext(tc.method, "/v1/users/alice", tc.body)
		withCaller(c, "admin-tok", "root", domain.RoleAdmin)
		c.SetParamNames("username")
		c.SetParamValues("alice")

		if err := tc.call(c); err != nil {
			t.Fatalf("%s: handler error: %v", tc.name, err)
		}
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
		}
	}

	want := []string{"get:alice", "reset:alice", "role:alice:admin", "delete:alice"}
	if len(got) != len(want) {
		t.Fatalf("unexpected calls: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestUserHandler_ResetPassword_RequiresBody(t *testing.T) {
	c, _ := newTestContext(http.MethodPut, "/v1/users/alice/password", `{}`)
	withCaller(c, "tok", "alice", domain.RoleUser)
	c.SetParamNames("username")
	c.SetParamValues("alice")

	if code := httpStatus(t, NewUserHandler(&stubCredentials{}).ResetPassword(c)); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}
