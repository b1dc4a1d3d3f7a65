package auth_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/frahmantamala/access-management/internal/auth"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// MockAdminAuthorizer implements auth.AdminAuthorizer for testing
type MockAdminAuthorizer struct {
	admins     map[string]bool
	shouldFail bool
}

func (m *MockAdminAuthorizer) IsAdmin(ctx context.Context, username string) (bool, error) {
	if m.shouldFail {
		return false, errors.New("store unavailable")
	}
	return m.admins[username], nil
}

var _ = Describe("AdminAuthorization", func() {
	var (
		authorizer *MockAdminAuthorizer
		middleware func(http.Handler) http.Handler
		nextCalled bool
		next       http.Handler
	)

	BeforeEach(func() {
		authorizer = &MockAdminAuthorizer{admins: map[string]bool{"root": true}}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		middleware = auth.NewAdminAuthorization(authorizer, logger).RequireAdmin()

		nextCalled = false
		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusNoContent)
		})
	})

	serve := func(identity *auth.Identity) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin/user", nil)
		if identity != nil {
			req = req.WithContext(auth.ContextWithIdentity(req.Context(), identity))
		}
		w := httptest.NewRecorder()
		middleware(next).ServeHTTP(w, req)
		return w
	}

	It("should pass admins through", func() {
		w := serve(&auth.Identity{Username: "root", Admin: true})
		Expect(w.Code).To(Equal(http.StatusNoContent))
		Expect(nextCalled).To(BeTrue())
	})

	It("should return 401 without an identity", func() {
		w := serve(nil)
		Expect(w.Code).To(Equal(http.StatusUnauthorized))
		Expect(nextCalled).To(BeFalse())
	})

	It("should return 403 for non-admins", func() {
		w := serve(&auth.Identity{Username: "alice"})
		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(nextCalled).To(BeFalse())
	})

	It("should check the store, not the token claims", func() {
		// identity says admin but the store has since revoked the flag
		authorizer.admins["root"] = false

		w := serve(&auth.Identity{Username: "root", Admin: true})
		Expect(w.Code).To(Equal(http.StatusForbidden))
		Expect(nextCalled).To(BeFalse())
	})

	It("should return 500 when the check fails", func() {
		authorizer.shouldFail = true

		w := serve(&auth.Identity{Username: "root", Admin: true})
		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(nextCalled).To(BeFalse())
	})
})
