package access_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/frahmantamala/access-management/internal/access"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Access Handler", func() {
	var (
		identity *MockIdentityRepository
		perms    *MockPermissionRepository
		settings *MockSettingsRepository
		handler  *access.Handler
		router   *chi.Mux
	)

	BeforeEach(func() {
		identity = NewMockIdentityRepository()
		perms = NewMockPermissionRepository()
		settings = &MockSettingsRepository{allow: true}

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		service := access.NewService(identity, perms, settings, nil, logger)
		handler = access.NewHandler(service)

		router = chi.NewRouter()
		router.Get("/admin/pending_users", handler.GetPendingUsers)
		router.Get("/admin/user", handler.GetUsers)
		router.Get("/admin/user/{username}", handler.GetUser)
		router.Delete("/admin/user/{username}", handler.DeleteUser)
		router.Post("/admin/user/{username}/approve", handler.ApproveUser)
		router.Post("/admin/user/{username}/admin", handler.SetAdminStatus)
		router.Get("/admin/user/{username}/permissions", handler.GetUserPermissions)
		router.Put("/admin/user/{username}/group/{group}", handler.EditUserGroup)
		router.Delete("/admin/user/{username}/group/{group}", handler.EditUserGroup)
		router.Get("/admin/group", handler.GetGroups)
		router.Get("/admin/group/{group}", handler.GetGroupDetail)
		router.Put("/admin/group/{group}", handler.CreateGroup)
		router.Delete("/admin/group/{group}", handler.DeleteGroup)
		router.Get("/admin/package/{package}", handler.GetPackagePermissions)
		router.Put("/admin/package/{package}/type/{type}/name/{name}/permission/{permission}", handler.EditPermission)
		router.Delete("/admin/package/{package}/type/{type}/name/{name}/permission/{permission}", handler.EditPermission)
		router.Post("/admin/register", handler.ToggleAllowRegister)
	})

	doRequest := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	Describe("GET /admin/user/{username}", func() {
		It("should return the user with memberships", func() {
			identity.AddUser(&access.User{Username: "alice"})
			identity.AddGroup("devs", "alice")

			w := doRequest(http.MethodGet, "/admin/user/alice", "")
			Expect(w.Code).To(Equal(http.StatusOK))

			var user access.User
			Expect(json.NewDecoder(w.Body).Decode(&user)).To(Succeed())
			Expect(user.Username).To(Equal("alice"))
			Expect(user.Groups).To(ConsistOf("devs"))
		})

		It("should return 404 for an unknown user", func() {
			w := doRequest(http.MethodGet, "/admin/user/ghost", "")
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("DELETE /admin/user/{username}", func() {
		It("should delete and then report not found", func() {
			identity.AddUser(&access.User{Username: "alice"})

			w := doRequest(http.MethodDelete, "/admin/user/alice", "")
			Expect(w.Code).To(Equal(http.StatusNoContent))

			w = doRequest(http.MethodGet, "/admin/user/alice", "")
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /admin/user/{username}/approve", func() {
		It("should approve a pending user", func() {
			identity.AddUser(&access.User{Username: "alice", Pending: true})

			w := doRequest(http.MethodPost, "/admin/user/alice/approve", "")
			Expect(w.Code).To(Equal(http.StatusNoContent))

			w = doRequest(http.MethodGet, "/admin/pending_users", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).NotTo(ContainSubstring("alice"))
		})
	})

	Describe("POST /admin/user/{username}/admin", func() {
		BeforeEach(func() {
			identity.AddUser(&access.User{Username: "alice"})
		})

		It("should set the admin flag", func() {
			w := doRequest(http.MethodPost, "/admin/user/alice/admin", `{"admin": true}`)
			Expect(w.Code).To(Equal(http.StatusNoContent))

			w = doRequest(http.MethodGet, "/admin/user/alice", "")
			var user access.User
			Expect(json.NewDecoder(w.Body).Decode(&user)).To(Succeed())
			Expect(user.Admin).To(BeTrue())
		})

		It("should reject a body without the admin field", func() {
			w := doRequest(http.MethodPost, "/admin/user/alice/admin", `{}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should reject a malformed body", func() {
			w := doRequest(http.MethodPost, "/admin/user/alice/admin", `not json`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("group membership routes", func() {
		BeforeEach(func() {
			identity.AddUser(&access.User{Username: "alice"})
			identity.AddGroup("devs")
		})

		It("should add on PUT and remove on DELETE", func() {
			w := doRequest(http.MethodPut, "/admin/user/alice/group/devs", "")
			Expect(w.Code).To(Equal(http.StatusNoContent))

			w = doRequest(http.MethodGet, "/admin/group/devs", "")
			var detail access.GroupDetailDTO
			Expect(json.NewDecoder(w.Body).Decode(&detail)).To(Succeed())
			Expect(detail.Members).To(ConsistOf("alice"))

			w = doRequest(http.MethodDelete, "/admin/user/alice/group/devs", "")
			Expect(w.Code).To(Equal(http.StatusNoContent))
		})

		It("should return 400 for reserved groups", func() {
			w := doRequest(http.MethodPut, "/admin/user/alice/group/everyone", "")
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should return 404 for an unknown group", func() {
			w := doRequest(http.MethodPut, "/admin/user/alice/group/ghosts", "")
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("group routes", func() {
		It("should create, list and delete groups", func() {
			w := doRequest(http.MethodPut, "/admin/group/devs", "")
			Expect(w.Code).To(Equal(http.StatusNoContent))

			w = doRequest(http.MethodGet, "/admin/group", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			var groups []string
			Expect(json.NewDecoder(w.Body).Decode(&groups)).To(Succeed())
			Expect(groups).To(ConsistOf("devs"))

			w = doRequest(http.MethodDelete, "/admin/group/devs", "")
			Expect(w.Code).To(Equal(http.StatusNoContent))
		})

		It("should return 409 for a duplicate group", func() {
			doRequest(http.MethodPut, "/admin/group/devs", "")
			w := doRequest(http.MethodPut, "/admin/group/devs", "")
			Expect(w.Code).To(Equal(http.StatusConflict))
		})

		It("should return 400 for reserved names", func() {
			w := doRequest(http.MethodPut, "/admin/group/authenticated", "")
			Expect(w.Code).To(Equal(http.StatusBadRequest))

			w = doRequest(http.MethodDelete, "/admin/group/everyone", "")
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should serve the detail of the reserved pseudo-groups", func() {
			w := doRequest(http.MethodPut, "/admin/package/mypkg/type/group/name/everyone/permission/read", "")
			Expect(w.Code).To(Equal(http.StatusNoContent))

			w = doRequest(http.MethodGet, "/admin/group/everyone", "")
			Expect(w.Code).To(Equal(http.StatusOK))

			var detail access.GroupDetailDTO
			Expect(json.NewDecoder(w.Body).Decode(&detail)).To(Succeed())
			Expect(detail.Members).To(BeEmpty())
			Expect(detail.Packages).To(HaveLen(1))
			Expect(detail.Packages[0].Package).To(Equal("mypkg"))
			Expect(detail.Packages[0].Permissions).To(Equal([]string{"read"}))
		})
	})

	Describe("permission routes", func() {
		BeforeEach(func() {
			identity.AddUser(&access.User{Username: "alice"})
			identity.AddGroup("devs")
		})

		It("should grant and list a user permission", func() {
			w := doRequest(http.MethodPut, "/admin/package/mypkg/type/user/name/alice/permission/write", "")
			Expect(w.Code).To(Equal(http.StatusNoContent))

			w = doRequest(http.MethodGet, "/admin/user/alice/permissions", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			var listing []access.PackagePermissionDTO
			Expect(json.NewDecoder(w.Body).Decode(&listing)).To(Succeed())
			Expect(listing).To(HaveLen(1))
			Expect(listing[0].Permissions).To(Equal([]string{"read", "write"}))
		})

		It("should revoke on DELETE", func() {
			doRequest(http.MethodPut, "/admin/package/mypkg/type/group/name/devs/permission/read", "")
			w := doRequest(http.MethodDelete, "/admin/package/mypkg/type/group/name/devs/permission/read", "")
			Expect(w.Code).To(Equal(http.StatusNoContent))

			w = doRequest(http.MethodGet, "/admin/package/mypkg", "")
			var acl access.PackageACLDTO
			Expect(json.NewDecoder(w.Body).Decode(&acl)).To(Succeed())
			Expect(acl.Group).To(BeEmpty())
		})

		It("should return 400 for an invalid permission level", func() {
			w := doRequest(http.MethodPut, "/admin/package/mypkg/type/user/name/alice/permission/own", "")
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should return 400 for an invalid owner type", func() {
			w := doRequest(http.MethodPut, "/admin/package/mypkg/type/robot/name/alice/permission/read", "")
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("should return 404 for an unknown user", func() {
			w := doRequest(http.MethodPut, "/admin/package/mypkg/type/user/name/ghost/permission/read", "")
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /admin/register", func() {
		It("should toggle the registration flag", func() {
			w := doRequest(http.MethodPost, "/admin/register", `{"allow": false}`)
			Expect(w.Code).To(Equal(http.StatusNoContent))
			Expect(settings.allow).To(BeFalse())
		})

		It("should reject a body without the allow field", func() {
			w := doRequest(http.MethodPost, "/admin/register", `{}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
