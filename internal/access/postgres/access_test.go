package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/frahmantamala/access-management/internal"
	"github.com/frahmantamala/access-management/internal/access"
	accessPostgres "github.com/frahmantamala/access-management/internal/access/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestAccessPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Access Postgres Suite")
}

// SQLite-compatible models for testing

type SQLiteUser struct {
	ID           int64     `gorm:"primaryKey"`
	Username     string    `gorm:"column:username;uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	Pending      bool      `gorm:"column:pending;default:true"`
	Admin        bool      `gorm:"column:admin;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (SQLiteUser) TableName() string { return "users" }

type SQLiteGroup struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (SQLiteGroup) TableName() string { return "groups" }

type SQLiteGroupMember struct {
	ID        int64     `gorm:"primaryKey"`
	Username  string    `gorm:"column:username;not null;uniqueIndex:idx_member"`
	GroupName string    `gorm:"column:group_name;not null;uniqueIndex:idx_member"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (SQLiteGroupMember) TableName() string { return "group_members" }

type SQLitePermission struct {
	ID        int64     `gorm:"primaryKey"`
	OwnerType string    `gorm:"column:owner_type;not null;uniqueIndex:idx_grant"`
	OwnerName string    `gorm:"column:owner_name;not null;uniqueIndex:idx_grant"`
	Package   string    `gorm:"column:package;not null;uniqueIndex:idx_grant"`
	Read      bool      `gorm:"column:read;default:false"`
	Write     bool      `gorm:"column:write;default:false"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (SQLitePermission) TableName() string { return "permissions" }

type SQLiteSetting struct {
	ID        int64     `gorm:"primaryKey"`
	Key       string    `gorm:"column:key;uniqueIndex;not null"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (SQLiteSetting) TableName() string { return "settings" }

var _ = Describe("Access Repository", func() {
	var (
		db   *gorm.DB
		repo *accessPostgres.AccessRepository
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&SQLiteUser{}, &SQLiteGroup{}, &SQLiteGroupMember{}, &SQLitePermission{}, &SQLiteSetting{})
		Expect(err).NotTo(HaveOccurred())

		repo = accessPostgres.NewAccessRepository(db)
		ctx = context.Background()
	})

	Describe("CreateUser", func() {
		It("should create a pending non-admin user", func() {
			err := repo.CreateUser(ctx, "alice", "hash")
			Expect(err).NotTo(HaveOccurred())

			u, err := repo.GetUser(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Pending).To(BeTrue())
			Expect(u.Admin).To(BeFalse())
			Expect(u.Groups).To(BeEmpty())
		})

		It("should reject a duplicate username", func() {
			Expect(repo.CreateUser(ctx, "alice", "hash")).To(Succeed())
			Expect(repo.CreateUser(ctx, "alice", "other")).To(MatchError(internal.ErrUserExists))
		})
	})

	Describe("GetCredentials", func() {
		It("should return the stored hash and pending flag", func() {
			Expect(repo.CreateUser(ctx, "alice", "hash")).To(Succeed())

			hash, pending, err := repo.GetCredentials(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(hash).To(Equal("hash"))
			Expect(pending).To(BeTrue())
		})

		It("should fail for an unknown user", func() {
			_, _, err := repo.GetCredentials(ctx, "ghost")
			Expect(err).To(MatchError(internal.ErrUserNotFound))
		})
	})

	Describe("ApproveUser", func() {
		It("should clear the pending flag and stay idempotent", func() {
			Expect(repo.CreateUser(ctx, "alice", "hash")).To(Succeed())

			Expect(repo.ApproveUser(ctx, "alice")).To(Succeed())
			Expect(repo.ApproveUser(ctx, "alice")).To(Succeed())

			u, err := repo.GetUser(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Pending).To(BeFalse())
		})

		It("should fail for an unknown user", func() {
			Expect(repo.ApproveUser(ctx, "ghost")).To(MatchError(internal.ErrUserNotFound))
		})
	})

	Describe("ListUsers", func() {
		BeforeEach(func() {
			Expect(repo.CreateUser(ctx, "bob", "hash")).To(Succeed())
			Expect(repo.CreateUser(ctx, "alice", "hash")).To(Succeed())
			Expect(repo.ApproveUser(ctx, "alice")).To(Succeed())
		})

		It("should list all users ordered by username with memberships", func() {
			Expect(repo.CreateGroup(ctx, "devs")).To(Succeed())
			Expect(repo.AddToGroup(ctx, "alice", "devs")).To(Succeed())

			users, err := repo.ListUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(HaveLen(2))
			Expect(users[0].Username).To(Equal("alice"))
			Expect(users[0].Groups).To(ConsistOf("devs"))
			Expect(users[1].Username).To(Equal("bob"))
		})

		It("should list only pending users", func() {
			pending, err := repo.ListPendingUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(HaveLen(1))
			Expect(pending[0].Username).To(Equal("bob"))
		})
	})

	Describe("DeleteUser", func() {
		BeforeEach(func() {
			Expect(repo.CreateUser(ctx, "alice", "hash")).To(Succeed())
			Expect(repo.CreateGroup(ctx, "devs")).To(Succeed())
			Expect(repo.AddToGroup(ctx, "alice", "devs")).To(Succeed())
			Expect(repo.SetPermission(ctx, &access.Grant{
				Principal: access.UserPrincipal("alice"), Package: "mypkg", Read: true,
			})).To(Succeed())
		})

		It("should cascade over memberships and grants", func() {
			Expect(repo.DeleteUser(ctx, "alice")).To(Succeed())

			_, err := repo.GetUser(ctx, "alice")
			Expect(err).To(MatchError(internal.ErrUserNotFound))

			members, err := repo.GroupMembers(ctx, "devs")
			Expect(err).NotTo(HaveOccurred())
			Expect(members).To(BeEmpty())

			grants, err := repo.PermissionsForPackage(ctx, "mypkg")
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(BeEmpty())
		})

		It("should keep grants of other principals", func() {
			Expect(repo.SetPermission(ctx, &access.Grant{
				Principal: access.GroupPrincipal("devs"), Package: "mypkg", Read: true,
			})).To(Succeed())

			Expect(repo.DeleteUser(ctx, "alice")).To(Succeed())

			grants, err := repo.PermissionsForPackage(ctx, "mypkg")
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(HaveLen(1))
			Expect(grants[0].Principal.Kind).To(Equal(access.KindGroup))
		})

		It("should fail for an unknown user", func() {
			Expect(repo.DeleteUser(ctx, "ghost")).To(MatchError(internal.ErrUserNotFound))
		})
	})

	Describe("groups", func() {
		It("should create, list and delete groups", func() {
			Expect(repo.CreateGroup(ctx, "devs")).To(Succeed())
			Expect(repo.CreateGroup(ctx, "admins")).To(Succeed())

			names, err := repo.ListGroups(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"admins", "devs"}))

			Expect(repo.DeleteGroup(ctx, "admins")).To(Succeed())
			names, err = repo.ListGroups(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"devs"}))
		})

		It("should reject duplicate groups", func() {
			Expect(repo.CreateGroup(ctx, "devs")).To(Succeed())
			Expect(repo.CreateGroup(ctx, "devs")).To(MatchError(internal.ErrGroupExists))
		})

		It("should never store reserved names", func() {
			Expect(repo.CreateGroup(ctx, "everyone")).To(MatchError(internal.ErrReservedGroup))
			Expect(repo.CreateGroup(ctx, "authenticated")).To(MatchError(internal.ErrReservedGroup))
		})

		It("should cascade group deletion over memberships and grants", func() {
			Expect(repo.CreateUser(ctx, "alice", "hash")).To(Succeed())
			Expect(repo.CreateGroup(ctx, "devs")).To(Succeed())
			Expect(repo.AddToGroup(ctx, "alice", "devs")).To(Succeed())
			Expect(repo.SetPermission(ctx, &access.Grant{
				Principal: access.GroupPrincipal("devs"), Package: "mypkg", Write: true,
			})).To(Succeed())

			Expect(repo.DeleteGroup(ctx, "devs")).To(Succeed())

			u, err := repo.GetUser(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(u.Groups).To(BeEmpty())

			grants, err := repo.PermissionsForPackage(ctx, "mypkg")
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(BeEmpty())
		})

		It("should fail deleting an unknown group", func() {
			Expect(repo.DeleteGroup(ctx, "ghosts")).To(MatchError(internal.ErrGroupNotFound))
		})
	})

	Describe("memberships", func() {
		BeforeEach(func() {
			Expect(repo.CreateUser(ctx, "alice", "hash")).To(Succeed())
			Expect(repo.CreateGroup(ctx, "devs")).To(Succeed())
		})

		It("should add and remove members", func() {
			Expect(repo.AddToGroup(ctx, "alice", "devs")).To(Succeed())

			members, err := repo.GroupMembers(ctx, "devs")
			Expect(err).NotTo(HaveOccurred())
			Expect(members).To(ConsistOf("alice"))

			Expect(repo.RemoveFromGroup(ctx, "alice", "devs")).To(Succeed())
			members, err = repo.GroupMembers(ctx, "devs")
			Expect(err).NotTo(HaveOccurred())
			Expect(members).To(BeEmpty())
		})

		It("should treat a duplicate add as a no-op", func() {
			Expect(repo.AddToGroup(ctx, "alice", "devs")).To(Succeed())
			Expect(repo.AddToGroup(ctx, "alice", "devs")).To(Succeed())

			members, err := repo.GroupMembers(ctx, "devs")
			Expect(err).NotTo(HaveOccurred())
			Expect(members).To(HaveLen(1))
		})

		It("should check both sides exist", func() {
			Expect(repo.AddToGroup(ctx, "ghost", "devs")).To(MatchError(internal.ErrUserNotFound))
			Expect(repo.AddToGroup(ctx, "alice", "ghosts")).To(MatchError(internal.ErrGroupNotFound))
			Expect(repo.RemoveFromGroup(ctx, "ghost", "devs")).To(MatchError(internal.ErrUserNotFound))
			Expect(repo.RemoveFromGroup(ctx, "alice", "ghosts")).To(MatchError(internal.ErrGroupNotFound))
		})
	})

	Describe("permissions", func() {
		alice := access.UserPrincipal("alice")

		It("should upsert a grant row", func() {
			Expect(repo.SetPermission(ctx, &access.Grant{Principal: alice, Package: "mypkg", Read: true})).To(Succeed())

			g, err := repo.GetPermission(ctx, alice, "mypkg")
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Level()).To(Equal(access.LevelRead))

			Expect(repo.SetPermission(ctx, &access.Grant{Principal: alice, Package: "mypkg", Read: true, Write: true})).To(Succeed())

			g, err = repo.GetPermission(ctx, alice, "mypkg")
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Level()).To(Equal(access.LevelWrite))
		})

		It("should delete the row for an empty grant", func() {
			Expect(repo.SetPermission(ctx, &access.Grant{Principal: alice, Package: "mypkg", Read: true})).To(Succeed())
			Expect(repo.SetPermission(ctx, &access.Grant{Principal: alice, Package: "mypkg"})).To(Succeed())

			var count int64
			Expect(db.Table("permissions").Count(&count).Error).NotTo(HaveOccurred())
			Expect(count).To(BeZero())
		})

		It("should return an empty grant when no row exists", func() {
			g, err := repo.GetPermission(ctx, alice, "mypkg")
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Empty()).To(BeTrue())
			Expect(g.Level()).To(Equal(access.LevelNone))
		})

		It("should keep user and group grants for the same name apart", func() {
			Expect(repo.SetPermission(ctx, &access.Grant{Principal: access.UserPrincipal("devs"), Package: "mypkg", Read: true})).To(Succeed())
			Expect(repo.SetPermission(ctx, &access.Grant{Principal: access.GroupPrincipal("devs"), Package: "mypkg", Write: true})).To(Succeed())

			g, err := repo.GetPermission(ctx, access.GroupPrincipal("devs"), "mypkg")
			Expect(err).NotTo(HaveOccurred())
			Expect(g.Level()).To(Equal(access.LevelWrite))

			grants, err := repo.PermissionsForPackage(ctx, "mypkg")
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(HaveLen(2))
		})

		It("should list grants per principal ordered by package", func() {
			Expect(repo.SetPermission(ctx, &access.Grant{Principal: alice, Package: "zpkg", Read: true})).To(Succeed())
			Expect(repo.SetPermission(ctx, &access.Grant{Principal: alice, Package: "apkg", Write: true})).To(Succeed())

			grants, err := repo.PermissionsForPrincipal(ctx, alice)
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(HaveLen(2))
			Expect(grants[0].Package).To(Equal("apkg"))
			Expect(grants[1].Package).To(Equal("zpkg"))
		})
	})

	Describe("settings", func() {
		It("should default to closed registration", func() {
			allow, err := repo.GetAllowRegister(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(allow).To(BeFalse())
		})

		It("should persist the flag across writes", func() {
			Expect(repo.SetAllowRegister(ctx, true)).To(Succeed())
			allow, err := repo.GetAllowRegister(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(allow).To(BeTrue())

			Expect(repo.SetAllowRegister(ctx, false)).To(Succeed())
			allow, err = repo.GetAllowRegister(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(allow).To(BeFalse())
		})
	})
})
