package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/masterfloor/erp/internal/config"
	"github.com/masterfloor/erp/internal/database"
	"github.com/masterfloor/erp/internal/database/dbtest"
)

func testProvisioning() config.Provisioning {
	cfg := config.Default().Provisioning
	cfg.BcryptCost = bcrypt.MinCost
	return cfg
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	conn := dbtest.New(t)
	svc := NewService(conn, testProvisioning())

	user, err := svc.Authenticate(context.Background(), "nouser", "whatever")
	assert.Nil(t, user)
	assert.ErrorIs(t, err, database.ErrNotFound)
	assert.True(t, IsNotFound(err))
}

func TestAuthenticate_UnknownUserSpendsBcryptWork(t *testing.T) {
	conn := dbtest.New(t)
	svc := NewService(conn, testProvisioning())

	_, err := svc.Authenticate(context.Background(), "nouser", "whatever")
	require.ErrorIs(t, err, database.ErrNotFound)

	cost, err := bcrypt.Cost([]byte(svc.dummyHash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
	assert.False(t, CheckPassword("whatever", svc.dummyHash))
}

func TestAuthenticate(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	svc := NewService(conn, testProvisioning())

	id, err := svc.AddUser(ctx, UserRequest{Username: "manager", Password: "correct-horse", Role: "Manager"})
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "manager", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	assert.Equal(t, "Manager", user.RoleName)

	_, err = svc.Authenticate(ctx, "manager", "wrong")
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestAuthenticate_UpgradesLegacyHash(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	svc := NewService(conn, testProvisioning())
	users := database.NewUserStore(conn)

	sum := sha256.Sum256([]byte("oldpass1"))
	roleID, err := database.NewLookupStore(conn).RoleIDByName(ctx, "Admin")
	require.NoError(t, err)
	_, err = users.Add(ctx, database.UserInput{Username: "legacy", PasswordHash: hex.EncodeToString(sum[:]), RoleID: roleID})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "legacy", "nope")
	assert.ErrorIs(t, err, database.ErrNotFound)

	_, err = svc.Authenticate(ctx, "legacy", "oldpass1")
	require.NoError(t, err)

	creds, err := users.GetCredentials(ctx, "legacy")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(creds.PasswordHash, "$2"), "hash should be bcrypt after login")

	_, err = svc.Authenticate(ctx, "legacy", "oldpass1")
	assert.NoError(t, err)
}

func TestAddUser_DuplicateUsername(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	svc := NewService(conn, testProvisioning())

	_, err := svc.AddUser(ctx, UserRequest{Username: "dup", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.AddUser(ctx, UserRequest{Username: "dup", Password: "secret2"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	list, err := database.NewUserStore(conn).List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.AddUser(ctx, UserRequest{Username: "short", Password: "123"})
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func registration() RegistrationRequest {
	return RegistrationRequest{
		CompanyName:  "Acme LLC",
		INN:          "1234567890",
		DirectorName: "Jane Doe",
		Email:        "jane@acme.test",
		Username:     "jane",
		Password:     "secret1",
	}
}

func TestRegister(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	svc := NewService(conn, testProvisioning())

	reg, err := svc.Register(ctx, registration())
	require.NoError(t, err)

	partner, err := database.NewPartnerStore(conn).GetByID(ctx, reg.PartnerID)
	require.NoError(t, err)
	assert.Equal(t, "Acme LLC", partner.CompanyName)
	assert.Equal(t, "jane", partner.Username)

	user, err := svc.Authenticate(ctx, "jane", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Partner", user.RoleName)
	require.NotNil(t, user.PartnerID)
	assert.Equal(t, reg.PartnerID, *user.PartnerID)
}

func TestRegister_Conflicts(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	svc := NewService(conn, testProvisioning())

	_, err := svc.Register(ctx, registration())
	require.NoError(t, err)

	req := registration()
	req.INN = "0987654321"
	_, err = svc.Register(ctx, req)
	assert.ErrorIs(t, err, ErrUsernameTaken)

	req = registration()
	req.Username = "someone"
	_, err = svc.Register(ctx, req)
	assert.ErrorIs(t, err, ErrInnTaken)

	partners, err := database.NewPartnerStore(conn).List(ctx)
	require.NoError(t, err)
	assert.Len(t, partners, 1)
}

func TestRegister_DriverFailureWritesNothing(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	svc := NewService(conn, testProvisioning())

	req := registration()
	req.PartnerTypeID = 9999
	_, err := svc.Register(ctx, req)
	assert.ErrorIs(t, err, database.ErrConstraint)

	partners, _ := database.NewPartnerStore(conn).List(ctx)
	users, _ := database.NewUserStore(conn).List(ctx)
	assert.Empty(t, partners)
	assert.Empty(t, users)
}

func TestAddUser_PartnerAlreadyHasUser(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	svc := NewService(conn, testProvisioning())
	p := NewProvisioner(conn, testProvisioning())

	res, err := p.CreatePartner(ctx, acmeInput(t, conn), true)
	require.NoError(t, err)

	_, err = svc.AddUser(ctx, UserRequest{Username: "second", Password: "secret1", PartnerID: &res.PartnerID})
	var hasUser *PartnerHasUserError
	require.ErrorAs(t, err, &hasUser)
	assert.Equal(t, res.User.Username, hasUser.Username)

	partner, err := database.NewPartnerStore(conn).GetByID(ctx, res.PartnerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), partner.UserCount)

	exists, err := database.NewUserStore(conn).UsernameExists(ctx, "second", 0)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAddUser_PartnerLink(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	svc := NewService(conn, testProvisioning())

	res, err := NewProvisioner(conn, testProvisioning()).CreatePartner(ctx, acmeInput(t, conn), false)
	require.NoError(t, err)

	id, err := svc.AddUser(ctx, UserRequest{Username: "acme", Password: "secret1", PartnerID: &res.PartnerID})
	require.NoError(t, err)

	user, err := database.NewUserStore(conn).GetByPartnerID(ctx, res.PartnerID)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)

	unknown := int64(9999)
	_, err = svc.AddUser(ctx, UserRequest{Username: "ghost", Password: "secret1", PartnerID: &unknown})
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestUpdateUser(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	svc := NewService(conn, testProvisioning())
	users := database.NewUserStore(conn)

	id, err := svc.AddUser(ctx, UserRequest{Username: "manager", Password: "secret1", Role: "Manager"})
	require.NoError(t, err)
	_, err = svc.AddUser(ctx, UserRequest{Username: "taken", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateUser(ctx, id, UserRequest{Username: "boss", Role: "Admin"}))
	user, err := users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "boss", user.Username)
	assert.Equal(t, "Admin", user.RoleName)

	_, err = svc.Authenticate(ctx, "boss", "secret1")
	require.NoError(t, err, "an empty password keeps the old one")

	require.NoError(t, svc.UpdateUser(ctx, id, UserRequest{Username: "boss", Password: "secret2"}))
	_, err = svc.Authenticate(ctx, "boss", "secret2")
	require.NoError(t, err)
	user, _ = users.GetByID(ctx, id)
	assert.Equal(t, "Admin", user.RoleName, "an empty role keeps the old one")

	partnerID := int64(1)
	assert.ErrorIs(t, svc.UpdateUser(ctx, id, UserRequest{Username: "boss", PartnerID: &partnerID}), ErrPartnerChange)
	assert.ErrorIs(t, svc.UpdateUser(ctx, id, UserRequest{Username: "taken"}), ErrUsernameTaken)
	assert.ErrorIs(t, svc.UpdateUser(ctx, id, UserRequest{Username: "boss", Password: "123"}), ErrWeakPassword)
	assert.ErrorIs(t, svc.UpdateUser(ctx, 9999, UserRequest{Username: "ghost"}), database.ErrNotFound)
}
