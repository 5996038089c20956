package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/masterfloor/erp/internal/database"
	"github.com/masterfloor/erp/internal/database/dbtest"
)

func TestEnsureBaseData_Idempotent(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	lookups := database.NewLookupStore(conn)

	if err := lookups.EnsureBaseData(ctx); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	roles, err := lookups.ListRoles(ctx)
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	if len(roles) != len(database.DefaultRoles) {
		t.Fatalf("roles = %d, want %d", len(roles), len(database.DefaultRoles))
	}

	types, err := lookups.ListPartnerTypes(ctx)
	if err != nil {
		t.Fatalf("list partner types: %v", err)
	}
	if len(types) != 5 || types[0].Name != "ООО" {
		t.Fatalf("unexpected partner types: %+v", types)
	}

	productTypes, err := lookups.ListProductTypes(ctx)
	if err != nil {
		t.Fatalf("list product types: %v", err)
	}
	if len(productTypes) != 1 || productTypes[0].Name != "Standard" {
		t.Fatalf("unexpected product types: %+v", productTypes)
	}
}

func TestRoleIDByName(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	lookups := database.NewLookupStore(conn)

	roles, _ := lookups.ListRoles(ctx)

	id, err := lookups.RoleIDByName(ctx, "Partner_User")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if id != roles[2].ID {
		t.Fatalf("Partner_User id = %d, want %d", id, roles[2].ID)
	}

	id, err = lookups.RoleIDByName(ctx, "NoSuchRole")
	if err != nil {
		t.Fatalf("fallback lookup: %v", err)
	}
	if id != roles[0].ID {
		t.Fatalf("fallback id = %d, want first role %d", id, roles[0].ID)
	}

	if _, err := lookups.ProductTypeIDByName(ctx, "Nope"); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSupplierStore_CRUD(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	store := database.NewSupplierStore(conn)

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", list)
	}

	id, err := store.Add(ctx, database.SupplierInput{CompanyName: "Steel Co", INN: "7701234567"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.Add(ctx, database.SupplierInput{CompanyName: "Alpha Wood", INN: "7701234567", ContactPhone: "+7 900"}); err != nil {
		t.Fatalf("add second with same inn: %v", err)
	}

	list, _ = store.List(ctx)
	if len(list) != 2 || list[0].CompanyName != "Alpha Wood" {
		t.Fatalf("expected list ordered by company name, got %+v", list)
	}

	got, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ContactPhone != "" {
		t.Fatalf("missing phone should be empty, got %q", got.ContactPhone)
	}

	if err := store.Update(ctx, id, database.SupplierInput{CompanyName: "Steel Co", INN: "7701234567", ContactPhone: "123"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Update(ctx, id, database.SupplierInput{CompanyName: "Steel Co", INN: "7701234567", ContactPhone: "123"}); err != nil {
		t.Fatalf("update with unchanged values: %v", err)
	}
	if err := store.Update(ctx, 9999, database.SupplierInput{CompanyName: "x"}); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetByID(ctx, id); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestProductStore_CRUD(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	store := database.NewProductStore(conn)

	typeID, err := database.NewLookupStore(conn).ProductTypeIDByName(ctx, "Standard")
	if err != nil {
		t.Fatalf("product type: %v", err)
	}

	id, err := store.Add(ctx, database.ProductInput{Name: "Laminate", ProductTypeID: typeID, Price: decimal.RequireFromString("12.50")})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("products = %d", len(list))
	}
	p := list[0]
	if p.ID != id || p.Name != "Laminate" || p.ProductType != "Standard" || p.ProductTypeID != typeID {
		t.Fatalf("unexpected projection: %+v", p)
	}
	if !p.Price.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("price = %s", p.Price)
	}

	if err := store.Update(ctx, id, database.ProductInput{Name: "Parquet", ProductTypeID: typeID, Price: decimal.RequireFromString("99.99")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Parquet" || got.Price.String() != "99.99" {
		t.Fatalf("update not applied: %+v", got)
	}

	if _, err := store.Add(ctx, database.ProductInput{Name: "Orphan", ProductTypeID: 9999}); !errors.Is(err, database.ErrConstraint) {
		t.Fatalf("expected ErrConstraint for unknown type, got %v", err)
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetByID(ctx, id); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSortProducts(t *testing.T) {
	products := func() []database.Product {
		return []database.Product{
			{ID: 1, Name: "beta", ProductType: "B", Price: decimal.NewFromInt(30)},
			{ID: 2, Name: "Alpha", ProductType: "C", Price: decimal.NewFromInt(10)},
			{ID: 3, Name: "gamma", ProductType: "A", Price: decimal.NewFromInt(20)},
		}
	}
	ids := func(ps []database.Product) []int64 {
		out := make([]int64, len(ps))
		for i, p := range ps {
			out[i] = p.ID
		}
		return out
	}

	tests := []struct {
		field database.ProductSortField
		desc  bool
		want  []int64
	}{
		{database.SortByName, false, []int64{2, 1, 3}},
		{database.SortByName, true, []int64{3, 1, 2}},
		{database.SortByType, false, []int64{3, 1, 2}},
		{database.SortByPrice, false, []int64{2, 3, 1}},
		{database.SortByPrice, true, []int64{1, 3, 2}},
		{database.SortByID, true, []int64{3, 2, 1}},
	}
	for _, tt := range tests {
		ps := products()
		database.SortProducts(ps, tt.field, tt.desc)
		got := ids(ps)
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("sort %s desc=%v = %v, want %v", tt.field, tt.desc, got, tt.want)
				break
			}
		}
	}

	if _, err := database.ParseProductSortField("colour"); err == nil {
		t.Error("expected error for unknown sort field")
	}
	if f, _ := database.ParseProductSortField("type"); f != database.SortByType {
		t.Errorf("type alias = %q", f)
	}
}

func TestPartnerStore_ListIncludesUserSummary(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	partners := database.NewPartnerStore(conn)
	users := database.NewUserStore(conn)

	typeID := dbtest.PartnerTypeID(t, conn)
	id, err := partners.Add(ctx, database.PartnerInput{CompanyName: "Acme LLC", INN: "1234567890", PartnerTypeID: typeID})
	if err != nil {
		t.Fatalf("add partner: %v", err)
	}

	list, err := partners.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].UserCount != 0 || list[0].Username != "" {
		t.Fatalf("unexpected partner without users: %+v", list)
	}
	if list[0].PartnerTypeName != "ООО" {
		t.Fatalf("partner type name = %q", list[0].PartnerTypeName)
	}

	roleID, _ := database.NewLookupStore(conn).RoleIDByName(ctx, "Partner_User")
	if _, err := users.Add(ctx, database.UserInput{Username: "acmellc_0001", PasswordHash: "x", RoleID: roleID, PartnerID: &id}); err != nil {
		t.Fatalf("add user: %v", err)
	}

	got, err := partners.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserCount != 1 || got.Username != "acmellc_0001" {
		t.Fatalf("unexpected user summary: %+v", got)
	}
}

func TestPartnerStore_InnUniqueness(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	partners := database.NewPartnerStore(conn)
	typeID := dbtest.PartnerTypeID(t, conn)

	id, err := partners.Add(ctx, database.PartnerInput{CompanyName: "One", INN: "1111111111", PartnerTypeID: typeID})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	exists, err := partners.InnExists(ctx, "1111111111", 0)
	if err != nil || !exists {
		t.Fatalf("InnExists = %v, %v", exists, err)
	}
	exists, _ = partners.InnExists(ctx, "1111111111", id)
	if exists {
		t.Fatal("the partner itself should be excluded")
	}

	_, err = partners.Add(ctx, database.PartnerInput{CompanyName: "Two", INN: "1111111111", PartnerTypeID: typeID})
	if !errors.Is(err, database.ErrConstraint) {
		t.Fatalf("expected ErrConstraint, got %v", err)
	}
}

func TestPartnerStore_DeleteRemovesUsers(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	partners := database.NewPartnerStore(conn)
	users := database.NewUserStore(conn)
	typeID := dbtest.PartnerTypeID(t, conn)
	roleID, _ := database.NewLookupStore(conn).RoleIDByName(ctx, "Partner_User")

	id, _ := partners.Add(ctx, database.PartnerInput{CompanyName: "Gone", INN: "2222222222", PartnerTypeID: typeID})
	userID, err := users.Add(ctx, database.UserInput{Username: "gone_1234", PasswordHash: "x", RoleID: roleID, PartnerID: &id})
	if err != nil {
		t.Fatalf("add user: %v", err)
	}

	if err := partners.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := partners.GetByID(ctx, id); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("partner still present: %v", err)
	}
	if _, err := users.GetByID(ctx, userID); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("user still present: %v", err)
	}

	if err := partners.Delete(ctx, 9999); err != nil {
		t.Fatalf("deleting an unknown partner should succeed, got %v", err)
	}
}

func TestPartnerStore_Lock(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	id, err := database.NewPartnerStore(conn).Add(ctx, database.PartnerInput{CompanyName: "Locked", INN: "3333333333", PartnerTypeID: dbtest.PartnerTypeID(t, conn)})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	err = conn.Transaction(ctx, func(tx database.Executor) error {
		return database.NewPartnerStore(tx).Lock(ctx, id)
	})
	if err != nil {
		t.Fatalf("lock existing partner: %v", err)
	}

	err = conn.Transaction(ctx, func(tx database.Executor) error {
		return database.NewPartnerStore(tx).Lock(ctx, 9999)
	})
	if !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("lock unknown partner: expected ErrNotFound, got %v", err)
	}
}

func TestUserStore(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()
	users := database.NewUserStore(conn)
	adminRole, _ := database.NewLookupStore(conn).RoleIDByName(ctx, "Admin")

	id, err := users.Add(ctx, database.UserInput{Username: "admin", PasswordHash: "hash-1", RoleID: adminRole})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	u, err := users.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u.PartnerID != nil || u.RoleName != "Admin" {
		t.Fatalf("unexpected user: %+v", u)
	}

	exists, _ := users.UsernameExists(ctx, " admin ", 0)
	if !exists {
		t.Fatal("expected username to exist")
	}
	exists, _ = users.UsernameExists(ctx, "admin", id)
	if exists {
		t.Fatal("own id should be excluded")
	}

	if err := users.Update(ctx, id, "root", ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	creds, err := users.GetCredentials(ctx, "root")
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if creds.PasswordHash != "hash-1" {
		t.Fatalf("empty password must keep the hash, got %q", creds.PasswordHash)
	}

	if err := users.UpdatePassword(ctx, id, "hash-2"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	creds, _ = users.GetCredentials(ctx, "root")
	if creds.PasswordHash != "hash-2" {
		t.Fatalf("hash = %q", creds.PasswordHash)
	}

	managerRole, _ := database.NewLookupStore(conn).RoleIDByName(ctx, "Manager")
	if err := users.UpdateRole(ctx, id, managerRole); err != nil {
		t.Fatalf("update role: %v", err)
	}
	if u, _ := users.GetByID(ctx, id); u.RoleName != "Manager" {
		t.Fatalf("role = %q after update", u.RoleName)
	}
	if err := users.UpdateRole(ctx, 9999, managerRole); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := users.Add(ctx, database.UserInput{Username: "root", PasswordHash: "x", RoleID: adminRole}); !errors.Is(err, database.ErrConstraint) {
		t.Fatalf("expected ErrConstraint for duplicate username, got %v", err)
	}
	if _, err := users.GetCredentials(ctx, "nouser"); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := users.GetByPartnerID(ctx, 42); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := users.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ := users.List(ctx)
	if len(list) != 0 {
		t.Fatalf("users = %d after delete", len(list))
	}
}
