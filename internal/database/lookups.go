package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Role is a user role from the roles table.
type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PartnerType is a legal form such as ООО or ИП.
type PartnerType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ProductType classifies products.
type ProductType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Seed values written by EnsureBaseData into empty reference tables.
var (
	DefaultPartnerTypes = []string{"ООО", "ЗАО", "ПАО", "ИП", "АО"}
	DefaultRoles        = []string{
		"Admin", "Partner_Admin", "Partner_User", "Manager", "Partner",
		"WarehouseManager", "PartnerManager", "ProductionManager",
		"ProcurementManager", "HRManager",
	}
	DefaultProductTypes = []string{"Standard"}
)

// LookupStore reads the reference tables.
type LookupStore struct {
	exec Executor
}

func NewLookupStore(exec Executor) *LookupStore {
	return &LookupStore{exec: exec}
}

func (s *LookupStore) ListRoles(ctx context.Context) ([]Role, error) {
	res, err := s.exec.Execute(ctx, "SELECT role_id AS id, role_name AS name FROM roles ORDER BY role_id", nil, ModeFetch)
	if err != nil {
		return nil, err
	}
	roles := make([]Role, 0, len(res.Rows))
	for _, row := range res.Rows {
		roles = append(roles, Role{ID: row.Int64("id"), Name: row.String("name")})
	}
	return roles, nil
}

// RoleIDByName resolves a role name. When the name is unknown the first role
// is used instead; ErrNotFound means the roles table is empty.
func (s *LookupStore) RoleIDByName(ctx context.Context, name string) (int64, error) {
	res, err := s.exec.Execute(ctx, "SELECT role_id FROM roles WHERE role_name = ? LIMIT 1", []any{name}, ModeFetch)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) > 0 {
		return res.Rows[0].Int64("role_id"), nil
	}

	res, err = s.exec.Execute(ctx, "SELECT role_id FROM roles ORDER BY role_id LIMIT 1", nil, ModeFetch)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 {
		return 0, ErrNotFound
	}
	id := res.Rows[0].Int64("role_id")
	log.Warn().Str("role", name).Int64("fallback_role_id", id).Msg("Role not found, using first role")
	return id, nil
}

func (s *LookupStore) ListPartnerTypes(ctx context.Context) ([]PartnerType, error) {
	res, err := s.exec.Execute(ctx, "SELECT type_id AS id, type_name AS name FROM partner_types ORDER BY type_id", nil, ModeFetch)
	if err != nil {
		return nil, err
	}
	types := make([]PartnerType, 0, len(res.Rows))
	for _, row := range res.Rows {
		types = append(types, PartnerType{ID: row.Int64("id"), Name: row.String("name")})
	}
	return types, nil
}

func (s *LookupStore) ListProductTypes(ctx context.Context) ([]ProductType, error) {
	res, err := s.exec.Execute(ctx, "SELECT type_id AS id, type_name AS name FROM product_types ORDER BY type_id", nil, ModeFetch)
	if err != nil {
		return nil, err
	}
	types := make([]ProductType, 0, len(res.Rows))
	for _, row := range res.Rows {
		types = append(types, ProductType{ID: row.Int64("id"), Name: row.String("name")})
	}
	return types, nil
}

// ProductTypeIDByName returns ErrNotFound for an unknown type name.
func (s *LookupStore) ProductTypeIDByName(ctx context.Context, name string) (int64, error) {
	res, err := s.exec.Execute(ctx, "SELECT type_id FROM product_types WHERE type_name = ? LIMIT 1", []any{name}, ModeFetch)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 {
		return 0, ErrNotFound
	}
	return res.Rows[0].Int64("type_id"), nil
}

// EnsureBaseData seeds partner types, roles and product types. A table that
// already has rows is left alone, so running it twice changes nothing.
func (s *LookupStore) EnsureBaseData(ctx context.Context) error {
	seeds := []struct {
		table  string
		column string
		values []string
	}{
		{"partner_types", "type_name", DefaultPartnerTypes},
		{"roles", "role_name", DefaultRoles},
		{"product_types", "type_name", DefaultProductTypes},
	}

	return s.exec.Transaction(ctx, func(tx Executor) error {
		for _, seed := range seeds {
			res, err := tx.Execute(ctx, fmt.Sprintf("SELECT COUNT(*) AS n FROM %s", seed.table), nil, ModeFetch)
			if err != nil {
				return err
			}
			if len(res.Rows) > 0 && res.Rows[0].Int64("n") > 0 {
				continue
			}

			insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?)", seed.table, seed.column)
			for _, value := range seed.values {
				if _, err := tx.Execute(ctx, insert, []any{value}, ModeCommit); err != nil {
					return err
				}
			}
			log.Info().Str("table", seed.table).Int("rows", len(seed.values)).Msg("Seeded reference data")
		}
		return nil
	})
}
