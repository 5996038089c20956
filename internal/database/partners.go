package database

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Partner is a client company with its type name and linked user summary.
type Partner struct {
	ID              int64  `json:"id"`
	CompanyName     string `json:"company_name"`
	INN             string `json:"inn"`
	DirectorName    string `json:"director_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	PartnerTypeID   int64  `json:"partner_type_id"`
	PartnerTypeName string `json:"partner_type_name"`
	UserCount       int64  `json:"user_count"`
	Username        string `json:"username"`
}

// PartnerInput holds the writable partner fields.
type PartnerInput struct {
	CompanyName   string
	INN           string
	DirectorName  string
	Email         string
	Phone         string
	PartnerTypeID int64
}

const partnerSelect = `
	SELECT p.partner_id AS id,
		p.company_name AS company_name,
		p.inn AS inn,
		p.director_name AS director_name,
		p.email AS email,
		p.contact_phone AS phone,
		p.partner_type_id AS partner_type_id,
		pt.type_name AS partner_type_name,
		(SELECT COUNT(*) FROM users u WHERE u.partner_id = p.partner_id) AS user_count,
		(SELECT MIN(u.username) FROM users u WHERE u.partner_id = p.partner_id) AS username
	FROM partners p
	LEFT JOIN partner_types pt ON p.partner_type_id = pt.type_id`

type PartnerStore struct {
	exec Executor
}

func NewPartnerStore(exec Executor) *PartnerStore {
	return &PartnerStore{exec: exec}
}

func (s *PartnerStore) List(ctx context.Context) ([]Partner, error) {
	res, err := s.exec.Execute(ctx, partnerSelect+" ORDER BY p.partner_id", nil, ModeFetch)
	if err != nil {
		return nil, err
	}
	partners := make([]Partner, 0, len(res.Rows))
	for _, row := range res.Rows {
		partners = append(partners, partnerFromRow(row))
	}
	return partners, nil
}

func (s *PartnerStore) GetByID(ctx context.Context, id int64) (*Partner, error) {
	res, err := s.exec.Execute(ctx, partnerSelect+" WHERE p.partner_id = ?", []any{id}, ModeFetch)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, ErrNotFound
	}
	partner := partnerFromRow(res.Rows[0])
	return &partner, nil
}

func (s *PartnerStore) Add(ctx context.Context, in PartnerInput) (int64, error) {
	res, err := s.exec.Execute(ctx, `
		INSERT INTO partners (company_name, inn, director_name, email, contact_phone, partner_type_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, []any{in.CompanyName, in.INN, in.DirectorName, in.Email, in.Phone, in.PartnerTypeID}, ModeCommit)
	if err != nil {
		return 0, err
	}
	return res.LastInsertID, nil
}

func (s *PartnerStore) Update(ctx context.Context, id int64, in PartnerInput) error {
	res, err := s.exec.Execute(ctx, `
		UPDATE partners
		SET company_name = ?, inn = ?, director_name = ?, email = ?, contact_phone = ?, partner_type_id = ?
		WHERE partner_id = ?
	`, []any{in.CompanyName, in.INN, in.DirectorName, in.Email, in.Phone, in.PartnerTypeID, id}, ModeCommit)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the partner and every user tied to it in one transaction.
// An unknown id is not an error.
func (s *PartnerStore) Delete(ctx context.Context, id int64) error {
	return s.exec.Transaction(ctx, func(tx Executor) error {
		users, err := tx.Execute(ctx, "DELETE FROM users WHERE partner_id = ?", []any{id}, ModeCommit)
		if err != nil {
			return err
		}
		partners, err := tx.Execute(ctx, "DELETE FROM partners WHERE partner_id = ?", []any{id}, ModeCommit)
		if err != nil {
			return err
		}
		log.Debug().
			Int64("partner_id", id).
			Int64("users_deleted", users.RowsAffected).
			Int64("partners_deleted", partners.RowsAffected).
			Msg("Deleted partner")
		return nil
	})
}

// Lock takes a write lock on the partner row for the rest of the surrounding
// transaction, serializing changes that depend on the partner's users. It
// returns ErrNotFound when the partner does not exist. SQLite transactions
// already hold the database write lock from BEGIN.
func (s *PartnerStore) Lock(ctx context.Context, id int64) error {
	query := "SELECT partner_id FROM partners WHERE partner_id = ?"
	if s.exec.Dialect() == DialectMySQL {
		query += " FOR UPDATE"
	}
	res, err := s.exec.Execute(ctx, query, []any{id}, ModeFetch)
	if err != nil {
		return err
	}
	if len(res.Rows) == 0 {
		return ErrNotFound
	}
	return nil
}

// InnExists reports whether another partner already uses inn. Pass excludeID 0
// when checking a new partner.
func (s *PartnerStore) InnExists(ctx context.Context, inn string, excludeID int64) (bool, error) {
	res, err := s.exec.Execute(ctx,
		"SELECT partner_id FROM partners WHERE inn = ? AND partner_id <> ? LIMIT 1",
		[]any{inn, excludeID}, ModeFetch)
	if err != nil {
		return false, err
	}
	return len(res.Rows) > 0, nil
}

func partnerFromRow(row Row) Partner {
	return Partner{
		ID:              row.Int64("id"),
		CompanyName:     row.String("company_name"),
		INN:             row.String("inn"),
		DirectorName:    row.String("director_name"),
		Email:           row.String("email"),
		Phone:           row.String("phone"),
		PartnerTypeID:   row.Int64("partner_type_id"),
		PartnerTypeName: row.String("partner_type_name"),
		UserCount:       row.Int64("user_count"),
		Username:        row.String("username"),
	}
}
