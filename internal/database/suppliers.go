package database

import "context"

// Supplier is a vendor the company buys from.
type Supplier struct {
	ID           int64  `json:"id"`
	CompanyName  string `json:"company_name"`
	INN          string `json:"inn"`
	ContactPhone string `json:"contact_phone"`
}

// SupplierInput holds the writable supplier fields.
type SupplierInput struct {
	CompanyName  string
	INN          string
	ContactPhone string
}

const supplierSelect = `
	SELECT supplier_id AS id, company_name, inn, contact_phone
	FROM suppliers`

// SupplierStore is the CRUD surface for suppliers. The tax id is not checked
// for duplicates here.
type SupplierStore struct {
	exec Executor
}

func NewSupplierStore(exec Executor) *SupplierStore {
	return &SupplierStore{exec: exec}
}

func (s *SupplierStore) List(ctx context.Context) ([]Supplier, error) {
	res, err := s.exec.Execute(ctx, supplierSelect+" ORDER BY company_name, supplier_id", nil, ModeFetch)
	if err != nil {
		return nil, err
	}
	suppliers := make([]Supplier, 0, len(res.Rows))
	for _, row := range res.Rows {
		suppliers = append(suppliers, supplierFromRow(row))
	}
	return suppliers, nil
}

func (s *SupplierStore) GetByID(ctx context.Context, id int64) (*Supplier, error) {
	res, err := s.exec.Execute(ctx, supplierSelect+" WHERE supplier_id = ?", []any{id}, ModeFetch)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, ErrNotFound
	}
	supplier := supplierFromRow(res.Rows[0])
	return &supplier, nil
}

func (s *SupplierStore) Add(ctx context.Context, in SupplierInput) (int64, error) {
	res, err := s.exec.Execute(ctx, `
		INSERT INTO suppliers (company_name, inn, contact_phone)
		VALUES (?, ?, ?)
	`, []any{in.CompanyName, in.INN, in.ContactPhone}, ModeCommit)
	if err != nil {
		return 0, err
	}
	return res.LastInsertID, nil
}

// Update returns ErrNotFound when no supplier has the id.
func (s *SupplierStore) Update(ctx context.Context, id int64, in SupplierInput) error {
	res, err := s.exec.Execute(ctx, `
		UPDATE suppliers SET company_name = ?, inn = ?, contact_phone = ?
		WHERE supplier_id = ?
	`, []any{in.CompanyName, in.INN, in.ContactPhone, id}, ModeCommit)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SupplierStore) Delete(ctx context.Context, id int64) error {
	_, err := s.exec.Execute(ctx, "DELETE FROM suppliers WHERE supplier_id = ?", []any{id}, ModeCommit)
	return err
}

func supplierFromRow(row Row) Supplier {
	return Supplier{
		ID:           row.Int64("id"),
		CompanyName:  row.String("company_name"),
		INN:          row.String("inn"),
		ContactPhone: row.String("contact_phone"),
	}
}
