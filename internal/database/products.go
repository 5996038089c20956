package database

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

// Product is a catalogue entry joined with its type name.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	ProductType   string          `json:"product_type"`
	ProductTypeID int64           `json:"product_type_id"`
	Price         decimal.Decimal `json:"price"`
}

// ProductInput holds the writable product fields.
type ProductInput struct {
	Name          string
	ProductTypeID int64
	Price         decimal.Decimal
}

const productSelect = `
	SELECT p.product_id AS id,
		p.product_name AS name,
		pt.type_name AS product_type,
		p.product_type_id AS product_type_id,
		p.min_partner_price AS price
	FROM products p
	LEFT JOIN product_types pt ON p.product_type_id = pt.type_id`

type ProductStore struct {
	exec Executor
}

func NewProductStore(exec Executor) *ProductStore {
	return &ProductStore{exec: exec}
}

func (s *ProductStore) List(ctx context.Context) ([]Product, error) {
	res, err := s.exec.Execute(ctx, productSelect+" ORDER BY p.product_id", nil, ModeFetch)
	if err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(res.Rows))
	for _, row := range res.Rows {
		products = append(products, productFromRow(row))
	}
	return products, nil
}

func (s *ProductStore) GetByID(ctx context.Context, id int64) (*Product, error) {
	res, err := s.exec.Execute(ctx, productSelect+" WHERE p.product_id = ?", []any{id}, ModeFetch)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, ErrNotFound
	}
	product := productFromRow(res.Rows[0])
	return &product, nil
}

func (s *ProductStore) Add(ctx context.Context, in ProductInput) (int64, error) {
	res, err := s.exec.Execute(ctx, `
		INSERT INTO products (product_name, product_type_id, min_partner_price)
		VALUES (?, ?, ?)
	`, []any{in.Name, in.ProductTypeID, in.Price.StringFixed(2)}, ModeCommit)
	if err != nil {
		return 0, err
	}
	return res.LastInsertID, nil
}

// Update rewrites name, type and price. ErrNotFound when the id is unknown.
func (s *ProductStore) Update(ctx context.Context, id int64, in ProductInput) error {
	res, err := s.exec.Execute(ctx, `
		UPDATE products SET product_name = ?, product_type_id = ?, min_partner_price = ?
		WHERE product_id = ?
	`, []any{in.Name, in.ProductTypeID, in.Price.StringFixed(2), id}, ModeCommit)
	if err != nil {
		return err
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ProductStore) Delete(ctx context.Context, id int64) error {
	_, err := s.exec.Execute(ctx, "DELETE FROM products WHERE product_id = ?", []any{id}, ModeCommit)
	return err
}

func productFromRow(row Row) Product {
	return Product{
		ID:            row.Int64("id"),
		Name:          row.String("name"),
		ProductType:   row.String("product_type"),
		ProductTypeID: row.Int64("product_type_id"),
		Price:         row.Decimal("price"),
	}
}

// ProductSortField names a column products can be ordered by.
type ProductSortField string

const (
	SortByID    ProductSortField = "id"
	SortByName  ProductSortField = "name"
	SortByType  ProductSortField = "product_type"
	SortByPrice ProductSortField = "price"
)

// ParseProductSortField accepts the field names above plus "type". Empty means id.
func ParseProductSortField(s string) (ProductSortField, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "id":
		return SortByID, nil
	case "name":
		return SortByName, nil
	case "type", "product_type":
		return SortByType, nil
	case "price":
		return SortByPrice, nil
	}
	return "", fmt.Errorf("unknown sort field %q", s)
}

// SortProducts orders products in place. Text fields compare case-insensitively;
// ties keep id order.
func SortProducts(products []Product, field ProductSortField, descending bool) {
	compare := func(a, b Product) int {
		var c int
		switch field {
		case SortByName:
			c = strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		case SortByType:
			c = strings.Compare(strings.ToLower(a.ProductType), strings.ToLower(b.ProductType))
		case SortByPrice:
			c = a.Price.Cmp(b.Price)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if descending {
			return -c
		}
		return c
	}
	slices.SortStableFunc(products, compare)
}
