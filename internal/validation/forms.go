package validation

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/masterfloor/erp/internal/auth"
	"github.com/masterfloor/erp/internal/database"
)

// LoginForm is the sign-in request.
type LoginForm struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (f *LoginForm) normalize() {
	f.Username = strings.TrimSpace(f.Username)
}

// RegistrationForm is the partner self-registration screen.
type RegistrationForm struct {
	CompanyName     string `json:"company_name" validate:"required,max=255"`
	INN             string `json:"inn" validate:"required,len=10,digits"`
	DirectorName    string `json:"director_name" validate:"required,max=255"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"omitempty,max=32"`
	PartnerTypeID   int64  `json:"partner_type_id" validate:"gte=0"`
	Username        string `json:"username" validate:"required,max=64"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

func (f *RegistrationForm) normalize() {
	trim(&f.CompanyName, &f.INN, &f.DirectorName, &f.Email, &f.Phone, &f.Username)
}

func (f *RegistrationForm) Request() auth.RegistrationRequest {
	return auth.RegistrationRequest{
		CompanyName:   f.CompanyName,
		INN:           f.INN,
		DirectorName:  f.DirectorName,
		Email:         f.Email,
		Phone:         f.Phone,
		PartnerTypeID: f.PartnerTypeID,
		Username:      f.Username,
		Password:      f.Password,
	}
}

// PartnerForm is used by staff to add or edit a partner. AutoUser is only
// read on create; nil means the configured default.
type PartnerForm struct {
	CompanyName   string `json:"company_name" validate:"required,max=255"`
	INN           string `json:"inn" validate:"required,inn"`
	DirectorName  string `json:"director_name" validate:"required,max=255"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"omitempty,max=32"`
	PartnerTypeID int64  `json:"partner_type_id" validate:"required,gt=0"`
	AutoUser      *bool  `json:"auto_user,omitempty"`
}

func (f *PartnerForm) normalize() {
	trim(&f.CompanyName, &f.INN, &f.DirectorName, &f.Email, &f.Phone)
}

func (f *PartnerForm) Input() database.PartnerInput {
	return database.PartnerInput{
		CompanyName:   f.CompanyName,
		INN:           f.INN,
		DirectorName:  f.DirectorName,
		Email:         f.Email,
		Phone:         f.Phone,
		PartnerTypeID: f.PartnerTypeID,
	}
}

// SupplierForm enforces the digits-only tax id the suppliers table does not.
type SupplierForm struct {
	CompanyName  string `json:"company_name" validate:"required,max=255"`
	INN          string `json:"inn" validate:"required,max=12,digits"`
	ContactPhone string `json:"contact_phone" validate:"omitempty,max=32"`
}

func (f *SupplierForm) normalize() {
	trim(&f.CompanyName, &f.INN, &f.ContactPhone)
}

func (f *SupplierForm) Input() database.SupplierInput {
	return database.SupplierInput{
		CompanyName:  f.CompanyName,
		INN:          f.INN,
		ContactPhone: f.ContactPhone,
	}
}

type ProductForm struct {
	Name          string          `json:"name" validate:"required,max=255"`
	ProductTypeID int64           `json:"product_type_id" validate:"required,gt=0"`
	Price         decimal.Decimal `json:"price" validate:"gte=0"`
}

func (f *ProductForm) normalize() {
	trim(&f.Name)
}

func (f *ProductForm) Input() database.ProductInput {
	return database.ProductInput{
		Name:          f.Name,
		ProductTypeID: f.ProductTypeID,
		Price:         f.Price,
	}
}

// UserForm covers both staff-created accounts and partner login edits.
// An empty password or role leaves the current one unchanged on edit; the
// partner link is only accepted when it matches the current one.
type UserForm struct {
	Username  string `json:"username" validate:"required,max=64"`
	Password  string `json:"password" validate:"omitempty,min=6"`
	Role      string `json:"role" validate:"omitempty,max=64"`
	PartnerID *int64 `json:"partner_id,omitempty" validate:"omitempty,gt=0"`
}

func (f *UserForm) normalize() {
	trim(&f.Username, &f.Role)
}

func (f *UserForm) Request() auth.UserRequest {
	return auth.UserRequest{
		Username:  f.Username,
		Password:  f.Password,
		Role:      f.Role,
		PartnerID: f.PartnerID,
	}
}

func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

// PartnerUserForm provisions or edits a partner's login. Both fields are
// optional on create: the username is then derived from the company name and
// the password generated.
type PartnerUserForm struct {
	Username string `json:"username" validate:"omitempty,max=64"`
	Password string `json:"password" validate:"omitempty,min=6"`
}

func (f *PartnerUserForm) normalize() {
	trim(&f.Username)
}
