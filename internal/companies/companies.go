// Package companies holds the client directory: the construction firms
// and public bodies quotes are issued to, and the people reached there.
package companies

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/constructo-erp/constructo-erp/internal/platform/httpx"
)

type Company struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	Email     *string   `json:"email,omitempty" db:"email"`
	Address   *string   `json:"address,omitempty" db:"address"`
	City      *string   `json:"city,omitempty" db:"city"`
	Province  string    `json:"province" db:"province"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Contact struct {
	ID        int64   `json:"id" db:"id"`
	CompanyID *int64  `json:"company_id,omitempty" db:"company_id"`
	FirstName string  `json:"first_name" db:"first_name"`
	LastName  string  `json:"last_name" db:"last_name"`
	Phone     *string `json:"phone,omitempty" db:"phone"`
	Email     *string `json:"email,omitempty" db:"email"`
	Title     *string `json:"title,omitempty" db:"title"`
}

type CreateCompanyRequest struct {
	Name     string  `json:"name" validate:"required,max=200"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Address  *string `json:"address,omitempty" validate:"omitempty,max=300"`
	City     *string `json:"city,omitempty" validate:"omitempty,max=100"`
	Province string  `json:"province" validate:"omitempty,len=2"`
}

type CreateContactRequest struct {
	CompanyID *int64  `json:"company_id,omitempty" validate:"omitempty,gt=0"`
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  string  `json:"last_name" validate:"required,max=100"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	Email     *string `json:"email,omitempty" validate:"omitempty,email"`
	Title     *string `json:"title,omitempty" validate:"omitempty,max=100"`
}

// Service is the persistence and lookup layer for the directory. It
// also satisfies the name-resolution dependency of the quotes module.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

func (s *Service) CreateCompany(ctx context.Context, req CreateCompanyRequest) (*Company, error) {
	province := req.Province
	if province == "" {
		province = "QC"
	}
	c := Company{
		Name: req.Name, Phone: req.Phone, Email: req.Email,
		Address: req.Address, City: req.City, Province: province, IsActive: true,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO companies (name, phone, email, address, city, province, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id, created_at
	`, c.Name, c.Phone, c.Email, c.Address, c.City, c.Province).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) GetCompany(ctx context.Context, id int64) (*Company, error) {
	var c Company
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, phone, email, address, city, province, is_active, created_at
		FROM companies WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.City, &c.Province, &c.IsActive, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (s *Service) ListCompanies(ctx context.Context, activeOnly bool) ([]Company, error) {
	query := `
		SELECT id, name, phone, email, address, city, province, is_active, created_at
		FROM companies
	`
	if activeOnly {
		query += " WHERE is_active"
	}
	query += " ORDER BY name"

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.City, &c.Province, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

func (s *Service) CreateContact(ctx context.Context, req CreateContactRequest) (*Contact, error) {
	c := Contact{
		CompanyID: req.CompanyID, FirstName: req.FirstName, LastName: req.LastName,
		Phone: req.Phone, Email: req.Email, Title: req.Title,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO contacts (company_id, first_name, last_name, phone, email, title)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, c.CompanyID, c.FirstName, c.LastName, c.Phone, c.Email, c.Title).Scan(&c.ID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) ListContacts(ctx context.Context, companyID *int64) ([]Contact, error) {
	query := `
		SELECT id, company_id, first_name, last_name, phone, email, title
		FROM contacts
	`
	var args []any
	if companyID != nil {
		query += " WHERE company_id = $1"
		args = append(args, *companyID)
	}
	query += " ORDER BY last_name, first_name"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.FirstName, &c.LastName, &c.Phone, &c.Email, &c.Title); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// CompanyName implements the quotes module's directory lookup.
func (s *Service) CompanyName(ctx context.Context, id int64) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, "SELECT name FROM companies WHERE id = $1", id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: company %d", httpx.ErrNotFound, id)
	}
	return name, err
}

// ContactName implements the quotes module's directory lookup.
func (s *Service) ContactName(ctx context.Context, id int64) (string, error) {
	var first, last string
	err := s.pool.QueryRow(ctx,
		"SELECT first_name, last_name FROM contacts WHERE id = $1", id).Scan(&first, &last)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: contact %d", httpx.ErrNotFound, id)
	}
	return first + " " + last, err
}
