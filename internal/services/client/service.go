// Package client manages the freelancer's customer records. The country
// and VAT number stored here feed the VAT decision at invoicing time.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zzpfin/api/internal/country"
)

var ErrNotFound = errors.New("client not found")

// Client is one customer of the tenant.
type Client struct {
	ID          uuid.UUID        `json:"id"`
	TenantID    uuid.UUID        `json:"tenant_id"`
	Name        string           `json:"name"`
	Email       string           `json:"email,omitempty"`
	CountryCode string           `json:"country_code"`
	IsBusiness  bool             `json:"is_business"`
	VATNumber   string           `json:"vat_number,omitempty"`
	HourlyRate  *decimal.Decimal `json:"hourly_rate,omitempty"`
	Active      bool             `json:"active"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// CreateParams contains the input fields for creating a client.
type CreateParams struct {
	Name        string           `json:"name"`
	Email       string           `json:"email"`
	CountryCode string           `json:"country_code"`
	IsBusiness  bool             `json:"is_business"`
	VATNumber   string           `json:"vat_number"`
	HourlyRate  *decimal.Decimal `json:"hourly_rate"`
}

// UpdateParams contains the updatable fields. Nil means "leave unchanged".
type UpdateParams struct {
	Name        *string          `json:"name"`
	Email       *string          `json:"email"`
	CountryCode *string          `json:"country_code"`
	IsBusiness  *bool            `json:"is_business"`
	VATNumber   *string          `json:"vat_number"`
	HourlyRate  *decimal.Decimal `json:"hourly_rate"`
	Active      *bool            `json:"active"`
}

// Service provides business logic for client operations.
type Service struct {
	pool     *pgxpool.Pool
	registry *country.Registry
	logger   *slog.Logger
}

// NewService creates a new client service.
func NewService(pool *pgxpool.Pool, registry *country.Registry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{pool: pool, registry: registry, logger: logger}
}

const clientColumns = `
	id, tenant_id, name, COALESCE(email, ''), country_code, is_business,
	COALESCE(vat_number, ''), hourly_rate, active, created_at, updated_at`

func scanClient(row pgx.Row) (Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.CountryCode, &c.IsBusiness,
		&c.VATNumber, &c.HourlyRate, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Create stores a new client. The country is normalized to its ISO code
// up front so every later VAT decision sees the same value.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, params CreateParams) (Client, error) {
	if params.Name == "" {
		return Client{}, fmt.Errorf("client name is required")
	}
	code := s.registry.Normalize(params.CountryCode)

	var vatNumber, email *string
	if params.VATNumber != "" {
		vatNumber = &params.VATNumber
	}
	if params.Email != "" {
		email = &params.Email
	}

	c, err := scanClient(s.pool.QueryRow(ctx, `
		INSERT INTO clients (tenant_id, name, email, country_code, is_business, vat_number, hourly_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+clientColumns,
		tenantID, params.Name, email, code, params.IsBusiness, vatNumber, params.HourlyRate))
	if err != nil {
		return Client{}, fmt.Errorf("creating client: %w", err)
	}

	s.logger.Info("client created", "tenant_id", tenantID, "client_id", c.ID, "country", c.CountryCode)
	return c, nil
}

// Get returns a single client by ID.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (Client, error) {
	c, err := scanClient(s.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, ErrNotFound
	}
	if err != nil {
		return Client{}, fmt.Errorf("getting client %s: %w", id, err)
	}
	return c, nil
}

// List returns paginated clients with a total count.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, page, pageSize int, activeOnly bool) ([]Client, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 250 {
		pageSize = 250
	}
	offset := (page - 1) * pageSize

	where := "tenant_id = $1"
	if activeOnly {
		where += " AND active"
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients WHERE `+where, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting clients: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE `+where+` ORDER BY name LIMIT $2 OFFSET $3`,
		tenantID, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("reading clients: %w", err)
	}
	return clients, total, nil
}

// Update applies the non-nil fields and returns the updated client.
func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, params UpdateParams) (Client, error) {
	current, err := s.Get(ctx, tenantID, id)
	if err != nil {
		return Client{}, err
	}

	if params.Name != nil {
		current.Name = *params.Name
	}
	if params.Email != nil {
		current.Email = *params.Email
	}
	if params.CountryCode != nil {
		current.CountryCode = s.registry.Normalize(*params.CountryCode)
	}
	if params.IsBusiness != nil {
		current.IsBusiness = *params.IsBusiness
	}
	if params.VATNumber != nil {
		current.VATNumber = *params.VATNumber
	}
	if params.HourlyRate != nil {
		current.HourlyRate = params.HourlyRate
	}
	if params.Active != nil {
		current.Active = *params.Active
	}

	var vatNumber, email *string
	if current.VATNumber != "" {
		vatNumber = &current.VATNumber
	}
	if current.Email != "" {
		email = &current.Email
	}

	c, err := scanClient(s.pool.QueryRow(ctx, `
		UPDATE clients
		SET name = $1, email = $2, country_code = $3, is_business = $4,
		    vat_number = $5, hourly_rate = $6, active = $7, updated_at = now()
		WHERE id = $8 AND tenant_id = $9
		RETURNING `+clientColumns,
		current.Name, email, current.CountryCode, current.IsBusiness,
		vatNumber, current.HourlyRate, current.Active, id, tenantID))
	if err != nil {
		return Client{}, fmt.Errorf("updating client %s: %w", id, err)
	}
	return c, nil
}

// Deactivate soft-deletes a client. Invoices keep their snapshot of the
// client's country and VAT number, so history is unaffected.
func (s *Service) Deactivate(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE clients SET active = false, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	if err != nil {
		return fmt.Errorf("deactivating client %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
