package currency

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, code string) (*Currency, error) {
	query := `SELECT code, name, number, exponent, rate, source, description, created_at, created_by, updated_at, updated_by
              FROM currencies WHERE code = $1`

	var c Currency
	var source string
	err := r.db.QueryRowContext(ctx, query, NormalizeCode(code)).Scan(
		&c.Code,
		&c.Name,
		&c.Number,
		&c.Exponent,
		&c.Rate,
		&source,
		&c.Description,
		&c.CreatedAt,
		&c.CreatedBy,
		&c.UpdatedAt,
		&c.UpdatedBy,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying currency: %w", err)
	}
	c.Source = Source(source)

	return &c, nil
}

func (r *repository) List(ctx context.Context) ([]Currency, error) {
	query := `SELECT code, name, number, exponent, rate, source, description, created_at, created_by, updated_at, updated_by
              FROM currencies ORDER BY code`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing currencies: %w", err)
	}
	defer rows.Close()

	var currencies []Currency
	for rows.Next() {
		var c Currency
		var source string
		err := rows.Scan(
			&c.Code,
			&c.Name,
			&c.Number,
			&c.Exponent,
			&c.Rate,
			&source,
			&c.Description,
			&c.CreatedAt,
			&c.CreatedBy,
			&c.UpdatedAt,
			&c.UpdatedBy,
		)
		if err != nil {
			return nil, err
		}
		c.Source = Source(source)
		currencies = append(currencies, c)
	}

	return currencies, rows.Err()
}

func (r *repository) Upsert(ctx context.Context, c Currency) error {
	if err := c.Validate(); err != nil {
		return err
	}

	query := `INSERT INTO currencies (code, name, number, exponent, rate, source, description, created_at, created_by, updated_at, updated_by)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
              ON CONFLICT (code) DO UPDATE SET
                  name = EXCLUDED.name,
                  number = EXCLUDED.number,
                  exponent = EXCLUDED.exponent,
                  rate = EXCLUDED.rate,
                  source = EXCLUDED.source,
                  description = EXCLUDED.description,
                  updated_at = EXCLUDED.updated_at,
                  updated_by = EXCLUDED.updated_by`

	_, err := r.db.ExecContext(
		ctx,
		query,
		c.Code,
		c.Name,
		c.Number,
		c.Exponent,
		c.Rate,
		c.Source,
		c.Description,
		c.CreatedAt,
		c.CreatedBy,
		c.UpdatedAt,
		c.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("upserting currency %s: %w", c.Code, err)
	}
	return nil
}

func (r *repository) UpdateRate(ctx context.Context, code string, rate decimal.Decimal, updatedBy string) error {
	if !rate.IsPositive() {
		return ErrInvalidRate
	}

	query := `UPDATE currencies SET rate = $1, updated_at = $2, updated_by = $3 WHERE code = $4`
	res, err := r.db.ExecContext(ctx, query, rate, time.Now().UTC(), updatedBy, NormalizeCode(code))
	if err != nil {
		return fmt.Errorf("updating rate of %s: %w", code, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Registry = (*repository)(nil)
