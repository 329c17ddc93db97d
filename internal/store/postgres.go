package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const txRetries = 3

// Postgres is the production Store backed by PostgreSQL.
type Postgres struct {
	db *sqlx.DB
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects to the database and configures the pool.
func NewPostgres(databaseURL string) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{db: db}, nil
}

// Close closes the database connection
func (s *Postgres) Close() error {
	return s.db.Close()
}

// RunTx runs fn inside a transaction. Serialization and deadlock
// failures are retried; any other error rolls back and is returned
// as-is so callers can match their own sentinels.
func (s *Postgres) RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 0; attempt < txRetries; attempt++ {
		err = s.runTxOnce(ctx, fn)
		if err == nil || !retryableTxErr(err) {
			return err
		}
	}
	return err
}

func (s *Postgres) runTxOnce(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func retryableTxErr(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	// serialization_failure, deadlock_detected
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

// GetProduct retrieves a product by ID
func (s *Postgres) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts retrieves all products, newest first
func (s *Postgres) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY created_at DESC")
	return products, err
}

// CreateProduct persists a new product
func (s *Postgres) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, name, price_cents, qty, image, category, brand, weight_grams)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		p.ID, p.Name, p.PriceCents, p.Qty, p.Image, p.Category, p.Brand, p.WeightGrams)
	return row.Scan(&p.CreatedAt, &p.UpdatedAt)
}

// UpdateProduct updates product fields except quantity
func (s *Postgres) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, price_cents = $3, image = $4, category = $5,
		    brand = $6, weight_grams = $7, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.PriceCents, p.Image, p.Category, p.Brand, p.WeightGrams)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteProduct removes a product
func (s *Postgres) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetProductImage stores the CDN URL returned after an upload
func (s *Postgres) SetProductImage(ctx context.Context, id, url string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET image = $2, updated_at = NOW() WHERE id = $1", id, url)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
