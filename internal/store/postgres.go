package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rezolv/rezolv/internal/alias"
)

const pgUniqueViolation = "23505"

// PostgresRepository is the Postgres implementation of alias.Repository.
// Deletes are soft: deleted_at is set and the row drops out of all reads
// and out of code uniqueness.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a Postgres-backed alias repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const aliasColumns = `id, owner_id, destination, code, title, tags, active, expires_at, created_at, updated_at`

func (p *PostgresRepository) Create(ctx context.Context, rec *alias.Record) error {
	query := `
		INSERT INTO aliases (` + aliasColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := p.pool.Exec(ctx, query,
		rec.ID,
		rec.OwnerID,
		rec.Destination,
		rec.Code,
		rec.Title,
		rec.Tags,
		rec.Active,
		rec.ExpiresAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return alias.ErrCodeTaken
		}

		return err
	}

	return nil
}

func (p *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*alias.Record, error) {
	query := `
		SELECT ` + aliasColumns + `
		FROM aliases
		WHERE id = $1 AND deleted_at IS NULL
	`

	return p.scanOne(p.pool.QueryRow(ctx, query, id))
}

func (p *PostgresRepository) GetByCode(ctx context.Context, code string) (*alias.Record, error) {
	query := `
		SELECT ` + aliasColumns + `
		FROM aliases
		WHERE code = $1 AND deleted_at IS NULL
	`

	return p.scanOne(p.pool.QueryRow(ctx, query, code))
}

func (p *PostgresRepository) Update(ctx context.Context, rec *alias.Record) error {
	query := `
		UPDATE aliases
		SET title = $2, tags = $3, active = $4, expires_at = $5, updated_at = $6
		WHERE id = $1 AND deleted_at IS NULL
	`

	tag, err := p.pool.Exec(ctx, query,
		rec.ID,
		rec.Title,
		rec.Tags,
		rec.Active,
		rec.ExpiresAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return alias.ErrNotFound
	}

	return nil
}

func (p *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE aliases
		SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`

	tag, err := p.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return alias.ErrNotFound
	}

	return nil
}

func (p *PostgresRepository) Exists(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM aliases WHERE code = $1 AND deleted_at IS NULL)`

	var exists bool
	if err := p.pool.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, err
	}

	return exists, nil
}

func (p *PostgresRepository) List(
	ctx context.Context, ownerID string, filter alias.ListFilter,
) (*alias.Page, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)

	where := `WHERE owner_id = $1 AND deleted_at IS NULL`
	args := []any{ownerID}

	if filter.ActiveOnly {
		where += ` AND active`
	}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		arg := fmt.Sprintf("$%d", len(args))
		where += ` AND (code ILIKE ` + arg + ` OR title ILIKE ` + arg + ` OR destination ILIKE ` + arg + `)`
	}

	if len(filter.Tags) > 0 {
		args = append(args, filter.Tags)
		where += fmt.Sprintf(` AND tags @> $%d`, len(args))
	}

	var total int64
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM aliases `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`
		SELECT `+aliasColumns+`
		FROM aliases
		`+where+`
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, len(args)-1, len(args))

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*alias.Record

	for rows.Next() {
		rec, err := p.scanOne(rows)
		if err != nil {
			return nil, err
		}

		items = append(items, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &alias.Page{Items: items, Page: page, Limit: limit, Total: total}, nil
}

func (p *PostgresRepository) TopCodesByClicks(
	ctx context.Context, n int, since time.Time,
) ([]string, error) {
	query := `
		SELECT a.code
		FROM aliases a
		JOIN click_rollups r ON r.alias_id = a.id
		WHERE a.deleted_at IS NULL
		  AND r.granularity = 'hour'
		  AND r.bucket_start >= $2
		GROUP BY a.code
		ORDER BY sum(r.clicks) DESC
		LIMIT $1
	`

	rows, err := p.pool.Query(ctx, query, n, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}

		codes = append(codes, code)
	}

	return codes, rows.Err()
}

func (p *PostgresRepository) scanOne(row pgx.Row) (*alias.Record, error) {
	var rec alias.Record

	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.Destination,
		&rec.Code,
		&rec.Title,
		&rec.Tags,
		&rec.Active,
		&rec.ExpiresAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, alias.ErrNotFound
		}

		return nil, err
	}

	return &rec, nil
}

// Compile-time check.
var _ alias.Repository = (*PostgresRepository)(nil)
