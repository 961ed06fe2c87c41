package courses

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
)

// Repository persists courses in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

func (r *Repository) Create(ctx context.Context, c Course) (Course, error) {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	err := r.pool.QueryRow(ctx, `
		INSERT INTO courses (name, duration_weeks, fee, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id`,
		c.Name, c.DurationWeeks, c.Fee, c.IsActive, now,
	).Scan(&c.ID)
	return c, err
}

func (r *Repository) Update(ctx context.Context, c Course) (Course, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE courses SET name=$2, duration_weeks=$3, fee=$4, is_active=$5, updated_at=$6
		WHERE id=$1`,
		c.ID, c.Name, c.DurationWeeks, c.Fee, c.IsActive, time.Now().UTC(),
	)
	if err != nil {
		return Course{}, err
	}
	if ct.RowsAffected() == 0 {
		return Course{}, httpx.ErrNotFound
	}
	return r.Get(ctx, c.ID)
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Course, error) {
	var c Course
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, duration_weeks, fee, is_active, created_at, updated_at
		FROM courses WHERE id=$1`, id,
	).Scan(&c.ID, &c.Name, &c.DurationWeeks, &c.Fee, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Course{}, httpx.ErrNotFound
	}
	return c, err
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Course, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM courses`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, duration_weeks, fee, is_active, created_at, updated_at
		FROM courses ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Name, &c.DurationWeeks, &c.Fee, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		list = append(list, c)
	}
	return list, total, rows.Err()
}
