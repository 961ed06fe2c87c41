package batches

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-edu/meridian-backoffice/internal/platform/httpx"
)

// Repository persists batches in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const batchColumns = `id, name, course_id, start_date, end_date, is_active, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, b Batch) (Batch, error) {
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	err := r.pool.QueryRow(ctx, `
		INSERT INTO batches (name, course_id, start_date, end_date, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id`,
		b.Name, b.CourseID, b.StartDate, b.EndDate, b.IsActive, now,
	).Scan(&b.ID)
	return b, err
}

func (r *Repository) Update(ctx context.Context, b Batch) (Batch, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE batches SET name=$2, course_id=$3, start_date=$4, end_date=$5, is_active=$6, updated_at=$7
		WHERE id=$1`,
		b.ID, b.Name, b.CourseID, b.StartDate, b.EndDate, b.IsActive, time.Now().UTC(),
	)
	if err != nil {
		return Batch{}, err
	}
	if ct.RowsAffected() == 0 {
		return Batch{}, httpx.ErrNotFound
	}
	return r.Get(ctx, b.ID)
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM batches WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Batch, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id=$1`, id)
	b, err := scanBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, httpx.ErrNotFound
	}
	return b, err
}

func (r *Repository) List(ctx context.Context, f ListFilters) ([]Batch, int, error) {
	where := ""
	args := []any{}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = ` WHERE name ILIKE $` + strconv.Itoa(len(args))
	}
	if f.ActiveOnly {
		if where == "" {
			where = ` WHERE is_active`
		} else {
			where += ` AND is_active`
		}
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM batches`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	query := `SELECT ` + batchColumns + ` FROM batches` + where +
		` ORDER BY start_date DESC NULLS LAST, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, b)
	}
	return list, total, rows.Err()
}

func scanBatch(row pgx.Row) (Batch, error) {
	var (
		b         Batch
		courseID  pgtype.Int8
		startDate pgtype.Date
		endDate   pgtype.Date
	)
	if err := row.Scan(&b.ID, &b.Name, &courseID, &startDate, &endDate, &b.IsActive, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return Batch{}, err
	}
	if courseID.Valid {
		b.CourseID = &courseID.Int64
	}
	if startDate.Valid {
		t := startDate.Time
		b.StartDate = &t
	}
	if endDate.Valid {
		t := endDate.Time
		b.EndDate = &t
	}
	return b, nil
}
