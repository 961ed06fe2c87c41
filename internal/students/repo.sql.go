package students

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

// Repository persists students in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const studentColumns = `id, full_name, email, phone, batch_id, enrolled_on, is_active, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, s Student) (Student, error) {
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	err := r.pool.QueryRow(ctx, `
		INSERT INTO students (full_name, email, phone, batch_id, enrolled_on, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id`,
		s.FullName, s.Email, s.Phone, s.BatchID, s.EnrolledOn, s.IsActive, now,
	).Scan(&s.ID)
	return s, err
}

func (r *Repository) Update(ctx context.Context, s Student) (Student, error) {
	now := time.Now().UTC()
	ct, err := r.pool.Exec(ctx, `
		UPDATE students SET full_name=$2, email=$3, phone=$4, batch_id=$5, enrolled_on=$6, is_active=$7, updated_at=$8
		WHERE id=$1`,
		s.ID, s.FullName, s.Email, s.Phone, s.BatchID, s.EnrolledOn, s.IsActive, now,
	)
	if err != nil {
		return Student{}, err
	}
	if ct.RowsAffected() == 0 {
		return Student{}, httpx.ErrNotFound
	}
	return r.Get(ctx, s.ID)
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM students WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Student, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id=$1`, id)
	s, err := scanStudent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Student{}, httpx.ErrNotFound
	}
	return s, err
}

func (r *Repository) List(ctx context.Context, f ListFilters) ([]Student, int, error) {
	where := ""
	args := []any{}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where = ` WHERE full_name ILIKE $` + strconv.Itoa(len(args))
	}
	if f.BatchID != nil {
		args = append(args, *f.BatchID)
		clause := ` WHERE `
		if where != "" {
			clause = ` AND `
		}
		where += clause + `batch_id = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM students`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	query := `SELECT ` + studentColumns + ` FROM students` + where +
		` ORDER BY full_name LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, s)
	}
	return list, total, rows.Err()
}

func scanStudent(row pgx.Row) (Student, error) {
	var (
		s          Student
		email      pgtype.Text
		phone      pgtype.Text
		batchID    pgtype.Int8
		enrolledOn pgtype.Date
	)
	if err := row.Scan(&s.ID, &s.FullName, &email, &phone, &batchID, &enrolledOn, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return Student{}, err
	}
	s.Email = email.String
	s.Phone = phone.String
	if batchID.Valid {
		s.BatchID = &batchID.Int64
	}
	if enrolledOn.Valid {
		t := enrolledOn.Time
		s.EnrolledOn = &t
	}
	return s, nil
}
