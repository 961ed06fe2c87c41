package placements

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

// Repository persists placements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const placementColumns = `id, student_id, batch_id, company, role, package_amount, status, placed_on, created_at, updated_at`

func (r *Repository) Create(ctx context.Context, p Placement) (Placement, error) {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	err := r.pool.QueryRow(ctx, `
		INSERT INTO placements (student_id, batch_id, company, role, package_amount, status, placed_on, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id`,
		p.StudentID, p.BatchID, p.Company, p.Role, p.PackageAmount, p.Status, p.PlacedOn, now,
	).Scan(&p.ID)
	return p, err
}

func (r *Repository) Update(ctx context.Context, p Placement) (Placement, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE placements SET student_id=$2, batch_id=$3, company=$4, role=$5, package_amount=$6, status=$7, placed_on=$8, updated_at=$9
		WHERE id=$1`,
		p.ID, p.StudentID, p.BatchID, p.Company, p.Role, p.PackageAmount, p.Status, p.PlacedOn, time.Now().UTC(),
	)
	if err != nil {
		return Placement{}, err
	}
	if ct.RowsAffected() == 0 {
		return Placement{}, httpx.ErrNotFound
	}
	return r.Get(ctx, p.ID)
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM placements WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Placement, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+placementColumns+` FROM placements WHERE id=$1`, id)
	p, err := scanPlacement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Placement{}, httpx.ErrNotFound
	}
	return p, err
}

func (r *Repository) List(ctx context.Context, f ListFilters) ([]Placement, int, error) {
	where := ""
	args := []any{}
	if f.StudentID != nil {
		args = append(args, *f.StudentID)
		where = ` WHERE student_id = $` + strconv.Itoa(len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		clause := ` WHERE `
		if where != "" {
			clause = ` AND `
		}
		where += clause + `status = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM placements`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	query := `SELECT ` + placementColumns + ` FROM placements` + where +
		` ORDER BY id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []Placement
	for rows.Next() {
		p, err := scanPlacement(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, p)
	}
	return list, total, rows.Err()
}

func scanPlacement(row pgx.Row) (Placement, error) {
	var (
		p        Placement
		batchID  pgtype.Int8
		role     pgtype.Text
		placedOn pgtype.Date
	)
	if err := row.Scan(&p.ID, &p.StudentID, &batchID, &p.Company, &role, &p.PackageAmount, &p.Status, &placedOn, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Placement{}, err
	}
	if batchID.Valid {
		p.BatchID = &batchID.Int64
	}
	p.Role = role.String
	if placedOn.Valid {
		t := placedOn.Time
		p.PlacedOn = &t
	}
	return p, nil
}
