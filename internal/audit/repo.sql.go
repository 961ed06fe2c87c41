package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides read and purge access to audit_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns entries matching the filters, newest first, with total count.
func (r *Repository) List(ctx context.Context, f ListFilters, limit, offset int) ([]Entry, int, error) {
	where, args := buildFilterClause(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, action, entity, entity_id, label, batch_id, amount, meta, txn_date, actor_id, occurred_at
		FROM audit_logs` + where + `
		ORDER BY occurred_at DESC, id DESC
		LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			batchID pgtype.Int8
			amount  pgtype.Float8
			meta    []byte
			txnDate pgtype.Date
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Entity, &e.EntityID, &e.Label, &batchID, &amount, &meta, &txnDate, &e.ActorID, &e.At); err != nil {
			return nil, 0, err
		}
		if batchID.Valid {
			e.BatchID = &batchID.Int64
		}
		if amount.Valid {
			e.Amount = &amount.Float64
		}
		if txnDate.Valid {
			e.TxnDate = txnDate.Time
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Meta)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// PurgeBefore deletes entries older than the cutoff and reports how many.
func (r *Repository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func buildFilterClause(f ListFilters) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, clause+"$"+strconv.Itoa(len(args)))
	}
	if f.Entity != "" {
		add("entity = ", f.Entity)
	}
	if f.Action != "" {
		add("action = ", f.Action)
	}
	if !f.From.IsZero() {
		add("occurred_at >= ", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_at < ", f.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
