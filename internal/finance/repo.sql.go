package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for all three record
// kinds and the lookups the resolver needs. Partial unique indexes on
// each table back the duplicate detector (see migrations).
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ StorePort = (*Repository)(nil)
var _ LookupPort = (*Repository)(nil)

// Insert persists a new record and returns it with id and timestamps.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	switch rec.Kind {
	case KindPayment:
		err := r.pool.QueryRow(ctx, `
			INSERT INTO payments (student_id, batch_id, amount, txn_date, method, bank_name, cheque_no, remarks, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
			RETURNING id`,
			rec.StudentID, rec.BatchID, rec.Amount, rec.TxnDate, rec.Method, rec.BankName, rec.ChequeNo, rec.Remarks, rec.Status, now,
		).Scan(&rec.ID)
		return rec, err
	case KindInstallment:
		err := r.pool.QueryRow(ctx, `
			INSERT INTO placement_installments (placement_id, student_id, batch_id, installment_no, installment_type, direction, amount, txn_date, method, bank_name, cheque_no, remarks, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
			RETURNING id`,
			rec.PlacementID, rec.StudentID, rec.BatchID, rec.InstallmentNo, rec.InstallmentType, rec.Direction, rec.Amount, rec.TxnDate, rec.Method, rec.BankName, rec.ChequeNo, rec.Remarks, now,
		).Scan(&rec.ID)
		return rec, err
	case KindExpense:
		err := r.pool.QueryRow(ctx, `
			INSERT INTO expenses (name, student_id, batch_id, direction, amount, txn_date, method, bank_name, cheque_no, remarks, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
			RETURNING id`,
			rec.Name, rec.StudentID, rec.BatchID, rec.Direction, rec.Amount, rec.TxnDate, rec.Method, rec.BankName, rec.ChequeNo, rec.Remarks, now,
		).Scan(&rec.ID)
		return rec, err
	default:
		return Record{}, fmt.Errorf("finance: unknown kind %q", rec.Kind)
	}
}

// Update rewrites the mutable fields of an existing record.
func (r *Repository) Update(ctx context.Context, rec Record) (Record, error) {
	now := time.Now().UTC()
	rec.UpdatedAt = now
	var tag string
	switch rec.Kind {
	case KindPayment:
		tag = `UPDATE payments SET student_id=$2, batch_id=$3, amount=$4, txn_date=$5, method=$6, bank_name=$7, cheque_no=$8, remarks=$9, updated_at=$10 WHERE id=$1`
		ct, err := r.pool.Exec(ctx, tag, rec.ID, rec.StudentID, rec.BatchID, rec.Amount, rec.TxnDate, rec.Method, rec.BankName, rec.ChequeNo, rec.Remarks, now)
		if err != nil {
			return Record{}, err
		}
		if ct.RowsAffected() == 0 {
			return Record{}, errNotFound
		}
	case KindInstallment:
		tag = `UPDATE placement_installments SET installment_no=$2, installment_type=$3, direction=$4, amount=$5, txn_date=$6, method=$7, bank_name=$8, cheque_no=$9, remarks=$10, updated_at=$11 WHERE id=$1`
		ct, err := r.pool.Exec(ctx, tag, rec.ID, rec.InstallmentNo, rec.InstallmentType, rec.Direction, rec.Amount, rec.TxnDate, rec.Method, rec.BankName, rec.ChequeNo, rec.Remarks, now)
		if err != nil {
			return Record{}, err
		}
		if ct.RowsAffected() == 0 {
			return Record{}, errNotFound
		}
	case KindExpense:
		tag = `UPDATE expenses SET name=$2, student_id=$3, batch_id=$4, direction=$5, amount=$6, txn_date=$7, method=$8, bank_name=$9, cheque_no=$10, remarks=$11, updated_at=$12 WHERE id=$1`
		ct, err := r.pool.Exec(ctx, tag, rec.ID, rec.Name, rec.StudentID, rec.BatchID, rec.Direction, rec.Amount, rec.TxnDate, rec.Method, rec.BankName, rec.ChequeNo, rec.Remarks, now)
		if err != nil {
			return Record{}, err
		}
		if ct.RowsAffected() == 0 {
			return Record{}, errNotFound
		}
	default:
		return Record{}, fmt.Errorf("finance: unknown kind %q", rec.Kind)
	}
	return r.Get(ctx, rec.Kind, rec.ID)
}

// Delete removes a record by id.
func (r *Repository) Delete(ctx context.Context, kind Kind, id int64) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM `+table+` WHERE id=$1`, id)
	return err
}

// Get loads one record by id.
func (r *Repository) Get(ctx context.Context, kind Kind, id int64) (Record, error) {
	query, err := selectFor(kind)
	if err != nil {
		return Record{}, err
	}
	row := r.pool.QueryRow(ctx, query+` WHERE id=$1`, id)
	rec, err := scanRecord(kind, row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, errNotFound
	}
	return rec, err
}

// FindMatching returns records sharing the candidate's disambiguation
// key, oldest first. A missing expense batch matches only rows whose
// batch is also missing.
func (r *Repository) FindMatching(ctx context.Context, rec Record) ([]Record, error) {
	query, err := selectFor(rec.Kind)
	if err != nil {
		return nil, err
	}
	var rows pgx.Rows
	switch rec.Kind {
	case KindPayment:
		rows, err = r.pool.Query(ctx, query+` WHERE student_id=$1 AND amount=$2 AND txn_date=$3 AND status=$4 ORDER BY id`,
			rec.StudentID, rec.Amount, rec.TxnDate, PaymentStatusCompleted)
	case KindInstallment:
		rows, err = r.pool.Query(ctx, query+` WHERE placement_id=$1 AND amount=$2 AND txn_date=$3 ORDER BY id`,
			rec.PlacementID, rec.Amount, rec.TxnDate)
	case KindExpense:
		rows, err = r.pool.Query(ctx, query+` WHERE name=$1 AND txn_date=$2 AND amount=$3 AND method=$4 AND batch_id IS NOT DISTINCT FROM $5 ORDER BY id`,
			rec.Name, rec.TxnDate, rec.Amount, rec.Method, rec.BatchID)
	default:
		return nil, fmt.Errorf("finance: unknown kind %q", rec.Kind)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rec.Kind, rows)
}

// List pages records of one kind, newest first.
func (r *Repository) List(ctx context.Context, kind Kind, limit, offset int) ([]Record, int, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&total); err != nil {
		return nil, 0, err
	}
	query, _ := selectFor(kind)
	rows, err := r.pool.Query(ctx, query+` ORDER BY txn_date DESC, id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	recs, err := collectRecords(kind, rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// PlacementRef loads the resolver slice of a placement.
func (r *Repository) PlacementRef(ctx context.Context, placementID int64) (PlacementRef, error) {
	var (
		ref     PlacementRef
		batchID pgtype.Int8
	)
	err := r.pool.QueryRow(ctx, `SELECT id, student_id, batch_id FROM placements WHERE id=$1`, placementID).
		Scan(&ref.ID, &ref.StudentID, &batchID)
	if errors.Is(err, pgx.ErrNoRows) {
		return PlacementRef{}, errNotFound
	}
	if err != nil {
		return PlacementRef{}, err
	}
	if batchID.Valid {
		ref.BatchID = &batchID.Int64
	}
	return ref, nil
}

// StudentRef loads the resolver slice of a student.
func (r *Repository) StudentRef(ctx context.Context, studentID int64) (StudentRef, error) {
	var (
		ref     StudentRef
		batchID pgtype.Int8
	)
	err := r.pool.QueryRow(ctx, `SELECT id, full_name, batch_id FROM students WHERE id=$1`, studentID).
		Scan(&ref.ID, &ref.FullName, &batchID)
	if errors.Is(err, pgx.ErrNoRows) {
		return StudentRef{}, errNotFound
	}
	if err != nil {
		return StudentRef{}, err
	}
	if batchID.Valid {
		ref.BatchID = &batchID.Int64
	}
	return ref, nil
}

func tableFor(kind Kind) (string, error) {
	switch kind {
	case KindPayment:
		return "payments", nil
	case KindInstallment:
		return "placement_installments", nil
	case KindExpense:
		return "expenses", nil
	default:
		return "", fmt.Errorf("finance: unknown kind %q", kind)
	}
}

func selectFor(kind Kind) (string, error) {
	switch kind {
	case KindPayment:
		return `SELECT id, student_id, batch_id, amount, txn_date, method, bank_name, cheque_no, remarks, status, created_at, updated_at FROM payments`, nil
	case KindInstallment:
		return `SELECT id, placement_id, student_id, batch_id, installment_no, installment_type, direction, amount, txn_date, method, bank_name, cheque_no, remarks, created_at, updated_at FROM placement_installments`, nil
	case KindExpense:
		return `SELECT id, name, student_id, batch_id, direction, amount, txn_date, method, bank_name, cheque_no, remarks, created_at, updated_at FROM expenses`, nil
	default:
		return "", fmt.Errorf("finance: unknown kind %q", kind)
	}
}

func scanRecord(kind Kind, row pgx.Row) (Record, error) {
	rec := Record{Kind: kind}
	var (
		studentID pgtype.Int8
		batchID   pgtype.Int8
		txnDate   pgtype.Date
	)
	switch kind {
	case KindPayment:
		if err := row.Scan(&rec.ID, &studentID, &batchID, &rec.Amount, &txnDate, &rec.Method, &rec.BankName, &rec.ChequeNo, &rec.Remarks, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return Record{}, err
		}
		rec.Direction = DirectionCredit
	case KindInstallment:
		var placementID pgtype.Int8
		if err := row.Scan(&rec.ID, &placementID, &studentID, &batchID, &rec.InstallmentNo, &rec.InstallmentType, &rec.Direction, &rec.Amount, &txnDate, &rec.Method, &rec.BankName, &rec.ChequeNo, &rec.Remarks, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return Record{}, err
		}
		if placementID.Valid {
			rec.PlacementID = &placementID.Int64
		}
	case KindExpense:
		if err := row.Scan(&rec.ID, &rec.Name, &studentID, &batchID, &rec.Direction, &rec.Amount, &txnDate, &rec.Method, &rec.BankName, &rec.ChequeNo, &rec.Remarks, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return Record{}, err
		}
	default:
		return Record{}, fmt.Errorf("finance: unknown kind %q", kind)
	}
	if studentID.Valid {
		rec.StudentID = &studentID.Int64
	}
	if batchID.Valid {
		rec.BatchID = &batchID.Int64
	}
	if txnDate.Valid {
		rec.TxnDate = txnDate.Time
	}
	return rec, nil
}

func collectRecords(kind Kind, rows pgx.Rows) ([]Record, error) {
	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(kind, rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}
