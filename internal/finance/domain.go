// Package finance implements the financial-mutation protocol: every write
// to a money-bearing record is authorized, screened for duplicates, applied,
// and paired with an immutable audit entry. A failed audit write on an
// audit-critical kind undoes the mutation instead of leaving it unaudited.
package finance

import (
	"fmt"
	"time"

	"github.com/meridian-edu/meridian-backoffice/internal/audit"
)

// Kind identifies a financial record variant.
type Kind string

const (
	KindPayment     Kind = "payment"
	KindInstallment Kind = "installment"
	KindExpense     Kind = "expense"
)

// AuditCritical reports whether a failed audit write must undo the
// mutation. All money-bearing kinds are critical; secondary entities
// (students, batches, placements) log and continue instead.
func (k Kind) AuditCritical() bool {
	switch k {
	case KindPayment, KindInstallment, KindExpense:
		return true
	default:
		return false
	}
}

// Entity returns the audit entity name for the kind.
func (k Kind) Entity() string {
	switch k {
	case KindPayment:
		return "payments"
	case KindInstallment:
		return "placement_installments"
	case KindExpense:
		return "expenses"
	default:
		return string(k)
	}
}

// Valid reports whether the kind is known.
func (k Kind) Valid() bool {
	switch k {
	case KindPayment, KindInstallment, KindExpense:
		return true
	}
	return false
}

// Method enumerates accepted payment methods.
type Method string

const (
	MethodCash         Method = "cash"
	MethodUPI          Method = "upi"
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
	MethodCheque       Method = "cheque"
)

func (m Method) valid() bool {
	switch m {
	case MethodCash, MethodUPI, MethodCard, MethodBankTransfer, MethodCheque:
		return true
	}
	return false
}

// Direction marks money flow relative to the institute.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// InstallmentType distinguishes institution-side receipts from
// company-side costs on placement installments.
type InstallmentType string

const (
	InstallmentReceipt     InstallmentType = "receipt"
	InstallmentCompanyCost InstallmentType = "company_cost"
)

// PaymentStatusCompleted is the status a committed payment carries; the
// duplicate key only matches completed payments.
const PaymentStatusCompleted = "completed"

// Record is a financial record: a payment, a placement installment or an
// expense. One struct serves all three kinds; kind-specific fields are
// nullable and validated per kind.
type Record struct {
	ID          int64     `json:"id"`
	Kind        Kind      `json:"kind"`
	StudentID   *int64    `json:"student_id,omitempty"`
	PlacementID *int64    `json:"placement_id,omitempty"`
	BatchID     *int64    `json:"batch_id,omitempty"`
	// Name labels the person or payee on expenses without a student.
	Name            string          `json:"name,omitempty"`
	Amount          float64         `json:"amount"`
	TxnDate         time.Time       `json:"txn_date"`
	Method          Method          `json:"method"`
	BankName        string          `json:"bank_name,omitempty"`
	ChequeNo        string          `json:"cheque_no,omitempty"`
	Remarks         string          `json:"remarks,omitempty"`
	Direction       Direction       `json:"direction,omitempty"`
	InstallmentNo   int             `json:"installment_no,omitempty"`
	InstallmentType InstallmentType `json:"installment_type,omitempty"`
	Status          string          `json:"status,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

const maxRemarksLen = 500

// Validate enforces the record invariants before any store interaction.
func Validate(rec Record, now time.Time) error {
	if !rec.Kind.Valid() {
		return validationErr("unknown record kind")
	}
	if rec.Amount <= 0 {
		return validationErr("amount must be positive")
	}
	if rec.TxnDate.IsZero() {
		return validationErr("transaction date is required")
	}
	if rec.TxnDate.After(now) {
		return validationErr("transaction date cannot be in the future")
	}
	if !rec.Method.valid() {
		return validationErr("method must be one of cash, upi, card, bank_transfer, cheque")
	}
	if rec.Method == MethodCheque && rec.ChequeNo == "" {
		return validationErr("cheque number is required for cheque payments")
	}
	if len(rec.Remarks) > maxRemarksLen {
		return validationErr("remarks exceed maximum length")
	}
	switch rec.Kind {
	case KindPayment:
		if rec.StudentID == nil || *rec.StudentID == 0 {
			return validationErr("student is required for payments")
		}
	case KindInstallment:
		if rec.PlacementID == nil || *rec.PlacementID == 0 {
			return validationErr("placement is required for installments")
		}
		if rec.InstallmentType != InstallmentReceipt && rec.InstallmentType != InstallmentCompanyCost {
			return validationErr("installment type must be receipt or company_cost")
		}
	case KindExpense:
		if rec.Name == "" && (rec.StudentID == nil || *rec.StudentID == 0) {
			return validationErr("expense requires a name or a student reference")
		}
		if rec.Direction != DirectionCredit && rec.Direction != DirectionDebit {
			return validationErr("expense direction must be credit or debit")
		}
	}
	return nil
}

// Normalize fills derived fields before persisting.
func Normalize(rec *Record) {
	switch rec.Kind {
	case KindPayment:
		rec.Direction = DirectionCredit
		if rec.Status == "" {
			rec.Status = PaymentStatusCompleted
		}
	case KindInstallment:
		if rec.InstallmentType == InstallmentCompanyCost {
			rec.Direction = DirectionDebit
		} else {
			rec.Direction = DirectionCredit
		}
	}
}

// CreateAction maps a record creation to its domain-specific audit kind.
func CreateAction(rec Record) audit.Action {
	switch rec.Kind {
	case KindPayment:
		return audit.ActionPayment
	case KindInstallment:
		if rec.InstallmentType == InstallmentCompanyCost {
			return audit.ActionPlacementCost
		}
		return audit.ActionPlacementPayment
	case KindExpense:
		return audit.ActionExpense
	default:
		return audit.ActionCreate
	}
}

// ChangedFields lists field names that differ between two records.
func ChangedFields(before, after Record) []string {
	var changed []string
	if before.Amount != after.Amount {
		changed = append(changed, "amount")
	}
	if !before.TxnDate.Equal(after.TxnDate) {
		changed = append(changed, "txn_date")
	}
	if before.Method != after.Method {
		changed = append(changed, "method")
	}
	if before.BankName != after.BankName {
		changed = append(changed, "bank_name")
	}
	if before.ChequeNo != after.ChequeNo {
		changed = append(changed, "cheque_no")
	}
	if before.Remarks != after.Remarks {
		changed = append(changed, "remarks")
	}
	if before.Direction != after.Direction {
		changed = append(changed, "direction")
	}
	if !ptrEq(before.StudentID, after.StudentID) {
		changed = append(changed, "student_id")
	}
	if !ptrEq(before.BatchID, after.BatchID) {
		changed = append(changed, "batch_id")
	}
	if before.InstallmentNo != after.InstallmentNo {
		changed = append(changed, "installment_no")
	}
	return changed
}

func ptrEq(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func validationErr(msg string) error {
	return fmt.Errorf("%w: %s", errValidation, msg)
}
