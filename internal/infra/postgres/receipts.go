package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/receipts"
	"github.com/jackc/pgx/v5"
)

// ReceiptRepository implements receipts.Repository.
type ReceiptRepository struct {
	db DB
}

func NewReceiptRepository(db DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

func (r *ReceiptRepository) TransactionName(ctx context.Context, userID, transactionID string) (string, error) {
	var name string
	err := r.db.QueryRow(ctx, `
		SELECT description
		FROM transactions
		WHERE id = $1 AND user_id = $2`, transactionID, userID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("TransactionName: %s: %w", transactionID, receipts.ErrTransactionNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("TransactionName: %w", err)
	}
	return name, nil
}

func (r *ReceiptRepository) Create(ctx context.Context, rec *domain.Receipt) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO receipts (id, user_id, transaction_id, file_name, storage_path, mime_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		rec.ID, rec.UserID, rec.TransactionID, rec.FileName, rec.StoragePath, rec.MimeType, rec.SizeBytes,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("CreateReceipt: insert: %w", err)
	}
	return nil
}

// List builds its WHERE clause from the non-zero filter fields.
func (r *ReceiptRepository) List(ctx context.Context, userID string, f receipts.Filter) ([]domain.Receipt, error) {
	where := []string{"r.user_id = $1"}
	args := []any{userID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(t.description ILIKE $%d OR t.merchant ILIKE $%d)", n, n))
	}
	if !f.From.IsZero() {
		add("r.created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("r.created_at < $%d", f.To)
	}
	sql := `
		SELECT r.id, r.user_id, r.transaction_id, t.description, r.file_name,
		       r.storage_path, r.mime_type, r.size_bytes, r.created_at
		FROM receipts r
		JOIN transactions t ON t.id = r.transaction_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY r.created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += fmt.Sprintf("\n\t\tLIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("ListReceipts: query: %w", err)
	}
	defer rows.Close()

	out := []domain.Receipt{}
	for rows.Next() {
		var rec domain.Receipt
		err := rows.Scan(&rec.ID, &rec.UserID, &rec.TransactionID, &rec.TransactionName, &rec.FileName,
			&rec.StoragePath, &rec.MimeType, &rec.SizeBytes, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("ListReceipts: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListReceipts: rows: %w", err)
	}
	return out, nil
}

var _ receipts.Repository = (*ReceiptRepository)(nil)
