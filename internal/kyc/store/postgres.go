package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
	txcontext "kycgate/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// Migrate creates the tables and indexes if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply kyc schema: %w", err)
	}
	return nil
}

// PostgresStore persists verification records in PostgreSQL. Integrity
// columns are written by the INSERT only; a trigger rejects any later change.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const recordColumns = `
	id, user_id, document_type, document_number, artifacts,
	file_hashes, merkle_root, document_number_hash, user_id_hash,
	uploads, ai_verification, credential, ledger, status,
	rejection_reason, rejection_category, note, submitted_from,
	submitted_at, updated_at, completed_at`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// CreateIfNoneActive relies on the partial unique index over in-flight
// records; a violation maps to sentinel.ErrConflict.
func (s *PostgresStore) CreateIfNoneActive(ctx context.Context, record *models.VerificationRecord) error {
	cols, err := encodeRecord(record)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO kyc_verifications (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		uuid.UUID(record.ID), uuid.UUID(record.UserID), string(record.DocumentType), record.DocumentNumber, cols.artifacts,
		cols.fileHashes, record.Integrity.MerkleRoot, record.Integrity.DocumentNumberHash, record.Integrity.UserIDHash,
		cols.uploads, cols.ai, cols.credential, cols.ledger, string(record.Status),
		record.RejectionReason, string(record.RejectionCategory), record.Note, record.SubmittedFrom,
		record.SubmittedAt, record.UpdatedAt, nullTime(record.CompletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert verification record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, recordID id.RecordID) (*models.VerificationRecord, error) {
	row := s.q(ctx).QueryRowContext(ctx, `SELECT `+recordColumns+` FROM kyc_verifications WHERE id = $1`, uuid.UUID(recordID))
	return scanOne(row, "find verification record")
}

func (s *PostgresStore) FindLatestByUser(ctx context.Context, userID id.UserID) (*models.VerificationRecord, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM kyc_verifications
		WHERE user_id = $1
		ORDER BY submitted_at DESC
		LIMIT 1`, uuid.UUID(userID))
	return scanOne(row, "find latest verification record")
}

func (s *PostgresStore) FindActiveByUser(ctx context.Context, userID id.UserID) (*models.VerificationRecord, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM kyc_verifications
		WHERE user_id = $1 AND status <> ALL($2::text[])
		LIMIT 1`, uuid.UUID(userID), pq.Array(terminalStatuses()))
	return scanOne(row, "find active verification record")
}

// Update locks the row with SELECT ... FOR UPDATE, applies fn, and writes the
// mutable columns back in the same transaction. An ambient transaction from
// the context is reused when present.
func (s *PostgresStore) Update(ctx context.Context, recordID id.RecordID, fn func(r *models.VerificationRecord) error) (*models.VerificationRecord, error) {
	var updated *models.VerificationRecord
	err := txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		updated, err = s.update(ctx, tx, recordID, fn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) update(ctx context.Context, tx *sql.Tx, recordID id.RecordID, fn func(r *models.VerificationRecord) error) (*models.VerificationRecord, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM kyc_verifications WHERE id = $1 FOR UPDATE`, uuid.UUID(recordID))
	current, err := scanOne(row, "lock verification record")
	if err != nil {
		return nil, err
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	pin(next, current)

	cols, err := encodeRecord(next)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE kyc_verifications SET
			uploads = $2,
			ai_verification = $3,
			credential = $4,
			ledger = $5,
			status = $6,
			rejection_reason = $7,
			rejection_category = $8,
			note = $9,
			updated_at = $10,
			completed_at = $11
		WHERE id = $1`,
		uuid.UUID(next.ID), cols.uploads, cols.ai, cols.credential, cols.ledger, string(next.Status),
		next.RejectionReason, string(next.RejectionCategory), next.Note, next.UpdatedAt, nullTime(next.CompletedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("update verification record: %w", err)
	}
	return next, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter, page models.Page) ([]*models.VerificationRecord, int, error) {
	page = page.Normalize()

	var status, userID any
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	if filter.UserID != nil {
		userID = uuid.UUID(*filter.UserID)
	}

	var total int
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM kyc_verifications
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::uuid IS NULL OR user_id = $2)`, status, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count verification records: %w", err)
	}

	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+recordColumns+` FROM kyc_verifications
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::uuid IS NULL OR user_id = $2)
		ORDER BY submitted_at DESC
		OFFSET $3 LIMIT $4`, status, userID, page.Offset, page.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list verification records: %w", err)
	}
	records, err := scanAll(rows)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT status, COUNT(*) FROM kyc_verifications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Status]int, len(models.AllStatuses))
	for _, st := range models.AllStatuses {
		counts[st] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[models.Status(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, statuses []models.Status, limit int) ([]*models.VerificationRecord, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT `+recordColumns+` FROM kyc_verifications
		WHERE status = ANY($1::text[])
		ORDER BY submitted_at ASC
		LIMIT $2`, pq.Array(names), lim)
	if err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	return scanAll(rows)
}

func terminalStatuses() []string {
	var out []string
	for _, st := range models.AllStatuses {
		if st.IsTerminal() {
			out = append(out, string(st))
		}
	}
	return out
}

type encodedColumns struct {
	artifacts  string
	fileHashes string
	uploads    string
	ai         string
	credential sql.NullString
	ledger     sql.NullString
}

func encodeRecord(r *models.VerificationRecord) (encodedColumns, error) {
	var cols encodedColumns
	var err error
	if cols.artifacts, err = jsonString(r.Artifacts); err != nil {
		return cols, fmt.Errorf("marshal artifacts: %w", err)
	}
	if cols.fileHashes, err = jsonString(r.Integrity.FileHashes); err != nil {
		return cols, fmt.Errorf("marshal file hashes: %w", err)
	}
	if cols.uploads, err = jsonString(r.Uploads); err != nil {
		return cols, fmt.Errorf("marshal uploads: %w", err)
	}
	if cols.ai, err = jsonString(r.AI); err != nil {
		return cols, fmt.Errorf("marshal ai verification: %w", err)
	}
	if r.Credential != nil {
		v, err := jsonString(r.Credential)
		if err != nil {
			return cols, fmt.Errorf("marshal credential: %w", err)
		}
		cols.credential = sql.NullString{String: v, Valid: true}
	}
	if r.Ledger != nil {
		v, err := jsonString(r.Ledger)
		if err != nil {
			return cols, fmt.Errorf("marshal ledger registration: %w", err)
		}
		cols.ledger = sql.NullString{String: v, Valid: true}
	}
	return cols, nil
}

func jsonString(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.VerificationRecord, error) {
	var (
		r                                  models.VerificationRecord
		recordID, userID                   uuid.UUID
		docType, status, category          string
		artifacts, fileHashes, uploads, ai []byte
		credential, ledger                 []byte
		completedAt                        sql.NullTime
	)
	err := row.Scan(
		&recordID, &userID, &docType, &r.DocumentNumber, &artifacts,
		&fileHashes, &r.Integrity.MerkleRoot, &r.Integrity.DocumentNumberHash, &r.Integrity.UserIDHash,
		&uploads, &ai, &credential, &ledger, &status,
		&r.RejectionReason, &category, &r.Note, &r.SubmittedFrom,
		&r.SubmittedAt, &r.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	r.ID = id.RecordID(recordID)
	r.UserID = id.UserID(userID)
	r.DocumentType = models.DocumentType(docType)
	r.Status = models.Status(status)
	r.RejectionCategory = models.RejectionCategory(category)
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}

	if err := json.Unmarshal(artifacts, &r.Artifacts); err != nil {
		return nil, fmt.Errorf("unmarshal artifacts: %w", err)
	}
	if err := json.Unmarshal(fileHashes, &r.Integrity.FileHashes); err != nil {
		return nil, fmt.Errorf("unmarshal file hashes: %w", err)
	}
	if err := json.Unmarshal(uploads, &r.Uploads); err != nil {
		return nil, fmt.Errorf("unmarshal uploads: %w", err)
	}
	if err := json.Unmarshal(ai, &r.AI); err != nil {
		return nil, fmt.Errorf("unmarshal ai verification: %w", err)
	}
	if len(credential) > 0 {
		r.Credential = &models.Credential{}
		if err := json.Unmarshal(credential, r.Credential); err != nil {
			return nil, fmt.Errorf("unmarshal credential: %w", err)
		}
	}
	if len(ledger) > 0 {
		r.Ledger = &models.LedgerRegistration{}
		if err := json.Unmarshal(ledger, r.Ledger); err != nil {
			return nil, fmt.Errorf("unmarshal ledger registration: %w", err)
		}
	}
	return &r, nil
}

func scanOne(row *sql.Row, op string) (*models.VerificationRecord, error) {
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

func scanAll(rows *sql.Rows) ([]*models.VerificationRecord, error) {
	defer rows.Close()
	out := make([]*models.VerificationRecord, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification records: %w", err)
	}
	return out, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

// PostgresUserStatusStore keeps the per-user status projection.
type PostgresUserStatusStore struct {
	db *sql.DB
}

func NewPostgresUserStatusStore(db *sql.DB) *PostgresUserStatusStore {
	return &PostgresUserStatusStore{db: db}
}

func (s *PostgresUserStatusStore) SetKYCStatus(ctx context.Context, userID id.UserID, status models.UserKYCStatus, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_kyc_status (user_id, status, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`,
		uuid.UUID(userID), string(status), at)
	if err != nil {
		return fmt.Errorf("set kyc status: %w", err)
	}
	return nil
}

func (s *PostgresUserStatusStore) GetKYCStatus(ctx context.Context, userID id.UserID) (models.UserKYCStatus, error) {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM user_kyc_status WHERE user_id = $1`, uuid.UUID(userID)).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.UserKYCNotStarted, nil
		}
		return "", fmt.Errorf("get kyc status: %w", err)
	}
	return models.UserKYCStatus(status), nil
}
