package complaint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS complaints (
	number          TEXT PRIMARY KEY,
	category        TEXT NOT NULL,
	sub_category    TEXT NOT NULL,
	fields          TEXT NOT NULL,
	narrative       TEXT NOT NULL,
	canonical_text  TEXT NOT NULL,
	language        TEXT NOT NULL,
	sentiment       TEXT NOT NULL DEFAULT '',
	attachment_id   TEXT,
	attachment_mime TEXT,
	attachment_size INTEGER,
	filed_at        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS complaint_sequences (
	code TEXT PRIMARY KEY,
	last INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS classifier_feedback (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	narrative    TEXT NOT NULL,
	category     TEXT NOT NULL,
	sub_category TEXT NOT NULL,
	created_at   TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// SQLiteStore keeps complaints in an embedded database file, for
// single-node deployments and local development.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time keeps modernc's driver out of SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) File(ctx context.Context, rec *FinalizedComplaint, code string) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin filing tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO complaint_sequences (code, last) VALUES (?, 0)
		ON CONFLICT (code) DO NOTHING
	`, code); err != nil {
		return fmt.Errorf("seed sequence %s: %w", code, err)
	}
	// the bump rolls back with a failed transaction, so the advance must
	// keep going past taken numbers here: a plain retry would recompute
	// the identical number and collide forever
	var number string
	for {
		if _, err := tx.ExecContext(ctx, `
			UPDATE complaint_sequences SET last = last + 1 WHERE code = ?
		`, code); err != nil {
			return fmt.Errorf("advance sequence %s: %w", code, err)
		}

		var last int64
		if err := tx.QueryRowContext(ctx, `
			SELECT last FROM complaint_sequences WHERE code = ?
		`, code).Scan(&last); err != nil {
			return fmt.Errorf("read sequence %s: %w", code, err)
		}
		number = FormatNumber(code, last)

		var taken int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM complaints WHERE number = ?
		`, number).Scan(&taken); err != nil {
			return fmt.Errorf("check number %s: %w", number, err)
		}
		if taken == 0 {
			break
		}
	}

	var attID, attMime sql.NullString
	var attSize sql.NullInt64
	if rec.Attachment != nil {
		attID = sql.NullString{String: rec.Attachment.ID, Valid: true}
		attMime = sql.NullString{String: rec.Attachment.MimeType, Valid: true}
		attSize = sql.NullInt64{Int64: rec.Attachment.Size, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO complaints
			(number, category, sub_category, fields, narrative, canonical_text,
			 language, sentiment, attachment_id, attachment_mime, attachment_size, filed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		number,
		rec.Category,
		rec.SubCategory,
		string(fieldsJSON),
		rec.Narrative,
		rec.CanonicalText,
		rec.Language,
		rec.Sentiment,
		attID,
		attMime,
		attSize,
		rec.FiledAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateNumber
		}
		return fmt.Errorf("insert complaint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit filing: %w", err)
	}
	rec.Number = number
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, number string) (*FinalizedComplaint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT number, category, sub_category, fields, narrative, canonical_text,
		       language, sentiment, attachment_id, attachment_mime, attachment_size, filed_at
		FROM complaints
		WHERE number = ?
	`, number)

	var rec FinalizedComplaint
	var fieldsJSON, filedAt string
	var attID, attMime sql.NullString
	var attSize sql.NullInt64
	err := row.Scan(
		&rec.Number,
		&rec.Category,
		&rec.SubCategory,
		&fieldsJSON,
		&rec.Narrative,
		&rec.CanonicalText,
		&rec.Language,
		&rec.Sentiment,
		&attID,
		&attMime,
		&attSize,
		&filedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load complaint %s: %w", number, err)
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
		return nil, fmt.Errorf("decode fields of %s: %w", number, err)
	}
	if rec.FiledAt, err = time.Parse(time.RFC3339Nano, filedAt); err != nil {
		return nil, fmt.Errorf("decode filed_at of %s: %w", number, err)
	}
	if attID.Valid {
		rec.Attachment = &Attachment{ID: attID.String, MimeType: attMime.String, Size: attSize.Int64}
	}
	return &rec, nil
}

func (s *SQLiteStore) Feedback(ctx context.Context, narrative, category, subCategory string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classifier_feedback (narrative, category, sub_category)
		VALUES (?, ?, ?)
	`, narrative, category, subCategory)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
