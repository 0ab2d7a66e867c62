package complaint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const pgSchema = `
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
	attachment_size BIGINT,
	filed_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS complaint_sequences (
	code TEXT PRIMARY KEY,
	last BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS classifier_feedback (
	id           BIGSERIAL PRIMARY KEY,
	narrative    TEXT NOT NULL,
	category     TEXT NOT NULL,
	sub_category TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PostgresStore keeps complaints in Postgres, for shared deployments.
type PostgresStore struct {
	db *sql.DB
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, pgSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) File(ctx context.Context, rec *FinalizedComplaint, code string) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin filing tx: %w", err)
	}
	defer tx.Rollback()

	// sequence bump and record insert commit together: no reserved-but-
	// unissued numbers after a crash. The upsert row-locks the sequence
	// row, serializing concurrent filings for the same code.
	var last int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO complaint_sequences (code, last) VALUES ($1, 1)
		ON CONFLICT (code) DO UPDATE SET last = complaint_sequences.last + 1
		RETURNING last
	`, code).Scan(&last)
	if err != nil {
		return fmt.Errorf("advance sequence %s: %w", code, err)
	}

	// keep advancing past taken numbers: the bump rolls back with a
	// failed transaction, so a plain retry would recompute the identical
	// number and collide forever
	number := FormatNumber(code, last)
	for {
		var taken bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM complaints WHERE number = $1)
		`, number).Scan(&taken); err != nil {
			return fmt.Errorf("check number %s: %w", number, err)
		}
		if !taken {
			break
		}
		if err := tx.QueryRowContext(ctx, `
			UPDATE complaint_sequences SET last = last + 1 WHERE code = $1
			RETURNING last
		`, code).Scan(&last); err != nil {
			return fmt.Errorf("advance sequence %s: %w", code, err)
		}
		number = FormatNumber(code, last)
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
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
		rec.FiledAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
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

func (s *PostgresStore) Get(ctx context.Context, number string) (*FinalizedComplaint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT number, category, sub_category, fields, narrative, canonical_text,
		       language, sentiment, attachment_id, attachment_mime, attachment_size, filed_at
		FROM complaints
		WHERE number = $1
	`, number)

	var rec FinalizedComplaint
	var fieldsJSON string
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
		&rec.FiledAt,
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
	if attID.Valid {
		rec.Attachment = &Attachment{ID: attID.String, MimeType: attMime.String, Size: attSize.Int64}
	}
	return &rec, nil
}

func (s *PostgresStore) Feedback(ctx context.Context, narrative, category, subCategory string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classifier_feedback (narrative, category, sub_category)
		VALUES ($1, $2, $3)
	`, narrative, category, subCategory)
	return err
}

func (s *PostgresStore) Close() error { return s.db.Close() }
