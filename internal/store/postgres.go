package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const schema = `CREATE TABLE IF NOT EXISTS "translations" (
	"id" BIGSERIAL PRIMARY KEY,
	"createdAt" TIMESTAMPTZ NOT NULL,
	"sourceLanguage" TEXT NOT NULL,
	"targetLanguage" TEXT NOT NULL,
	"sourceText" TEXT NOT NULL,
	"translatedText" TEXT NOT NULL,
	"durationSeconds" DOUBLE PRECISION NOT NULL DEFAULT 0,
	"confidence" DOUBLE PRECISION NOT NULL DEFAULT 0,
	"status" TEXT NOT NULL DEFAULT 'completed'
);
CREATE INDEX IF NOT EXISTS "translations_language_pair_idx" ON "translations" ("sourceLanguage", "targetLanguage")`

const selectColumns = `SELECT "id", "createdAt", "sourceLanguage", "targetLanguage", "sourceText", "translatedText", "durationSeconds", "confidence", "status" FROM "translations"`

// PostgresStore is a Gateway backed by a PostgreSQL database reached through
// the pgx database/sql driver.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenPostgres connects to databaseURL and creates the translations table
// when it does not exist yet.
func OpenPostgres(ctx context.Context, databaseURL string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("database url is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";\n") {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create translations schema: %w", err)
		}
	}
	s.logger.Debug("translations schema ready")
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, record Record) (int64, error) {
	if err := record.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO "translations" ("createdAt", "sourceLanguage", "targetLanguage", "sourceText", "translatedText", "durationSeconds", "confidence", "status") VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING "id"`,
		record.CreatedAt, record.SourceLanguage, record.TargetLanguage, record.SourceText, record.TranslatedText,
		record.DurationSeconds, record.Confidence, string(record.Status),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert translation: %w", err)
	}

	s.logger.Debug("translation stored", zap.Int64("id", id))
	return id, nil
}

func (s *PostgresStore) All(ctx context.Context, limit int) ([]Record, error) {
	return s.query(ctx, selectColumns+` ORDER BY "createdAt" DESC, "id" DESC`+limitClause(limit))
}

func (s *PostgresStore) ByLanguagePair(ctx context.Context, source, target string, limit int) ([]Record, error) {
	return s.query(ctx,
		selectColumns+` WHERE "sourceLanguage" = $1 AND "targetLanguage" = $2 ORDER BY "createdAt" DESC, "id" DESC`+limitClause(limit),
		source, target,
	)
}

func (s *PostgresStore) ByID(ctx context.Context, id int64) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE "id" = $1`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("load translation %d: %w", id, err)
	}
	return record, true, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query translations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan translation: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate translations: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		r      Record
		status string
	)
	if err := row.Scan(&r.ID, &r.CreatedAt, &r.SourceLanguage, &r.TargetLanguage, &r.SourceText, &r.TranslatedText, &r.DurationSeconds, &r.Confidence, &status); err != nil {
		return Record{}, err
	}
	r.Status = Status(status)
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}
