package outcomes

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/auctionledger/onboard/internal/dbx"
	"github.com/auctionledger/onboard/internal/outcomes/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRecorder struct {
	db dbx.DBTX
}

func NewPostgresRecorder(db dbx.DBTX) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// Open connects to the outcomes database and applies pending migrations.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	return db, nil
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return err
	}

	return nil
}

func (r *PostgresRecorder) Record(ctx context.Context, o *Outcome) error {
	query :=
		`INSERT INTO onboarding_outcomes (run_id, user_id, stage, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id
		 `

	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}

	err := r.db.QueryRowContext(ctx, query,
		o.RunID, o.UserID, string(o.Stage), o.Detail, o.CreatedAt).Scan(&o.ID)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRecorder) ListByRun(ctx context.Context, runID string) ([]Outcome, error) {
	query :=
		`SELECT id, run_id, user_id, stage, detail, created_at FROM onboarding_outcomes
		 WHERE run_id = $1
		 ORDER BY id
		 `

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []Outcome
	for rows.Next() {
		var o Outcome
		var stage string
		if err := rows.Scan(&o.ID, &o.RunID, &o.UserID, &stage, &o.Detail, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		o.Stage = Stage(stage)
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
