// Package history keeps one row per check run so trends can be inspected
// across pipeline executions.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"linkcheck-step/config"
	"linkcheck-step/internal/history/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

var (
	ErrInvalidDSN  = errors.New("invalid history dsn")
	ErrUnavailable = errors.New("history store unavailable")
)

// Fixed width so timestamps sort lexically in TEXT columns.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Run struct {
	ID               string `validate:"required,uuid"`
	TargetURL        string `validate:"required"`
	Success          bool
	ExitCode         int
	BrokenLinksCount int `validate:"gte=0"`
	ReportPath       string
	Readiness        string    `validate:"required"`
	StartedAt        time.Time `validate:"required"`
	FinishedAt       time.Time `validate:"required"`
}

type runRow struct {
	ID               string `db:"id"`
	TargetURL        string `db:"target_url"`
	Success          bool   `db:"success"`
	ExitCode         int    `db:"exit_code"`
	BrokenLinksCount int    `db:"broken_links_count"`
	ReportPath       string `db:"report_path"`
	Readiness        string `db:"readiness"`
	StartedAt        string `db:"started_at"`
	FinishedAt       string `db:"finished_at"`
}

type Store struct {
	db        *sqlx.DB
	dialect   string
	logger    *zap.SugaredLogger
	validator *validator.Validate
}

type NewStoreParams struct {
	fx.In

	Lc     fx.Lifecycle
	Cfg    *config.Config
	Logger *zap.SugaredLogger
}

// NewStore returns nil when HISTORY_DSN is unset; callers treat a nil store as
// "history disabled".
func NewStore(p NewStoreParams) (*Store, error) {
	dsn := strings.TrimSpace(p.Cfg.History.DSN)
	if dsn == "" {
		p.Logger.Infow("history_disabled", "reason", "missing HISTORY_DSN")
		return nil, nil
	}

	s, err := Open(dsn, p.Logger)
	if err != nil {
		return nil, err
	}

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := s.Migrate(ctx); err != nil {
				p.Logger.Warnw("history_unavailable", "dialect", s.dialect, "err", err)
				s.disable()
				return nil
			}
			p.Logger.Infow("history_enabled", "dialect", s.dialect)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return s.Close()
		},
	})

	return s, nil
}

// Open picks the driver from the DSN: postgres:// uses pgx, libsql:// uses
// the Turso client, anything else is a local SQLite file.
func Open(dsn string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	driver, dialect, err := driverFor(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if dialect == "sqlite3" && driver == "sqlite" {
		// SQLite serializes writers anyway.
		db.SetMaxOpenConns(1)
	}

	return &Store{
		db:        db,
		dialect:   dialect,
		logger:    logger,
		validator: validator.New(),
	}, nil
}

func driverFor(dsn string) (driver, dialect string, err error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", "", ErrInvalidDSN
	}
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "pgx", "postgres", nil
	case strings.HasPrefix(lower, "libsql://"):
		return "libsql", "sqlite3", nil
	case strings.Contains(lower, "://"):
		return "", "", fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidDSN, dsn)
	default:
		return "sqlite", "sqlite3", nil
	}
}

// Migrate pings the database and applies the embedded goose migrations.
func (s *Store) Migrate(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(gooseLogger{s.logger})
	if err := goose.SetDialect(s.dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Enabled is false for a nil store and for one whose database could not be
// reached or migrated on start.
func (s *Store) Enabled() bool {
	return s != nil && s.db != nil
}

func (s *Store) disable() {
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record is a no-op on a disabled store.
func (s *Store) Record(ctx context.Context, r Run) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.validator.Struct(r); err != nil {
		return fmt.Errorf("validate run: %w", err)
	}

	row := runRow{
		ID:               r.ID,
		TargetURL:        r.TargetURL,
		Success:          r.Success,
		ExitCode:         r.ExitCode,
		BrokenLinksCount: r.BrokenLinksCount,
		ReportPath:       r.ReportPath,
		Readiness:        r.Readiness,
		StartedAt:        r.StartedAt.UTC().Format(timeLayout),
		FinishedAt:       r.FinishedAt.UTC().Format(timeLayout),
	}

	_, err := s.db.NamedExecContext(ctx, `
INSERT INTO check_runs (
    id, target_url, success, exit_code, broken_links_count,
    report_path, readiness, started_at, finished_at
) VALUES (
    :id, :target_url, :success, :exit_code, :broken_links_count,
    :report_path, :readiness, :started_at, :finished_at
)`, row)
	if err != nil {
		return fmt.Errorf("insert check run: %w", err)
	}

	s.logger.Debugw("history_recorded", "run_id", r.ID, "url", r.TargetURL)
	return nil
}

// Recent lists the newest runs first, optionally filtered by URL.
func (s *Store) Recent(ctx context.Context, targetURL string, limit int) ([]Run, error) {
	if !s.Enabled() {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, target_url, success, exit_code, broken_links_count,
       report_path, readiness, started_at, finished_at
FROM check_runs`
	args := []any{}
	if targetURL != "" {
		query += ` WHERE target_url = ?`
		args = append(args, targetURL)
	}
	query += ` ORDER BY finished_at DESC LIMIT ?`
	args = append(args, limit)

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select check runs: %w", err)
	}

	out := make([]Run, 0, len(rows))
	for _, row := range rows {
		started, err := time.Parse(timeLayout, row.StartedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at of %s: %w", row.ID, err)
		}
		finished, err := time.Parse(timeLayout, row.FinishedAt)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at of %s: %w", row.ID, err)
		}
		out = append(out, Run{
			ID:               row.ID,
			TargetURL:        row.TargetURL,
			Success:          row.Success,
			ExitCode:         row.ExitCode,
			BrokenLinksCount: row.BrokenLinksCount,
			ReportPath:       row.ReportPath,
			Readiness:        row.Readiness,
			StartedAt:        started,
			FinishedAt:       finished,
		})
	}
	return out, nil
}

type gooseLogger struct {
	l *zap.SugaredLogger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.l.Debugf(strings.TrimSpace(format), v...)
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.l.Fatalf(strings.TrimSpace(format), v...)
}
