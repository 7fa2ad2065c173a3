package postgres

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration is a single migration file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Migrations returns the embedded migrations ordered by version.
func Migrations() ([]Migration, error) {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("Migrations: %w", err)
	}
	return LoadMigrations(sub)
}

// LoadMigrations reads every NNNN_name.sql file at the root of fsys. Files
// with other names are skipped; duplicate versions are an error.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("LoadMigrations: reading directory: %w", err)
	}

	seen := map[int]string{}
	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, ok := parseMigrationFilename(entry.Name())
		if !ok {
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("LoadMigrations: version %04d used by %s and %s", version, prev, entry.Name())
		}
		seen[version] = entry.Name()

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("LoadMigrations: reading %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: entry.Name(),
			SQL:      string(content),
			Checksum: Checksum(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

func parseMigrationFilename(filename string) (int, string, bool) {
	m := migrationPattern.FindStringSubmatch(filename)
	if m == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return version, m[2], true
}

// Checksum is the hex SHA-256 of a migration's content.
func Checksum(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// Migrator applies migrations on a single connection.
type Migrator struct {
	conn      *pgx.Conn
	appliedBy string
}

func NewMigrator(conn *pgx.Conn, appliedBy string) *Migrator {
	return &Migrator{conn: conn, appliedBy: appliedBy}
}

// Apply runs every migration not yet recorded in schema_migrations, each in
// its own transaction, and returns how many ran. A recorded migration whose
// checksum changed is an error.
func (m *Migrator) Apply(ctx context.Context, migrations []Migration) (int, error) {
	log := logger.FromContext(ctx)

	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	applied, err := m.Applied(ctx)
	if err != nil {
		return 0, err
	}
	byVersion := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		byVersion[am.Version] = am
	}

	count := 0
	for _, mig := range migrations {
		if am, ok := byVersion[mig.Version]; ok {
			if am.Checksum != "" && am.Checksum != mig.Checksum {
				return count, fmt.Errorf("migration %04d_%s changed after it was applied", mig.Version, mig.Name)
			}
			log.Debug().Int("version", mig.Version).Str("name", mig.Name).Msg("Migration already applied")
			continue
		}

		log.Info().Int("version", mig.Version).Str("name", mig.Name).Msg("Applying migration")
		if err := m.applyOne(ctx, mig); err != nil {
			return count, fmt.Errorf("migration %04d_%s: %w", mig.Version, mig.Name, err)
		}
		count++
	}
	return count, nil
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version     INTEGER PRIMARY KEY,
			name        TEXT NOT NULL,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			checksum    TEXT,
			applied_by  TEXT
		)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}
	return nil
}

// Applied lists recorded migrations by version.
func (m *Migrator) Applied(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := m.conn.Query(ctx, `
		SELECT version, name, applied_at, COALESCE(checksum, ''), COALESCE(applied_by, '')
		FROM schema_migrations
		ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}
	defer rows.Close()

	var applied []AppliedMigration
	for rows.Next() {
		var am AppliedMigration
		if err := rows.Scan(&am.Version, &am.Name, &am.AppliedAt, &am.Checksum, &am.AppliedBy); err != nil {
			return nil, fmt.Errorf("scanning applied migration: %w", err)
		}
		applied = append(applied, am)
	}
	return applied, rows.Err()
}

func (m *Migrator) applyOne(ctx context.Context, mig Migration) error {
	tx, err := m.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, mig.SQL); err != nil {
		return fmt.Errorf("executing: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO schema_migrations (version, name, checksum, applied_by)
		VALUES ($1, $2, $3, $4)`, mig.Version, mig.Name, mig.Checksum, m.appliedBy)
	if err != nil {
		return fmt.Errorf("recording: %w", err)
	}
	return tx.Commit(ctx)
}
