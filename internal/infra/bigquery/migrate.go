package bigquery

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-agent/internal/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// Migration represents a single migration file.
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied.
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Migrations returns the embedded snapshot-table migrations with placeholders
// filled in, ordered by version.
func Migrations(projectID, datasetID string) ([]Migration, error) {
	return readMigrations(migrationFiles, "migrations", projectID, datasetID)
}

func readMigrations(fsys fs.FS, dir, projectID, datasetID string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := migrationPattern.FindStringSubmatch(e.Name())
		if matches == nil {
			continue
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(fsys, dir+"/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", e.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", projectID)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", datasetID)

		// The checksum covers the file before placeholders are filled, so the
		// same migration matches across projects.
		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: e.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// Migrator applies migrations and records them in schema_migrations.
type Migrator struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	appliedBy string
}

// NewMigrator creates a migrator with its own client.
func NewMigrator(ctx context.Context, projectID, datasetID, appliedBy string) (*Migrator, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewMigrator: creating client: %w", err)
	}
	return &Migrator{client: client, projectID: projectID, datasetID: datasetID, appliedBy: appliedBy}, nil
}

// Close closes the BigQuery client connection.
func (m *Migrator) Close() error {
	return m.client.Close()
}

// Apply runs every migration not yet recorded and returns how many ran.
func (m *Migrator) Apply(ctx context.Context, migrations []Migration) (int, error) {
	log := logger.FromContext(ctx)

	if err := m.run(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.schema_migrations`"+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, m.projectID, m.datasetID), nil); err != nil {
		return 0, fmt.Errorf("Apply: ensuring schema_migrations: %w", err)
	}

	applied, err := m.Applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("Apply: %w", err)
	}
	done := make(map[int]bool, len(applied))
	for _, a := range applied {
		done[a.Version] = true
	}

	count := 0
	for _, mig := range migrations {
		if done[mig.Version] {
			log.Debug().Int("version", mig.Version).Str("name", mig.Name).Msg("migration already applied")
			continue
		}
		log.Info().Int("version", mig.Version).Str("name", mig.Name).Msg("applying migration")

		if err := m.run(ctx, mig.SQL, nil); err != nil {
			return count, fmt.Errorf("Apply: %04d_%s: %w", mig.Version, mig.Name, err)
		}
		if err := m.run(ctx, fmt.Sprintf(`
			INSERT INTO `+"`%s.%s.schema_migrations`"+`
			(version, name, applied_at, checksum, applied_by)
			VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
		`, m.projectID, m.datasetID), []bigquery.QueryParameter{
			{Name: "version", Value: mig.Version},
			{Name: "name", Value: mig.Name},
			{Name: "checksum", Value: mig.Checksum},
			{Name: "applied_by", Value: m.appliedBy},
		}); err != nil {
			return count, fmt.Errorf("Apply: recording %04d_%s: %w", mig.Version, mig.Name, err)
		}
		count++
	}
	return count, nil
}

// Applied lists the recorded migrations ordered by version.
func (m *Migrator) Applied(ctx context.Context) ([]AppliedMigration, error) {
	q := m.client.Query(fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM `+"`%s.%s.schema_migrations`"+`
		ORDER BY version ASC
	`, m.projectID, m.datasetID))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64               `bigquery:"version"`
			Name      string              `bigquery:"name"`
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}
		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  stringVal(row.Checksum),
			AppliedBy: stringVal(row.AppliedBy),
		})
	}
	return applied, nil
}

func (m *Migrator) run(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	q := m.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
