package migration

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/BaSui01/flowrunner/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatabaseType(t *testing.T) {
	tests := []struct {
		input    string
		expected DatabaseType
		wantErr  bool
	}{
		{"postgres", DatabaseTypePostgres, false},
		{"postgresql", DatabaseTypePostgres, false},
		{"pg", DatabaseTypePostgres, false},
		{" POSTGRES ", DatabaseTypePostgres, false},
		{"mysql", DatabaseTypeMySQL, false},
		{"mariadb", DatabaseTypeMySQL, false},
		{"sqlite", "", true},
		{"oracle", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDatabaseType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseDatabaseType_SQLitePointsToAutoMigrate(t *testing.T) {
	_, err := ParseDatabaseType("sqlite3")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedDatabase))
	assert.Contains(t, err.Error(), "auto_migrate")
}

func TestBuildDatabaseURL(t *testing.T) {
	tests := []struct {
		name     string
		dbType   DatabaseType
		sslMode  string
		password string
		expected string
	}{
		{"postgres", DatabaseTypePostgres, "disable", "pass", "postgres://user:pass@db:5432/runs?sslmode=disable"},
		{"postgres default ssl", DatabaseTypePostgres, "", "pass", "postgres://user:pass@db:5432/runs?sslmode=require"},
		{"postgres escapes password", DatabaseTypePostgres, "disable", "p@ss/word", "postgres://user:p%40ss%2Fword@db:5432/runs?sslmode=disable"},
		{"mysql", DatabaseTypeMySQL, "", "pass", "user:pass@tcp(db:5432)/runs?parseTime=true&multiStatements=true"},
		{"unknown", DatabaseType("oracle"), "", "pass", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildDatabaseURL(tt.dbType, "db", 5432, "runs", "user", tt.password, tt.sslMode))
		})
	}
}

func TestNewMigrator_InvalidConfig(t *testing.T) {
	_, err := NewMigrator(nil)
	assert.ErrorContains(t, err, "config is required")

	_, err = NewMigrator(&Config{DatabaseType: DatabaseTypePostgres})
	assert.ErrorContains(t, err, "database URL is required")

	_, err = NewMigrator(&Config{DatabaseType: "sqlite", DatabaseURL: "file:x.db"})
	assert.True(t, errors.Is(err, ErrUnsupportedDatabase))
}

func TestNewMigratorFromDatabaseConfig_RejectsSQLite(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.Driver = "sqlite"

	_, err := NewMigratorFromConfig(cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedDatabase))

	_, err = NewMigratorFromConfig(nil)
	assert.Error(t, err)
}

func TestEmbeddedMigrations_ArePaired(t *testing.T) {
	for _, dbType := range []DatabaseType{DatabaseTypePostgres, DatabaseTypeMySQL} {
		t.Run(string(dbType), func(t *testing.T) {
			fsys, dir, err := migrationSource(dbType)
			require.NoError(t, err)

			entries, err := fs.ReadDir(fsys, dir)
			require.NoError(t, err)

			ups := map[string]bool{}
			downs := map[string]bool{}
			for _, e := range entries {
				name := e.Name()
				switch {
				case strings.HasSuffix(name, ".up.sql"):
					ups[strings.TrimSuffix(name, ".up.sql")] = true
				case strings.HasSuffix(name, ".down.sql"):
					downs[strings.TrimSuffix(name, ".down.sql")] = true
				}
			}
			assert.Equal(t, ups, downs)

			body, err := fs.ReadFile(fsys, dir+"/000001_create_workflow_runs.up.sql")
			require.NoError(t, err)
			assert.Contains(t, string(body), "workflow_runs")
		})
	}
}

func TestAvailableMigrations_SortedAndNamed(t *testing.T) {
	files, err := availableMigrations(DatabaseTypePostgres)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, uint(1), files[0].version)
	assert.Equal(t, "create_workflow_runs", files[0].name)
	assert.Equal(t, uint(2), files[1].version)
	assert.Equal(t, "create_workflow_node_runs", files[1].name)

	_, err = availableMigrations("sqlite")
	assert.Error(t, err)
}

func TestBuildStatusAndInfo(t *testing.T) {
	files := []migrationFile{{1, "a"}, {2, "b"}, {3, "c"}}

	statuses := buildStatus(files, 2, true)
	require.Len(t, statuses, 3)
	assert.True(t, statuses[0].Applied)
	assert.False(t, statuses[0].Dirty)
	assert.True(t, statuses[1].Applied)
	assert.True(t, statuses[1].Dirty)
	assert.False(t, statuses[2].Applied)

	info := buildInfo(files, 2, true)
	assert.Equal(t, uint(2), info.CurrentVersion)
	assert.Equal(t, 3, info.TotalMigrations)
	assert.Equal(t, 2, info.AppliedMigrations)
	assert.Equal(t, 1, info.PendingMigrations)
}

// =============================================================================
// CLI
// =============================================================================

type fakeMigrator struct {
	version uint
	dirty   bool
	files   []migrationFile
	calls   []string
	err     error
}

func (f *fakeMigrator) record(call string) error {
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeMigrator) Up(context.Context) error {
	f.version = uint(len(f.files))
	return f.record("up")
}

func (f *fakeMigrator) Down(context.Context) error {
	if f.version > 0 {
		f.version--
	}
	return f.record("down")
}

func (f *fakeMigrator) DownAll(context.Context) error {
	f.version = 0
	return f.record("down-all")
}

func (f *fakeMigrator) Steps(_ context.Context, n int) error {
	f.version = uint(int(f.version) + n)
	return f.record("steps")
}

func (f *fakeMigrator) Goto(_ context.Context, v uint) error {
	f.version = v
	return f.record("goto")
}

func (f *fakeMigrator) Force(_ context.Context, v int) error {
	f.version = uint(v)
	return f.record("force")
}

func (f *fakeMigrator) Version(context.Context) (uint, bool, error) {
	return f.version, f.dirty, nil
}

func (f *fakeMigrator) Status(context.Context) ([]MigrationStatus, error) {
	return buildStatus(f.files, f.version, f.dirty), nil
}

func (f *fakeMigrator) Info(context.Context) (*MigrationInfo, error) {
	return buildInfo(f.files, f.version, f.dirty), nil
}

func (f *fakeMigrator) Close() error { return nil }

func newFakeCLI() (*fakeMigrator, *CLI, *bytes.Buffer) {
	fm := &fakeMigrator{files: []migrationFile{{1, "create_workflow_runs"}, {2, "create_workflow_node_runs"}}}
	var buf bytes.Buffer
	cli := NewCLI(fm)
	cli.SetOutput(&buf)
	return fm, cli, &buf
}

func TestCLI_RunDispatch(t *testing.T) {
	ctx := context.Background()
	fm, cli, buf := newFakeCLI()

	require.NoError(t, cli.Run(ctx, "version", nil))
	assert.Contains(t, buf.String(), "No migrations applied yet")

	require.NoError(t, cli.Run(ctx, "up", nil))
	assert.Contains(t, buf.String(), "Current version: 2")

	require.NoError(t, cli.Run(ctx, "down", nil))
	require.NoError(t, cli.Run(ctx, "goto", []string{"2"}))
	require.NoError(t, cli.Run(ctx, "steps", []string{"-1"}))
	require.NoError(t, cli.Run(ctx, "force", []string{"2"}))
	require.NoError(t, cli.Run(ctx, "down-all", nil))
	assert.Equal(t, []string{"up", "down", "goto", "steps", "force", "down-all"}, fm.calls)
	assert.Equal(t, uint(0), fm.version)
}

func TestCLI_RunArgumentErrors(t *testing.T) {
	ctx := context.Background()
	_, cli, _ := newFakeCLI()

	assert.ErrorContains(t, cli.Run(ctx, "goto", nil), "exactly one numeric argument")
	assert.ErrorContains(t, cli.Run(ctx, "steps", []string{"x"}), "invalid number")
	assert.ErrorContains(t, cli.Run(ctx, "steps", []string{"0"}), "must not be zero")
	assert.ErrorContains(t, cli.Run(ctx, "goto", []string{"-3"}), "must not be negative")
	assert.ErrorContains(t, cli.Run(ctx, "sideways", nil), "unknown migrate command")
}

func TestCLI_StatusTable(t *testing.T) {
	fm, cli, buf := newFakeCLI()
	fm.version = 1

	require.NoError(t, cli.RunStatus(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "000001")
	assert.Contains(t, out, "create_workflow_node_runs")
	assert.Contains(t, out, "Applied")
	assert.Contains(t, out, "Pending")
	assert.Contains(t, out, "Total: 2, Applied: 1, Pending: 1")
}

func TestCLI_VersionDirty(t *testing.T) {
	fm, cli, buf := newFakeCLI()
	fm.version, fm.dirty = 2, true

	require.NoError(t, cli.RunVersion(context.Background()))
	assert.Equal(t, "Current version: 2 (dirty)\n", buf.String())
}

func TestCLI_PropagatesMigratorErrors(t *testing.T) {
	fm, cli, _ := newFakeCLI()
	fm.err = errors.New("lock timeout")

	err := cli.RunUp(context.Background())
	assert.ErrorContains(t, err, "lock timeout")
}
