package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/BaSui01/flowrunner/internal/migration"
)

// migrateTimeout 单次迁移命令的上限
const migrateTimeout = 5 * time.Minute

// =============================================================================
// 🗄️ migrate 命令
// =============================================================================

// runMigrate 处理 `flowrunner migrate <command> [options] [arg]`。
// steps 的负数参数需放在 -- 之后，例如 `migrate steps -- -1`。
func runMigrate(args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printMigrateUsage(stdout)
		if len(args) < 1 {
			return errUsage
		}
		return nil
	}
	command := args[0]

	fs := flag.NewFlagSet("migrate "+command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type (postgres, mysql)")
	dbURL := fs.String("db-url", "", "Database connection URL")
	if err := fs.Parse(args[1:]); err != nil {
		return errUsage
	}

	migrator, err := createMigrator(*configPath, *dbType, *dbURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer migrator.Close()

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()

	cli := migration.NewCLI(migrator)
	cli.SetOutput(stdout)
	if err := cli.Run(ctx, command, fs.Args()); err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}

// createMigrator 优先使用 --db-type 与 --db-url，否则从配置文件读取数据库配置
func createMigrator(configPath, dbType, dbURL string) (*migration.DefaultMigrator, error) {
	if dbType != "" && dbURL != "" {
		return migration.NewMigratorFromURL(dbType, dbURL)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if dbType != "" {
		cfg.Database.Driver = dbType
	}
	return migration.NewMigratorFromDatabaseConfig(cfg.Database)
}

func printMigrateUsage(w io.Writer) {
	fmt.Fprint(w, `Database Migration Commands

Usage:
  flowrunner migrate <command> [options] [arg]

Commands:
  up        Apply all pending migrations
  down      Roll back the last migration
  down-all  Roll back every migration
  steps N   Apply N migrations (negative rolls back, pass after --)
  goto V    Migrate to version V
  force V   Force set the version without running migrations
  version   Show the current version
  status    Show every migration and whether it is applied
  info      Show a summary of the migration state

Options:
  --config <path>   Path to configuration file (YAML)
  --db-type <type>  Database type: postgres or mysql (sqlite uses auto_migrate)
  --db-url <url>    Database connection URL

Examples:
  flowrunner migrate up --config /etc/flowrunner/config.yaml
  flowrunner migrate steps -- -1
  flowrunner migrate goto --db-type postgres --db-url postgres://localhost/flowrunner 1
`)
}
