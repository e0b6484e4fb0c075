// Package db opens the gorm connection for the configured dialect and owns
// schema migration and fixture seeding.
package db

import (
	"fmt"
	"os"

	"github.com/go-sql-driver/mysql"
	"github.com/zulandar/hideout/internal/config"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN for the configured server and database. An empty
// database selects no schema, which is what admin connections need.
func DSN(cfg config.DatabaseConfig, password, database string) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = database
	mc.ParseTime = true
	return mc.FormatDSN()
}

// Open connects to the database described by cfg.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "mysql":
		dsn := DSN(cfg, config.Secret(cfg.PasswordEnv), cfg.Name)
		db, err := gorm.Open(gormmysql.Open(dsn), gormConfig())
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// OpenSQLite opens (creating if needed) a SQLite database file. Pass
// ":memory:" for a throwaway database.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	return db, nil
}

// ConnectAdmin opens a connection to the MySQL server without selecting
// a database, used for CREATE/DROP DATABASE.
func ConnectAdmin(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := DSN(cfg, config.Secret(cfg.PasswordEnv), "")
	db, err := gorm.Open(gormmysql.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return db, nil
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}

// DropDatabase drops the named database if it exists.
func DropDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: drop database %s: %w", name, err)
	}
	return nil
}

// Prepare makes sure the configured database exists. For MySQL it issues
// CREATE DATABASE on an admin connection; SQLite files are created on open.
func Prepare(cfg config.DatabaseConfig) error {
	if cfg.Driver != "mysql" {
		return nil
	}
	adminDB, err := ConnectAdmin(cfg)
	if err != nil {
		return err
	}
	return CreateDatabase(adminDB, cfg.Name)
}

// Drop removes the configured database: DROP DATABASE for MySQL, file
// removal for SQLite. A missing SQLite file is not an error.
func Drop(cfg config.DatabaseConfig) error {
	switch cfg.Driver {
	case "mysql":
		adminDB, err := ConnectAdmin(cfg)
		if err != nil {
			return err
		}
		return DropDatabase(adminDB, cfg.Name)
	case "sqlite":
		if cfg.Path == ":memory:" {
			return nil
		}
		if err := os.Remove(cfg.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("db: remove %s: %w", cfg.Path, err)
		}
		return nil
	default:
		return fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// Describe returns a human-readable location for log lines.
func Describe(cfg config.DatabaseConfig) string {
	if cfg.Driver == "mysql" {
		return fmt.Sprintf("mysql %s:%d/%s", cfg.Host, cfg.Port, cfg.Name)
	}
	return "sqlite " + cfg.Path
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
}
