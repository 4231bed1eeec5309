package hana

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	_ "github.com/SAP/go-hdb/driver" // SAP HANA driver

	"github.com/okrause/scenarioforge/pkg/forge/proposal"
)

// ConnConfig holds SAP HANA connection details.
type ConnConfig struct {
	Host     string
	Port     int
	User     string
	Password string
}

// DSN builds the go-hdb connection string.
func (c ConnConfig) DSN() string {
	return fmt.Sprintf("hdb://%s:%s@%s:%d",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
	)
}

// ProvisioningError reports a failed DDL or DML statement. The whole
// transaction is rolled back, nothing partial is committed.
type ProvisioningError struct {
	Schema string
	Table  string
	Stmt   string
	Err    error
}

func (e *ProvisioningError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("provisioning schema %s: %s: %v", e.Schema, e.Stmt, e.Err)
	}
	return fmt.Sprintf("provisioning %s.%s: %s: %v", e.Schema, e.Table, e.Stmt, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// Provisioner executes schema plans against a HANA instance.
type Provisioner struct {
	db     *sql.DB
	logger *slog.Logger
}

// Connect opens and pings a HANA connection.
func Connect(ctx context.Context, config ConnConfig, logger *slog.Logger) (*Provisioner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "hana")

	db, err := sql.Open("hdb", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening HANA connection: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging HANA at %s:%d: %w", config.Host, config.Port, err)
	}

	logger.Info("connected", "host", config.Host, "port", config.Port, "user", config.User)
	return &Provisioner{db: db, logger: logger}, nil
}

// NewProvisioner wraps an existing connection, used by tests.
func NewProvisioner(db *sql.DB, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{db: db, logger: logger.With("component", "hana")}
}

// Close releases the underlying connection pool.
func (p *Provisioner) Close() error { return p.db.Close() }

// Provision creates the schema and all planned tables in one transaction.
// Drops are best-effort: a table that never existed is logged and skipped.
// Any other statement failure rolls back the whole call.
func (p *Provisioner) Provision(ctx context.Context, plan SchemaPlan) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, plan.CreateSchema); err != nil {
		return &ProvisioningError{Schema: plan.SchemaName, Stmt: "CREATE SCHEMA", Err: err}
	}

	for _, table := range plan.Tables {
		p.logger.Info("creating table", "schema", plan.SchemaName, "table", table.PhysicalName)

		if _, err := tx.ExecContext(ctx, table.Drop); err != nil {
			if isTableNotFound(err) {
				p.logger.Debug("table did not exist prior to creation",
					"schema", plan.SchemaName, "table", table.PhysicalName)
			} else {
				p.logger.Warn("dropping existing table failed",
					"schema", plan.SchemaName, "table", table.PhysicalName, "error", err)
			}
		}

		if _, err := tx.ExecContext(ctx, table.Create); err != nil {
			return &ProvisioningError{Schema: plan.SchemaName, Table: table.PhysicalName, Stmt: "CREATE TABLE", Err: err}
		}

		for _, values := range table.InsertRows {
			if _, err := tx.ExecContext(ctx, table.InsertSQL, values...); err != nil {
				return &ProvisioningError{Schema: plan.SchemaName, Table: table.PhysicalName, Stmt: "INSERT", Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing provisioning transaction: %w", err)
	}

	p.logger.Info("schema provisioned", "schema", plan.SchemaName, "tables", len(plan.Tables))
	return nil
}

// ProvisionTables is the high-level entry point: plan, then execute.
func (p *Provisioner) ProvisionTables(ctx context.Context, schemaName string, tables []proposal.TableDefinition) error {
	return p.Provision(ctx, PlanSchema(schemaName, tables))
}

// isTableNotFound matches the HANA error for dropping a nonexistent table
// (SQL error 259, "invalid table name").
func isTableNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid table name") || strings.Contains(msg, "259")
}
