package hana

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okrause/scenarioforge/pkg/forge/proposal"
)

// DefaultCatalogSchema holds the audit tables unless configured otherwise.
const DefaultCatalogSchema = "AGENT_CATALOG"

// CatalogEntry is one provisioned agent recorded in the audit trail.
type CatalogEntry struct {
	AgentID          string
	AgentName        string
	UseCase          string
	Customer         string
	CreatedBy        string
	Prompt           string
	BusinessCaseCard string
	SchemaName       string
	Tables           []proposal.TableDefinition
}

// Catalog writes the housekeeping audit trail: one AGENTS row per created
// agent plus one AGENT_ASSETS row per provisioned table. It is write-only,
// nothing in the pipeline reads it back.
type Catalog struct {
	provisioner *Provisioner
	schema      string
}

// NewCatalog creates a catalog writer. An empty schema selects the default.
func NewCatalog(provisioner *Provisioner, schema string) *Catalog {
	if schema == "" {
		schema = DefaultCatalogSchema
	}
	return &Catalog{provisioner: provisioner, schema: schema}
}

func (c *Catalog) agentsTable() string {
	return QuoteIdentifier(c.schema) + "." + QuoteIdentifier("AGENTS")
}

func (c *Catalog) assetsTable() string {
	return QuoteIdentifier(c.schema) + "." + QuoteIdentifier("AGENT_ASSETS")
}

// Ensure creates the catalog schema and tables if they do not exist yet.
func (c *Catalog) Ensure(ctx context.Context) error {
	statements := []string{
		"CREATE SCHEMA IF NOT EXISTS " + QuoteIdentifier(c.schema),
		`CREATE TABLE IF NOT EXISTS ` + c.agentsTable() + ` (
			"AGENT_ID" NVARCHAR(36) PRIMARY KEY,
			"AGENT_NAME" NVARCHAR(120) NOT NULL,
			"USE_CASE" NVARCHAR(120) NOT NULL,
			"CUSTOMER" NVARCHAR(120) NOT NULL,
			"CREATED_AT" TIMESTAMP DEFAULT CURRENT_UTCTIMESTAMP NOT NULL,
			"CREATED_BY" NVARCHAR(120) NOT NULL,
			"PROMPT" NCLOB NOT NULL,
			"BUSINESS_CASE_CARD" NCLOB NOT NULL,
			"SCHEMA_NAME" NVARCHAR(128) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + c.assetsTable() + ` (
			"AGENT_ID" NVARCHAR(36) NOT NULL,
			"ASSET_NAME" NVARCHAR(120) NOT NULL,
			"SCHEMA_NAME" NVARCHAR(128) NOT NULL,
			"TABLE_NAME" NVARCHAR(128) NOT NULL,
			"METADATA" NCLOB,
			PRIMARY KEY ("AGENT_ID", "ASSET_NAME"),
			FOREIGN KEY ("AGENT_ID") REFERENCES ` + c.agentsTable() + ` ("AGENT_ID")
		)`,
	}
	for _, stmt := range statements {
		if _, err := c.provisioner.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring catalog schema %s: %w", c.schema, err)
		}
	}
	return nil
}

// assetMetadata is the JSON blob stored per provisioned table.
type assetMetadata struct {
	Description string                 `json:"description"`
	Columns     []proposal.TableColumn `json:"columns"`
}

// Record writes the audit rows for one agent in a single transaction.
func (c *Catalog) Record(ctx context.Context, entry CatalogEntry) error {
	tx, err := c.provisioner.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning catalog transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO `+c.agentsTable()+`
			("AGENT_ID", "AGENT_NAME", "USE_CASE", "CUSTOMER", "CREATED_AT", "CREATED_BY", "PROMPT", "BUSINESS_CASE_CARD", "SCHEMA_NAME")
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.AgentID,
		entry.AgentName,
		entry.UseCase,
		entry.Customer,
		time.Now().UTC(),
		entry.CreatedBy,
		entry.Prompt,
		entry.BusinessCaseCard,
		entry.SchemaName,
	)
	if err != nil {
		return fmt.Errorf("recording agent %s: %w", entry.AgentID, err)
	}

	for _, table := range entry.Tables {
		metadata, err := json.Marshal(assetMetadata{
			Description: table.Desc,
			Columns:     table.Columns,
		})
		if err != nil {
			return fmt.Errorf("marshaling metadata for table %s: %w", table.Name, err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO `+c.assetsTable()+`
				("AGENT_ID", "ASSET_NAME", "SCHEMA_NAME", "TABLE_NAME", "METADATA")
			VALUES (?, ?, ?, ?, ?)`,
			entry.AgentID,
			table.Name,
			entry.SchemaName,
			SanitizeIdentifier(table.Name, "TABLE"),
			string(metadata),
		)
		if err != nil {
			return fmt.Errorf("recording asset %s for agent %s: %w", table.Name, entry.AgentID, err)
		}
	}

	return tx.Commit()
}
