// Package proposal turns a business scenario into a validated agent
// package: a prompt template is filled in, sent to the LLM, and the JSON
// reply is parsed into table definitions ready for provisioning.
package proposal

import "fmt"

// TableColumn is one column of a proposed table. Type names are vendor SQL
// types as written by the model; the provisioner defaults and quotes them.
type TableColumn struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Description  string `json:"description,omitempty"`
	Nullable     *bool  `json:"nullable,omitempty"`
	IsPrimaryKey bool   `json:"isPrimaryKey,omitempty"`
}

// IsNullable reports whether the column accepts NULL. Unset means nullable.
func (c TableColumn) IsNullable() bool {
	return c.Nullable == nil || *c.Nullable
}

// TableDefinition is one proposed table with optional sample rows. Row
// maps may use the original free-form column names rather than sanitized
// identifiers.
type TableDefinition struct {
	Name    string           `json:"name"`
	Desc    string           `json:"desc"`
	Columns []TableColumn    `json:"columns"`
	Rows    []map[string]any `json:"rows,omitempty"`
}

// AgentPackage is the parsed model output plus the scenario inputs it was
// generated from. Tables must be non-empty, the rest is trusted as-is until
// provisioning.
type AgentPackage struct {
	AgentName        string            `json:"agentName"`
	AgentPrompt      string            `json:"agentPrompt"`
	SchemaName       string            `json:"schemaName"`
	BusinessCaseCard string            `json:"businessCaseCard"`
	Customer         string            `json:"customer,omitempty"`
	UseCase          string            `json:"useCase,omitempty"`
	Tables           []TableDefinition `json:"tables"`
}

// ValidationError reports model output that parsed but does not satisfy the
// package contract.
type ValidationError struct {
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid agent package: %s", e.Detail)
}
