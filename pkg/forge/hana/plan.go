package hana

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okrause/scenarioforge/pkg/forge/proposal"
)

// Column type used when the model omits one.
const defaultColumnType = "NVARCHAR(255)"

// TablePlan is the full statement set for one table: a best-effort drop,
// the CREATE TABLE, and parameterized inserts for any sample rows.
type TablePlan struct {
	LogicalName  string
	PhysicalName string
	Drop         string
	Create       string
	InsertSQL    string
	InsertRows   [][]any
}

// SchemaPlan is everything a provisioning call will execute, in order.
// Planning is pure so it can be inspected and tested without a database.
type SchemaPlan struct {
	SchemaName   string
	CreateSchema string
	Tables       []TablePlan
}

// PlanSchema builds the statement plan for a schema and its tables. Table
// and column names are sanitized here; the caller passes an already
// sanitized schema name.
func PlanSchema(schemaName string, tables []proposal.TableDefinition) SchemaPlan {
	plan := SchemaPlan{
		SchemaName:   schemaName,
		CreateSchema: "CREATE SCHEMA IF NOT EXISTS " + QuoteIdentifier(schemaName),
	}
	for _, table := range tables {
		plan.Tables = append(plan.Tables, planTable(schemaName, table))
	}
	return plan
}

func planTable(schemaName string, table proposal.TableDefinition) TablePlan {
	tableName := SanitizeIdentifier(table.Name, "TABLE")
	qualified := QuoteIdentifier(schemaName) + "." + QuoteIdentifier(tableName)

	// Position-based fallback so a nameless column gets the same physical
	// name in the CREATE fragment and the insert column list.
	names := make([]string, len(table.Columns))
	for i, column := range table.Columns {
		names[i] = SanitizeIdentifier(column.Name, fmt.Sprintf("COL_%d", i))
	}

	var fragments []string
	var primaryKeys []string
	for i, column := range table.Columns {
		name := names[i]
		colType := strings.ToUpper(strings.TrimSpace(column.Type))
		if colType == "" {
			colType = defaultColumnType
		}

		fragment := QuoteIdentifier(name) + " " + colType
		if !column.IsNullable() {
			fragment += " NOT NULL"
		}
		fragments = append(fragments, fragment)

		if column.IsPrimaryKey {
			primaryKeys = append(primaryKeys, QuoteIdentifier(name))
		}
	}
	if len(primaryKeys) > 0 {
		fragments = append(fragments, "PRIMARY KEY ("+strings.Join(primaryKeys, ", ")+")")
	}

	plan := TablePlan{
		LogicalName:  table.Name,
		PhysicalName: tableName,
		Drop:         "DROP TABLE " + qualified,
		Create:       "CREATE TABLE " + qualified + " (" + strings.Join(fragments, ", ") + ")",
	}

	if len(table.Rows) == 0 {
		return plan
	}

	type columnKey struct {
		original  string
		sanitized string
	}
	keys := make([]columnKey, 0, len(table.Columns))
	quoted := make([]string, 0, len(table.Columns))
	placeholders := make([]string, 0, len(table.Columns))
	for i, column := range table.Columns {
		keys = append(keys, columnKey{original: column.Name, sanitized: names[i]})
		quoted = append(quoted, QuoteIdentifier(names[i]))
		placeholders = append(placeholders, "?")
	}
	plan.InsertSQL = "INSERT INTO " + qualified +
		" (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")"

	for _, row := range table.Rows {
		values := make([]any, 0, len(keys))
		for _, key := range keys {
			values = append(values, SerializeValue(resolveRowValue(row, key.original, key.sanitized)))
		}
		plan.InsertRows = append(plan.InsertRows, values)
	}
	return plan
}

// resolveRowValue probes a sample row for a column's value. Rows come back
// from the model with inconsistent key casing, so candidates are tried in a
// fixed precedence: the original name, its uppercase and lowercase forms,
// a space-to-underscore form, and finally the sanitized identifier.
func resolveRowValue(row map[string]any, original, sanitized string) any {
	candidates := []string{
		original,
		strings.ToUpper(original),
		strings.ToLower(original),
		strings.ReplaceAll(original, " ", "_"),
		sanitized,
	}
	for _, key := range candidates {
		if value, ok := row[key]; ok {
			return value
		}
	}
	return nil
}

// SerializeValue prepares a row value for binding: booleans become 1/0,
// primitives and nil pass through, anything structured is JSON-stringified.
func SerializeValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case bool:
		if v {
			return 1
		}
		return 0
	case string, int, int32, int64, float32, float64:
		return v
	case json.Number:
		return v.String()
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
