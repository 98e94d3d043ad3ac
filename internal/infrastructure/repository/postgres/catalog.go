package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ardmere/crmparse/internal/core/domain"
)

// Catalog serves the agent's warehouse discovery tools. Query enforces the
// read-only contract: a single SELECT statement, with a row limit appended
// when the statement carries none.
type Catalog struct {
	db *sql.DB
}

func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{db: db}
}

func (c *Catalog) Tables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = 'public'
ORDER BY table_name
`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return out, nil
}

func (c *Catalog) TableSchema(ctx context.Context, table string) (*domain.TableSchema, error) {
	rows, err := c.db.QueryContext(ctx, `
SELECT column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = 'public' AND table_name = $1
ORDER BY ordinal_position
`, table)
	if err != nil {
		return nil, fmt.Errorf("describe table: %w", err)
	}
	defer rows.Close()

	schema := &domain.TableSchema{Name: table, Columns: make([]domain.TableColumn, 0)}
	for rows.Next() {
		var column domain.TableColumn
		var nullable string
		if err := rows.Scan(&column.Name, &column.Type, &nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		column.Nullable = strings.EqualFold(nullable, "YES")
		schema.Columns = append(schema.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	if len(schema.Columns) == 0 {
		return nil, fmt.Errorf("table not found: %s", table)
	}
	return schema, nil
}

func (c *Catalog) Query(ctx context.Context, query string, limit int) ([]map[string]any, error) {
	statement := strings.TrimSpace(query)
	statement = strings.TrimSpace(strings.TrimSuffix(statement, ";"))
	if !strings.HasPrefix(strings.ToLower(statement), "select") {
		return nil, fmt.Errorf("only SELECT queries are allowed")
	}
	if limit > 0 && !strings.Contains(strings.ToLower(statement), "limit") {
		statement = fmt.Sprintf("%s LIMIT %d", statement, limit)
	}

	rows, err := c.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan query row: %w", err)
		}
		rowMap := make(map[string]any, len(columns))
		for i, column := range columns {
			if b, ok := values[i].([]byte); ok {
				rowMap[column] = string(b)
				continue
			}
			rowMap[column] = values[i]
		}
		out = append(out, rowMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query rows: %w", err)
	}
	return out, nil
}
