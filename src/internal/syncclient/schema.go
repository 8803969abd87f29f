// FILE: synctrack/src/internal/syncclient/schema.go
package syncclient

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sort"
)

// ClassSchema describes one server-defined object class
type ClassSchema struct {
	Name string `json:"name"`

	// Embedded classes only exist inside other objects and cannot be subscribed to
	Embedded bool `json:"embedded"`

	// Asymmetric classes are write-only from the client; written objects are never stored locally
	Asymmetric bool `json:"asymmetric"`
}

func sortSchema(classes []ClassSchema) []ClassSchema {
	out := make([]ClassSchema, len(classes))
	copy(out, classes)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// fetchSchema asks the backend for the app's class list
func (a *App) fetchSchema(ctx context.Context, token string) ([]ClassSchema, error) {
	var classes []ClassSchema
	if err := a.transport.DoJSON(ctx, http.MethodGet, a.syncPath("schema"), token, nil, &classes); err != nil {
		return nil, err
	}
	for _, c := range classes {
		if c.Name == "" {
			return nil, fmt.Errorf("backend returned a class without a name")
		}
	}
	return classes, nil
}

func loadCachedSchema(ctx context.Context, db *sql.DB) ([]ClassSchema, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, embedded, asymmetric FROM classes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []ClassSchema
	for rows.Next() {
		var c ClassSchema
		if err := rows.Scan(&c.Name, &c.Embedded, &c.Asymmetric); err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

func saveSchema(ctx context.Context, db *sql.DB, classes []ClassSchema) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM classes`); err != nil {
		return err
	}
	for _, c := range classes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO classes (name, embedded, asymmetric) VALUES (?, ?, ?)`,
			c.Name, c.Embedded, c.Asymmetric); err != nil {
			return err
		}
	}
	return tx.Commit()
}
