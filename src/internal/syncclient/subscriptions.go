// FILE: synctrack/src/internal/syncclient/subscriptions.go
package syncclient

import (
	"context"
	"fmt"

	"synctrack/src/internal/core"
)

// Subscription selects every object of one class for download
type Subscription struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

// MutableSubscriptions is the editable subscription set passed to UpdateSubscriptions
type MutableSubscriptions struct {
	subs  []Subscription
	known map[string]ClassSchema
	err   error
}

// Add subscribes to every object of class under name. Re-adding an existing name replaces it.
func (m *MutableSubscriptions) Add(class, name string) {
	if m.err != nil {
		return
	}
	schema, ok := m.known[class]
	switch {
	case !ok:
		m.err = fmt.Errorf("unknown class %q", class)
		return
	case schema.Embedded:
		m.err = fmt.Errorf("class %q is embedded and cannot be subscribed to", class)
		return
	case schema.Asymmetric:
		m.err = fmt.Errorf("class %q is asymmetric and cannot be subscribed to", class)
		return
	}

	for i := range m.subs {
		if m.subs[i].Name == name {
			m.subs[i].Class = class
			return
		}
	}
	m.subs = append(m.subs, Subscription{Name: name, Class: class})
}

// Remove drops the subscription called name and reports whether it existed
func (m *MutableSubscriptions) Remove(name string) bool {
	for i := range m.subs {
		if m.subs[i].Name == name {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAll drops every subscription
func (m *MutableSubscriptions) RemoveAll() {
	m.subs = nil
}

// Len returns the number of subscriptions
func (m *MutableSubscriptions) Len() int {
	return len(m.subs)
}

// Subscriptions returns the store's active subscriptions in insertion order
func (s *Store) Subscriptions(ctx context.Context) ([]Subscription, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, class FROM subscriptions ORDER BY pos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.Name, &sub.Class); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// UpdateSubscriptions applies fn to the subscription set and persists the result atomically.
// Nothing changes when fn records an error.
func (s *Store) UpdateSubscriptions(ctx context.Context, fn func(*MutableSubscriptions)) error {
	current, err := s.Subscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to read subscriptions: %w", err)
	}

	m := &MutableSubscriptions{subs: current, known: make(map[string]ClassSchema, len(s.schema))}
	for _, c := range s.schema {
		m.known[c.Name] = c
	}
	fn(m)
	if m.err != nil {
		s.app.emit(core.SeverityError, "Subscription update rejected: %v", m.err)
		return m.err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin subscription update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions`); err != nil {
		return fmt.Errorf("failed to clear subscriptions: %w", err)
	}
	for i, sub := range m.subs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subscriptions (pos, name, class) VALUES (?, ?, ?)`,
			i, sub.Name, sub.Class); err != nil {
			return fmt.Errorf("failed to store subscription %q: %w", sub.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit subscriptions: %w", err)
	}

	s.app.emit(core.SeverityDetail, "Subscription set updated: %d active", len(m.subs))
	return nil
}
