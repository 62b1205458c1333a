package store

import (
	"context"
	"fmt"
	"time"
)

// rangePredicate appends a [from, to] creation-time bound; zero times are
// unbounded.
func rangePredicate(query string, args []interface{}, from, to time.Time) (string, []interface{}) {
	if !from.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, from.Unix())
	}
	if !to.IsZero() {
		query += " AND created_at <= ?"
		args = append(args, to.Unix())
	}
	return query, args
}

// InsertConversation persists a conversation row, ignoring duplicates by id
func (s *Store) InsertConversation(ctx context.Context, c *Conversation) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversations (id, org_id, user_id, agent_id, title, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.OrgID, c.UserID, c.AgentID, c.Title, c.CreatedAt.Unix())
	return err
}

// ListConversationsByOrg returns an organization's conversations in range
func (s *Store) ListConversationsByOrg(ctx context.Context, orgID string, from, to time.Time) ([]Conversation, error) {
	query := "SELECT id, org_id, user_id, agent_id, title, created_at FROM conversations WHERE org_id = ?"
	args := []interface{}{orgID}
	query, args = rangePredicate(query, args, from, to)
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.OrgID, &c.UserID, &c.AgentID, &c.Title, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertDecision persists a decision row, ignoring duplicates by id
func (s *Store) InsertDecision(ctx context.Context, d *Decision) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO decisions (id, org_id, conversation_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.OrgID, d.ConversationID, d.Content, d.CreatedAt.Unix())
	return err
}

// ListDecisionsByOrg returns an organization's decisions in range
func (s *Store) ListDecisionsByOrg(ctx context.Context, orgID string, from, to time.Time) ([]Decision, error) {
	query := "SELECT id, org_id, conversation_id, content, created_at FROM decisions WHERE org_id = ?"
	args := []interface{}{orgID}
	query, args = rangePredicate(query, args, from, to)
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var createdAt int64
		if err := rows.Scan(&d.ID, &d.OrgID, &d.ConversationID, &d.Content, &createdAt); err != nil {
			return nil, err
		}
		d.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// InsertUsageEntry persists a usage ledger row, ignoring duplicates by id
func (s *Store) InsertUsageEntry(ctx context.Context, u *UsageEntry) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO usage_ledger (id, org_id, kind, amount, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.OrgID, u.Kind, u.Amount, u.CreatedAt.Unix())
	return err
}

// ListUsageByOrg returns an organization's usage ledger rows in range
func (s *Store) ListUsageByOrg(ctx context.Context, orgID string, from, to time.Time) ([]UsageEntry, error) {
	query := "SELECT id, org_id, kind, amount, created_at FROM usage_ledger WHERE org_id = ?"
	args := []interface{}{orgID}
	query, args = rangePredicate(query, args, from, to)
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UsageEntry
	for rows.Next() {
		var u UsageEntry
		var createdAt int64
		if err := rows.Scan(&u.ID, &u.OrgID, &u.Kind, &u.Amount, &createdAt); err != nil {
			return nil, err
		}
		u.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, u)
	}
	return out, rows.Err()
}

// InsertPurchaseEntry persists a purchase ledger row, ignoring duplicates by id
func (s *Store) InsertPurchaseEntry(ctx context.Context, p *PurchaseEntry) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO purchase_ledger (id, org_id, amount_cents, description, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.OrgID, p.AmountCents, p.Description, p.CreatedAt.Unix())
	return err
}

// ListPurchasesByOrg returns an organization's purchase ledger rows in range
func (s *Store) ListPurchasesByOrg(ctx context.Context, orgID string, from, to time.Time) ([]PurchaseEntry, error) {
	query := "SELECT id, org_id, amount_cents, description, created_at FROM purchase_ledger WHERE org_id = ?"
	args := []interface{}{orgID}
	query, args = rangePredicate(query, args, from, to)
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PurchaseEntry
	for rows.Next() {
		var p PurchaseEntry
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.OrgID, &p.AmountCents, &p.Description, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertAccessLog persists an access log row, ignoring duplicates by id
func (s *Store) InsertAccessLog(ctx context.Context, a *AccessLog) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO access_logs (id, org_id, user_id, action, target_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.OrgID, a.UserID, a.Action, a.TargetID, a.CreatedAt.Unix())
	return err
}

// ListAccessLogsByOrg returns an organization's access logs in range
func (s *Store) ListAccessLogsByOrg(ctx context.Context, orgID string, from, to time.Time) ([]AccessLog, error) {
	query := "SELECT id, org_id, user_id, action, target_id, created_at FROM access_logs WHERE org_id = ?"
	args := []interface{}{orgID}
	query, args = rangePredicate(query, args, from, to)
	query += " ORDER BY created_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AccessLog
	for rows.Next() {
		var a AccessLog
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.OrgID, &a.UserID, &a.Action, &a.TargetID, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteLedgersInRange hard-deletes usage and purchase ledger rows for the
// organization within [from, to]. Used by archive moves; memory items are
// never hard-deleted this way.
func (s *Store) DeleteLedgersInRange(ctx context.Context, orgID string, from, to time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"usage_ledger", "purchase_ledger", "access_logs"} {
		query := fmt.Sprintf("DELETE FROM %s WHERE org_id = ?", table)
		args := []interface{}{orgID}
		query, args = rangePredicate(query, args, from, to)

		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}
