package journal

import (
	"context"
	"fmt"

	"github.com/roach88/catom/internal/atom"
	"github.com/roach88/catom/internal/canon"
	"github.com/roach88/catom/internal/change"
)

// Entry is one journal row. Values are canonical JSON text.
type Entry struct {
	Seq        int64  `json:"seq"`
	InstanceID string `json:"instance_id"`
	Type       string `json:"type"`
	Member     string `json:"member"`
	Kind       string `json:"kind"`
	Op         string `json:"op,omitempty"`
	OldValue   string `json:"old_value"`
	NewValue   string `json:"new_value"`
	Detail     string `json:"detail,omitempty"`
}

// Recorder registers inst in the journal and returns an observer that
// writes every record it receives as a row. A failed write is returned to
// the code that made the change.
func (j *Journal) Recorder(ctx context.Context, inst *atom.Instance) (change.Observer, error) {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO instances (id, type, seq)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM instances))
		ON CONFLICT(id) DO NOTHING
	`, inst.ID(), inst.Type().Name())
	if err != nil {
		return nil, fmt.Errorf("register instance: %w", err)
	}

	id := inst.ID()
	return change.ObserverFunc(func(rec change.Record) error {
		if err := j.write(ctx, id, rec); err != nil {
			j.logger.Error("journal write failed",
				"instance", id,
				"member", rec.Name,
				"error", err)
			return err
		}
		return nil
	}), nil
}

// Attach registers a recorder for inst on the named members, or on every
// member when names is empty. The returned handle can be passed to
// Instance.Unobserve.
func (j *Journal) Attach(ctx context.Context, inst *atom.Instance, names ...string) (*atom.Handle, error) {
	obs, err := j.Recorder(ctx, inst)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		for _, m := range inst.Type().Members() {
			names = append(names, m.Name())
		}
	}
	h := atom.Observer(obs)
	for _, name := range names {
		if _, err := inst.Observe(name, h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (j *Journal) write(ctx context.Context, id string, rec change.Record) error {
	var op, detail string
	if rec.Container != nil {
		op = string(rec.Container.Op)
		detail = canon.String(*rec.Container)
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO changes
		(seq, instance_id, type, member, kind, op, old_value, new_value, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		j.clock.Next(),
		id,
		rec.Type,
		rec.Name,
		rec.Kind.String(),
		op,
		canon.String(rec.OldValue),
		canon.String(rec.NewValue),
		detail,
	)
	if err != nil {
		return fmt.Errorf("write change: %w", err)
	}
	return nil
}

// Changes returns the rows of one instance in seq order.
func (j *Journal) Changes(ctx context.Context, instanceID string) ([]Entry, error) {
	return j.query(ctx, `
		SELECT seq, instance_id, type, member, kind, op, old_value, new_value, detail
		FROM changes
		WHERE instance_id = ?
		ORDER BY seq ASC
	`, instanceID)
}

// All returns every row in seq order.
func (j *Journal) All(ctx context.Context) ([]Entry, error) {
	return j.query(ctx, `
		SELECT seq, instance_id, type, member, kind, op, old_value, new_value, detail
		FROM changes
		ORDER BY seq ASC
	`)
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.InstanceID, &e.Type, &e.Member, &e.Kind, &e.Op,
			&e.OldValue, &e.NewValue, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return entries, nil
}

// Count returns the number of rows.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM changes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count changes: %w", err)
	}
	return n, nil
}

// Instances returns the registered instance IDs in registration order.
func (j *Journal) Instances(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, "SELECT id FROM instances ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
