package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"jobledger/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertJob(ctx context.Context, tx *sql.Tx, rec domain.JobRecord) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO jobs(id,developer,contractor,currency,version,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		rec.ID, rec.Developer, rec.Contractor, rec.Currency, rec.Version, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (r Repo) UpdateJobVersion(ctx context.Context, tx *sql.Tx, jobID string, version int64, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE jobs SET version=?, updated_at=? WHERE id=?`, version, updatedAt, jobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetJobRecord(ctx context.Context, id string) (domain.JobRecord, error) {
	var rec domain.JobRecord
	err := r.DB.QueryRowContext(ctx, `SELECT id,developer,contractor,currency,version,created_at,updated_at FROM jobs WHERE id=?`, id).
		Scan(&rec.ID, &rec.Developer, &rec.Contractor, &rec.Currency, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return rec, ErrNotFound
	}
	return rec, err
}

func (r Repo) ListJobs(ctx context.Context) ([]domain.JobRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,developer,contractor,currency,version,created_at,updated_at FROM jobs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.JobRecord
	for rows.Next() {
		var rec domain.JobRecord
		if err := rows.Scan(&rec.ID, &rec.Developer, &rec.Contractor, &rec.Currency, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (r Repo) InsertSnapshot(ctx context.Context, tx *sql.Tx, snap domain.Snapshot) error {
	payload, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("marshal job state: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO job_snapshots(job_id,version,command,state_json,created_at) VALUES (?,?,?,?,?)`,
		snap.JobID, snap.Version, snap.Command, string(payload), snap.CreatedAt)
	return err
}

func scanSnapshot(scan func(...any) error) (domain.Snapshot, error) {
	var snap domain.Snapshot
	var payload string
	err := scan(&snap.JobID, &snap.Version, &snap.Command, &payload, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return snap, ErrNotFound
	}
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal([]byte(payload), &snap.State); err != nil {
		return snap, fmt.Errorf("unmarshal job state: %w", err)
	}
	return snap, nil
}

// LatestSnapshot returns the newest accepted version of a job.
func (r Repo) LatestSnapshot(ctx context.Context, jobID string) (domain.Snapshot, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT job_id,version,command,state_json,created_at FROM job_snapshots WHERE job_id=? ORDER BY version DESC LIMIT 1`, jobID)
	return scanSnapshot(row.Scan)
}

func (r Repo) SnapshotAt(ctx context.Context, jobID string, version int64) (domain.Snapshot, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT job_id,version,command,state_json,created_at FROM job_snapshots WHERE job_id=? AND version=?`, jobID, version)
	return scanSnapshot(row.Scan)
}

// History returns every accepted version of a job, oldest first.
func (r Repo) History(ctx context.Context, jobID string) ([]domain.Snapshot, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT job_id,version,command,state_json,created_at FROM job_snapshots WHERE job_id=? ORDER BY version ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, ErrNotFound
	}
	return res, nil
}

type EventFilters struct {
	JobID      string
	Type       string
	EntityKind string
	EntityID   string
}

func (r Repo) LatestEvents(ctx context.Context, limit int, f EventFilters) ([]domain.Event, error) {
	return r.LatestEventsFrom(ctx, limit, 0, f)
}

func (r Repo) LatestEventsFrom(ctx context.Context, limit int, cursor int64, f EventFilters) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.JobID != "" {
		clauses = append(clauses, "job_id=?")
		args = append(args, f.JobID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,job_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var jobID, entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &jobID, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if jobID.Valid {
			e.JobID = jobID.String
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, limit int, cursor int64, jobID string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	clauses := []string{"1=1"}
	var args []any
	if jobID != "" {
		clauses = append(clauses, "job_id=?")
		args = append(args, jobID)
	}
	if cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, cursor)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,job_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id ASC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var jID, entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &jID, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if jID.Valid {
			e.JobID = jID.String
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
