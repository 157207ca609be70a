package domain

// JobRecord is the jobs-table header row. The full state of a job lives in
// versioned snapshots; the header carries what lists and lookups need.
type JobRecord struct {
	ID         string `json:"id"`
	Developer  string `json:"developer"`
	Contractor string `json:"contractor"`
	Currency   string `json:"currency"`
	Version    int64  `json:"version"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	UpdatedAt  string `json:"updated_at" format:"date-time"`
}

// Snapshot is one accepted version of a job, with the command that
// produced it.
type Snapshot struct {
	JobID     string `json:"job_id"`
	Version   int64  `json:"version"`
	Command   string `json:"command"`
	State     Job    `json:"state"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Event is a row of the append-only event log.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	JobID      string `json:"job_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload,omitempty"`
}

// APIKey is a hashed credential bound to an actor.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
