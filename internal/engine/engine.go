package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"jobledger/internal/config"
	"jobledger/internal/contract"
	"jobledger/internal/domain"
	"jobledger/internal/events"
	"jobledger/internal/repo"
)

// Engine wraps the pure transition validator with persistence: accepted
// transitions become new snapshot versions, rejected ones leave no trace
// except the returned error.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// RejectionError marks a transition the contract refused. The wrapped error
// is one of the contract sentinels or a *domain.ConstructionError.
type RejectionError struct {
	Err error
}

func (e RejectionError) Error() string { return "transition rejected: " + e.Err.Error() }
func (e RejectionError) Unwrap() error { return e.Err }

// AgreeJobOptions are the parameters for recording a newly agreed job.
type AgreeJobOptions struct {
	Job     domain.Job
	Signers []string
	ActorID string
}

// AgreeJob validates the initial snapshot and persists it as version 1.
func (e Engine) AgreeJob(ctx context.Context, opts AgreeJobOptions) (domain.Snapshot, error) {
	tx := contract.Transition{
		JobOutputs: []domain.Job{opts.Job},
		Signers:    opts.Signers,
	}
	if err := contract.Validate(contract.AgreeJob{}, tx); err != nil {
		return domain.Snapshot{}, RejectionError{Err: err}
	}
	now := e.now().UTC().Format(time.RFC3339)
	snap := domain.Snapshot{
		JobID:     opts.Job.ID,
		Version:   1,
		Command:   contract.AgreeJob{}.Name(),
		State:     opts.Job,
		CreatedAt: now,
	}
	dbtx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer dbtx.Rollback()

	rec := domain.JobRecord{
		ID:         opts.Job.ID,
		Developer:  opts.Job.Developer,
		Contractor: opts.Job.Contractor,
		Currency:   opts.Job.ContractAmount.Currency,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.Repo.InsertJob(ctx, dbtx, rec); err != nil {
		return domain.Snapshot{}, fmt.Errorf("insert job: %w", err)
	}
	if err := e.Repo.InsertSnapshot(ctx, dbtx, snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	if err := e.Events.Append(ctx, dbtx, "job.agreed", snap.JobID, "job", snap.JobID, opts.ActorID, events.EventPayload{
		"developer":  rec.Developer,
		"contractor": rec.Contractor,
		"milestones": len(opts.Job.Milestones),
	}); err != nil {
		return domain.Snapshot{}, err
	}
	if err := dbtx.Commit(); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// ApplyTransitionOptions name a command against a stored job. Proposed may
// be nil, in which case the engine derives the obvious next state and
// validates that.
type ApplyTransitionOptions struct {
	JobID    string
	Command  contract.Command
	Proposed *domain.Job
	Signers  []string
	Cash     []contract.CashMovement
	ActorID  string
}

// ApplyTransition loads the latest snapshot, validates the proposal under
// the command, and on acceptance persists it as the next version.
func (e Engine) ApplyTransition(ctx context.Context, opts ApplyTransitionOptions) (domain.Snapshot, error) {
	if opts.Command == nil {
		return domain.Snapshot{}, errors.New("command is required")
	}
	current, err := e.Repo.LatestSnapshot(ctx, opts.JobID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	proposed := opts.Proposed
	if proposed == nil {
		next, err := BuildProposed(opts.Command, current.State)
		if err != nil {
			return domain.Snapshot{}, RejectionError{Err: err}
		}
		proposed = &next
	}
	tx := contract.Transition{
		JobInputs:  []domain.Job{current.State},
		JobOutputs: []domain.Job{*proposed},
		Signers:    opts.Signers,
		Cash:       opts.Cash,
	}
	if err := contract.Validate(opts.Command, tx); err != nil {
		return domain.Snapshot{}, RejectionError{Err: err}
	}
	now := e.now().UTC().Format(time.RFC3339)
	snap := domain.Snapshot{
		JobID:     opts.JobID,
		Version:   current.Version + 1,
		Command:   opts.Command.Name(),
		State:     *proposed,
		CreatedAt: now,
	}
	dbtx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer dbtx.Rollback()

	if err := e.Repo.InsertSnapshot(ctx, dbtx, snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	if err := e.Repo.UpdateJobVersion(ctx, dbtx, opts.JobID, snap.Version, now); err != nil {
		return domain.Snapshot{}, err
	}
	if err := e.Events.Append(ctx, dbtx, "job."+opts.Command.Name(), opts.JobID, "job", opts.JobID, opts.ActorID, events.EventPayload{
		"version": snap.Version,
	}); err != nil {
		return domain.Snapshot{}, err
	}
	if err := dbtx.Commit(); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// RegisterDocumentOptions are the fields of a document registration.
type RegisterDocumentOptions struct {
	ID      string
	Name    string
	Hash    string
	Owner   string
	ActorID string
}

// RegisterDocument validates and stores a document record.
func (e Engine) RegisterDocument(ctx context.Context, opts RegisterDocumentOptions) (domain.Document, error) {
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	doc := domain.Document{
		ID:        id,
		Name:      opts.Name,
		Hash:      opts.Hash,
		Owner:     opts.Owner,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := contract.ValidateDocument(contract.AddDocument{}, nil, []domain.Document{doc}); err != nil {
		return domain.Document{}, RejectionError{Err: err}
	}
	if doc.Name == "" {
		return domain.Document{}, errors.New("name is required")
	}
	if doc.Hash == "" {
		return domain.Document{}, errors.New("hash is required")
	}
	if doc.Owner == "" {
		return domain.Document{}, errors.New("owner is required")
	}
	dbtx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, err
	}
	defer dbtx.Rollback()

	if err := e.Repo.InsertDocument(ctx, dbtx, doc); err != nil {
		return domain.Document{}, fmt.Errorf("insert document: %w", err)
	}
	if err := e.Events.Append(ctx, dbtx, "document.registered", "", "document", doc.ID, opts.ActorID, events.EventPayload{
		"name":  doc.Name,
		"owner": doc.Owner,
	}); err != nil {
		return domain.Document{}, err
	}
	if err := dbtx.Commit(); err != nil {
		return domain.Document{}, err
	}
	return doc, nil
}
