package server

import (
	"jobledger/internal/contract"
	"jobledger/internal/domain"
)

// Request payloads

type AgreeJobRequest struct {
	ID                    string             `json:"id,omitempty"`
	Developer             string             `json:"developer"`
	Contractor            string             `json:"contractor"`
	ContractAmount        domain.Amount      `json:"contract_amount"`
	RetentionPercentage   float64            `json:"retention_percentage"`
	AllowPaymentOnAccount bool               `json:"allow_payment_on_account,omitempty"`
	Milestones            []domain.Milestone `json:"milestones"`
	Signers               []string           `json:"signers"`
}

type TransitionRequest struct {
	Command        string                  `json:"command" enum:"start-task,start-milestone,finish-task,finish-milestone,reject-milestone,accept-milestone,pay-milestone"`
	MilestoneIndex int                     `json:"milestone_index"`
	TaskIndex      int                     `json:"task_index,omitempty"`
	Signers        []string                `json:"signers"`
	Cash           []contract.CashMovement `json:"cash,omitempty"`
	// Proposed overrides the derived next state; omitted in the common case.
	Proposed *domain.Job `json:"proposed,omitempty"`
}

type RegisterDocumentRequest struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Hash  string `json:"hash"`
	Owner string `json:"owner,omitempty"`
}

// Response payloads

type SnapshotResponse struct {
	JobID     string     `json:"job_id"`
	Version   int64      `json:"version"`
	Command   string     `json:"command"`
	State     domain.Job `json:"state"`
	CreatedAt string     `json:"created_at" format:"date-time"`
}

func snapshotResponse(snap domain.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		JobID:     snap.JobID,
		Version:   snap.Version,
		Command:   snap.Command,
		State:     snap.State,
		CreatedAt: snap.CreatedAt,
	}
}
