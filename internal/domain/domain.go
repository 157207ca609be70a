package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle of a single unit of tracked work.
// Tasks only move forward: NOT_STARTED -> STARTED -> COMPLETED -> ACCEPTED.
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "NOT_STARTED"
	TaskStarted    TaskStatus = "STARTED"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskAccepted   TaskStatus = "ACCEPTED"
)

// MilestoneStatus is the lifecycle of a billable phase. The one backward
// edge is COMPLETED -> STARTED (rejection by the developer).
// ON_ACCOUNT_PAYMENT is part of the enumeration but has no transition rule
// in this engine; it is reachable only through collaborator flows.
type MilestoneStatus string

const (
	MilestoneNotStarted       MilestoneStatus = "NOT_STARTED"
	MilestoneStarted          MilestoneStatus = "STARTED"
	MilestoneCompleted        MilestoneStatus = "COMPLETED"
	MilestoneAccepted         MilestoneStatus = "ACCEPTED"
	MilestonePaid             MilestoneStatus = "PAID"
	MilestoneOnAccountPayment MilestoneStatus = "ON_ACCOUNT_PAYMENT"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskNotStarted, TaskStarted, TaskCompleted, TaskAccepted:
		return true
	}
	return false
}

func (s MilestoneStatus) Valid() bool {
	switch s {
	case MilestoneNotStarted, MilestoneStarted, MilestoneCompleted,
		MilestoneAccepted, MilestonePaid, MilestoneOnAccountPayment:
		return true
	}
	return false
}

// Amount is a quantity of money in a currency's minor units.
type Amount struct {
	Currency string `json:"currency"`
	Quantity int64  `json:"quantity"`
}

func (a Amount) Equal(b Amount) bool { return a == b }

// Zero returns a zero amount in the same currency.
func (a Amount) Zero() Amount { return Amount{Currency: a.Currency} }

// Task is the smallest unit of tracked work inside a milestone.
type Task struct {
	Reference         string     `json:"reference"`
	Description       string     `json:"description,omitempty"`
	Amount            Amount     `json:"amount"`
	ExpectedStartDate time.Time  `json:"expected_start_date" format:"date-time"`
	ExpectedDuration  int        `json:"expected_duration_days"`
	RequestedAmount   Amount     `json:"requested_amount"`
	DocumentsRequired []string   `json:"documents_required,omitempty"`
	Remarks           string     `json:"remarks,omitempty"`
	Status            TaskStatus `json:"status" enum:"NOT_STARTED,STARTED,COMPLETED,ACCEPTED"`
}

// ExpectedEndDate is the task start date plus its duration in days.
func (t Task) ExpectedEndDate() time.Time {
	return t.ExpectedStartDate.AddDate(0, 0, t.ExpectedDuration)
}

func (t Task) Equal(o Task) bool {
	return t.Reference == o.Reference &&
		t.Description == o.Description &&
		t.Amount == o.Amount &&
		t.ExpectedStartDate.Equal(o.ExpectedStartDate) &&
		t.ExpectedDuration == o.ExpectedDuration &&
		t.RequestedAmount == o.RequestedAmount &&
		stringsEqual(t.DocumentsRequired, o.DocumentsRequired) &&
		t.Remarks == o.Remarks &&
		t.Status == o.Status
}

// EqualExceptStatus reports whether two tasks differ only in status.
func (t Task) EqualExceptStatus(o Task) bool {
	t.Status = o.Status
	return t.Equal(o)
}

// Milestone is a billable phase of a job, optionally decomposed into tasks.
type Milestone struct {
	Reference           string          `json:"reference"`
	Description         string          `json:"description,omitempty"`
	Amount              Amount          `json:"amount"`
	ExpectedEndDate     time.Time       `json:"expected_end_date" format:"date-time"`
	PercentageComplete  float64         `json:"percentage_complete"`
	RequestedAmount     Amount          `json:"requested_amount"`
	PaymentOnAccount    Amount          `json:"payment_on_account"`
	NetMilestonePayment Amount          `json:"net_milestone_payment"`
	DocumentsRequired   []string        `json:"documents_required,omitempty"`
	Remarks             string          `json:"remarks,omitempty"`
	Status              MilestoneStatus `json:"status" enum:"NOT_STARTED,STARTED,COMPLETED,ACCEPTED,PAID,ON_ACCOUNT_PAYMENT"`
	Tasks               []Task          `json:"tasks,omitempty"`
}

func (m Milestone) Equal(o Milestone) bool {
	if !m.EqualExceptTasks(o) {
		return false
	}
	if len(m.Tasks) != len(o.Tasks) {
		return false
	}
	for i := range m.Tasks {
		if !m.Tasks[i].Equal(o.Tasks[i]) {
			return false
		}
	}
	return true
}

// EqualExceptTasks compares every milestone field but the task list.
func (m Milestone) EqualExceptTasks(o Milestone) bool {
	return m.Reference == o.Reference &&
		m.Description == o.Description &&
		m.Amount == o.Amount &&
		m.ExpectedEndDate.Equal(o.ExpectedEndDate) &&
		m.PercentageComplete == o.PercentageComplete &&
		m.RequestedAmount == o.RequestedAmount &&
		m.PaymentOnAccount == o.PaymentOnAccount &&
		m.NetMilestonePayment == o.NetMilestonePayment &&
		stringsEqual(m.DocumentsRequired, o.DocumentsRequired) &&
		m.Remarks == o.Remarks &&
		m.Status == o.Status
}

// EqualExceptStatus reports whether two milestones differ only in status.
// Task lists are compared exactly.
func (m Milestone) EqualExceptStatus(o Milestone) bool {
	m.Status = o.Status
	return m.Equal(o)
}

// EqualExceptStatusAndTasks ignores both the status and the task list.
func (m Milestone) EqualExceptStatusAndTasks(o Milestone) bool {
	m.Status = o.Status
	return m.EqualExceptTasks(o)
}

// Job is the jointly owned works contract: two parties, a contract value,
// retention bookkeeping, and an ordered sequence of milestones. A job is
// immutable; each accepted transition replaces it with a new snapshot.
type Job struct {
	ID                      string      `json:"id"`
	Developer               string      `json:"developer"`
	Contractor              string      `json:"contractor"`
	ContractAmount          Amount      `json:"contract_amount"`
	RetentionPercentage     float64     `json:"retention_percentage"`
	AllowPaymentOnAccount   bool        `json:"allow_payment_on_account"`
	GrossCumulativeAmount   Amount      `json:"gross_cumulative_amount"`
	RetentionAmount         Amount      `json:"retention_amount"`
	NetCumulativeValue      Amount      `json:"net_cumulative_value"`
	PreviousCumulativeValue Amount      `json:"previous_cumulative_value"`
	Milestones              []Milestone `json:"milestones"`
}

func (j Job) Equal(o Job) bool {
	if !j.EqualExceptMilestones(o) {
		return false
	}
	if len(j.Milestones) != len(o.Milestones) {
		return false
	}
	for i := range j.Milestones {
		if !j.Milestones[i].Equal(o.Milestones[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy safe to mutate into a proposed next snapshot.
func (j Job) Clone() Job {
	ms := make([]Milestone, len(j.Milestones))
	for i, m := range j.Milestones {
		ts := make([]Task, len(m.Tasks))
		copy(ts, m.Tasks)
		m.Tasks = ts
		m.DocumentsRequired = append([]string(nil), m.DocumentsRequired...)
		for k := range ts {
			ts[k].DocumentsRequired = append([]string(nil), ts[k].DocumentsRequired...)
		}
		ms[i] = m
	}
	j.Milestones = ms
	return j
}

// EqualExceptMilestones compares every job field but the milestone list.
func (j Job) EqualExceptMilestones(o Job) bool {
	return j.ID == o.ID &&
		j.Developer == o.Developer &&
		j.Contractor == o.Contractor &&
		j.ContractAmount == o.ContractAmount &&
		j.RetentionPercentage == o.RetentionPercentage &&
		j.AllowPaymentOnAccount == o.AllowPaymentOnAccount &&
		j.GrossCumulativeAmount == o.GrossCumulativeAmount &&
		j.RetentionAmount == o.RetentionAmount &&
		j.NetCumulativeValue == o.NetCumulativeValue &&
		j.PreviousCumulativeValue == o.PreviousCumulativeValue
}

// OthersEqual reports whether a and b are pairwise equal at every index
// except the addressed one. Length mismatches are the caller's concern.
func OthersEqual[T interface{ Equal(T) bool }](a, b []T, except int) bool {
	for i := range a {
		if i == except {
			continue
		}
		if i >= len(b) || !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// ConstructionError reports an invalid job value that cannot exist at all,
// as opposed to a transition that merely fails validation.
type ConstructionError struct {
	Reason string
}

func (e *ConstructionError) Error() string { return "job construction: " + e.Reason }

// NewJobOptions are the caller-supplied fields of a fresh job.
type NewJobOptions struct {
	ID                    string
	Developer             string
	Contractor            string
	ContractAmount        Amount
	RetentionPercentage   float64
	AllowPaymentOnAccount bool
	Milestones            []Milestone
}

// NewJob builds a job snapshot, assigning a stable identifier when none is
// given. It fails with *ConstructionError iff the milestones span more than
// one currency; every other invariant is checked at transition time.
func NewJob(opts NewJobOptions) (Job, error) {
	for _, m := range opts.Milestones {
		if m.Amount.Currency != opts.ContractAmount.Currency {
			return Job{}, &ConstructionError{Reason: "all milestones must be denominated in the contract currency"}
		}
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	zero := opts.ContractAmount.Zero()
	return Job{
		ID:                      id,
		Developer:               opts.Developer,
		Contractor:              opts.Contractor,
		ContractAmount:          opts.ContractAmount,
		RetentionPercentage:     opts.RetentionPercentage,
		AllowPaymentOnAccount:   opts.AllowPaymentOnAccount,
		GrossCumulativeAmount:   zero,
		RetentionAmount:         zero,
		NetCumulativeValue:      zero,
		PreviousCumulativeValue: zero,
		Milestones:              opts.Milestones,
	}, nil
}

// Document is the record produced by the document-registration contract.
type Document struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Hash      string `json:"hash"`
	Owner     string `json:"owner"`
	CreatedAt string `json:"created_at,omitempty" format:"date-time"`
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
