package engine

import (
	"jobledger/internal/contract"
	"jobledger/internal/domain"
)

// BuildProposed derives the canonical next snapshot for a command: the
// addressed statuses move, everything else is copied untouched. Callers who
// want a different output state supply their own proposal instead.
func BuildProposed(cmd contract.Command, current domain.Job) (domain.Job, error) {
	next := current.Clone()
	switch c := cmd.(type) {
	case contract.StartTask:
		m, err := milestoneAt(next, c.MilestoneIndex)
		if err != nil {
			return domain.Job{}, err
		}
		t, err := taskAt(m, c.TaskIndex)
		if err != nil {
			return domain.Job{}, err
		}
		t.Status = domain.TaskStarted
		m.Status = domain.MilestoneStarted
	case contract.StartMilestone:
		m, err := milestoneAt(next, c.MilestoneIndex)
		if err != nil {
			return domain.Job{}, err
		}
		m.Status = domain.MilestoneStarted
	case contract.FinishTask:
		m, err := milestoneAt(next, c.MilestoneIndex)
		if err != nil {
			return domain.Job{}, err
		}
		t, err := taskAt(m, c.TaskIndex)
		if err != nil {
			return domain.Job{}, err
		}
		t.Status = domain.TaskCompleted
	case contract.FinishMilestone:
		m, err := milestoneAt(next, c.MilestoneIndex)
		if err != nil {
			return domain.Job{}, err
		}
		m.Status = domain.MilestoneCompleted
	case contract.RejectMilestone:
		m, err := milestoneAt(next, c.MilestoneIndex)
		if err != nil {
			return domain.Job{}, err
		}
		m.Status = domain.MilestoneStarted
		for i := range m.Tasks {
			m.Tasks[i].Status = domain.TaskStarted
		}
	case contract.AcceptMilestone:
		m, err := milestoneAt(next, c.MilestoneIndex)
		if err != nil {
			return domain.Job{}, err
		}
		m.Status = domain.MilestoneAccepted
		for i := range m.Tasks {
			m.Tasks[i].Status = domain.TaskAccepted
		}
	case contract.PayMilestone:
		m, err := milestoneAt(next, c.MilestoneIndex)
		if err != nil {
			return domain.Job{}, err
		}
		m.Status = domain.MilestonePaid
	default:
		return domain.Job{}, contract.ErrUnrecognisedCommand
	}
	return next, nil
}

func milestoneAt(j domain.Job, idx int) (*domain.Milestone, error) {
	if idx < 0 || idx >= len(j.Milestones) {
		return nil, contract.ErrMilestoneIndex
	}
	return &j.Milestones[idx], nil
}

func taskAt(m *domain.Milestone, idx int) (*domain.Task, error) {
	if idx < 0 || idx >= len(m.Tasks) {
		return nil, contract.ErrTaskIndex
	}
	return &m.Tasks[idx], nil
}
