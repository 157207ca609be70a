package contract

import (
	"jobledger/internal/domain"
)

// CashEntry is one owned amount inside a cash movement.
type CashEntry struct {
	Owner  string        `json:"owner"`
	Amount domain.Amount `json:"amount"`
}

// CashMovement is the declared inputs and outputs of the cash-asset
// collaborator accompanying a milestone payment. The validator only reads
// it; moving the tokens is someone else's job.
type CashMovement struct {
	Inputs  []CashEntry `json:"inputs"`
	Outputs []CashEntry `json:"outputs"`
}

// Transition is one proposed replacement of a job snapshot, together with
// the parties asserting it. Signers are identity references only; whether
// their signatures are cryptographically sound is established upstream.
type Transition struct {
	JobInputs  []domain.Job
	JobOutputs []domain.Job
	Signers    []string
	Cash       []CashMovement
}

// Validate decides whether a proposed transition is legal under the
// declared command. It is a pure function of its inputs: no I/O, no shared
// state, safe to call concurrently. The first failing clause's sentinel is
// returned; acceptance is nil.
func Validate(cmd Command, tx Transition) error {
	switch c := cmd.(type) {
	case AgreeJob:
		return validateAgreeJob(tx)
	case StartTask:
		return validateStartTask(c, tx)
	case StartMilestone:
		return validateStartMilestone(c, tx)
	case FinishTask:
		return validateFinishTask(c, tx)
	case FinishMilestone:
		return validateFinishMilestone(c, tx)
	case RejectMilestone:
		return validateRejectMilestone(c, tx)
	case AcceptMilestone:
		return validateAcceptMilestone(c, tx)
	case PayMilestone:
		return validatePayMilestone(c, tx)
	default:
		return ErrUnrecognisedCommand
	}
}

func validateAgreeJob(tx Transition) error {
	if len(tx.JobInputs) != 0 {
		return ErrNoInputsExpected
	}
	if len(tx.JobOutputs) != 1 {
		return ErrOneOutputExpected
	}
	job := tx.JobOutputs[0]
	if job.Developer == job.Contractor {
		return ErrDeveloperIsContractor
	}
	for _, m := range job.Milestones {
		if m.Status != domain.MilestoneNotStarted {
			return ErrMilestonesUnstarted
		}
		for _, t := range m.Tasks {
			if t.Status != domain.TaskNotStarted {
				return ErrTasksUnstarted
			}
			if t.Amount.Currency != m.Amount.Currency {
				return ErrTaskCurrency
			}
		}
		if len(m.Tasks) == 0 {
			continue
		}
		var sum int64
		end := m.Tasks[0].ExpectedEndDate()
		for _, t := range m.Tasks {
			sum += t.Amount.Quantity
			if te := t.ExpectedEndDate(); te.After(end) {
				end = te
			}
		}
		if sum != m.Amount.Quantity {
			return ErrMilestoneAmountSum
		}
		if !m.ExpectedEndDate.Equal(end) {
			return ErrMilestoneEndDate
		}
	}
	return requireBoth(tx.Signers, job.Developer, job.Contractor)
}

func validateStartTask(c StartTask, tx Transition) error {
	in, out, err := beforeAfter(tx)
	if err != nil {
		return err
	}
	mIn, mOut, err := milestoneFrame(in, out, c.MilestoneIndex)
	if err != nil {
		return err
	}
	tIn, tOut, err := taskFrame(mIn, mOut, c.TaskIndex)
	if err != nil {
		return err
	}
	if tIn.Status != domain.TaskNotStarted {
		return ErrTaskNotUnstarted
	}
	if tOut.Status != domain.TaskStarted {
		return ErrTaskOutputNotStarted
	}
	if !tIn.EqualExceptStatus(tOut) {
		return ErrTaskModified
	}
	if mOut.Status != domain.MilestoneStarted {
		return ErrMilestoneOutputNotStarted
	}
	return requireBoth(tx.Signers, out.Developer, out.Contractor)
}

func validateStartMilestone(c StartMilestone, tx Transition) error {
	in, out, err := beforeAfter(tx)
	if err != nil {
		return err
	}
	mIn, mOut, err := milestoneFrame(in, out, c.MilestoneIndex)
	if err != nil {
		return err
	}
	// A milestone with tasks is only started implicitly by its first task.
	if len(mIn.Tasks) != 0 {
		return ErrMilestoneHasTasks
	}
	if mIn.Status != domain.MilestoneNotStarted {
		return ErrMilestoneNotUnstarted
	}
	if mOut.Status != domain.MilestoneStarted {
		return ErrMilestoneOutputNotStarted
	}
	if !mIn.EqualExceptStatus(mOut) {
		return ErrMilestoneModified
	}
	return requireBoth(tx.Signers, out.Developer, out.Contractor)
}

func validateFinishTask(c FinishTask, tx Transition) error {
	in, out, err := beforeAfter(tx)
	if err != nil {
		return err
	}
	// The addressed milestone is located by this command's own index.
	mIn, mOut, err := milestoneFrame(in, out, c.MilestoneIndex)
	if err != nil {
		return err
	}
	tIn, tOut, err := taskFrame(mIn, mOut, c.TaskIndex)
	if err != nil {
		return err
	}
	if tIn.Status != domain.TaskStarted {
		return ErrTaskNotStarted
	}
	if tOut.Status != domain.TaskCompleted {
		return ErrTaskOutputNotCompleted
	}
	if !tIn.EqualExceptStatus(tOut) {
		return ErrTaskModified
	}
	if mIn.Status != mOut.Status {
		return ErrMilestoneStatusChanged
	}
	return requireContractor(tx.Signers, out.Contractor)
}

func validateFinishMilestone(c FinishMilestone, tx Transition) error {
	in, out, err := beforeAfter(tx)
	if err != nil {
		return err
	}
	mIn, mOut, err := milestoneFrame(in, out, c.MilestoneIndex)
	if err != nil {
		return err
	}
	if mIn.Status != domain.MilestoneStarted {
		return ErrMilestoneNotStarted
	}
	if mOut.Status != domain.MilestoneCompleted {
		return ErrMilestoneOutputNotDone
	}
	if !mIn.EqualExceptStatus(mOut) {
		return ErrMilestoneModified
	}
	for _, t := range mOut.Tasks {
		if t.Status != domain.TaskCompleted {
			return ErrTasksNotCompleted
		}
	}
	return requireContractor(tx.Signers, out.Contractor)
}

func validateRejectMilestone(c RejectMilestone, tx Transition) error {
	in, out, err := beforeAfter(tx)
	if err != nil {
		return err
	}
	mIn, mOut, err := milestoneFrame(in, out, c.MilestoneIndex)
	if err != nil {
		return err
	}
	if mIn.Status != domain.MilestoneCompleted {
		return ErrMilestoneNotCompleted
	}
	if mOut.Status != domain.MilestoneStarted {
		return ErrMilestoneOutputNotStarted
	}
	if err := tasksRewound(mIn, mOut, domain.TaskStarted, ErrTasksNotStarted); err != nil {
		return err
	}
	return requireDeveloper(tx.Signers, out.Developer)
}

func validateAcceptMilestone(c AcceptMilestone, tx Transition) error {
	in, out, err := beforeAfter(tx)
	if err != nil {
		return err
	}
	mIn, mOut, err := milestoneFrame(in, out, c.MilestoneIndex)
	if err != nil {
		return err
	}
	if mIn.Status != domain.MilestoneCompleted {
		return ErrMilestoneNotCompleted
	}
	if mOut.Status != domain.MilestoneAccepted {
		return ErrMilestoneOutputNotAccepted
	}
	if err := tasksRewound(mIn, mOut, domain.TaskAccepted, ErrTasksNotAccepted); err != nil {
		return err
	}
	return requireDeveloper(tx.Signers, out.Developer)
}

func validatePayMilestone(c PayMilestone, tx Transition) error {
	in, out, err := beforeAfter(tx)
	if err != nil {
		return err
	}
	mIn, mOut, err := milestoneFrame(in, out, c.MilestoneIndex)
	if err != nil {
		return err
	}
	if mIn.Status != domain.MilestoneAccepted {
		return ErrMilestoneNotAccepted
	}
	if mOut.Status != domain.MilestonePaid {
		return ErrMilestoneOutputNotPaid
	}
	if !mIn.EqualExceptStatus(mOut) {
		return ErrMilestoneModified
	}
	if err := reconcileCash(tx.Cash, mOut.Amount, out.Contractor); err != nil {
		return err
	}
	return requireDeveloper(tx.Signers, out.Developer)
}

// reconcileCash checks the attached movement against the milestone value:
// single movement, milestone currency throughout, conservation of value,
// and the contractor's share equal to the milestone amount. Change paid
// back to the developer is deliberately not verified.
func reconcileCash(cash []CashMovement, milestone domain.Amount, contractor string) error {
	if len(cash) != 1 {
		return ErrOneCashMovement
	}
	mv := cash[0]
	var inSum, outSum, contractorSum int64
	for _, e := range mv.Inputs {
		if e.Amount.Currency != milestone.Currency {
			return ErrCashCurrency
		}
		inSum += e.Amount.Quantity
	}
	for _, e := range mv.Outputs {
		if e.Amount.Currency != milestone.Currency {
			return ErrCashCurrency
		}
		outSum += e.Amount.Quantity
		if e.Owner == contractor {
			contractorSum += e.Amount.Quantity
		}
	}
	if inSum != outSum {
		return ErrCashNotBalanced
	}
	if contractorSum != milestone.Quantity {
		return ErrContractorPayment
	}
	return nil
}

// beforeAfter enforces the one-in one-out shape shared by every command
// except AgreeJob.
func beforeAfter(tx Transition) (domain.Job, domain.Job, error) {
	if len(tx.JobInputs) != 1 {
		return domain.Job{}, domain.Job{}, ErrOneInputExpected
	}
	if len(tx.JobOutputs) != 1 {
		return domain.Job{}, domain.Job{}, ErrOneOutputExpected
	}
	return tx.JobInputs[0], tx.JobOutputs[0], nil
}

// milestoneFrame checks the job-level frame condition and returns the
// addressed before/after milestone pair. Every job field and every
// milestone other than the addressed one must be structurally identical.
func milestoneFrame(in, out domain.Job, idx int) (domain.Milestone, domain.Milestone, error) {
	var none domain.Milestone
	if len(in.Milestones) != len(out.Milestones) {
		return none, none, ErrMilestoneCount
	}
	if idx < 0 || idx >= len(in.Milestones) {
		return none, none, ErrMilestoneIndex
	}
	if !in.EqualExceptMilestones(out) {
		return none, none, ErrJobModified
	}
	if !domain.OthersEqual(in.Milestones, out.Milestones, idx) {
		return none, none, ErrOtherMilestonesModified
	}
	return in.Milestones[idx], out.Milestones[idx], nil
}

// taskFrame checks the milestone-level frame condition for a task-level
// command and returns the addressed before/after task pair. The milestone
// itself may change status only; tasks other than the addressed one must
// be identical.
func taskFrame(mIn, mOut domain.Milestone, idx int) (domain.Task, domain.Task, error) {
	var none domain.Task
	if len(mIn.Tasks) != len(mOut.Tasks) {
		return none, none, ErrTaskCount
	}
	if idx < 0 || idx >= len(mIn.Tasks) {
		return none, none, ErrTaskIndex
	}
	if !mIn.EqualExceptStatusAndTasks(mOut) {
		return none, none, ErrMilestoneModified
	}
	if !domain.OthersEqual(mIn.Tasks, mOut.Tasks, idx) {
		return none, none, ErrOtherTasksModified
	}
	return mIn.Tasks[idx], mOut.Tasks[idx], nil
}

// tasksRewound checks a milestone-level command that moves every task to
// the given status while leaving everything else about each task intact.
func tasksRewound(mIn, mOut domain.Milestone, want domain.TaskStatus, reject error) error {
	if !mIn.EqualExceptStatusAndTasks(mOut) {
		return ErrMilestoneModified
	}
	if len(mIn.Tasks) != len(mOut.Tasks) {
		return ErrTaskCount
	}
	for i := range mOut.Tasks {
		if !mIn.Tasks[i].EqualExceptStatus(mOut.Tasks[i]) {
			return ErrTaskModified
		}
		if mOut.Tasks[i].Status != want {
			return reject
		}
	}
	return nil
}

func requireDeveloper(signers []string, developer string) error {
	if !hasSigner(signers, developer) {
		return ErrDeveloperMustSign
	}
	return nil
}

func requireContractor(signers []string, contractor string) error {
	if !hasSigner(signers, contractor) {
		return ErrContractorMustSign
	}
	return nil
}

func requireBoth(signers []string, developer, contractor string) error {
	if err := requireDeveloper(signers, developer); err != nil {
		return err
	}
	return requireContractor(signers, contractor)
}

func hasSigner(signers []string, id string) bool {
	for _, s := range signers {
		if s == id {
			return true
		}
	}
	return false
}
