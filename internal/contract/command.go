package contract

// Command is the closed set of intents a transition can declare. Each
// variant carries exactly the indices it needs; exhaustive type switches in
// the validators make an unrecognised value a structural impossibility for
// code inside this package, and a named rejection for anything else.
type Command interface {
	// Name is the wire identifier used by the API, CLI and event log.
	Name() string
	isCommand()
}

// AgreeJob creates a job from nothing: zero inputs, one output snapshot.
type AgreeJob struct{}

// StartTask moves a task from NOT_STARTED to STARTED and its milestone to
// STARTED.
type StartTask struct {
	MilestoneIndex int `json:"milestone_index"`
	TaskIndex      int `json:"task_index"`
}

// StartMilestone moves a task-less milestone from NOT_STARTED to STARTED.
type StartMilestone struct {
	MilestoneIndex int `json:"milestone_index"`
}

// FinishTask moves a task from STARTED to COMPLETED.
type FinishTask struct {
	MilestoneIndex int `json:"milestone_index"`
	TaskIndex      int `json:"task_index"`
}

// FinishMilestone moves a milestone from STARTED to COMPLETED once all its
// tasks are completed.
type FinishMilestone struct {
	MilestoneIndex int `json:"milestone_index"`
}

// RejectMilestone sends a completed milestone back to STARTED.
type RejectMilestone struct {
	MilestoneIndex int `json:"milestone_index"`
}

// AcceptMilestone moves a completed milestone to ACCEPTED.
type AcceptMilestone struct {
	MilestoneIndex int `json:"milestone_index"`
}

// PayMilestone moves an accepted milestone to PAID against a balanced cash
// movement.
type PayMilestone struct {
	MilestoneIndex int `json:"milestone_index"`
}

// AddDocument registers a document record; it is the only intent the
// document contract recognises.
type AddDocument struct{}

func (AgreeJob) isCommand()        {}
func (StartTask) isCommand()       {}
func (StartMilestone) isCommand()  {}
func (FinishTask) isCommand()      {}
func (FinishMilestone) isCommand() {}
func (RejectMilestone) isCommand() {}
func (AcceptMilestone) isCommand() {}
func (PayMilestone) isCommand()    {}
func (AddDocument) isCommand()     {}

func (AgreeJob) Name() string        { return "agree-job" }
func (StartTask) Name() string       { return "start-task" }
func (StartMilestone) Name() string  { return "start-milestone" }
func (FinishTask) Name() string      { return "finish-task" }
func (FinishMilestone) Name() string { return "finish-milestone" }
func (RejectMilestone) Name() string { return "reject-milestone" }
func (AcceptMilestone) Name() string { return "accept-milestone" }
func (PayMilestone) Name() string    { return "pay-milestone" }
func (AddDocument) Name() string     { return "add-document" }

// ParseCommand maps a wire identifier plus positional indices back onto the
// union. Unknown names are the caller's protocol bug, not a business
// rejection, and surface as ErrUnrecognisedCommand.
func ParseCommand(name string, milestoneIndex, taskIndex int) (Command, error) {
	switch name {
	case AgreeJob{}.Name():
		return AgreeJob{}, nil
	case StartTask{}.Name():
		return StartTask{MilestoneIndex: milestoneIndex, TaskIndex: taskIndex}, nil
	case StartMilestone{}.Name():
		return StartMilestone{MilestoneIndex: milestoneIndex}, nil
	case FinishTask{}.Name():
		return FinishTask{MilestoneIndex: milestoneIndex, TaskIndex: taskIndex}, nil
	case FinishMilestone{}.Name():
		return FinishMilestone{MilestoneIndex: milestoneIndex}, nil
	case RejectMilestone{}.Name():
		return RejectMilestone{MilestoneIndex: milestoneIndex}, nil
	case AcceptMilestone{}.Name():
		return AcceptMilestone{MilestoneIndex: milestoneIndex}, nil
	case PayMilestone{}.Name():
		return PayMilestone{MilestoneIndex: milestoneIndex}, nil
	case AddDocument{}.Name():
		return AddDocument{}, nil
	}
	return nil, ErrUnrecognisedCommand
}
