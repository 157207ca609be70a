package contract

import "errors"

// Every clause of the contract rejects with its own sentinel so a caller
// can tell exactly which rule a proposed transition broke. A rejection is
// final for that proposal; there is no recovery path inside the validator.
var (
	ErrUnrecognisedCommand = errors.New("unrecognised command")

	// Shape of the transition itself.
	ErrNoInputsExpected  = errors.New("no job inputs should be consumed when agreeing a job")
	ErrOneInputExpected  = errors.New("one job input should be consumed")
	ErrOneOutputExpected = errors.New("one job output should be produced")
	ErrMilestoneIndex    = errors.New("milestone index is out of range")
	ErrTaskIndex         = errors.New("task index is out of range")
	ErrMilestoneCount    = errors.New("the number of milestones should not change")
	ErrTaskCount         = errors.New("the number of tasks of the milestone should not change")

	// Agreement rules.
	ErrDeveloperIsContractor = errors.New("the developer should be different to the contractor")
	ErrMilestonesUnstarted   = errors.New("all milestones should be unstarted")
	ErrTasksUnstarted        = errors.New("all tasks should be unstarted")
	ErrTaskCurrency          = errors.New("all tasks of a milestone should share the milestone currency")
	ErrMilestoneAmountSum    = errors.New("a milestone amount should equal the sum of its task amounts")
	ErrMilestoneEndDate      = errors.New("a milestone expected end date should equal the latest task end date")

	// Status preconditions and postconditions.
	ErrTaskNotUnstarted           = errors.New("the input task should be unstarted")
	ErrTaskNotStarted             = errors.New("the input task should be started")
	ErrTaskOutputNotStarted       = errors.New("the output task should be started")
	ErrTaskOutputNotCompleted     = errors.New("the output task should be completed")
	ErrMilestoneNotUnstarted      = errors.New("the input milestone should be unstarted")
	ErrMilestoneNotStarted        = errors.New("the input milestone should be started")
	ErrMilestoneNotCompleted      = errors.New("the input milestone should be completed")
	ErrMilestoneNotAccepted       = errors.New("the input milestone should be accepted")
	ErrMilestoneOutputNotStarted  = errors.New("the output milestone should be started")
	ErrMilestoneOutputNotDone     = errors.New("the output milestone should be completed")
	ErrMilestoneOutputNotAccepted = errors.New("the output milestone should be accepted")
	ErrMilestoneOutputNotPaid     = errors.New("the output milestone should be paid")
	ErrMilestoneHasTasks          = errors.New("cannot start a milestone if it has tasks")
	ErrTasksNotCompleted          = errors.New("all tasks of the milestone should be completed")
	ErrTasksNotStarted            = errors.New("all tasks of the output milestone should be started")
	ErrTasksNotAccepted           = errors.New("all tasks of the output milestone should be accepted")

	// Frame conditions: nothing outside the addressed entity may change.
	ErrJobModified             = errors.New("the job should be unchanged apart from the addressed milestone")
	ErrOtherMilestonesModified = errors.New("all other milestones should be unmodified")
	ErrOtherTasksModified      = errors.New("all other tasks of the milestone should be unmodified")
	ErrMilestoneModified       = errors.New("the milestone should be unchanged apart from its status")
	ErrMilestoneStatusChanged  = errors.New("the milestone status should not change")
	ErrTaskModified            = errors.New("a task should be unchanged apart from its status")

	// Required signers.
	ErrDeveloperMustSign  = errors.New("the developer should be a signer")
	ErrContractorMustSign = errors.New("the contractor should be a signer")

	// Cash reconciliation for paying a milestone.
	ErrOneCashMovement   = errors.New("exactly one cash movement should be present")
	ErrCashCurrency      = errors.New("all cash entries should use the milestone currency")
	ErrCashNotBalanced   = errors.New("cash inputs and outputs should balance")
	ErrContractorPayment = errors.New("the contractor should receive exactly the milestone amount")

	// Document registration rules.
	ErrDocumentInputs    = errors.New("no inputs should be consumed when registering a document")
	ErrOneDocumentOutput = errors.New("exactly one document should be produced")
)
