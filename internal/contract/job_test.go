package contract

import (
	"errors"
	"testing"
	"time"

	"jobledger/internal/domain"
)

const (
	developer  = "ortho-developments"
	contractor = "hammer-and-sons"
)

var (
	day0 = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	both = []string{developer, contractor}
)

func gbp(q int64) domain.Amount { return domain.Amount{Currency: "GBP", Quantity: q} }

// agreedJob is the fixture every transition test starts from: one milestone
// with two tasks and one task-less milestone, everything NOT_STARTED.
func agreedJob() domain.Job {
	return domain.Job{
		ID:                      "7c9f2a4e-1111-4d3b-9a5e-000000000001",
		Developer:               developer,
		Contractor:              contractor,
		ContractAmount:          gbp(1500000),
		RetentionPercentage:     5,
		GrossCumulativeAmount:   gbp(0),
		RetentionAmount:         gbp(0),
		NetCumulativeValue:      gbp(0),
		PreviousCumulativeValue: gbp(0),
		Milestones: []domain.Milestone{
			{
				Reference:           "M1",
				Description:         "groundworks",
				Amount:              gbp(10000),
				ExpectedEndDate:     day0.AddDate(0, 0, 5),
				RequestedAmount:     gbp(0),
				PaymentOnAccount:    gbp(0),
				NetMilestonePayment: gbp(0),
				Status:              domain.MilestoneNotStarted,
				Tasks: []domain.Task{
					{
						Reference:         "M1/T1",
						Description:       "excavation",
						Amount:            gbp(8000),
						ExpectedStartDate: day0,
						ExpectedDuration:  3,
						RequestedAmount:   gbp(0),
						Status:            domain.TaskNotStarted,
					},
					{
						Reference:         "M1/T2",
						Description:       "footings",
						Amount:            gbp(2000),
						ExpectedStartDate: day0.AddDate(0, 0, 3),
						ExpectedDuration:  2,
						RequestedAmount:   gbp(0),
						Status:            domain.TaskNotStarted,
					},
				},
			},
			{
				Reference:           "M2",
				Description:         "scaffolding hire",
				Amount:              gbp(5000),
				ExpectedEndDate:     day0.AddDate(0, 0, 30),
				RequestedAmount:     gbp(0),
				PaymentOnAccount:    gbp(0),
				NetMilestonePayment: gbp(0),
				Status:              domain.MilestoneNotStarted,
			},
		},
	}
}

func cloneJob(j domain.Job) domain.Job {
	ms := make([]domain.Milestone, len(j.Milestones))
	for i, m := range j.Milestones {
		ts := make([]domain.Task, len(m.Tasks))
		copy(ts, m.Tasks)
		m.Tasks = ts
		ms[i] = m
	}
	j.Milestones = ms
	return j
}

func transition(in, out domain.Job, signers ...string) Transition {
	return Transition{
		JobInputs:  []domain.Job{in},
		JobOutputs: []domain.Job{out},
		Signers:    signers,
	}
}

func TestAgreeJob(t *testing.T) {
	job := agreedJob()

	if err := Validate(AgreeJob{}, Transition{JobOutputs: []domain.Job{job}, Signers: both}); err != nil {
		t.Fatalf("agree valid job: %v", err)
	}

	cases := []struct {
		name string
		tx   func() Transition
		want error
	}{
		{"consumes an input", func() Transition {
			return Transition{JobInputs: []domain.Job{job}, JobOutputs: []domain.Job{job}, Signers: both}
		}, ErrNoInputsExpected},
		{"two outputs", func() Transition {
			return Transition{JobOutputs: []domain.Job{job, job}, Signers: both}
		}, ErrOneOutputExpected},
		{"developer is contractor", func() Transition {
			out := cloneJob(job)
			out.Contractor = out.Developer
			return Transition{JobOutputs: []domain.Job{out}, Signers: []string{developer}}
		}, ErrDeveloperIsContractor},
		{"milestone already started", func() Transition {
			out := cloneJob(job)
			out.Milestones[1].Status = domain.MilestoneStarted
			return Transition{JobOutputs: []domain.Job{out}, Signers: both}
		}, ErrMilestonesUnstarted},
		{"task already started", func() Transition {
			out := cloneJob(job)
			out.Milestones[0].Tasks[0].Status = domain.TaskStarted
			return Transition{JobOutputs: []domain.Job{out}, Signers: both}
		}, ErrTasksUnstarted},
		{"task in foreign currency", func() Transition {
			out := cloneJob(job)
			out.Milestones[0].Tasks[1].Amount.Currency = "EUR"
			return Transition{JobOutputs: []domain.Job{out}, Signers: both}
		}, ErrTaskCurrency},
		{"milestone amount is not the task sum", func() Transition {
			out := cloneJob(job)
			out.Milestones[0].Amount.Quantity = 9999
			return Transition{JobOutputs: []domain.Job{out}, Signers: both}
		}, ErrMilestoneAmountSum},
		{"milestone end date is not the latest task end", func() Transition {
			out := cloneJob(job)
			out.Milestones[0].ExpectedEndDate = day0.AddDate(0, 0, 6)
			return Transition{JobOutputs: []domain.Job{out}, Signers: both}
		}, ErrMilestoneEndDate},
		{"missing contractor signature", func() Transition {
			return Transition{JobOutputs: []domain.Job{job}, Signers: []string{developer}}
		}, ErrContractorMustSign},
		{"missing developer signature", func() Transition {
			return Transition{JobOutputs: []domain.Job{job}, Signers: []string{contractor}}
		}, ErrDeveloperMustSign},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Validate(AgreeJob{}, tc.tx()); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestStartTask(t *testing.T) {
	in := agreedJob()
	out := cloneJob(in)
	out.Milestones[0].Tasks[0].Status = domain.TaskStarted
	out.Milestones[0].Status = domain.MilestoneStarted
	cmd := StartTask{MilestoneIndex: 0, TaskIndex: 0}

	if err := Validate(cmd, transition(in, out, both...)); err != nil {
		t.Fatalf("start first task: %v", err)
	}

	t.Run("task already started", func(t *testing.T) {
		if err := Validate(cmd, transition(out, out, both...)); !errors.Is(err, ErrTaskNotUnstarted) {
			t.Fatalf("got %v, want %v", err, ErrTaskNotUnstarted)
		}
	})
	t.Run("output task not started", func(t *testing.T) {
		bad := cloneJob(out)
		bad.Milestones[0].Tasks[0].Status = domain.TaskCompleted
		if err := Validate(cmd, transition(in, bad, both...)); !errors.Is(err, ErrTaskOutputNotStarted) {
			t.Fatalf("got %v, want %v", err, ErrTaskOutputNotStarted)
		}
	})
	t.Run("task edited alongside the status", func(t *testing.T) {
		bad := cloneJob(out)
		bad.Milestones[0].Tasks[0].Amount.Quantity = 8001
		if err := Validate(cmd, transition(in, bad, both...)); !errors.Is(err, ErrTaskModified) {
			t.Fatalf("got %v, want %v", err, ErrTaskModified)
		}
	})
	t.Run("milestone left unstarted", func(t *testing.T) {
		bad := cloneJob(out)
		bad.Milestones[0].Status = domain.MilestoneNotStarted
		if err := Validate(cmd, transition(in, bad, both...)); !errors.Is(err, ErrMilestoneOutputNotStarted) {
			t.Fatalf("got %v, want %v", err, ErrMilestoneOutputNotStarted)
		}
	})
	t.Run("milestone index out of range", func(t *testing.T) {
		err := Validate(StartTask{MilestoneIndex: 9, TaskIndex: 0}, transition(in, out, both...))
		if !errors.Is(err, ErrMilestoneIndex) {
			t.Fatalf("got %v, want %v", err, ErrMilestoneIndex)
		}
	})
	t.Run("task index out of range", func(t *testing.T) {
		err := Validate(StartTask{MilestoneIndex: 0, TaskIndex: 9}, transition(in, out, both...))
		if !errors.Is(err, ErrTaskIndex) {
			t.Fatalf("got %v, want %v", err, ErrTaskIndex)
		}
	})
	t.Run("one signer is not enough", func(t *testing.T) {
		if err := Validate(cmd, transition(in, out, contractor)); !errors.Is(err, ErrDeveloperMustSign) {
			t.Fatalf("got %v, want %v", err, ErrDeveloperMustSign)
		}
		if err := Validate(cmd, transition(in, out, developer)); !errors.Is(err, ErrContractorMustSign) {
			t.Fatalf("got %v, want %v", err, ErrContractorMustSign)
		}
	})
}

func TestStartMilestone(t *testing.T) {
	in := agreedJob()
	out := cloneJob(in)
	out.Milestones[1].Status = domain.MilestoneStarted

	if err := Validate(StartMilestone{MilestoneIndex: 1}, transition(in, out, both...)); err != nil {
		t.Fatalf("start task-less milestone: %v", err)
	}

	t.Run("milestone with tasks", func(t *testing.T) {
		bad := cloneJob(in)
		bad.Milestones[0].Status = domain.MilestoneStarted
		err := Validate(StartMilestone{MilestoneIndex: 0}, transition(in, bad, both...))
		if !errors.Is(err, ErrMilestoneHasTasks) {
			t.Fatalf("got %v, want %v", err, ErrMilestoneHasTasks)
		}
	})
	t.Run("already started", func(t *testing.T) {
		err := Validate(StartMilestone{MilestoneIndex: 1}, transition(out, out, both...))
		if !errors.Is(err, ErrMilestoneNotUnstarted) {
			t.Fatalf("got %v, want %v", err, ErrMilestoneNotUnstarted)
		}
	})
	t.Run("milestone edited alongside the status", func(t *testing.T) {
		bad := cloneJob(out)
		bad.Milestones[1].Remarks = "renegotiated"
		err := Validate(StartMilestone{MilestoneIndex: 1}, transition(in, bad, both...))
		if !errors.Is(err, ErrMilestoneModified) {
			t.Fatalf("got %v, want %v", err, ErrMilestoneModified)
		}
	})
}

// jobWithTasksStarted returns the fixture with every task of milestone 0
// started and the milestone itself started.
func jobWithTasksStarted() domain.Job {
	j := agreedJob()
	j.Milestones[0].Status = domain.MilestoneStarted
	for i := range j.Milestones[0].Tasks {
		j.Milestones[0].Tasks[i].Status = domain.TaskStarted
	}
	return j
}

func TestFinishTask(t *testing.T) {
	in := jobWithTasksStarted()
	out := cloneJob(in)
	out.Milestones[0].Tasks[1].Status = domain.TaskCompleted
	cmd := FinishTask{MilestoneIndex: 0, TaskIndex: 1}

	if err := Validate(cmd, transition(in, out, contractor)); err != nil {
		t.Fatalf("finish started task: %v", err)
	}

	t.Run("task not started", func(t *testing.T) {
		fresh := agreedJob()
		bad := cloneJob(fresh)
		bad.Milestones[0].Tasks[1].Status = domain.TaskCompleted
		if err := Validate(cmd, transition(fresh, bad, contractor)); !errors.Is(err, ErrTaskNotStarted) {
			t.Fatalf("got %v, want %v", err, ErrTaskNotStarted)
		}
	})
	t.Run("milestone status moved with the task", func(t *testing.T) {
		bad := cloneJob(out)
		bad.Milestones[0].Status = domain.MilestoneCompleted
		if err := Validate(cmd, transition(in, bad, contractor)); !errors.Is(err, ErrMilestoneStatusChanged) {
			t.Fatalf("got %v, want %v", err, ErrMilestoneStatusChanged)
		}
	})
	t.Run("developer alone cannot finish", func(t *testing.T) {
		if err := Validate(cmd, transition(in, out, developer)); !errors.Is(err, ErrContractorMustSign) {
			t.Fatalf("got %v, want %v", err, ErrContractorMustSign)
		}
	})
}

// Finishing a task in the second milestone must be judged against the
// second milestone, even when the first also carries started tasks.
func TestFinishTaskAddressesItsOwnMilestone(t *testing.T) {
	in := jobWithTasksStarted()
	in.Milestones[1].Tasks = []domain.Task{{
		Reference:         "M2/T1",
		Amount:            gbp(5000),
		ExpectedStartDate: day0.AddDate(0, 0, 10),
		ExpectedDuration:  4,
		RequestedAmount:   gbp(0),
		Status:            domain.TaskStarted,
	}}
	in.Milestones[1].Status = domain.MilestoneStarted

	out := cloneJob(in)
	out.Milestones[1].Tasks[0].Status = domain.TaskCompleted

	cmd := FinishTask{MilestoneIndex: 1, TaskIndex: 0}
	if err := Validate(cmd, transition(in, out, contractor)); err != nil {
		t.Fatalf("finish task in second milestone: %v", err)
	}
}

func TestFinishMilestone(t *testing.T) {
	in := jobWithTasksStarted()
	for i := range in.Milestones[0].Tasks {
		in.Milestones[0].Tasks[i].Status = domain.TaskCompleted
	}
	out := cloneJob(in)
	out.Milestones[0].Status = domain.MilestoneCompleted
	cmd := FinishMilestone{MilestoneIndex: 0}

	if err := Validate(cmd, transition(in, out, contractor)); err != nil {
		t.Fatalf("finish milestone with completed tasks: %v", err)
	}

	t.Run("a task still in flight", func(t *testing.T) {
		lagging := cloneJob(in)
		lagging.Milestones[0].Tasks[1].Status = domain.TaskStarted
		bad := cloneJob(lagging)
		bad.Milestones[0].Status = domain.MilestoneCompleted
		if err := Validate(cmd, transition(lagging, bad, contractor)); !errors.Is(err, ErrTasksNotCompleted) {
			t.Fatalf("got %v, want %v", err, ErrTasksNotCompleted)
		}
	})
	t.Run("milestone not started", func(t *testing.T) {
		fresh := agreedJob()
		bad := cloneJob(fresh)
		bad.Milestones[0].Status = domain.MilestoneCompleted
		if err := Validate(cmd, transition(fresh, bad, contractor)); !errors.Is(err, ErrMilestoneNotStarted) {
			t.Fatalf("got %v, want %v", err, ErrMilestoneNotStarted)
		}
	})
}

// jobCompleted returns the fixture with milestone 0 completed and all its
// tasks completed.
func jobCompleted() domain.Job {
	j := jobWithTasksStarted()
	j.Milestones[0].Status = domain.MilestoneCompleted
	for i := range j.Milestones[0].Tasks {
		j.Milestones[0].Tasks[i].Status = domain.TaskCompleted
	}
	return j
}

func TestRejectMilestone(t *testing.T) {
	in := jobCompleted()
	out := cloneJob(in)
	out.Milestones[0].Status = domain.MilestoneStarted
	for i := range out.Milestones[0].Tasks {
		out.Milestones[0].Tasks[i].Status = domain.TaskStarted
	}
	cmd := RejectMilestone{MilestoneIndex: 0}

	if err := Validate(cmd, transition(in, out, developer)); err != nil {
		t.Fatalf("reject completed milestone: %v", err)
	}

	t.Run("a task left completed", func(t *testing.T) {
		bad := cloneJob(out)
		bad.Milestones[0].Tasks[0].Status = domain.TaskCompleted
		if err := Validate(cmd, transition(in, bad, developer)); !errors.Is(err, ErrTasksNotStarted) {
			t.Fatalf("got %v, want %v", err, ErrTasksNotStarted)
		}
	})
	t.Run("contractor alone cannot reject", func(t *testing.T) {
		if err := Validate(cmd, transition(in, out, contractor)); !errors.Is(err, ErrDeveloperMustSign) {
			t.Fatalf("got %v, want %v", err, ErrDeveloperMustSign)
		}
	})
}

func TestAcceptMilestone(t *testing.T) {
	in := jobCompleted()
	out := cloneJob(in)
	out.Milestones[0].Status = domain.MilestoneAccepted
	for i := range out.Milestones[0].Tasks {
		out.Milestones[0].Tasks[i].Status = domain.TaskAccepted
	}
	cmd := AcceptMilestone{MilestoneIndex: 0}

	if err := Validate(cmd, transition(in, out, developer)); err != nil {
		t.Fatalf("accept completed milestone: %v", err)
	}

	t.Run("a task left completed", func(t *testing.T) {
		bad := cloneJob(out)
		bad.Milestones[0].Tasks[1].Status = domain.TaskCompleted
		if err := Validate(cmd, transition(in, bad, developer)); !errors.Is(err, ErrTasksNotAccepted) {
			t.Fatalf("got %v, want %v", err, ErrTasksNotAccepted)
		}
	})
	t.Run("milestone not completed", func(t *testing.T) {
		started := jobWithTasksStarted()
		bad := cloneJob(started)
		bad.Milestones[0].Status = domain.MilestoneAccepted
		if err := Validate(cmd, transition(started, bad, developer)); !errors.Is(err, ErrMilestoneNotCompleted) {
			t.Fatalf("got %v, want %v", err, ErrMilestoneNotCompleted)
		}
	})
}

func TestPayMilestone(t *testing.T) {
	in := jobCompleted()
	in.Milestones[0].Status = domain.MilestoneAccepted
	for i := range in.Milestones[0].Tasks {
		in.Milestones[0].Tasks[i].Status = domain.TaskAccepted
	}
	out := cloneJob(in)
	out.Milestones[0].Status = domain.MilestonePaid
	cmd := PayMilestone{MilestoneIndex: 0}

	pay := func(cash ...CashMovement) Transition {
		tx := transition(in, out, developer)
		tx.Cash = cash
		return tx
	}
	settled := CashMovement{
		Inputs: []CashEntry{{Owner: developer, Amount: gbp(12000)}},
		Outputs: []CashEntry{
			{Owner: contractor, Amount: gbp(10000)},
			{Owner: developer, Amount: gbp(2000)},
		},
	}

	if err := Validate(cmd, pay(settled)); err != nil {
		t.Fatalf("pay accepted milestone: %v", err)
	}

	t.Run("no cash movement", func(t *testing.T) {
		if err := Validate(cmd, pay()); !errors.Is(err, ErrOneCashMovement) {
			t.Fatalf("got %v, want %v", err, ErrOneCashMovement)
		}
	})
	t.Run("two cash movements", func(t *testing.T) {
		if err := Validate(cmd, pay(settled, settled)); !errors.Is(err, ErrOneCashMovement) {
			t.Fatalf("got %v, want %v", err, ErrOneCashMovement)
		}
	})
	t.Run("foreign currency entry", func(t *testing.T) {
		mv := settled
		mv.Outputs = []CashEntry{
			{Owner: contractor, Amount: domain.Amount{Currency: "EUR", Quantity: 10000}},
			{Owner: developer, Amount: gbp(2000)},
		}
		if err := Validate(cmd, pay(mv)); !errors.Is(err, ErrCashCurrency) {
			t.Fatalf("got %v, want %v", err, ErrCashCurrency)
		}
	})
	t.Run("value not conserved", func(t *testing.T) {
		mv := settled
		mv.Inputs = []CashEntry{{Owner: developer, Amount: gbp(13000)}}
		if err := Validate(cmd, pay(mv)); !errors.Is(err, ErrCashNotBalanced) {
			t.Fatalf("got %v, want %v", err, ErrCashNotBalanced)
		}
	})
	t.Run("contractor short-changed", func(t *testing.T) {
		mv := CashMovement{
			Inputs: []CashEntry{{Owner: developer, Amount: gbp(12000)}},
			Outputs: []CashEntry{
				{Owner: contractor, Amount: gbp(9000)},
				{Owner: developer, Amount: gbp(3000)},
			},
		}
		if err := Validate(cmd, pay(mv)); !errors.Is(err, ErrContractorPayment) {
			t.Fatalf("got %v, want %v", err, ErrContractorPayment)
		}
	})
	t.Run("milestone not accepted", func(t *testing.T) {
		done := jobCompleted()
		bad := cloneJob(done)
		bad.Milestones[0].Status = domain.MilestonePaid
		tx := transition(done, bad, developer)
		tx.Cash = []CashMovement{settled}
		if err := Validate(cmd, tx); !errors.Is(err, ErrMilestoneNotAccepted) {
			t.Fatalf("got %v, want %v", err, ErrMilestoneNotAccepted)
		}
	})
	t.Run("contractor alone cannot pay", func(t *testing.T) {
		tx := pay(settled)
		tx.Signers = []string{contractor}
		if err := Validate(cmd, tx); !errors.Is(err, ErrDeveloperMustSign) {
			t.Fatalf("got %v, want %v", err, ErrDeveloperMustSign)
		}
	})
}

// threeByThree builds a job with three milestones of three tasks each, so
// frame checks can be probed at every unaddressed index.
func threeByThree() domain.Job {
	j := agreedJob()
	j.Milestones = nil
	for m := 0; m < 3; m++ {
		ms := domain.Milestone{
			Reference:           "M" + string(rune('1'+m)),
			Amount:              gbp(3000),
			ExpectedEndDate:     day0.AddDate(0, 0, 10*(m+1)),
			RequestedAmount:     gbp(0),
			PaymentOnAccount:    gbp(0),
			NetMilestonePayment: gbp(0),
			Status:              domain.MilestoneNotStarted,
		}
		for k := 0; k < 3; k++ {
			ms.Tasks = append(ms.Tasks, domain.Task{
				Reference:         ms.Reference + "/T" + string(rune('1'+k)),
				Amount:            gbp(1000),
				ExpectedStartDate: day0.AddDate(0, 0, 10*m),
				ExpectedDuration:  3 + k,
				RequestedAmount:   gbp(0),
				Status:            domain.TaskNotStarted,
			})
		}
		j.Milestones = append(j.Milestones, ms)
	}
	return j
}

// Every milestone and task outside the addressed pair must survive the
// transition byte for byte; this probes each unaddressed index in turn.
func TestFrameConditionsAtEveryIndex(t *testing.T) {
	const mi, ti = 1, 1

	cases := []struct {
		name    string
		cmd     Command
		signers []string
		in      func() domain.Job
		out     func(j domain.Job) domain.Job
	}{
		{
			name:    "start task",
			cmd:     StartTask{MilestoneIndex: mi, TaskIndex: ti},
			signers: both,
			in:      threeByThree,
			out: func(j domain.Job) domain.Job {
				j.Milestones[mi].Tasks[ti].Status = domain.TaskStarted
				j.Milestones[mi].Status = domain.MilestoneStarted
				return j
			},
		},
		{
			name:    "finish task",
			cmd:     FinishTask{MilestoneIndex: mi, TaskIndex: ti},
			signers: []string{contractor},
			in: func() domain.Job {
				j := threeByThree()
				j.Milestones[mi].Status = domain.MilestoneStarted
				j.Milestones[mi].Tasks[ti].Status = domain.TaskStarted
				return j
			},
			out: func(j domain.Job) domain.Job {
				j.Milestones[mi].Tasks[ti].Status = domain.TaskCompleted
				return j
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := tc.in()
			out := tc.out(cloneJob(in))

			if err := Validate(tc.cmd, transition(in, out, tc.signers...)); err != nil {
				t.Fatalf("clean transition: %v", err)
			}

			for mj := range out.Milestones {
				if mj == mi {
					continue
				}
				bad := cloneJob(out)
				bad.Milestones[mj].Remarks = "tampered"
				err := Validate(tc.cmd, transition(in, bad, tc.signers...))
				if !errors.Is(err, ErrOtherMilestonesModified) {
					t.Fatalf("milestone %d tampered: got %v, want %v", mj, err, ErrOtherMilestonesModified)
				}
			}
			for tj := range out.Milestones[mi].Tasks {
				if tj == ti {
					continue
				}
				bad := cloneJob(out)
				bad.Milestones[mi].Tasks[tj].Remarks = "tampered"
				err := Validate(tc.cmd, transition(in, bad, tc.signers...))
				if !errors.Is(err, ErrOtherTasksModified) {
					t.Fatalf("task %d tampered: got %v, want %v", tj, err, ErrOtherTasksModified)
				}
			}

			bad := cloneJob(out)
			bad.RetentionPercentage = 7.5
			if err := Validate(tc.cmd, transition(in, bad, tc.signers...)); !errors.Is(err, ErrJobModified) {
				t.Fatalf("job field tampered: got %v, want %v", err, ErrJobModified)
			}

			bad = cloneJob(out)
			bad.Milestones[mi].Remarks = "tampered"
			if err := Validate(tc.cmd, transition(in, bad, tc.signers...)); !errors.Is(err, ErrMilestoneModified) {
				t.Fatalf("addressed milestone tampered: got %v, want %v", err, ErrMilestoneModified)
			}

			bad = cloneJob(out)
			bad.Milestones = bad.Milestones[:2]
			if err := Validate(tc.cmd, transition(in, bad, tc.signers...)); !errors.Is(err, ErrMilestoneCount) {
				t.Fatalf("milestone dropped: got %v, want %v", err, ErrMilestoneCount)
			}

			bad = cloneJob(out)
			bad.Milestones[mi].Tasks = bad.Milestones[mi].Tasks[:2]
			if err := Validate(tc.cmd, transition(in, bad, tc.signers...)); !errors.Is(err, ErrTaskCount) {
				t.Fatalf("task dropped: got %v, want %v", err, ErrTaskCount)
			}
		})
	}
}

type bogusCommand struct{}

func (bogusCommand) Name() string { return "bogus" }
func (bogusCommand) isCommand()   {}

func TestUnrecognisedCommand(t *testing.T) {
	if err := Validate(bogusCommand{}, Transition{}); !errors.Is(err, ErrUnrecognisedCommand) {
		t.Fatalf("got %v, want %v", err, ErrUnrecognisedCommand)
	}
	if _, err := ParseCommand("demolish-job", 0, 0); !errors.Is(err, ErrUnrecognisedCommand) {
		t.Fatalf("got %v, want %v", err, ErrUnrecognisedCommand)
	}
}

func TestParseCommandRoundTrip(t *testing.T) {
	for _, cmd := range []Command{
		AgreeJob{},
		StartTask{MilestoneIndex: 2, TaskIndex: 1},
		StartMilestone{MilestoneIndex: 2},
		FinishTask{MilestoneIndex: 2, TaskIndex: 1},
		FinishMilestone{MilestoneIndex: 2},
		RejectMilestone{MilestoneIndex: 2},
		AcceptMilestone{MilestoneIndex: 2},
		PayMilestone{MilestoneIndex: 2},
		AddDocument{},
	} {
		got, err := ParseCommand(cmd.Name(), 2, 1)
		if err != nil {
			t.Fatalf("%s: %v", cmd.Name(), err)
		}
		if got != cmd {
			t.Fatalf("%s: got %#v, want %#v", cmd.Name(), got, cmd)
		}
	}
}
