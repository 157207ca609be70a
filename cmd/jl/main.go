package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"jobledger/internal/app"
	"jobledger/internal/config"
	"jobledger/internal/contract"
	"jobledger/internal/db"
	"jobledger/internal/domain"
	"jobledger/internal/engine"
	"jobledger/internal/migrate"
	"jobledger/internal/repo"
	"jobledger/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "jl",
	Short: "Jobledger CLI",
	Long: `Jobledger keeps a shared ledger of construction jobs between a developer
and a contractor.
Core concepts:
- Workspace: your .jobledger directory holding the ledger database; the
  optional jobledger.yml describes parties, currency and document kinds.
- Job: a works contract both parties agreed to. Jobs never mutate; each
  accepted transition records a new versioned snapshot.
- Milestones: the billable phases of a job. They move NOT_STARTED ->
  STARTED -> COMPLETED -> ACCEPTED -> PAID, with one backward edge when
  the developer rejects completed work.
- Tasks: units of work inside a milestone; a milestone with tasks starts
  and finishes through them.
- Signers: every transition names who signs it; some need the developer,
  some the contractor, some both.
- Cash: paying a milestone requires a balanced cash movement that gives
  the contractor at least the milestone amount.
- Documents: registered evidence (surveys, invoices, certificates).
- Event log: diary of changes, view with 'jl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("JOBLEDGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().Bool("force", false, "force operation")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("force", rootCmd.PersistentFlags().Lookup("force"))
}

func registerCommands() {
	rootCmd.AddCommand(jobCmd())
	rootCmd.AddCommand(milestoneCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(documentCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- job file format ---

type amountFile struct {
	Currency string `yaml:"currency"`
	Quantity int64  `yaml:"quantity"`
}

func (a amountFile) toDomain() domain.Amount {
	return domain.Amount{Currency: a.Currency, Quantity: a.Quantity}
}

type taskFile struct {
	Reference            string     `yaml:"reference"`
	Description          string     `yaml:"description"`
	Amount               amountFile `yaml:"amount"`
	ExpectedStartDate    time.Time  `yaml:"expected_start_date"`
	ExpectedDurationDays int        `yaml:"expected_duration_days"`
	DocumentsRequired    []string   `yaml:"documents_required"`
	Remarks              string     `yaml:"remarks"`
}

type milestoneFile struct {
	Reference         string     `yaml:"reference"`
	Description       string     `yaml:"description"`
	Amount            amountFile `yaml:"amount"`
	ExpectedEndDate   time.Time  `yaml:"expected_end_date"`
	DocumentsRequired []string   `yaml:"documents_required"`
	Remarks           string     `yaml:"remarks"`
	Tasks             []taskFile `yaml:"tasks"`
}

type jobFile struct {
	ID                    string          `yaml:"id"`
	Developer             string          `yaml:"developer"`
	Contractor            string          `yaml:"contractor"`
	ContractAmount        amountFile      `yaml:"contract_amount"`
	RetentionPercentage   float64         `yaml:"retention_percentage"`
	AllowPaymentOnAccount bool            `yaml:"allow_payment_on_account"`
	Milestones            []milestoneFile `yaml:"milestones"`
}

func (f jobFile) toOptions() domain.NewJobOptions {
	zero := domain.Amount{Currency: f.ContractAmount.Currency}
	var milestones []domain.Milestone
	for _, m := range f.Milestones {
		var tasks []domain.Task
		for _, t := range m.Tasks {
			tasks = append(tasks, domain.Task{
				Reference:         t.Reference,
				Description:       t.Description,
				Amount:            t.Amount.toDomain(),
				ExpectedStartDate: t.ExpectedStartDate,
				ExpectedDuration:  t.ExpectedDurationDays,
				RequestedAmount:   zero,
				DocumentsRequired: t.DocumentsRequired,
				Remarks:           t.Remarks,
				Status:            domain.TaskNotStarted,
			})
		}
		milestones = append(milestones, domain.Milestone{
			Reference:           m.Reference,
			Description:         m.Description,
			Amount:              m.Amount.toDomain(),
			ExpectedEndDate:     m.ExpectedEndDate,
			RequestedAmount:     zero,
			PaymentOnAccount:    zero,
			NetMilestonePayment: zero,
			DocumentsRequired:   m.DocumentsRequired,
			Remarks:             m.Remarks,
			Status:              domain.MilestoneNotStarted,
			Tasks:               tasks,
		})
	}
	return domain.NewJobOptions{
		ID:                    f.ID,
		Developer:             f.Developer,
		Contractor:            f.Contractor,
		ContractAmount:        f.ContractAmount.toDomain(),
		RetentionPercentage:   f.RetentionPercentage,
		AllowPaymentOnAccount: f.AllowPaymentOnAccount,
		Milestones:            milestones,
	}
}

type cashEntryFile struct {
	Owner  string     `yaml:"owner"`
	Amount amountFile `yaml:"amount"`
}

type cashMovementFile struct {
	Inputs  []cashEntryFile `yaml:"inputs"`
	Outputs []cashEntryFile `yaml:"outputs"`
}

func loadCashFile(path string) ([]contract.CashMovement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var files []cashMovementFile
	if err := yaml.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("invalid cash yaml: %w", err)
	}
	var movements []contract.CashMovement
	for _, f := range files {
		var mv contract.CashMovement
		for _, e := range f.Inputs {
			mv.Inputs = append(mv.Inputs, contract.CashEntry{Owner: e.Owner, Amount: e.Amount.toDomain()})
		}
		for _, e := range f.Outputs {
			mv.Outputs = append(mv.Outputs, contract.CashEntry{Owner: e.Owner, Amount: e.Amount.toDomain()})
		}
		movements = append(movements, mv)
	}
	return movements, nil
}

// --- job commands ---

func jobCmd() *cobra.Command {
	job := &cobra.Command{
		Use:   "job",
		Short: "Manage jobs",
		Long:  "Jobs are agreed works contracts. Agree one from a YAML file, then drive its milestones and tasks with transitions.",
	}
	job.AddCommand(jobAgreeCmd())
	job.AddCommand(jobListCmd())
	job.AddCommand(jobShowCmd())
	job.AddCommand(jobHistoryCmd())
	return job
}

func jobAgreeCmd() *cobra.Command {
	var filePath string
	var signers []string
	cmd := &cobra.Command{
		Use:   "agree",
		Short: "Agree a new job from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			var jf jobFile
			if err := yaml.Unmarshal(data, &jf); err != nil {
				return fmt.Errorf("invalid job yaml: %w", err)
			}
			j, err := domain.NewJob(jf.toOptions())
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				snap, err := e.AgreeJob(ctx, engine.AgreeJobOptions{
					Job:     j,
					Signers: signers,
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(snap)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to job YAML")
	cmd.Flags().StringArrayVar(&signers, "signer", []string{}, "signer identity (repeatable)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func jobListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				jobs, err := r.ListJobs(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(jobs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Developer", "Contractor", "Currency", "Version", "Updated"})
				for _, j := range jobs {
					tw.AppendRow(table.Row{j.ID, j.Developer, j.Contractor, j.Currency, j.Version, j.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func jobShowCmd() *cobra.Command {
	var version int64
	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show the latest (or a specific) snapshot of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				var snap domain.Snapshot
				var err error
				if cmd.Flags().Changed("version") {
					snap, err = r.SnapshotAt(ctx, jobID, version)
				} else {
					snap, err = r.LatestSnapshot(ctx, jobID)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(snap)
			})
		},
	}
	cmd.Flags().Int64Var(&version, "version", 0, "snapshot version (defaults to latest)")
	return cmd
}

func jobHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <job-id>",
		Short: "Show every accepted version of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				snaps, err := r.History(ctx, jobID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(snaps)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Version", "Command", "Created"})
				for _, s := range snaps {
					tw.AppendRow(table.Row{s.Version, s.Command, s.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

// --- milestone and task commands ---

func milestoneCmd() *cobra.Command {
	m := &cobra.Command{
		Use:   "milestone",
		Short: "Drive milestone transitions",
		Long:  "Milestones move NOT_STARTED -> STARTED -> COMPLETED -> ACCEPTED -> PAID. Rejecting a completed milestone sends it and its tasks back to STARTED.",
	}
	m.AddCommand(milestoneTransitionCmd("start", "Start a task-less milestone", "start-milestone"))
	m.AddCommand(milestoneTransitionCmd("finish", "Finish a started milestone", "finish-milestone"))
	m.AddCommand(milestoneTransitionCmd("reject", "Reject a completed milestone", "reject-milestone"))
	m.AddCommand(milestoneTransitionCmd("accept", "Accept a completed milestone", "accept-milestone"))
	m.AddCommand(milestonePayCmd())
	return m
}

func milestoneTransitionCmd(use, short, command string) *cobra.Command {
	var index int
	var signers []string
	cmd := &cobra.Command{
		Use:   use + " <job-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(cmd.Context(), args[0], command, index, 0, signers, nil)
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "milestone index")
	cmd.Flags().StringArrayVar(&signers, "signer", []string{}, "signer identity (repeatable)")
	return cmd
}

func milestonePayCmd() *cobra.Command {
	var index int
	var signers []string
	var cashFile string
	cmd := &cobra.Command{
		Use:   "pay <job-id>",
		Short: "Pay an accepted milestone against a cash movement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cash, err := loadCashFile(cashFile)
			if err != nil {
				return err
			}
			return runTransition(cmd.Context(), args[0], "pay-milestone", index, 0, signers, cash)
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "milestone index")
	cmd.Flags().StringArrayVar(&signers, "signer", []string{}, "signer identity (repeatable)")
	cmd.Flags().StringVar(&cashFile, "cash-file", "", "path to cash movement YAML")
	_ = cmd.MarkFlagRequired("cash-file")
	return cmd
}

func taskCmd() *cobra.Command {
	t := &cobra.Command{
		Use:   "task",
		Short: "Drive task transitions",
		Long:  "Tasks are units of work inside a milestone, addressed by milestone and task index. Starting the first task also starts its milestone.",
	}
	t.AddCommand(taskTransitionCmd("start", "Start a task", "start-task"))
	t.AddCommand(taskTransitionCmd("finish", "Finish a started task", "finish-task"))
	return t
}

func taskTransitionCmd(use, short, command string) *cobra.Command {
	var milestoneIndex, taskIndex int
	var signers []string
	cmd := &cobra.Command{
		Use:   use + " <job-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(cmd.Context(), args[0], command, milestoneIndex, taskIndex, signers, nil)
		},
	}
	cmd.Flags().IntVar(&milestoneIndex, "milestone", 0, "milestone index")
	cmd.Flags().IntVar(&taskIndex, "task", 0, "task index")
	cmd.Flags().StringArrayVar(&signers, "signer", []string{}, "signer identity (repeatable)")
	return cmd
}

func runTransition(ctx context.Context, jobID, name string, milestoneIndex, taskIndex int, signers []string, cash []contract.CashMovement) error {
	command, err := contract.ParseCommand(name, milestoneIndex, taskIndex)
	if err != nil {
		return err
	}
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		snap, err := e.ApplyTransition(ctx, engine.ApplyTransitionOptions{
			JobID:   jobID,
			Command: command,
			Signers: signers,
			Cash:    cash,
			ActorID: viper.GetString("actor-id"),
		})
		if err != nil {
			return err
		}
		return printJSONOrTable(snap)
	})
}

// --- document commands ---

func documentCmd() *cobra.Command {
	doc := &cobra.Command{
		Use:   "document",
		Short: "Manage registered documents",
	}
	doc.AddCommand(documentRegisterCmd())
	doc.AddCommand(documentListCmd())
	doc.AddCommand(documentShowCmd())
	return doc
}

func documentRegisterCmd() *cobra.Command {
	var name, hash, owner string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a document record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				owner = viper.GetString("actor-id")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				doc, err := e.RegisterDocument(ctx, engine.RegisterDocumentOptions{
					Name:    name,
					Hash:    hash,
					Owner:   owner,
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(doc)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "document name")
	cmd.Flags().StringVar(&hash, "hash", "", "content hash")
	cmd.Flags().StringVar(&owner, "owner", "", "owner identity (defaults to actor)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("hash")
	return cmd
}

func documentListCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				docs, err := r.ListDocuments(ctx, owner)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(docs)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Owner", "Created"})
				for _, d := range docs {
					tw.AppendRow(table.Row{d.ID, d.Name, d.Owner, d.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner filter")
	return cmd
}

func documentShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				doc, err := r.GetDocument(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(doc)
			})
		},
	}
	return cmd
}

// --- config commands ---

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Manage workspace config",
		Long:  "jobledger.yml holds the party catalog, payment currency, retention percentage and document kinds for a workspace.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var ledgerID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default jobledger.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !viper.GetBool("force") {
				return fmt.Errorf("%s already exists; use --force to overwrite", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(ledgerID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&ledgerID, "id", "site-ledger", "ledger id")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.ResolveConfig(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate jobledger.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

// --- api key commands ---

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys for the HTTP server",
	}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyDeleteCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var actor, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the raw key is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actor == "" {
				actor = viper.GetString("actor-id")
			}
			raw := uuid.New().String()
			key := domain.APIKey{
				ID:      uuid.New().String(),
				ActorID: actor,
				Name:    name,
				KeyHash: repo.HashAPIKey(raw),
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"id": key.ID, "actor_id": key.ActorID, "key": raw})
				}
				fmt.Printf("API key %s for %s\n", key.ID, key.ActorID)
				fmt.Printf("Key (store it now, it is not recoverable): %s\n", raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor the key authenticates as (defaults to actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, actor)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.ActorID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor filter")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

// --- log commands ---

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, jobID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, repo.EventFilters{JobID: jobID, Type: evtType})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Job", "Actor"})
				for _, e := range events {
					tw.AppendRow(table.Row{e.ID, e.TS, e.Type, e.JobID, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&jobID, "job", "", "job id filter")
	return cmd
}

// --- serve ---

func serveCmd() *cobra.Command {
	var addr, basePath, anonActor string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := app.ResolveConfig(workspace)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:           os.Getenv("JOBLEDGER_JWT_SECRET"),
				AllowAnonymousActor: anonActor,
			}
			if authCfg.JWTSecret == "" && anonActor == "" {
				return fmt.Errorf("JOBLEDGER_JWT_SECRET is required for bearer auth (or pass --allow-anonymous-actor for local development)")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Jobledger API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().StringVar(&anonActor, "allow-anonymous-actor", "", "map unauthenticated requests to this actor (local development only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := app.ResolveConfig(workspace)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
