package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/model"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/repository"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/ruleset"
	"github.com/xiangxiecrypto/veritas-sub001/internal/engine/service"
	"github.com/xiangxiecrypto/veritas-sub001/internal/extract"
	"github.com/xiangxiecrypto/veritas-sub001/pkg/client"
	"github.com/xiangxiecrypto/veritas-sub001/pkg/fixedpoint"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	engineURL   string
	adminSecret string
	cfgFile     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "veritas",
	Short: "Veritas attestation validation engine CLI",
	Long: `veritas is the command-line interface for the Veritas validation engine.

It administers scoring rules, opens validation rounds, inspects tasks and
the completion journal, and evaluates payloads locally against a
declarative rule document.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.veritas")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("veritas")
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if engineURL == "" {
			engineURL = viper.GetString("engine_url")
		}
		if engineURL == "" {
			engineURL = "http://localhost:8080"
		}
		if adminSecret == "" {
			adminSecret = viper.GetString("admin_secret")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.veritas/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&engineURL, "engine", "", "Engine base URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&adminSecret, "admin-secret", "", "Admin secret for rule administration (env VERITAS_ADMIN_SECRET)")

	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds an SDK client against the configured engine.
func newClient() (*client.Client, error) {
	opts := []client.Option{}
	if adminSecret != "" {
		opts = append(opts, client.WithAdminSecret(adminSecret))
	}
	return client.New(engineURL, opts...)
}

// ── rules ────────────────────────────────────────────────────────────────────

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Administer scoring rules on the engine",
	Long: `rules manages the engine's validation rules and their check bindings.

When the deployment sets an admin secret, every rules command requires it
(--admin-secret or VERITAS_ADMIN_SECRET).`,
}

var (
	rulesListAll    bool
	rulesListFormat string
)

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		rules, err := c.ListRules(context.Background(), rulesListAll)
		if err != nil {
			return fmt.Errorf("list rules: %w", err)
		}

		if rulesListFormat == "json" {
			return printJSON(rules)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDATA KEY\tMAX AGE\tACTIVE\tDESCRIPTION")
		for _, r := range rules {
			fmt.Fprintf(w, "%d\t%s\t%ds\t%t\t%s\n", r.RuleID, r.DataKey, r.MaxAge, r.Active, r.Description)
		}
		return w.Flush()
	},
}

var (
	createDataKey string
	createMaxAge  int64
	createDesc    string
)

var rulesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		rule, err := c.CreateRule(context.Background(), client.CreateRuleRequest{
			DataKey:     createDataKey,
			MaxAge:      createMaxAge,
			Description: createDesc,
		})
		if err != nil {
			return fmt.Errorf("create rule: %w", err)
		}

		fmt.Printf("✓ Rule created\n\n")
		fmt.Printf("  ID:      %d\n", rule.RuleID)
		fmt.Printf("  Key:     %s\n", rule.DataKey)
		fmt.Printf("  Max age: %ds\n\n", rule.MaxAge)
		fmt.Printf("Next: veritas rules add-check %d --kind range --params '{\"min\":\"0.00\",\"max\":\"100.00\"}' --weight 100\n", rule.RuleID)
		return nil
	},
}

func init() {
	rulesCreateCmd.Flags().StringVar(&createDataKey, "key", "", "Dotted path resolved inside attested payloads (e.g. data.rates.USD)")
	rulesCreateCmd.Flags().Int64Var(&createMaxAge, "max-age", 300, "Maximum attestation age in seconds")
	rulesCreateCmd.Flags().StringVar(&createDesc, "description", "", "Human-readable rule description")
	_ = rulesCreateCmd.MarkFlagRequired("key")
	_ = rulesCreateCmd.MarkFlagRequired("description")
}

var (
	addCheckKind   string
	addCheckParams string
	addCheckWeight int64
)

var rulesAddCheckCmd = &cobra.Command{
	Use:   "add-check <rule-id>",
	Short: "Bind a check to a rule",
	Long: `add-check binds one pass/fail condition to an existing rule.

Params are kind-specific JSON:

  range:      {"min": "60000.00", "max": "100000.00"}
  threshold:  {"expected": "68000.00", "max_deviation_bps": 100}
  min_count:  {"min_count": 3}
  contains:   {"substring": "ok"}
  expr:       {"expression": "value >= 0 && value <= 1000"}`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ruleID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid rule id %q", args[0])
		}
		if !json.Valid([]byte(addCheckParams)) {
			return fmt.Errorf("--params is not valid JSON")
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		chk, err := c.AddCheck(context.Background(), ruleID, client.AddCheckRequest{
			Kind:   addCheckKind,
			Params: json.RawMessage(addCheckParams),
			Weight: addCheckWeight,
		})
		if err != nil {
			return fmt.Errorf("add check: %w", err)
		}

		fmt.Printf("✓ Check %d (%s, weight %d) bound to rule %d\n", chk.CheckID, chk.Kind, chk.Weight, chk.RuleID)
		return nil
	},
}

func init() {
	rulesAddCheckCmd.Flags().StringVar(&addCheckKind, "kind", "", "Check kind: range, threshold, min_count, contains, or expr")
	rulesAddCheckCmd.Flags().StringVar(&addCheckParams, "params", "", "Kind-specific params as a JSON object")
	rulesAddCheckCmd.Flags().Int64Var(&addCheckWeight, "weight", 0, "Weight this check contributes to the score")
	_ = rulesAddCheckCmd.MarkFlagRequired("kind")
	_ = rulesAddCheckCmd.MarkFlagRequired("params")
}

var rulesChecksCmd = &cobra.Command{
	Use:   "checks <rule-id>",
	Short: "List the checks bound to a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ruleID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid rule id %q", args[0])
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		checks, err := c.ListChecks(context.Background(), ruleID)
		if err != nil {
			return fmt.Errorf("list checks: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKIND\tWEIGHT\tACTIVE\tPARAMS")
		for _, chk := range checks {
			fmt.Fprintf(w, "%d\t%s\t%d\t%t\t%s\n", chk.CheckID, chk.Kind, chk.Weight, chk.Active, string(chk.Params))
		}
		return w.Flush()
	},
}

var rulesActivateCmd = &cobra.Command{
	Use:   "activate <rule-id>",
	Short: "Re-enable a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleRule(args[0], true)
	},
}

var rulesDeactivateCmd = &cobra.Command{
	Use:   "deactivate <rule-id>",
	Short: "Disable a rule without deleting it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleRule(args[0], false)
	},
}

func toggleRule(arg string, active bool) error {
	ruleID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid rule id %q", arg)
	}

	c, err := newClient()
	if err != nil {
		return err
	}
	if err := c.SetRuleActive(context.Background(), ruleID, active); err != nil {
		return fmt.Errorf("toggle rule: %w", err)
	}

	state := "deactivated"
	if active {
		state = "activated"
	}
	fmt.Printf("✓ Rule %d %s\n", ruleID, state)
	return nil
}

func init() {
	rulesListCmd.Flags().BoolVar(&rulesListAll, "all", false, "Include deactivated rules")
	rulesListCmd.Flags().StringVar(&rulesListFormat, "format", "text", "Output format: text or json")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesCreateCmd)
	rulesCmd.AddCommand(rulesAddCheckCmd)
	rulesCmd.AddCommand(rulesChecksCmd)
	rulesCmd.AddCommand(rulesActivateCmd)
	rulesCmd.AddCommand(rulesDeactivateCmd)
}

// ── evaluate ─────────────────────────────────────────────────────────────────

var (
	evalRulesFile string
	evalRuleID    int64
	evalFormat    string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [payload.json]",
	Short: "Score a payload against rules, locally or on the engine",
	Long: `evaluate scores an attested payload and prints the per-check outcomes.

With --rules the whole pass runs locally: the rule document is loaded into
an in-memory store and scored without touching an engine. With --rule the
payload is sent to the engine's dry-run endpoint instead. Neither path
creates a task or moves any state.

The payload is read from the file argument, or from stdin when the argument
is omitted or "-":

  veritas evaluate --rules configs/rules.seed.yaml payload.json
  echo '{"btcPrice":"68164.45"}' | veritas evaluate --rule 1`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

func init() {
	evaluateCmd.Flags().StringVar(&evalRulesFile, "rules", "", "Rule document for a local pass (yaml)")
	evaluateCmd.Flags().Int64Var(&evalRuleID, "rule", 0, "Rule ID for an engine-side dry run")
	evaluateCmd.Flags().StringVar(&evalFormat, "format", "text", "Output format: text or json")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	if (evalRulesFile == "") == (evalRuleID == 0) {
		return fmt.Errorf("exactly one of --rules (local) or --rule (engine) is required")
	}

	payload, err := readPayload(args)
	if err != nil {
		return err
	}

	if evalRulesFile != "" {
		return evaluateLocal(payload)
	}
	return evaluateRemote(payload)
}

func evaluateLocal(payload []byte) error {
	doc, err := ruleset.LoadFile(evalRulesFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store := repository.NewMemoryRuleStore()
	rules, err := doc.Apply(ctx, store)
	if err != nil {
		return fmt.Errorf("apply rule document: %w", err)
	}

	scorer := service.NewScorer(store, zap.NewNop())
	reports := make([]*model.ScoreReport, len(rules))
	for i, rule := range rules {
		report, err := scorer.Score(ctx, rule, payload)
		if err != nil {
			return fmt.Errorf("score rule %d: %w", rule.ID, err)
		}
		reports[i] = report
	}

	if evalFormat == "json" {
		if len(reports) == 1 {
			return printJSON(reports[0])
		}
		return printJSON(reports)
	}

	for i, rule := range rules {
		if i > 0 {
			fmt.Println()
		}
		report := reports[i]
		fmt.Printf("Rule %d (%s): score %d/100  (weight %d of %d)\n",
			rule.ID, rule.DataKey, report.Score, report.TotalWeight, report.MaxWeight)

		rows := make([]outcomeRow, len(report.Outcomes))
		for j, o := range report.Outcomes {
			rows[j] = outcomeRow{
				id:     o.CheckID,
				kind:   string(o.Kind),
				weight: o.Weight,
				passed: o.Passed,
				value:  o.Value,
				errMsg: o.Err,
			}
		}
		if err := printOutcomes(rows); err != nil {
			return err
		}
	}
	return nil
}

func evaluateRemote(payload []byte) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	report, err := c.Evaluate(context.Background(), evalRuleID, string(payload))
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	if evalFormat == "json" {
		return printJSON(report)
	}

	fmt.Printf("Rule %d: score %d/100  (weight %d of %d)\n",
		report.RuleID, report.Score, report.TotalWeight, report.MaxWeight)

	rows := make([]outcomeRow, len(report.Checks))
	for i, o := range report.Checks {
		rows[i] = outcomeRow{
			id:     o.CheckID,
			kind:   o.Kind,
			weight: o.Weight,
			passed: o.Passed,
			value:  o.Value,
			errMsg: o.Error,
		}
	}
	return printOutcomes(rows)
}

// outcomeRow is one line of the evaluate table, shared by the local and
// engine-side paths.
type outcomeRow struct {
	id     int64
	kind   string
	weight int64
	passed bool
	value  string
	errMsg string
}

func printOutcomes(rows []outcomeRow) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  CHECK\tKIND\tWEIGHT\tRESULT\tVALUE")
	for _, r := range rows {
		result := "pass"
		if !r.passed {
			result = "FAIL"
		}
		value := r.value
		if r.errMsg != "" {
			value = r.errMsg
		}
		fmt.Fprintf(w, "  %d\t%s\t%d\t%s\t%s\n", r.id, r.kind, r.weight, result, value)
	}
	return w.Flush()
}

// ── extract ──────────────────────────────────────────────────────────────────

var (
	extractKey   string
	extractCount bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [payload.json]",
	Short: "Resolve a dotted path inside a payload and print the value",
	Long: `extract runs the engine's value extraction locally: a linear scan for each
quoted key segment followed by a colon, with the numeric token at the value
position read to two implied decimal places (extra digits truncate, missing
digits pad).

  veritas extract --key data.rates.USD payload.json
  echo '{"followers": 1523}' | veritas extract --key followers --count`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractKey, "key", "", "Dotted path to resolve (e.g. data.rates.USD)")
	extractCmd.Flags().BoolVar(&extractCount, "count", false, "Read a whole count instead of a fixed-point value")
	_ = extractCmd.MarkFlagRequired("key")
}

func runExtract(cmd *cobra.Command, args []string) error {
	payload, err := readPayload(args)
	if err != nil {
		return err
	}

	if extractCount {
		n, found := extract.Count(payload, extractKey)
		if !found {
			return fmt.Errorf("key %q not found", extractKey)
		}
		fmt.Println(n.String())
		return nil
	}

	v, found := extract.Value(payload, extractKey)
	if !found {
		return fmt.Errorf("key %q not found", extractKey)
	}
	fmt.Printf("%s (scaled: %s)\n", fixedpoint.Format(v), v.String())
	return nil
}

// ── task / history ───────────────────────────────────────────────────────────

var taskCmd = &cobra.Command{
	Use:   "task <task-id>",
	Short: "Show one validation task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		task, err := c.GetTask(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}
		printTask(task)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <subject>",
	Short: "List a subject's validation history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		tasks, err := c.ListSubjectTasks(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TASK\tRULE\tSTATUS\tSCORE\tCREATED")
		for _, t := range tasks {
			score := "-"
			if t.Score != nil {
				score = strconv.Itoa(*t.Score)
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				t.TaskID, t.RuleID, t.Status, score, t.CreatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func printTask(t *client.Task) {
	fmt.Printf("Task:      %s\n", t.TaskID)
	fmt.Printf("Rule:      %d\n", t.RuleID)
	fmt.Printf("Subject:   %s\n", t.Subject)
	if t.Requester != "" {
		fmt.Printf("Requester: %s\n", t.Requester)
	}
	fmt.Printf("Status:    %s\n", t.Status)
	if t.Score != nil {
		fmt.Printf("Score:     %d\n", *t.Score)
	}
	if t.PayloadDigest != "" {
		fmt.Printf("Digest:    %s\n", t.PayloadDigest)
	}
	fmt.Printf("Created:   %s\n", t.CreatedAt.Format(time.RFC3339))
	if t.ProcessedAt != nil {
		fmt.Printf("Processed: %s\n", t.ProcessedAt.Format(time.RFC3339))
	}
}

// ── validate ─────────────────────────────────────────────────────────────────

var (
	validateRuleID    int64
	validateSubject   string
	validateRequester string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Open a validation round on the engine",
	Long: `validate opens a validation round: the engine creates a pending task and
submits it to the attestation network. The task identifier printed here is
the handle for tracking the completion.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		task, err := c.OpenValidation(context.Background(), client.OpenValidationRequest{
			RuleID:    validateRuleID,
			Subject:   validateSubject,
			Requester: validateRequester,
		})
		if err != nil {
			return fmt.Errorf("open validation: %w", err)
		}

		fmt.Printf("✓ Validation opened\n\n")
		printTask(task)
		fmt.Printf("\nNext: veritas task %s\n", task.TaskID)
		return nil
	},
}

func init() {
	validateCmd.Flags().Int64Var(&validateRuleID, "rule", 0, "Rule ID to validate against")
	validateCmd.Flags().StringVar(&validateSubject, "subject", "", "Subject identity being validated")
	validateCmd.Flags().StringVar(&validateRequester, "requester", "", "Identity requesting the validation (defaults to the subject)")
	_ = validateCmd.MarkFlagRequired("rule")
	_ = validateCmd.MarkFlagRequired("subject")
}

// ── journal ──────────────────────────────────────────────────────────────────

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the hash-chained completion journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		overview, err := c.JournalOverview(context.Background())
		if err != nil {
			return fmt.Errorf("journal overview: %w", err)
		}

		fmt.Printf("Entries: %d\n", overview.Entries)
		fmt.Printf("Root:    %s\n", overview.Root)
		return nil
	},
}

var journalVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Walk the completion chain and verify every link",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		ok, err := c.VerifyJournal(context.Background())
		if err != nil {
			return fmt.Errorf("verify journal: %w", err)
		}
		if !ok {
			return fmt.Errorf("journal verification FAILED: the chain is broken")
		}
		fmt.Println("✓ Journal verified")
		return nil
	},
}

var journalEntryCmd = &cobra.Command{
	Use:   "entry <index>",
	Short: "Show one journal entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}

		c, err := newClient()
		if err != nil {
			return err
		}
		entry, err := c.JournalEntry(context.Background(), index)
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}
		return printJSON(entry)
	},
}

func init() {
	journalCmd.AddCommand(journalVerifyCmd)
	journalCmd.AddCommand(journalEntryCmd)
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the veritas CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("veritas %s\n", version)
	},
}

// ── helpers ──────────────────────────────────────────────────────────────────

// readPayload returns the payload bytes from the file argument, or stdin
// when the argument is omitted or "-".
func readPayload(args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
