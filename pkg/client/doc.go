// Package client is the Veritas Go SDK.
//
// It covers the full engine surface: opening validation rounds, submitting
// attestation completions on behalf of the network, administering scoring
// rules, and reading the hash-chained completion journal.
//
// # Opening a validation
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	task, err := c.OpenValidation(ctx, client.OpenValidationRequest{
//	    RuleID:  1,
//	    Subject: "0x8a3b...",
//	})
//	fmt.Println(task.TaskID) // 64-char hex identifier
//
// # Polling for the result
//
//	task, err := c.GetTask(ctx, taskID)
//	if task.Status == "processed" {
//	    fmt.Println(*task.Score)
//	}
//
// # Administering rules
//
// Rule mutation requires the deployment's admin secret:
//
//	c, _ := client.New(engineURL,
//	    client.WithAdminSecret(os.Getenv("VERITAS_ADMIN_SECRET")),
//	)
//	rule, _ := c.CreateRule(ctx, client.CreateRuleRequest{
//	    DataKey:     "btcPrice",
//	    MaxAge:      300,
//	    Description: "btc price sanity",
//	})
//	c.AddCheck(ctx, rule.RuleID, client.AddCheckRequest{
//	    Kind:   "range",
//	    Params: json.RawMessage(`{"min":"60000.00","max":"100000.00"}`),
//	    Weight: 100,
//	})
//
// # Dry-run scoring
//
// Evaluate scores a blob against a rule's current checks without opening a
// task, which makes rule configuration testable before deployment:
//
//	report, _ := c.Evaluate(ctx, rule.RuleID, `{"btcPrice":"68164.45"}`)
//	fmt.Println(report.Score) // 0..100
//
// # Submitting completions
//
// Attestor-side integrations deliver completion callbacks through
// SubmitCallback. When the engine verifies network tokens, attach one with
// WithBearerToken:
//
//	c, _ := client.New(engineURL, client.WithBearerToken(token))
//	result, err := c.SubmitCallback(ctx, client.Callback{
//	    TaskID:    taskID,
//	    Data:      attestedBlob,
//	    Timestamp: time.Now().Unix(),
//	    Success:   true,
//	})
//
// A replayed completion is not an error: result.Status reports
// "already_processed" and the task carries its original score.
//
// # Auditing the journal
//
//	overview, _ := c.JournalOverview(ctx)
//	ok, _ := c.VerifyJournal(ctx)
//	entry, _ := c.JournalEntry(ctx, overview.Entries-1)
package client
