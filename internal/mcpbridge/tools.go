package mcpbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xiangxiecrypto/veritas-sub001/internal/extract"
	"github.com/xiangxiecrypto/veritas-sub001/pkg/client"
	"github.com/xiangxiecrypto/veritas-sub001/pkg/fixedpoint"
)

// ToolDefinition is the MCP tool descriptor sent in tools/list responses.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func ok(text string) (string, bool)   { return text, false }
func fail(text string) (string, bool) { return text, true }
func failf(format string, a ...any) (string, bool) {
	return fmt.Sprintf(format, a...), true
}

// ToolRegistry holds the engine client and the definitions/handlers for all
// tools.
type ToolRegistry struct {
	c    *client.Client
	defs []ToolDefinition
}

// NewToolRegistry creates a ToolRegistry backed by the given engine client.
func NewToolRegistry(c *client.Client) *ToolRegistry {
	r := &ToolRegistry{c: c}
	r.defs = []ToolDefinition{
		{
			Name: "evaluate_payload",
			Description: "Score a JSON data blob against a validation rule's current checks. " +
				"This is a dry run: no task is opened and no state changes. " +
				"Returns the 0-100 score and the pass/fail outcome of every check.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"rule_id": map[string]any{
						"type":        "integer",
						"description": "The rule to score against (see list_rules)",
					},
					"data": map[string]any{
						"type":        "string",
						"description": `The JSON blob to score, e.g. {"btcPrice":"68164.45"}`,
					},
				},
				"required": []string{"rule_id", "data"},
			},
		},
		{
			Name: "extract_value",
			Description: "Extract a numeric value from a JSON data blob by dotted key path, " +
				"using the engine's byte-scan extraction with 2-decimal fixed-point truncation. " +
				"Use this to preview exactly what a range or threshold check would see.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"data": map[string]any{
						"type":        "string",
						"description": "The JSON blob to scan",
					},
					"key": map[string]any{
						"type":        "string",
						"description": "Dotted key path, e.g. btcPrice or quote.usd.price",
					},
				},
				"required": []string{"data", "key"},
			},
		},
		{
			Name: "list_rules",
			Description: "List the validation rules registered in the engine, including each " +
				"rule's data key, freshness window, and active flag.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"include_inactive": map[string]any{
						"type":        "boolean",
						"description": "Also return disabled rules. Defaults to false.",
					},
				},
			},
		},
		{
			Name: "get_task",
			Description: "Fetch a validation task by its 64-char hex identifier. " +
				"Returns the task's status, and the final score once processed.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_id": map[string]any{
						"type":        "string",
						"description": "The 64-char hex task identifier",
					},
				},
				"required": []string{"task_id"},
			},
		},
	}
	return r
}

// Definitions returns the list of tool definitions for tools/list responses.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	return r.defs
}

// Call dispatches a tool call by name and returns (output text, isError).
func (r *ToolRegistry) Call(ctx context.Context, name string, args json.RawMessage) (string, bool) {
	switch name {
	case "evaluate_payload":
		return r.evaluatePayload(ctx, args)
	case "extract_value":
		return r.extractValue(args)
	case "list_rules":
		return r.listRules(ctx, args)
	case "get_task":
		return r.getTask(ctx, args)
	default:
		return failf("unknown tool: %q", name)
	}
}

// ── tool handlers ────────────────────────────────────────────────────────────

func (r *ToolRegistry) evaluatePayload(ctx context.Context, args json.RawMessage) (string, bool) {
	var in struct {
		RuleID int64  `json:"rule_id"`
		Data   string `json:"data"`
	}
	if err := json.Unmarshal(args, &in); err != nil || in.RuleID == 0 || in.Data == "" {
		return fail("rule_id and data are required")
	}

	report, err := r.c.Evaluate(ctx, in.RuleID, in.Data)
	if err != nil {
		return failf("evaluate failed: %v", err)
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	return ok(string(out))
}

// extractValue runs locally — extraction is deterministic and needs no
// engine round trip.
func (r *ToolRegistry) extractValue(args json.RawMessage) (string, bool) {
	var in struct {
		Data string `json:"data"`
		Key  string `json:"key"`
	}
	if err := json.Unmarshal(args, &in); err != nil || in.Data == "" || in.Key == "" {
		return fail("data and key are required")
	}

	value, found := extract.Value([]byte(in.Data), in.Key)
	out, _ := json.MarshalIndent(map[string]any{
		"key":       in.Key,
		"found":     found,
		"value":     fixedpoint.Format(value),
		"raw_units": value.String(),
	}, "", "  ")
	return ok(string(out))
}

func (r *ToolRegistry) listRules(ctx context.Context, args json.RawMessage) (string, bool) {
	var in struct {
		IncludeInactive bool `json:"include_inactive"`
	}
	_ = json.Unmarshal(args, &in)

	rules, err := r.c.ListRules(ctx, in.IncludeInactive)
	if err != nil {
		return failf("list rules failed: %v", err)
	}
	if len(rules) == 0 {
		return ok("No rules registered.")
	}

	out, _ := json.MarshalIndent(rules, "", "  ")
	return ok(string(out))
}

func (r *ToolRegistry) getTask(ctx context.Context, args json.RawMessage) (string, bool) {
	var in struct {
		TaskID string `json:"task_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil || in.TaskID == "" {
		return fail("task_id is required")
	}

	task, err := r.c.GetTask(ctx, in.TaskID)
	if err != nil {
		return failf("get task failed: %v", err)
	}

	out, _ := json.MarshalIndent(task, "", "  ")
	return ok(string(out))
}
