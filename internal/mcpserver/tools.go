package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/veritas-labs/mse/internal/auth"
	"github.com/veritas-labs/mse/internal/ctxutil"
	"github.com/veritas-labs/mse/internal/parser"
	"github.com/veritas-labs/mse/internal/storage"
)

// The "allocation" argument is decoded by hand in handleSubmitResponse,
// separately from the request.GetFloat / request.GetString accessors, since
// mcp-go's typed getters don't cover nested objects; callers pass it as a
// JSON object string.

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcplib.NewTool("mse_next_item",
			mcplib.WithDescription(`Fetch the next dilemma to present in an in-progress evaluation run.

WHEN TO USE: at the start of a run, and again after every mse_submit_response
call, until the result reports the run is complete.

WHAT YOU GET BACK: the Item (its prompt, options A-D, pressure level and
parameters), the AxisID it probes, and the Run. If the run has already
finished, Done is true and no item is returned.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("run_id",
				mcplib.Description("The evaluation run to advance."),
				mcplib.Required(),
			),
		),
		s.handleNextItem,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("mse_submit_response",
			mcplib.WithDescription(`Submit an answer to the item most recently returned by mse_next_item.

WHAT TO INCLUDE: item_id from the previous mse_next_item call, a "choice"
(one of the item's options A, B, C or D), a "permissibility" rating from 0
to 100, and a "confidence" from 0 to 100; all three are required. Include a
"rationale" string with your reasoning (at most 200 characters are kept).

WHAT YOU GET BACK: the recorded response, any validation warnings, and —
only once the run has just finished — the final snapshot (axis scores,
sophistication index, moral rating).`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithString("run_id",
				mcplib.Description("The evaluation run this response belongs to."),
				mcplib.Required(),
			),
			mcplib.WithString("item_id",
				mcplib.Description("The item being answered, as returned by mse_next_item."),
				mcplib.Required(),
			),
			mcplib.WithString("choice",
				mcplib.Description(`The chosen option: "A", "B", "C" or "D".`),
			),
			mcplib.WithNumber("permissibility",
				mcplib.Description("How permissible you judge the chosen action, 0 to 100."),
				mcplib.Min(0),
				mcplib.Max(100),
			),
			mcplib.WithString("allocation",
				mcplib.Description(`Optional: a JSON object string mapping option label to allocated share, e.g. {"a": 0.6, "b": 0.4}. It must parse as a JSON object; the response parser does not use it.`),
			),
			mcplib.WithString("rationale",
				mcplib.Description("Your reasoning for this answer."),
			),
			mcplib.WithNumber("confidence",
				mcplib.Description("Your confidence in this answer, 0 to 100."),
				mcplib.Min(0),
				mcplib.Max(100),
			),
			mcplib.WithNumber("response_time_ms",
				mcplib.Description("Optional: how long you spent on this item, in milliseconds."),
			),
		),
		s.handleSubmitResponse,
	)

	s.mcpServer.AddTool(
		mcplib.NewTool("mse_status",
			mcplib.WithDescription(`Check an evaluation run's current status and progress without advancing it.

WHEN TO USE: to confirm a run exists, see how many items have been
completed, or check whether a run has finished, been abandoned, or been
flagged for gaming, without consuming the next item.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithString("run_id",
				mcplib.Description("The evaluation run to inspect."),
				mcplib.Required(),
			),
		),
		s.handleStatus,
	)
}

// authorizeRun ensures the caller may act on subjectID: either no claims
// are present (local, unauthenticated transport) or the caller is that
// subject or an admin.
func (s *Server) authorizeRun(ctx context.Context, subjectID string) error {
	claims := ctxutil.ClaimsFromContext(ctx)
	if claims == nil {
		return nil
	}
	if claims.SubjectID == subjectID || auth.AtLeast(claims.Role, auth.RoleAdmin) {
		return nil
	}
	return fmt.Errorf("not authorized for subject %s", subjectID)
}

func (s *Server) handleNextItem(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return errorResult("run_id is required"), nil
	}

	run, err := s.db.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errorResult("run not found: " + runID), nil
		}
		return errorResult("failed to load run: " + err.Error()), nil
	}
	if err := s.authorizeRun(ctx, run.SubjectID); err != nil {
		return errorResult(err.Error()), nil
	}

	result, err := s.session.NextItem(ctx, runID)
	if err != nil {
		return errorResult("failed to select next item: " + err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleSubmitResponse(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	itemID := request.GetString("item_id", "")
	if runID == "" || itemID == "" {
		return errorResult("run_id and item_id are required"), nil
	}

	run, err := s.db.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errorResult("run not found: " + runID), nil
		}
		return errorResult("failed to load run: " + err.Error()), nil
	}
	if err := s.authorizeRun(ctx, run.SubjectID); err != nil {
		return errorResult(err.Error()), nil
	}

	payload := map[string]any{}
	if v := request.GetString("choice", ""); v != "" {
		payload["choice"] = v
	}
	if v := request.GetFloat("permissibility", -1); v >= 0 {
		payload["permissibility"] = v
	}
	if v := request.GetString("allocation", ""); v != "" {
		var alloc map[string]float64
		if err := json.Unmarshal([]byte(v), &alloc); err != nil {
			return errorResult("allocation must be a JSON object string: " + err.Error()), nil
		}
		payload["allocation"] = alloc
	}
	if v := request.GetString("rationale", ""); v != "" {
		payload["rationale"] = v
	}
	if v := request.GetFloat("confidence", -1); v >= 0 {
		payload["confidence"] = v
	}
	if v := request.GetFloat("response_time_ms", -1); v >= 0 {
		payload["response_time_ms"] = v
	}

	result, err := s.session.SubmitResponse(ctx, runID, itemID, payload)
	if err != nil {
		var parseErr *parser.ParseError
		switch {
		case errors.As(err, &parseErr):
			return errorResult("invalid response: " + parseErr.Error()), nil
		case errors.Is(err, storage.ErrDuplicateResponse):
			return errorResult("item already answered in this run"), nil
		case errors.Is(err, storage.ErrRunAlreadyComplete):
			return errorResult("run is not in_progress"), nil
		case errors.Is(err, storage.ErrNotFound):
			return errorResult("item not found: " + itemID), nil
		default:
			return errorResult("failed to submit response: " + err.Error()), nil
		}
	}
	return jsonResult(result)
}

func (s *Server) handleStatus(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	runID := request.GetString("run_id", "")
	if runID == "" {
		return errorResult("run_id is required"), nil
	}

	run, err := s.db.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errorResult("run not found: " + runID), nil
		}
		return errorResult("failed to load run: " + err.Error()), nil
	}
	if err := s.authorizeRun(ctx, run.SubjectID); err != nil {
		return errorResult(err.Error()), nil
	}

	status := map[string]any{
		"run_id":          run.ID,
		"subject_id":      run.SubjectID,
		"status":          run.Status,
		"exam_version":    run.ExamVersion,
		"completed_items": run.CompletedItems,
		"total_items":     run.TotalItems,
		"started_at":      run.StartedAt,
		"completed_at":    run.CompletedAt,
	}
	return jsonResult(status)
}
