// Package parser validates and normalizes a raw response payload into a
// canonical model.Response. It never panics on malformed input; callers
// receive either a *Result or a *ParseError naming the offending fields.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/veritas-labs/mse/internal/model"
)

// FieldError names one rejected field and why.
type FieldError struct {
	Field  string
	Reason string
}

// ParseError collects one or more FieldErrors from a single Parse call.
type ParseError struct {
	Errors []FieldError
}

func (e *ParseError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fmt.Sprintf("%s: %s", fe.Field, fe.Reason)
	}
	return "parser: " + strings.Join(parts, "; ")
}

// Warning is a non-fatal normalization note surfaced alongside a parsed
// Response (e.g. a truncated rationale or an unrecognized principle tag).
type Warning struct {
	Field  string
	Reason string
}

// Result is a successfully parsed response plus any warnings raised
// while normalizing it.
type Result struct {
	Response model.Response
	Warnings []Warning
}

// responseAliases maps accepted camelCase/snake_case payload keys to
// their canonical field name. The core Response struct stays strongly
// typed; only payload ingestion is alias-tolerant, per the dynamic
// payload tolerance design note.
var responseAliases = map[string]string{
	"choice":           "choice",
	"forced_choice":    "forced_choice",
	"forcedChoice":     "forced_choice",
	"permissibility":   "permissibility",
	"confidence":       "confidence",
	"principles":       "principles",
	"rationale":        "rationale",
	"info_needed":      "info_needed",
	"infoNeeded":       "info_needed",
	"response_time_ms": "response_time_ms",
	"responseTimeMs":   "response_time_ms",
}

// Canonicalize rewrites payload keys through an alias table, leaving
// unrecognized keys untouched so callers can report them.
func Canonicalize(payload map[string]any, aliases map[string]string) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		if canon, ok := aliases[k]; ok {
			out[canon] = v
			continue
		}
		out[k] = v
	}
	return out
}

const maxRationaleLen = 200
const maxPrinciples = 3

var choiceOptionRe = regexp.MustCompile(`(?i)\bi\s+choose\s+option\s+([a-d])\b`)

// Parse validates and normalizes an arbitrary structured payload into a
// canonical model.Response. AxisID and ItemID are attributed by the
// caller (the session orchestrator, which knows the item being
// answered) and are not expected in the payload.
func Parse(payload map[string]any) (*Result, error) {
	payload = Canonicalize(payload, responseAliases)
	var errs []FieldError
	var warnings []Warning

	rawChoice, _ := payload["choice"].(string)
	rawChoice = strings.ToUpper(strings.TrimSpace(rawChoice))
	if rawChoice == "" {
		errs = append(errs, FieldError{"choice", "required"})
	} else if rawChoice != "A" && rawChoice != "B" && rawChoice != "C" && rawChoice != "D" {
		errs = append(errs, FieldError{"choice", "must be one of A,B,C,D"})
	}

	forced := model.ForcedChoiceB
	if rawChoice == "A" || rawChoice == "C" {
		forced = model.ForcedChoiceA
	}
	if raw, ok := payload["forced_choice"].(string); ok && raw != "" {
		switch strings.ToUpper(strings.TrimSpace(raw)) {
		case "A":
			forced = model.ForcedChoiceA
		case "B":
			forced = model.ForcedChoiceB
		}
	}

	permissibility, permErr := numericField(payload, "permissibility")
	if permErr != "" {
		errs = append(errs, FieldError{"permissibility", permErr})
	} else if permissibility < 0 || permissibility > 100 {
		errs = append(errs, FieldError{"permissibility", "field_out_of_range"})
	}

	confidence, confErr := numericField(payload, "confidence")
	if confErr != "" {
		errs = append(errs, FieldError{"confidence", confErr})
	} else if confidence < 0 || confidence > 100 {
		errs = append(errs, FieldError{"confidence", "field_out_of_range"})
	}

	principles, principleWarnings := normalizePrinciples(payload["principles"])
	warnings = append(warnings, principleWarnings...)

	rationale, _ := payload["rationale"].(string)
	if runes := []rune(rationale); len(runes) > maxRationaleLen {
		rationale = string(runes[:maxRationaleLen])
		warnings = append(warnings, Warning{"rationale", "truncated_to_200_chars"})
	}

	infoNeeded := stringSlice(payload["info_needed"])

	responseTimeMs, _ := numericField(payload, "response_time_ms")
	if responseTimeMs < 0 {
		responseTimeMs = 0
	}

	if len(errs) > 0 {
		return nil, &ParseError{Errors: errs}
	}

	return &Result{
		Response: model.Response{
			Choice:         model.Choice(rawChoice),
			ForcedChoice:   forced,
			Permissibility: permissibility,
			Confidence:     confidence,
			Principles:     principles,
			Rationale:      rationale,
			InfoNeeded:     infoNeeded,
			ResponseTimeMs: int64(responseTimeMs),
		},
		Warnings: warnings,
	}, nil
}

// ParseText attempts a best-effort extraction of "I choose option X" from
// free text, then defers to Parse for the remaining fields (defaulted to
// neutral values: permissibility/confidence 50, no rationale).
func ParseText(text string) (*Result, error) {
	m := choiceOptionRe.FindStringSubmatch(text)
	if m == nil {
		return nil, &ParseError{Errors: []FieldError{{"choice", "choice_unrecognized"}}}
	}
	return Parse(map[string]any{
		"choice":         strings.ToUpper(m[1]),
		"permissibility": 50.0,
		"confidence":     50.0,
		"rationale":      text,
	})
}

func numericField(payload map[string]any, key string) (float64, string) {
	v, ok := payload[key]
	if !ok || v == nil {
		return 0, "required"
	}
	switch n := v.(type) {
	case float64:
		return n, ""
	case int:
		return float64(n), ""
	case int64:
		return float64(n), ""
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, "not_numeric"
		}
		return f, ""
	default:
		return 0, "not_numeric"
	}
}

func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func normalizePrinciples(v any) ([]string, []Warning) {
	raw := stringSlice(v)
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	var warnings []Warning
	for _, tag := range raw {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		if !model.PrincipleVocabulary[tag] {
			warnings = append(warnings, Warning{"principles", "unknown_tag:" + tag})
		}
		out = append(out, tag)
		if len(out) == maxPrinciples {
			break
		}
	}
	return out, warnings
}
