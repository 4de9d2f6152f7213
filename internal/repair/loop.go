package repair

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/TedTes/genres-sub000/internal/llm"
	"github.com/TedTes/genres-sub000/internal/observability"
	"github.com/TedTes/genres-sub000/internal/prompts"
	"github.com/TedTes/genres-sub000/internal/schemas"
)

// DefaultMaxRepairs is the repair budget per model call.
const DefaultMaxRepairs = 2

// Generator is the subset of llm.Client the loop needs
type Generator interface {
	Chat(ctx context.Context, req llm.ChatRequest) (string, error)
}

// Request describes one contract-bound model call.
type Request struct {
	Contract schemas.Contract
	Messages []llm.Message
	Tier     llm.ModelTier
	// MaxRepairs is the number of re-prompts after the first answer. Zero uses DefaultMaxRepairs,
	// negative disables repair.
	MaxRepairs int
	Logger     *zap.Logger
}

// Result carries the decoded value and how it was obtained.
type Result[T any] struct {
	Value   *T
	Raw     string
	Repairs int
}

// Decode asks the model for a document, validates it against the contract and
// decodes it into T. Provider errors are returned as-is; exhausted repairs
// return a SchemaValidationError.
func Decode[T any](ctx context.Context, gen Generator, req Request) (*T, error) {
	res, err := Run[T](ctx, gen, req)
	if err != nil {
		return nil, err
	}
	return res.Value, nil
}

// Run is Decode that also reports the raw document and repair count.
func Run[T any](ctx context.Context, gen Generator, req Request) (*Result[T], error) {
	maxRepairs := req.MaxRepairs
	if maxRepairs == 0 {
		maxRepairs = DefaultMaxRepairs
	}
	if maxRepairs < 0 {
		maxRepairs = 0
	}
	logger := req.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	schemaText, err := schemas.Source(req.Contract)
	if err != nil {
		return nil, err
	}

	messages := append([]llm.Message(nil), req.Messages...)
	raw, err := gen.Chat(ctx, llm.ChatRequest{Messages: messages, Tier: req.Tier, JSON: true})
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		value, candidate, verr := check[T](req.Contract, raw)
		if verr == nil {
			if attempt > 0 {
				logger.Info("model output repaired",
					zap.String("contract", string(req.Contract)),
					zap.Int("repairs", attempt))
			}
			return &Result[T]{Value: value, Raw: candidate, Repairs: attempt}, nil
		}
		if attempt >= maxRepairs {
			return nil, &SchemaValidationError{Contract: req.Contract, Attempts: attempt, Last: verr}
		}

		logger.Warn("model output failed validation, requesting repair",
			zap.String("contract", string(req.Contract)),
			zap.Int("attempt", attempt+1),
			zap.String("errors", observability.TruncateForLog(describe(verr), 500)))

		repairPrompt, err := prompts.Render(prompts.Repair, prompts.KeyRepairJSON, map[string]string{
			"Errors":   describe(verr),
			"Schema":   schemaText,
			"Previous": candidate,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build repair prompt: %w", err)
		}
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: raw},
			llm.Message{Role: llm.RoleUser, Content: repairPrompt},
		)

		raw, err = gen.Chat(ctx, llm.ChatRequest{Messages: messages, Tier: req.Tier, JSON: true})
		if err != nil {
			return nil, err
		}
	}
}

// check extracts, validates and decodes one candidate document.
func check[T any](contract schemas.Contract, raw string) (*T, string, error) {
	candidate := llm.ExtractJSON(raw)
	verr := schemas.Validate(contract, candidate)
	if verr != nil {
		// Models sometimes wrap the payload in a single-key envelope such as {"resume": {...}}.
		if inner, ok := unwrapEnvelope(candidate); ok && schemas.Validate(contract, inner) == nil {
			candidate, verr = inner, nil
		}
	}
	if verr != nil {
		return nil, candidate, verr
	}

	var value T
	dec := json.NewDecoder(strings.NewReader(candidate))
	if err := dec.Decode(&value); err != nil {
		return nil, candidate, &DecodeError{Message: "document does not match the expected type", Cause: err}
	}
	return &value, candidate, nil
}

func unwrapEnvelope(doc string) (string, bool) {
	res := gjson.Parse(doc)
	if !res.IsObject() {
		return "", false
	}
	fields := res.Map()
	if len(fields) != 1 {
		return "", false
	}
	for _, v := range fields {
		if v.IsObject() {
			return v.Raw, true
		}
	}
	return "", false
}

// describe renders a validation error as a numbered list for the repair prompt.
func describe(err error) string {
	var ve *schemas.ValidationError
	if errors.As(err, &ve) {
		var sb strings.Builder
		for i, fe := range ve.Errors {
			fmt.Fprintf(&sb, "%d. %s: %s\n", i+1, fe.Field, fe.Message)
		}
		return strings.TrimRight(sb.String(), "\n")
	}
	return err.Error()
}
