package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"indexer/pkg/models"
)

func newEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("routing_key", cel.StringType),
		cel.Variable("entity_id", cel.StringType),
		cel.Variable("addressees", cel.ListType(cel.StringType)),
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("timestamp", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// Guard is an acceptance predicate over a notification, compiled once at
// startup and safe for concurrent use.
type Guard struct {
	expression string
	program    cel.Program
}

func NewGuard(expression string) (*Guard, error) {
	env, err := newEnv()
	if err != nil {
		return nil, err
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("guard expression must return bool, got %v", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Guard{expression: expression, program: program}, nil
}

func (g *Guard) Expression() string {
	return g.expression
}

func (g *Guard) Evaluate(ctx context.Context, n models.Notification) (bool, error) {
	addressees := n.Addressees
	if addressees == nil {
		addressees = []string{}
	}
	metadata := n.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	result, _, err := g.program.ContextEval(ctx, map[string]interface{}{
		"id":          n.ID,
		"routing_key": n.RoutingKey,
		"entity_id":   n.EntityID,
		"addressees":  addressees,
		"metadata":    metadata,
		"timestamp":   n.Timestamp,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	accepted, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}
	return accepted, nil
}
