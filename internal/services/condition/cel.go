package condition

import (
	"fmt"
	"sync"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/google/cel-go/cel"
)

// CELEngine evaluates CEL expressions over the request context
type CELEngine struct {
	env      *cel.Env
	programs sync.Map // expression -> cel.Program
}

// NewCELEngine creates a new CEL engine with the request variable declared
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("request", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &CELEngine{env: env}, nil
}

// ValidateExpression checks that the expression compiles to a boolean
func (e *CELEngine) ValidateExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("invalid CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return fmt.Errorf("CEL expression must return boolean, got: %s", ast.OutputType())
	}

	return nil
}

// Evaluate evaluates a CEL expression against the request
func (e *CELEngine) Evaluate(expression string, req *entities.Request) (bool, error) {
	program, err := e.program(expression)
	if err != nil {
		return false, err
	}

	result, _, err := program.Eval(map[string]interface{}{
		"request": requestVars(req),
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not evaluate to boolean, got: %T", result.Value())
	}

	return boolResult, nil
}

// program returns the compiled program for expression, compiling it once
func (e *CELEngine) program(expression string) (cel.Program, error) {
	if cached, ok := e.programs.Load(expression); ok {
		return cached.(cel.Program), nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	e.programs.Store(expression, program)
	return program, nil
}

func requestVars(req *entities.Request) map[string]interface{} {
	if req == nil {
		req = &entities.Request{}
	}
	attributes := req.Attributes
	if attributes == nil {
		attributes = map[string]interface{}{}
	}
	return map[string]interface{}{
		"route":      req.Route,
		"url":        req.URL,
		"method":     req.Method,
		"attributes": attributes,
	}
}
