package condition

import "fmt"

// RequestExpressionPluginID identifies the request expression condition.
const RequestExpressionPluginID = "request_expression"

const keyExpression = "expression"

// RequestExpression passes when a CEL expression over the request is true.
// Example: request.route == "entity.node.canonical" && request.attributes.node_type == "article"
type RequestExpression struct {
	Base
	expression string

	engine *CELEngine
}

// NewRequestExpression creates an unconfigured request expression condition.
func NewRequestExpression(engine *CELEngine) *RequestExpression {
	return &RequestExpression{
		Base:   NewBase(RequestExpressionPluginID, ContextRequest),
		engine: engine,
	}
}

// RequestExpressionDefinition registers the plugin with its engine.
func RequestExpressionDefinition(engine *CELEngine) Definition {
	return Definition{
		ID:       RequestExpressionPluginID,
		Label:    "Request Expression",
		Contexts: []string{ContextRequest},
		New: func() Condition {
			return NewRequestExpression(engine)
		},
	}
}

// Expression returns the configured expression.
func (c *RequestExpression) Expression() string { return c.expression }

// DefaultConfiguration implements Condition.
func (c *RequestExpression) DefaultConfiguration() map[string]interface{} {
	cfg := c.Base.DefaultConfiguration()
	cfg[keyExpression] = ""
	return cfg
}

// Configuration implements Condition.
func (c *RequestExpression) Configuration() map[string]interface{} {
	cfg := c.Base.Configuration()
	cfg[keyExpression] = c.expression
	return cfg
}

// SetConfiguration implements Condition. The expression is compiled to reject
// invalid input before it is stored.
func (c *RequestExpression) SetConfiguration(values map[string]interface{}) error {
	cfg := mergeConfiguration(c.DefaultConfiguration(), values)
	expression, err := stringValue(cfg, keyExpression)
	if err != nil {
		return err
	}
	if expression != "" {
		if err := c.engine.ValidateExpression(expression); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
		}
	}
	if err := c.Base.SetConfiguration(cfg); err != nil {
		return err
	}
	c.expression = expression
	return nil
}

// Summary implements Condition.
func (c *RequestExpression) Summary() string {
	if c.IsNegated() {
		return fmt.Sprintf(`The request does not match "%s"`, c.expression)
	}
	return fmt.Sprintf(`The request matches "%s"`, c.expression)
}

// Evaluate implements Condition. An empty expression always passes.
func (c *RequestExpression) Evaluate(ctxs *Contexts) (bool, error) {
	if c.expression == "" {
		return true, nil
	}
	req, err := ctxs.RequestContext()
	if err != nil {
		return false, err
	}
	return c.engine.Evaluate(c.expression, req)
}

// CacheContexts implements Condition. The expression may read every request
// variable, so the method and attributes are added to the base contexts.
func (c *RequestExpression) CacheContexts() []string {
	return append(c.BaseCacheContexts(), CacheContextRequestMethod, CacheContextRequestAttributes)
}
