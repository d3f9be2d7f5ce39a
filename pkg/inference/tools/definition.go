package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// ToolDefinition describes a tool the assistant can invoke.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
	// Widget is the client-side action that renders this tool's result. Tools
	// without a widget are surfaced under their own name.
	Widget   string   `json:"-"`
	Function ToolFunc `json:"-"`

	validator *gojsonschema.Schema
}

// ToolFunc wraps a Go function taking an optional context.Context and an
// optional JSON-decodable input struct.
type ToolFunc struct {
	Fn        interface{}
	execute   func(context.Context, []byte) (interface{}, error)
	inputType reflect.Type
}

type ToolOption func(*ToolDefinition)

// WithWidget sets the widget action name used when the result is handed to
// the client.
func WithWidget(widget string) ToolOption {
	return func(d *ToolDefinition) {
		d.Widget = widget
	}
}

var contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
var errorType = reflect.TypeOf((*error)(nil)).Elem()

// NewToolFromFunc creates a ToolDefinition from a Go function. Supported
// signatures are func() R, func(ctx) R, func(In) R, func(ctx, In) R, each
// optionally returning (R, error).
func NewToolFromFunc(name, description string, fn interface{}, options ...ToolOption) (*ToolDefinition, error) {
	funcType := reflect.TypeOf(fn)
	if funcType == nil || funcType.Kind() != reflect.Func {
		return nil, errors.New("provided value is not a function")
	}

	if funcType.NumOut() == 0 || funcType.NumOut() > 2 {
		return nil, errors.New("function must return (result) or (result, error)")
	}
	if funcType.NumOut() == 2 && !funcType.Out(1).Implements(errorType) {
		return nil, errors.New("second return value must be an error")
	}

	inType, takesCtx, err := inputOf(funcType)
	if err != nil {
		return nil, err
	}

	schema := generateSchema(inType)
	validator, err := compileValidator(schema)
	if err != nil {
		return nil, errors.Wrapf(err, "could not compile parameter schema of %s", name)
	}

	ret := &ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  schema,
		Function: ToolFunc{
			Fn:        fn,
			execute:   createExecutor(reflect.ValueOf(fn), inType, takesCtx),
			inputType: inType,
		},
		validator: validator,
	}
	for _, o := range options {
		o(ret)
	}
	return ret, nil
}

// DisplayName is the name the tool is surfaced under to the client.
func (d *ToolDefinition) DisplayName() string {
	if d.Widget != "" {
		return d.Widget
	}
	return d.Name
}

// ValidateArguments checks raw JSON arguments against the parameter schema.
func (d *ToolDefinition) ValidateArguments(args json.RawMessage) error {
	if d.validator == nil {
		return nil
	}
	res, err := d.validator.Validate(gojsonschema.NewBytesLoader(NormalizeArguments(args)))
	if err != nil {
		return errors.Wrap(err, "arguments are not valid JSON")
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Execute calls the tool function with the provided arguments.
func (tf *ToolFunc) Execute(ctx context.Context, args json.RawMessage) (interface{}, error) {
	if tf.execute == nil {
		return nil, errors.New("tool function not properly initialized")
	}
	return tf.execute(ctx, NormalizeArguments(args))
}

// NormalizeArguments maps empty and null arguments to an empty object.
func NormalizeArguments(args json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(args))
	if trimmed == "" || trimmed == "null" {
		return json.RawMessage("{}")
	}
	return args
}

// ToolCall is a committed request to execute a tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of one invocation. Err keeps the typed error for
// classification; Error is its message.
type ToolResult struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Result   interface{}   `json:"result"`
	Error    string        `json:"error,omitempty"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

func (r *ToolResult) Failed() bool {
	return r != nil && (r.Err != nil || r.Error != "")
}

const (
	ToolErrorNotFound   = "not_found"
	ToolErrorNotAllowed = "not_allowed"
	ToolErrorValidation = "validation"
	ToolErrorExecution  = "execution"
	ToolErrorTimeout    = "timeout"
)

// ToolError is an error raised by the executor around a tool call.
type ToolError struct {
	ToolName string `json:"tool_name"`
	ToolID   string `json:"tool_id,omitempty"`
	Type     string `json:"type"`
	Message  string `json:"message"`
	Cause    error  `json:"-"`
}

func (e *ToolError) Error() string {
	return e.Message
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

func NewUnknownToolError(name string) *ToolError {
	return &ToolError{
		ToolName: name,
		Type:     ToolErrorNotFound,
		Message:  fmt.Sprintf("Unknown tool: %s", name),
	}
}

func inputOf(funcType reflect.Type) (reflect.Type, bool, error) {
	switch funcType.NumIn() {
	case 0:
		return nil, false, nil
	case 1:
		if funcType.In(0) == contextType {
			return nil, true, nil
		}
		return funcType.In(0), false, nil
	case 2:
		if funcType.In(0) != contextType {
			return nil, false, errors.New("two-arg tool function must be (context.Context, Input)")
		}
		return funcType.In(1), true, nil
	default:
		return nil, false, errors.New("function must take (Input), (context.Context, Input) or nothing")
	}
}

func generateSchema(inputType reflect.Type) *jsonschema.Schema {
	if inputType == nil {
		return &jsonschema.Schema{Type: "object", Properties: jsonschema.NewProperties()}
	}

	reflector := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(reflect.New(inputType).Elem().Interface())
	schema.Version = ""
	schema.ID = ""

	if schema.Type == "" && schema.Ref == "" {
		schema.Type = "object"
	}
	if schema.Properties == nil {
		schema.Properties = jsonschema.NewProperties()
	}

	return schema
}

func compileValidator(schema *jsonschema.Schema) (*gojsonschema.Schema, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(b))
}

func createExecutor(fn reflect.Value, inType reflect.Type, takesCtx bool) func(context.Context, []byte) (interface{}, error) {
	return func(ctx context.Context, args []byte) (interface{}, error) {
		in := []reflect.Value{}
		if takesCtx {
			in = append(in, reflect.ValueOf(ctx))
		}
		if inType != nil {
			input := reflect.New(inType)
			if err := json.Unmarshal(args, input.Interface()); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal arguments")
			}
			in = append(in, input.Elem())
		}
		return extractResults(fn.Call(in))
	}
}

func extractResults(results []reflect.Value) (interface{}, error) {
	switch len(results) {
	case 1:
		return results[0].Interface(), nil
	case 2:
		result := results[0].Interface()
		if results[1].IsNil() {
			return result, nil
		}
		return result, results[1].Interface().(error)
	default:
		return nil, errors.Errorf("unexpected number of return values: %d", len(results))
	}
}
