package errors

import (
	"fmt"
)

// ConfigError reports a configuration document that could not be loaded or parsed.
type ConfigError struct {
	Path    string
	Message string
	Err     error
}

// NewConfigError constructs a ConfigError for the given file path.
func NewConfigError(path string, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ConfigError{Path: path, Message: message, Err: err}
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	if e.Path != "" {
		return fmt.Sprintf("config error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// SpecNotFoundError indicates a specification id that resolves to nothing.
type SpecNotFoundError struct {
	ID string
}

// NewSpecNotFoundError constructs a SpecNotFoundError.
func NewSpecNotFoundError(id string) error {
	return &SpecNotFoundError{ID: id}
}

func (e *SpecNotFoundError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("specification not found: %s", e.ID)
}

// UnresolvedTemplateError indicates a template reference that no registry entry satisfies.
type UnresolvedTemplateError struct {
	Kind string
	ID   string
}

// NewUnresolvedTemplateError constructs an UnresolvedTemplateError.
func NewUnresolvedTemplateError(kind, id string) error {
	return &UnresolvedTemplateError{Kind: kind, ID: id}
}

func (e *UnresolvedTemplateError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("unresolved %s template: %s", e.Kind, e.ID)
}

// DanglingReferenceError indicates a rule pointing at a calculation absent from its specification.
type DanglingReferenceError struct {
	RuleID        string
	CalculationID string
}

// NewDanglingReferenceError constructs a DanglingReferenceError.
func NewDanglingReferenceError(ruleID, calculationID string) error {
	return &DanglingReferenceError{RuleID: ruleID, CalculationID: calculationID}
}

func (e *DanglingReferenceError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("rule %q references unknown calculation %q", e.RuleID, e.CalculationID)
}

// BindingError indicates a sensor group required by a specification but absent from the request.
type BindingError struct {
	Group   string
	Message string
}

// NewBindingError constructs a BindingError for the named group.
func NewBindingError(group, message string) error {
	if message == "" {
		message = fmt.Sprintf("group %s not provided", group)
	}
	return &BindingError{Group: group, Message: message}
}

func (e *BindingError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("binding error: %s", e.Message)
}

// ParseError reports an expression that could not be parsed, with its offset.
type ParseError struct {
	Expr    string
	Pos     int
	Message string
	Err     error
}

// NewParseError constructs a ParseError at the given byte offset.
func NewParseError(expr string, pos int, message string) error {
	return &ParseError{Expr: expr, Pos: pos, Message: message}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	if e.Pos > 0 {
		return fmt.Sprintf("parse error at offset %d: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CalcError reports a calculation that could not be evaluated. Fatal to the run.
type CalcError struct {
	CalculationID string
	Err           error
}

// NewCalcError constructs a CalcError.
func NewCalcError(calculationID string, err error) error {
	return &CalcError{CalculationID: calculationID, Err: err}
}

func (e *CalcError) Error() string {
	if e == nil {
		return ""
	}
	if e.CalculationID != "" {
		return fmt.Sprintf("calculation %s failed: %v", e.CalculationID, e.Err)
	}
	return fmt.Sprintf("calculation failed: %v", e.Err)
}

// Unwrap exposes the underlying error.
func (e *CalcError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EvalError reports a runtime failure inside the expression evaluator.
type EvalError struct {
	Message string
}

// NewEvalError constructs an EvalError.
func NewEvalError(format string, args ...any) error {
	return &EvalError{Message: fmt.Sprintf(format, args...)}
}

func (e *EvalError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("eval error: %s", e.Message)
}

// WorkflowError reports a failure during plan construction or task execution.
type WorkflowError struct {
	TaskID string
	Err    error
}

// NewWorkflowError constructs a WorkflowError for the given task.
func NewWorkflowError(taskID string, err error) error {
	return &WorkflowError{TaskID: taskID, Err: err}
}

func (e *WorkflowError) Error() string {
	if e == nil {
		return ""
	}
	if e.TaskID != "" {
		return fmt.Sprintf("workflow error on task %s: %v", e.TaskID, e.Err)
	}
	return fmt.Sprintf("workflow error: %v", e.Err)
}

// Unwrap exposes the root error.
func (e *WorkflowError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures workflow definition validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CancelledError indicates a run stopped by its cancellation signal.
type CancelledError struct {
	TaskID string
}

// NewCancelledError constructs a CancelledError naming the task that would have run next.
func NewCancelledError(taskID string) error {
	return &CancelledError{TaskID: taskID}
}

func (e *CancelledError) Error() string {
	if e == nil {
		return ""
	}
	if e.TaskID != "" {
		return fmt.Sprintf("run cancelled before task %s", e.TaskID)
	}
	return "run cancelled"
}
