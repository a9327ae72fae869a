package series

import "reflect"

// Callback is the completion notification handed to every task.
// A non-nil err fails the sequence; otherwise data becomes the task's result.
type Callback func(err error, data any)

// Method is the callable of a structured descriptor. It is invoked with the
// bound scope, the stored arguments and the completion callback.
type Method func(scope any, args []any, done Callback)

// Task is a task descriptor: Func, Call, *Call or Invalid.
type Task interface {
	isTask()
}

// Func is a bare callable taking only the completion callback.
type Func func(done Callback)

// Call is a structured descriptor.
//
// Args may be nil (no arguments), a slice (one argument per element) or any
// other value, which is passed as the single argument. Scope defaults to the
// Method itself when nil.
type Call struct {
	Method Method
	Args   any
	Scope  any
}

// Invalid holds a value that cannot be executed. It keeps its position in
// the list and fails with ErrMissingFunction when the sequence reaches it.
type Invalid struct {
	Value any
}

func (Func) isTask()    {}
func (Call) isTask()    {}
func (Invalid) isTask() {}

// From classifies a raw value as a task descriptor.
//
// Only Task values and funcs of type func(Callback) are executable. A bare
// Method is Invalid until wrapped in a Call, and so is a func declared as
// func(func(error, any)), because its parameter is not a Callback.
func From(v any) Task {
	switch t := v.(type) {
	case Task:
		return t
	case func(Callback):
		return Func(t)
	default:
		return Invalid{Value: v}
	}
}

type record struct {
	method Method
	args   []any
	scope  any
	// task is the normalized descriptor exposed in results until the step completes.
	task Task
}

// normalize returns nil for descriptors that cannot be executed.
func normalize(t Task) *record {
	switch v := t.(type) {
	case Func:
		if v == nil {
			return nil
		}
		return &record{
			method: func(_ any, _ []any, done Callback) { v(done) },
			args:   []any{},
			scope:  v,
			task:   v,
		}
	case Call:
		return v.normalize()
	case *Call:
		if v == nil {
			return nil
		}
		return v.normalize()
	default:
		return nil
	}
}

func (c Call) normalize() *record {
	if c.Method == nil {
		return nil
	}
	scope := c.Scope
	if scope == nil {
		scope = c.Method
	}
	args := arguments(c.Args)
	return &record{
		method: c.Method,
		args:   args,
		scope:  scope,
		task:   Call{Method: c.Method, Args: args, Scope: scope},
	}
}

func normalizeAll(tasks []Task) []*record {
	records := make([]*record, len(tasks))
	for i, t := range tasks {
		records[i] = normalize(t)
	}
	return records
}

func arguments(v any) []any {
	switch a := v.(type) {
	case nil:
		return []any{}
	case []any:
		out := make([]any, len(a))
		copy(out, a)
		return out
	case []byte, string:
		return []any{v}
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
