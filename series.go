package series

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/jaeyoung0509/series"

// Handler receives the outcome of a sequence. It is called exactly once.
type Handler func(err error, results []any)

type stepResult struct {
	data any
	err  error
}

// sequence is the private state of one Run invocation.
type sequence struct {
	records []*record
	results []any
	index   int

	done Handler
	cfg  config
}

// Run starts executing tasks one at a time and returns immediately.
//
// tasks is a Func, a func(Callback), or a slice or array of descriptors.
// Elements of slices other than []Task are classified with From. Any value
// that is not a list returns ErrInvalidInput and done is never called. A nil
// done is replaced by a no-op.
func Run(tasks any, done Handler, opts ...Option) error {
	if done == nil {
		done = func(error, []any) {}
	}

	list, err := taskList(tasks)
	if err != nil {
		return err
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	s := newSequence(list, done, cfg)
	go s.drive()

	return nil
}

// Do runs tasks like Run and blocks until the sequence finishes.
func Do(tasks any, opts ...Option) ([]any, error) {
	type outcome struct {
		results []any
		err     error
	}

	ch := make(chan outcome, 1)
	err := Run(tasks, func(err error, results []any) {
		ch <- outcome{results: results, err: err}
	}, opts...)
	if err != nil {
		return nil, err
	}

	out := <-ch
	return out.results, out.err
}

func taskList(tasks any) ([]Task, error) {
	switch t := tasks.(type) {
	case Func:
		return []Task{t}, nil
	case func(Callback):
		return []Task{Func(t)}, nil
	case []Task:
		return t, nil
	case []Func:
		list := make([]Task, len(t))
		for i, fn := range t {
			list[i] = fn
		}
		return list, nil
	case []func(Callback):
		list := make([]Task, len(t))
		for i, fn := range t {
			list[i] = Func(fn)
		}
		return list, nil
	case []Call:
		list := make([]Task, len(t))
		for i, c := range t {
			list[i] = c
		}
		return list, nil
	case []*Call:
		list := make([]Task, len(t))
		for i, c := range t {
			list[i] = c
		}
		return list, nil
	case []any:
		list := make([]Task, len(t))
		for i, v := range t {
			list[i] = From(v)
		}
		return list, nil
	}

	// Any other slice or array is a list; its elements are classified one by one.
	rv := reflect.ValueOf(tasks)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, invalidInput(tasks)
	}
	list := make([]Task, rv.Len())
	for i := range list {
		list[i] = From(rv.Index(i).Interface())
	}
	return list, nil
}

func newSequence(tasks []Task, done Handler, cfg config) *sequence {
	records := normalizeAll(tasks)
	results := make([]any, len(records))
	for i, rec := range records {
		if rec != nil {
			results[i] = rec.task
		}
	}

	return &sequence{
		records: records,
		results: results,
		done:    done,
		cfg:     cfg,
	}
}

func (s *sequence) drive() {
	ctx, span := s.cfg.tracer.Start(s.cfg.parent, "series.run",
		trace.WithAttributes(attribute.Int("series.tasks", len(s.records))))

	for {
		if err := s.step(ctx); err != nil {
			s.finish(span, err)
			return
		}
		if s.index == len(s.records) {
			s.finish(span, nil)
			return
		}
	}
}

// step runs the task under the cursor and advances the cursor on success.
func (s *sequence) step(ctx context.Context) error {
	_, span := s.cfg.tracer.Start(ctx, "series.step",
		trace.WithAttributes(attribute.Int("series.index", s.index)))
	defer span.End()

	if s.index >= len(s.records) || s.records[s.index] == nil {
		span.SetStatus(codes.Error, ErrMissingFunction.Error())
		return ErrMissingFunction
	}

	res := s.invoke(s.records[s.index])
	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
		return res.err
	}

	s.results[s.index] = res.data
	s.index++
	span.SetStatus(codes.Ok, "")
	return nil
}

// invoke blocks until the task calls back. Only the first callback counts.
func (s *sequence) invoke(rec *record) stepResult {
	ch := make(chan stepResult, 1)
	var once sync.Once
	done := func(err error, data any) {
		once.Do(func() {
			ch <- stepResult{data: data, err: err}
		})
	}

	if err := s.call(rec, done); err != nil {
		done(err, nil)
	}

	return <-ch
}

func (s *sequence) call(rec *record, done Callback) (err error) {
	if s.cfg.panicToError {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("series: panic recovered: %v", r)
			}
		}()
	}

	rec.method(rec.scope, rec.args, done)
	return nil
}

func (s *sequence) finish(span trace.Span, err error) {
	if err != nil {
		err = &StepError{Index: s.index, Err: err}
		span.SetAttributes(attribute.Int("series.failed_index", s.index))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	s.done(err, s.results)
}
