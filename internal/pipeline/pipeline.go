// Package pipeline loads a YAML list of shell commands and runs them with
// series, one after the other, stopping at the first failing command.
package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jaeyoung0509/series"
)

// Pipeline is the decoded form of a pipeline file.
type Pipeline struct {
	Name  string            `yaml:"name"`
	Dir   string            `yaml:"dir"`
	Env   map[string]string `yaml:"env"`
	Steps []*Step           `yaml:"steps"`
}

// Step runs one command. Args is either a single value or a list.
type Step struct {
	Name string            `yaml:"name"`
	Run  string            `yaml:"run"`
	Args any               `yaml:"args"`
	Dir  string            `yaml:"dir"`
	Env  map[string]string `yaml:"env"`

	pipeline *Pipeline
}

// Output is the result of a successful step.
type Output struct {
	Step   string
	Stdout string
}

// CommandError is reported when a command exits with an error.
type CommandError struct {
	Step   string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Step, e.Err)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ErrNoPipeline is returned by Load when the document is empty.
var ErrNoPipeline = errors.New("pipeline: empty document")

// Load decodes a pipeline from r.
func Load(r io.Reader) (*Pipeline, error) {
	var p Pipeline
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoPipeline
		}
		return nil, fmt.Errorf("pipeline: decode: %w", err)
	}

	for i, step := range p.Steps {
		if step == nil {
			continue
		}
		if step.Name == "" {
			step.Name = fmt.Sprintf("step-%d", i)
		}
		step.pipeline = &p
	}
	return &p, nil
}

// LoadFile decodes the pipeline stored at path. A relative pipeline dir is
// resolved against the directory of the file.
func LoadFile(path string) (*Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if !filepath.IsAbs(p.Dir) {
		p.Dir = filepath.Join(filepath.Dir(path), p.Dir)
	}
	return p, nil
}

// Tasks converts the steps into series descriptors. A step without a command
// becomes an invalid descriptor, so the run fails when it reaches it.
func (p *Pipeline) Tasks() []series.Task {
	tasks := make([]series.Task, len(p.Steps))
	for i, step := range p.Steps {
		if step == nil || step.Run == "" {
			tasks[i] = series.Invalid{Value: step}
			continue
		}
		step.pipeline = p
		tasks[i] = series.Call{Method: runCommand, Args: step.Args, Scope: step}
	}
	return tasks
}

// Execute runs every step in order and returns the output of each one that
// completed. On failure the error carries the index of the failing step.
func (p *Pipeline) Execute(opts ...series.Option) ([]Output, error) {
	results, err := series.Do(p.Tasks(), opts...)

	outputs := make([]Output, 0, len(results))
	for _, r := range results {
		out, ok := r.(Output)
		if !ok {
			break
		}
		outputs = append(outputs, out)
	}
	return outputs, err
}

// StepName returns the name of the step at index, or its position.
func (p *Pipeline) StepName(index int) string {
	if index >= 0 && index < len(p.Steps) && p.Steps[index] != nil {
		return p.Steps[index].Name
	}
	return fmt.Sprintf("step-%d", index)
}

func runCommand(scope any, args []any, done series.Callback) {
	step := scope.(*Step)

	argv := make([]string, len(args))
	for i, a := range args {
		argv[i] = fmt.Sprint(a)
	}

	cmd := exec.Command(step.Run, argv...)
	cmd.Dir = step.dir()
	cmd.Env = step.environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		done(&CommandError{Step: step.Name, Err: err}, nil)
		return
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			done(&CommandError{Step: step.Name, Stderr: stderr.String(), Err: err}, nil)
			return
		}
		done(nil, Output{Step: step.Name, Stdout: stdout.String()})
	}()
}

func (s *Step) dir() string {
	switch {
	case s.Dir == "" && s.pipeline != nil:
		return s.pipeline.Dir
	case s.Dir != "" && !filepath.IsAbs(s.Dir) && s.pipeline != nil && s.pipeline.Dir != "":
		return filepath.Join(s.pipeline.Dir, s.Dir)
	default:
		return s.Dir
	}
}

// environ layers pipeline env then step env over the process environment.
func (s *Step) environ() []string {
	merged := map[string]string{}
	if s.pipeline != nil {
		for k, v := range s.pipeline.Env {
			merged[k] = v
		}
	}
	for k, v := range s.Env {
		merged[k] = v
	}

	env := os.Environ()
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+merged[k])
	}
	return env
}
