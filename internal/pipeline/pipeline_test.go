package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaeyoung0509/series"
)

func TestLoadDecodesScalarAndListArgs(t *testing.T) {
	p, err := Load(strings.NewReader(`
name: demo
env:
  STAGE: test
steps:
  - name: greet
    run: echo
    args: hello
  - run: echo
    args: [a, b, 3]
`))
	require.NoError(t, err)

	assert.Equal(t, "demo", p.Name)
	assert.Equal(t, map[string]string{"STAGE": "test"}, p.Env)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, "greet", p.Steps[0].Name)
	assert.Equal(t, "hello", p.Steps[0].Args)
	assert.Equal(t, "step-1", p.Steps[1].Name)
	assert.Equal(t, []any{"a", "b", 3}, p.Steps[1].Args)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader("steps:\n  - command: echo\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: decode")
}

func TestLoadEmptyDocument(t *testing.T) {
	_, err := Load(strings.NewReader(""))
	require.ErrorIs(t, err, ErrNoPipeline)
}

func TestExecuteRunsStepsInOrder(t *testing.T) {
	p, err := Load(strings.NewReader(`
steps:
  - name: one
    run: echo
    args: first
  - name: two
    run: echo
    args: [second, step]
`))
	require.NoError(t, err)

	outputs, err := p.Execute()
	require.NoError(t, err)
	assert.Equal(t, []Output{
		{Step: "one", Stdout: "first\n"},
		{Step: "two", Stdout: "second step\n"},
	}, outputs)
}

func TestExecuteStopsAtFailingStep(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "marker")

	p, err := Load(strings.NewReader(`
steps:
  - name: ok
    run: echo
    args: fine
  - name: broken
    run: sh
    args: ["-c", "echo oops >&2; exit 3"]
  - name: skipped
    run: touch
    args: ` + marker + `
`))
	require.NoError(t, err)

	outputs, err := p.Execute()
	require.Error(t, err)

	index, ok := series.IndexOf(err)
	require.True(t, ok)
	assert.Equal(t, 1, index)
	assert.Equal(t, "broken", p.StepName(index))

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "broken", cmdErr.Step)
	assert.Contains(t, cmdErr.Error(), "oops")

	assert.Equal(t, []Output{{Step: "ok", Stdout: "fine\n"}}, outputs)
	assert.NoFileExists(t, marker)
}

func TestExecuteStepWithoutCommand(t *testing.T) {
	p, err := Load(strings.NewReader(`
steps:
  - run: echo
  - name: empty
`))
	require.NoError(t, err)

	_, err = p.Execute()
	require.ErrorIs(t, err, series.ErrMissingFunction)
	index, _ := series.IndexOf(err)
	assert.Equal(t, 1, index)
}

func TestExecuteNoSteps(t *testing.T) {
	p, err := Load(strings.NewReader("name: nothing\n"))
	require.NoError(t, err)

	outputs, err := p.Execute()
	require.ErrorIs(t, err, series.ErrMissingFunction)
	assert.Empty(t, outputs)
}

func TestExecuteAppliesDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env:
  GREETING: hello
  TARGET: world
steps:
  - name: env
    run: sh
    args: ["-c", "echo $GREETING $TARGET"]
    env:
      TARGET: step
  - name: dir
    run: pwd
    dir: sub
`), 0o644))

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pipeline", p.Name)

	outputs, err := p.Execute()
	require.NoError(t, err)
	require.Len(t, outputs, 2)

	assert.Equal(t, "hello step\n", outputs[0].Stdout)

	got, err := filepath.EvalSymlinks(strings.TrimSpace(outputs[1].Stdout))
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(sub)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCommandNotFound(t *testing.T) {
	p := &Pipeline{Steps: []*Step{{Name: "ghost", Run: "series-command-that-does-not-exist"}}}

	_, err := p.Execute()
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "ghost", cmdErr.Step)
}
