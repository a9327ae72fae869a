package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jaeyoung0509/series"
	"github.com/jaeyoung0509/series/internal/pipeline"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "series",
		Short:         "Run commands one after the other, stopping at the first failure",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

type runOptions struct {
	trace     bool
	traceFile string
	quiet     bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute the steps of a pipeline file in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Write OpenTelemetry spans for the run and each step")
	cmd.Flags().StringVar(&opts.traceFile, "trace-file", "", "Write spans to this file instead of stderr (implies --trace)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print step output")

	return cmd
}

func runPipeline(cmd *cobra.Command, path string, opts runOptions) error {
	p, err := pipeline.LoadFile(path)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return err
	}

	var seriesOpts []series.Option
	if opts.trace || opts.traceFile != "" {
		provider, closeTrace, err := newTracerProvider(cmd.ErrOrStderr(), opts.traceFile)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			return err
		}
		defer func() {
			_ = provider.Shutdown(context.Background())
			_ = closeTrace()
		}()
		seriesOpts = append(seriesOpts, series.WithTracer(provider.Tracer("series/"+p.Name)))
	}

	outputs, err := p.Execute(seriesOpts...)

	out := cmd.OutOrStdout()
	for _, o := range outputs {
		fmt.Fprintf(out, "==> %s\n", o.Step)
		if !opts.quiet && o.Stdout != "" {
			fmt.Fprint(out, o.Stdout)
			if !strings.HasSuffix(o.Stdout, "\n") {
				fmt.Fprintln(out)
			}
		}
	}

	if err != nil {
		index, _ := series.IndexOf(err)
		if errors.Is(err, series.ErrMissingFunction) {
			fmt.Fprintf(cmd.ErrOrStderr(), "step %d (%s) has no command\n", index, p.StepName(index))
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "step %d (%s) failed: %v\n", index, p.StepName(index), err)
		}
		return err
	}

	fmt.Fprintf(out, "%s: %d steps completed\n", p.Name, len(outputs))
	return nil
}

// newTracerProvider exports spans synchronously to stderr or traceFile.
func newTracerProvider(stderr io.Writer, traceFile string) (*sdktrace.TracerProvider, func() error, error) {
	w := stderr
	closeFn := func() error { return nil }
	if traceFile != "" {
		f, err := os.Create(traceFile)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closeFn = f.Close
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}

	return sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)), closeFn, nil
}
