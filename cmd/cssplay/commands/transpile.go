package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/livetemplate/cssplay"
	"github.com/livetemplate/cssplay/internal/playground"
	"github.com/livetemplate/cssplay/internal/sandbox"
)

// ErrStageFailed is returned after a pipeline failure has been written to
// stderr as "stage: message".
var ErrStageFailed = errors.New("transpile failed")

// TranspileCommand implements the transpile command.
func TranspileCommand(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flagSet := flag.NewFlagSet("transpile", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	viewName := flagSet.String("view", "css", "Artifact to print: css, ast or js")
	minify := flagSet.Bool("minify", false, "Minify the generated code and CSS")
	timeout := flagSet.Duration("timeout", 2*time.Second, "Execution time limit")
	stats := flagSet.Bool("stats", false, "Print artifact sizes to stderr")
	flagSet.Usage = func() {
		fmt.Fprintln(stderr, "Usage: cssplay transpile [options] [file|-]")
		fmt.Fprintln(stderr)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if flagSet.NArg() > 1 {
		return fmt.Errorf("usage: cssplay transpile [options] [file|-]")
	}

	mode, ok := cssplay.ParseViewMode(*viewName)
	if !ok {
		return fmt.Errorf("unknown view %q (want css, ast or js)", *viewName)
	}

	name := flagSet.Arg(0)
	source, err := readSource(name, stdin)
	if err != nil {
		return err
	}

	a := playground.RunOnce(context.Background(), source, playground.OnceOptions{
		Minified: *minify,
		Sandbox:  sandbox.New(sandbox.WithTimeout(*timeout)),
	})

	if *stats {
		printStats(stderr, source, a)
	}

	if a.Err != nil {
		fmt.Fprintf(stderr, "%s: %s\n", a.Err.Stage, a.Err.Message())
		var pe *cssplay.ParseError
		if errors.As(a.Err, &pe) {
			fmt.Fprint(stderr, pe.Format())
		}
		return ErrStageFailed
	}

	out, err := a.View(mode)
	if err != nil {
		return fmt.Errorf("failed to render %s view: %w", mode, err)
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	_, err = io.WriteString(stdout, out)
	return err
}

func readSource(name string, stdin io.Reader) (string, error) {
	if name == "" || name == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file does not exist: %s", name)
		}
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return string(data), nil
}

func printStats(w io.Writer, source string, a playground.Artifacts) {
	size := func(s string) string { return humanize.Bytes(uint64(len(s))) }

	fmt.Fprintf(w, "source %s", size(source))
	if a.HasJS {
		fmt.Fprintf(w, ", js %s", size(a.JS))
	}
	if a.HasCSS {
		fmt.Fprintf(w, ", css %s", size(a.CSS))
	}
	fmt.Fprintln(w)
}
