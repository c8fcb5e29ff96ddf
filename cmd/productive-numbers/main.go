package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/withObsrvr/productive-numbers/internal/logging"
	"github.com/withObsrvr/productive-numbers/internal/search"
)

// Version information (set via ldflags)
var (
	Version = "v2.0.0"
	GitSHA  = "unknown"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown handler
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-ch
		slog.Warn("interrupt received, saving state before exit", "signal", sig.String())
		cancel()
	}()

	root := newRootCmd()
	err := root.ExecuteContext(ctx)
	return exitCode(err)
}

// exitCode maps a command error to the process exit status.
// Interruption is a normal outcome.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	kind := search.KindOf(err)
	if kind == search.KindCanceled {
		return 0
	}

	var e *search.Error
	if errors.As(err, &e) {
		slog.Error("search failed", "kind", kind.String(), "op", e.Op, "error", e.Err)
	} else {
		slog.Error("command failed", "kind", kind.String(), "error", err)
	}
	return 1
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "productive-numbers",
		Short: "Search for productive numbers up to a limit",
		Long: `A number N is productive when:
  1. N + 1 is prime
  2. for every split A|B of its decimal digits, A × B + 1 is prime

The search runs in parallel chunks, saves its position periodically and
resumes from the saved state on the next run.`,
		Version:       Version + " (" + GitSHA + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd)
		},
	}
	addRunFlags(root)

	root.AddCommand(
		newRunCmd(),
		newAnalyzeCmd(),
		newConfigCmd(),
		newRunsCmd(),
	)

	// Until a command configures logging, errors go to stderr as text.
	slog.SetDefault(logging.New(os.Stderr, logging.Config{Format: "text", Level: "info"}))
	return root
}
