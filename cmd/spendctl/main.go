package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spendboard/spendboard/cmd/spendctl/cli"
	"github.com/spendboard/spendboard/internal/app"
	"github.com/spendboard/spendboard/internal/platform/cache"
	"github.com/spendboard/spendboard/internal/reports"
)

var (
	version = "dev"
	commit  = "none"
)

// exitError carries a command exit code through cobra.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	_ = godotenv.Load()
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return cli.ExitError
	}
	return cli.ExitOK
}

// env lazily loads configuration and, on demand, the cache connection.
type env struct {
	stdout, stderr io.Writer
	cfg            *app.Config
	logger         *slog.Logger
	closers        []func()
}

func (e *env) load() error {
	if e.cfg != nil {
		return nil
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	e.cfg = cfg
	e.logger = app.NewLoggerTo(cfg, e.stderr)
	return nil
}

func (e *env) ops(ctx context.Context, withCache bool) (*cli.OpsCLI, error) {
	if err := e.load(); err != nil {
		return nil, err
	}
	deps := cli.Deps{Policy: e.cfg.ExchangePolicy(), Logger: e.logger}
	if withCache {
		client, err := cache.New(ctx, e.cfg.RedisOptions())
		e.closers = append(e.closers, func() { _ = client.Close() })
		if err != nil {
			return nil, fmt.Errorf("connect cache at %s: %w", e.cfg.RedisAddr, err)
		}
		deps.Store = reports.NewRedisStore(client, e.cfg.CacheTTL)
	}
	return cli.NewOpsCLI(deps), nil
}

func (e *env) close() {
	for _, fn := range e.closers {
		fn()
	}
	e.closers = nil
}

func exitWith(code int) error {
	if code == cli.ExitOK {
		return nil
	}
	return exitError{code: code}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	e := &env{stdout: stdout, stderr: stderr}
	root := &cobra.Command{
		Use:           "spendctl",
		Short:         "Aggregate team spend spreadsheets and manage cached periods",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.AddCommand(newAggregateCmd(e), newPeriodsCmd(e), newVersionCmd(stdout))
	return root
}

func newAggregateCmd(e *env) *cobra.Command {
	opts := cli.AggregateOptions{}
	cmd := &cobra.Command{
		Use:   "aggregate FILE",
		Short: "Summarize one .xlsx, .xlsm or .csv ledger by team and by category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer e.close()
			ops, err := e.ops(cmd.Context(), opts.Save)
			if err != nil {
				return err
			}
			opts.Path = args[0]
			opts.Stdout, opts.Stderr = e.stdout, e.stderr
			return exitWith(ops.AggregateCommand(cmd.Context(), opts))
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.Rate, "rate", "", "GBP->USD rate used when the sheet has none")
	flags.StringVarP(&opts.Format, "format", "f", cli.FormatJSON, "output format: json, yaml or table")
	flags.BoolVar(&opts.Save, "save", false, "store the result in the period cache")
	flags.StringVar(&opts.Period, "period", "", "cache key for --save (default: derived from the file name)")
	return cmd
}

func newPeriodsCmd(e *env) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "periods",
		Short: "Inspect or clear cached period results",
	}
	cmd.PersistentFlags().StringVarP(&format, "format", "f", cli.FormatJSON, "output format: json, yaml or table")

	periodsRun := func(run func(*cli.OpsCLI, context.Context, cli.PeriodsOptions) int) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			defer e.close()
			ops, err := e.ops(cmd.Context(), true)
			if err != nil {
				return err
			}
			opts := cli.PeriodsOptions{Format: format, Stdout: e.stdout, Stderr: e.stderr}
			if len(args) > 0 {
				opts.Period = args[0]
			}
			return exitWith(run(ops, cmd.Context(), opts))
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List cached periods",
			Args:  cobra.NoArgs,
			RunE:  periodsRun((*cli.OpsCLI).ListCommand),
		},
		&cobra.Command{
			Use:   "show PERIOD",
			Short: "Print the cached result of one period",
			Args:  cobra.ExactArgs(1),
			RunE:  periodsRun((*cli.OpsCLI).ShowCommand),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached period",
			Args:  cobra.NoArgs,
			RunE:  periodsRun((*cli.OpsCLI).ClearCommand),
		},
	)
	return cmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the spendctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(stdout, "spendctl %s (%s)\n", version, commit)
		},
	}
}
