package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/linebridge-go"
)

type execFlags struct {
	worker   string
	timeout  time.Duration
	parallel int
	stats    bool
}

func newExecCommand(ctx *commandContext) *cobra.Command {
	var flags execFlags

	cmd := &cobra.Command{
		Use:   "exec [command...]",
		Short: "Submit commands to the worker and print the responses",
		Long: "Submit each argument as one command, or each non-empty stdin line when no\n" +
			"arguments are given. Responses are printed in input order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			commands := args
			if len(commands) == 0 {
				read, err := readCommands(cmd.InOrStdin())
				if err != nil {
					return err
				}
				commands = read
			}
			if len(commands) == 0 {
				return errors.New("no commands to submit")
			}
			return runExec(cmd, ctx, flags, commands)
		},
	}

	cmd.Flags().StringVarP(&flags.worker, "worker", "w", "", "Worker binary (overrides worker.path)")
	cmd.Flags().DurationVarP(&flags.timeout, "timeout", "t", 0, "Per-command deadline (overrides bridge.default_timeout)")
	cmd.Flags().IntVarP(&flags.parallel, "parallel", "p", 1, "Number of commands submitted concurrently")
	cmd.Flags().BoolVar(&flags.stats, "stats", false, "Print exchange statistics to stderr when done")
	return cmd
}

// readCommands returns the non-empty lines of r.
func readCommands(r io.Reader) ([]string, error) {
	var commands []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		commands = append(commands, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read commands: %w", err)
	}
	return commands, nil
}

func runExec(cmd *cobra.Command, ctx *commandContext, flags execFlags, commands []string) error {
	if flags.parallel < 1 {
		return fmt.Errorf("--parallel must be at least 1, got %d", flags.parallel)
	}

	opts, logger, err := ctx.bridgeOptions(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	bridgeOpts := []linebridge.Option{linebridge.WithOptions(opts)}
	if flags.worker != "" {
		bridgeOpts = append(bridgeOpts, linebridge.WithWorkerPath(flags.worker))
	}
	if flags.timeout > 0 {
		bridgeOpts = append(bridgeOpts, linebridge.WithDefaultTimeout(flags.timeout))
	}

	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}

	bridge := linebridge.NewBridge()
	if err := bridge.Start(runCtx, bridgeOpts...); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}

	responses, submitErr := submitAll(runCtx, bridge, commands, flags.parallel)

	if err := bridge.Shutdown(context.WithoutCancel(runCtx)); err != nil {
		logger.Warn("Bridge shutdown failed", "error", err)
	}

	out := cmd.OutOrStdout()
	for _, resp := range responses {
		if resp == nil {
			continue
		}
		for _, line := range resp.All() {
			fmt.Fprintln(out, line)
		}
	}

	if flags.stats {
		fmt.Fprintln(cmd.ErrOrStderr(), renderStats(bridge.Stats()))
	}

	return submitErr
}

// submitAll submits commands with at most parallel in flight towards the
// bridge and returns the responses indexed like commands. The first failure
// stops further submissions.
func submitAll(ctx context.Context, bridge linebridge.Bridge, commands []string, parallel int) ([]*linebridge.Response, error) {
	responses := make([]*linebridge.Response, len(commands))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for i, command := range commands {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			resp, err := bridge.Submit(gctx, command)
			if err != nil {
				return fmt.Errorf("command %d %q: %w", i+1, command, err)
			}
			responses[i] = resp
			return nil
		})
	}

	return responses, g.Wait()
}

func renderStats(stats linebridge.Stats) string {
	rows := [][]string{
		{"State", stats.State.String()},
		{"Submitted", strconv.FormatUint(stats.Submitted, 10)},
		{"Completed", strconv.FormatUint(stats.Completed, 10)},
		{"Failed", strconv.FormatUint(stats.Failed, 10)},
		{"Timed out", strconv.FormatUint(stats.TimedOut, 10)},
		{"Abandoned", strconv.FormatUint(stats.Abandoned, 10)},
		{"Last sequence", strconv.FormatUint(stats.LastSequence, 10)},
	}
	return renderTable([]string{"Counter", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}
