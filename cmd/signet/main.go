// Command signet is the batch audio-editing CLI (§6): it resolves a list of
// include/exclude tokens into a file collection, chains one or more
// processor subcommands over it in the order they were given on the
// command line, and commits the result through the backup journal.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/SamWindell/signet"
	"github.com/SamWindell/signet/internal/commit"
	"github.com/SamWindell/signet/internal/processor"
)

const (
	appName    = "signet"
	appVersion = "0.1.0"
)

func main() {
	ctx := context.Background()

	if err := run(ctx, os.Args); err != nil {
		slog.Error("failed to run", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	root := &cli.Command{
		Name:      appName,
		Usage:     "Batch audio file editor",
		Version:   appVersion,
		ArgsUsage: "<tokens…> [--recursive] [--silent] [--undo | --clear-backup] <subcommand> [args…] …",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "recursive",
				Aliases: []string{"r"},
				Usage:   "descend into subdirectories of bare directory tokens",
			},
			&cli.BoolFlag{
				Name:    "silent",
				Aliases: []string{"s"},
				Usage:   "suppress non-fatal warning logging",
			},
			&cli.BoolFlag{
				Name:  "undo",
				Usage: "reverse the last run's journal instead of editing",
			},
			&cli.BoolFlag{
				Name:  "clear-backup",
				Usage: "empty the backup journal without applying it",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("silent") {
				slog.SetLogLoggerLevel(slog.LevelError)
			}

			journal := commit.New()

			if cmd.Bool("clear-backup") {
				return signet.ClearBackup(journal)
			}

			if cmd.Bool("undo") {
				applied, warnings, err := signet.Undo(journal)
				if err != nil {
					return err
				}

				for _, w := range warnings {
					slog.Warn("undo", "message", w)
				}

				if !applied {
					slog.Info("undo: no journal to reverse")
				}

				return nil
			}

			tokens, chain, err := splitTokensAndChain(cmd.Args().Slice())
			if err != nil {
				return err
			}

			procs, err := buildProcessors(ctx, chain)
			if err != nil {
				return err
			}

			if len(procs) == 0 {
				return errChainEmpty
			}

			return signet.Run(signet.Options{
				Tokens:     tokens,
				Recursive:  cmd.Bool("recursive"),
				Processors: procs,
				Journal:    journal,
			})
		},
	}

	return root.Run(ctx, args)
}

var errChainEmpty = errors.New("signet: no subcommand given, nothing to do")

// splitTokensAndChain separates the leading include/exclude path tokens
// (§4.1) from the chain of subcommand segments that follows the first
// recognized subcommand name (§6: "additional subcommands chainable after
// the first").
func splitTokensAndChain(args []string) (tokens []string, chain [][]string, err error) {
	i := 0
	for ; i < len(args); i++ {
		if _, ok := subcommands[args[i]]; ok {
			break
		}

		tokens = append(tokens, args[i])
	}

	if i == len(args) {
		return tokens, nil, nil
	}

	for i < len(args) {
		name := args[i]
		if _, ok := subcommands[name]; !ok {
			return nil, nil, fmt.Errorf("%w: %q", errUnknownSubcommand, name)
		}

		j := i + 1
		for j < len(args) {
			if _, ok := subcommands[args[j]]; ok {
				break
			}

			j++
		}

		chain = append(chain, args[i:j])
		i = j
	}

	return tokens, chain, nil
}

var errUnknownSubcommand = errors.New("unrecognized subcommand")

// buildProcessors runs each chain segment through its subcommand's own
// flag parser (a throwaway single-command cli.Command), in declared order,
// and collects the processor.Processor each one builds.
func buildProcessors(ctx context.Context, chain [][]string) ([]processor.Processor, error) {
	procs := make([]processor.Processor, 0, len(chain))

	for _, segment := range chain {
		name := segment[0]

		build, ok := subcommands[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", errUnknownSubcommand, name)
		}

		var built processor.Processor

		sub := build(&built)

		wrapper := &cli.Command{
			Name:     appName,
			Commands: []*cli.Command{sub},
		}

		if err := wrapper.Run(ctx, append([]string{appName, name}, segment[1:]...)); err != nil {
			return nil, err
		}

		if built == nil {
			return nil, fmt.Errorf("subcommand %q did not produce a processor", name)
		}

		procs = append(procs, built)
	}

	return procs, nil
}
