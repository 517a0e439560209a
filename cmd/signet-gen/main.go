// Command signet-gen is the dedicated sample-blend generator binary (§6's
// signet/signet-gen split): unlike signet, it always runs exactly one
// GeneratorProcessor over the resolved collection, never a chain.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/SamWindell/signet"
	"github.com/SamWindell/signet/internal/processor"
)

var errNoTokens = errors.New("signet-gen: no input tokens given")

const (
	appName    = "signet-gen"
	appVersion = "0.1.0"
)

func main() {
	ctx := context.Background()

	opts := processor.DefaultSampleBlendOptions()

	root := &cli.Command{
		Name:      appName,
		Usage:     "Synthesize pitch-shifted crossfades between neighbouring root-noted samples",
		Version:   appVersion,
		ArgsUsage: "<tokens…> [--recursive] [--semitone-interval N]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "recursive",
				Aliases: []string{"r"},
				Usage:   "descend into subdirectories of bare directory tokens",
			},
			&cli.Float64Flag{
				Name:  "semitone-interval",
				Usage: "spacing, in semitones, between synthesized samples",
				Value: 2,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			tokens := cmd.Args().Slice()
			if len(tokens) == 0 {
				return errNoTokens
			}

			opts.SemitoneInterval = cmd.Float64("semitone-interval")

			return signet.Run(signet.Options{
				Tokens:     tokens,
				Recursive:  cmd.Bool("recursive"),
				Processors: []processor.Processor{processor.NewSampleBlend(opts)},
			})
		},
	}

	if err := root.Run(ctx, os.Args); err != nil {
		slog.Error("failed to run", "error", err)
		os.Exit(1)
	}
}
