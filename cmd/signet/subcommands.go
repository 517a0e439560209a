package main

import (
	"context"
	"fmt"
	"regexp"

	"github.com/urfave/cli/v3"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/metadata"
	"github.com/SamWindell/signet/internal/processor"
)

// subcommands maps every recognized subcommand name (§4.5) to a builder
// that returns a throwaway *cli.Command for parsing one chain segment's
// flags. The builder's Action stores the resulting processor.Processor
// into *out.
var subcommands = map[string]func(out *processor.Processor) *cli.Command{
	"gain":                gainCommand,
	"normalize":           normalizeCommand,
	"fade":                fadeCommand,
	"trim":                trimCommand,
	"remove-silence":      removeSilenceCommand,
	"convert":             convertCommand,
	"tune":                tuneCommand,
	"auto-tune":           autoTuneCommand,
	"rename":              renameCommand,
	"folderise":           folderiseCommand,
	"seamless-loop":       seamlessLoopCommand,
	"fix-pitch-drift":     pitchDriftCommand,
	"print-info":          printInfoCommand,
	"zcross-offset":       zcrossOffsetCommand,
	"reverse":             reverseCommand,
	"pan":                 panCommand,
	"embed-sampler-info":  embedSamplerInfoCommand,
	"sample-blend":        sampleBlendCommand,
}

func gainCommand(out *processor.Processor) *cli.Command {
	opts := processor.DefaultGainOptions()

	return &cli.Command{
		Name:  "gain",
		Usage: "multiply every sample by a constant gain",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "value", Usage: "gain amount, in the given unit"},
			&cli.StringFlag{Name: "unit", Usage: "db or percent", Value: "db"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts.Value = cmd.Float64("value")

			switch cmd.String("unit") {
			case "percent", "%":
				opts.Unit = processor.GainPercent
			default:
				opts.Unit = processor.GainDecibels
			}

			*out = processor.NewGain(opts)

			return nil
		},
	}
}

func normalizeCommand(out *processor.Processor) *cli.Command {
	opts := processor.DefaultNormalizeOptions()

	return &cli.Command{
		Name:  "normalize",
		Usage: "bring the batch's peak or RMS magnitude up to a target level",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "target-db", Value: -1},
			&cli.StringFlag{Name: "mode", Usage: "peak or rms", Value: "peak"},
			&cli.BoolFlag{Name: "independently", Usage: "normalize each file to its own magnitude instead of the batch's loudest"},
			&cli.Float64Flag{Name: "mix", Usage: "0-100, interpolates between no change and the full computed gain", Value: 100},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts.TargetDecibels = cmd.Float64("target-db")
			opts.CommonGain = !cmd.Bool("independently")
			opts.MixPercent = cmd.Float64("mix")

			if cmd.String("mode") == "rms" {
				opts.Mode = processor.NormalizeRMS
			} else {
				opts.Mode = processor.NormalizePeak
			}

			*out = processor.NewNormalize(opts)

			return nil
		},
	}
}

func fadeCommand(out *processor.Processor) *cli.Command {
	opts := processor.DefaultFadeOptions()

	return &cli.Command{
		Name:  "fade",
		Usage: "ramp gain in or out over a number of frames",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "direction", Usage: "in or out", Value: "in"},
			&cli.StringFlag{Name: "shape", Usage: "linear, sine, scurve, exp, log, sqrt", Value: "linear"},
			&cli.IntFlag{Name: "frames", Usage: "length of the fade, in frames"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.String("direction") == "out" {
				opts.Direction = processor.FadeOut
			} else {
				opts.Direction = processor.FadeIn
			}

			switch cmd.String("shape") {
			case "sine":
				opts.Shape = processor.FadeSine
			case "scurve":
				opts.Shape = processor.FadeSCurve
			case "exp":
				opts.Shape = processor.FadeExp
			case "log":
				opts.Shape = processor.FadeLog
			case "sqrt":
				opts.Shape = processor.FadeSqrt
			default:
				opts.Shape = processor.FadeLinear
			}

			opts.Frames = uint64(cmd.Int("frames"))

			*out = processor.NewFade(opts)

			return nil
		},
	}
}

func trimCommand(out *processor.Processor) *cli.Command {
	opts := processor.DefaultTrimOptions()

	return &cli.Command{
		Name:  "trim",
		Usage: "remove a fixed number of frames from the start and/or end",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "start-frames"},
			&cli.IntFlag{Name: "end-frames"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts.StartFrames = uint64(cmd.Int("start-frames"))
			opts.EndFrames = uint64(cmd.Int("end-frames"))

			*out = processor.NewTrim(opts)

			return nil
		},
	}
}

func removeSilenceCommand(out *processor.Processor) *cli.Command {
	opts := processor.DefaultRemoveSilenceOptions()

	return &cli.Command{
		Name:  "remove-silence",
		Usage: "trim leading/trailing frames below a threshold",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "threshold-db", Value: -90},
			&cli.StringFlag{Name: "region", Usage: "start, end, or both", Value: "both"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts.ThresholdDecibels = cmd.Float64("threshold-db")

			switch cmd.String("region") {
			case "start":
				opts.Region = processor.SilenceStart
			case "end":
				opts.Region = processor.SilenceEnd
			default:
				opts.Region = processor.SilenceBoth
			}

			*out = processor.NewRemoveSilence(opts)

			return nil
		},
	}
}

func convertCommand(out *processor.Processor) *cli.Command {
	opts := processor.DefaultConvertOptions()

	return &cli.Command{
		Name:  "convert",
		Usage: "change sample-rate, bit-depth, and/or container",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "sample-rate"},
			&cli.IntFlag{Name: "bit-depth"},
			&cli.StringFlag{Name: "format", Usage: "wav or flac"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.IsSet("sample-rate") {
				opts.SampleRate = cmd.Int("sample-rate")
				opts.HasRate = true
			}

			if cmd.IsSet("bit-depth") {
				opts.BitDepth = cmd.Int("bit-depth")
				opts.HasDepth = true
			}

			if cmd.IsSet("format") {
				opts.HasFormat = true

				switch cmd.String("format") {
				case "flac":
					opts.Container = audio.ContainerFLAC
				case "wav":
					opts.Container = audio.ContainerWAV
				default:
					return fmt.Errorf("unrecognized --format %q, want wav or flac", cmd.String("format"))
				}
			}

			*out = processor.NewConvert(opts)

			return nil
		},
	}
}

func tuneCommand(out *processor.Processor) *cli.Command {
	opts := processor.DefaultTuneOptions()

	return &cli.Command{
		Name:  "tune",
		Usage: "shift pitch by a fixed number of cents",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "cents"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts.Cents = cmd.Float64("cents")
			*out = processor.NewTune(opts)

			return nil
		},
	}
}

func autoTuneCommand(out *processor.Processor) *cli.Command {
	opts := processor.DefaultAutoTuneOptions()

	return &cli.Command{
		Name:  "auto-tune",
		Usage: "detect pitch and snap it to the nearest semitone",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			*out = processor.NewAutoTune(opts)

			return nil
		},
	}
}

func renameCommand(out *processor.Processor) *cli.Command {
	opts := processor.DefaultRenameOptions()

	return &cli.Command{
		Name:      "rename",
		Usage:     "substitute a <token>-templated filename",
		ArgsUsage: "<pattern>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "counter-start", Value: 1},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("rename: expected exactly one argument: pattern")
			}

			opts.Pattern = cmd.Args().First()
			opts.CounterStart = cmd.Int("counter-start")
			*out = processor.NewRename(opts)

			return nil
		},
	}
}

func folderiseCommand(out *processor.Processor) *cli.Command {
	var opts processor.FolderiseOptions

	return &cli.Command{
		Name:  "folderise",
		Usage: "move matching files into a templated subfolder",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "pattern", Usage: "regex matched against the filename"},
			&cli.StringFlag{Name: "folder", Usage: "destination folder template, referencing <n> for regex group n"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			re, err := regexp.Compile(cmd.String("pattern"))
			if err != nil {
				return fmt.Errorf("folderise: %w", err)
			}

			opts.Pattern = re
			opts.FolderTemplate = cmd.String("folder")
			*out = processor.NewFolderise(opts)

			return nil
		},
	}
}

func seamlessLoopCommand(out *processor.Processor) *cli.Command {
	opts := processor.DefaultSeamlessLoopOptions()

	return &cli.Command{
		Name:  "seamless-loop",
		Usage: "crossfade the file's tail onto its head",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "crossfade-percent", Value: 10},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts.CrossfadePercent = cmd.Float64("crossfade-percent")
			*out = processor.NewSeamlessLoop(opts)

			return nil
		},
	}
}

func pitchDriftCommand(out *processor.Processor) *cli.Command {
	opts := processor.DefaultPitchDriftOptions()

	return &cli.Command{
		Name:  "fix-pitch-drift",
		Usage: "correct regions of drifting pitch in single-note recordings",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "chunk-ms", Value: 60},
			&cli.StringFlag{Name: "sample-set-pattern", Usage: "regex with one capture group, grouping related files for a shared correction schedule"},
			&cli.StringFlag{Name: "sample-set-authority", Usage: "the capture-group value whose schedule governs its group"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts.ChunkMilliseconds = cmd.Float64("chunk-ms")

			if pattern := cmd.String("sample-set-pattern"); pattern != "" {
				re, err := regexp.Compile(pattern)
				if err != nil {
					return fmt.Errorf("fix-pitch-drift: %w", err)
				}

				opts.SampleSetPattern = re
				opts.SampleSetAuthority = cmd.String("sample-set-authority")
			}

			*out = processor.NewPitchDrift(opts)

			return nil
		},
	}
}

func printInfoCommand(out *processor.Processor) *cli.Command {
	return &cli.Command{
		Name:  "print-info",
		Usage: "log each file's metadata without modifying it",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			*out = processor.NewPrintInfo()

			return nil
		},
	}
}

func zcrossOffsetCommand(out *processor.Processor) *cli.Command {
	opts := processor.DefaultZeroCrossOffsetOptions()

	return &cli.Command{
		Name:  "zcross-offset",
		Usage: "trim leading frames up to the first zero-crossing",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "search-frames", Value: 2000},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts.SearchFrames = cmd.Int("search-frames")
			*out = processor.NewZeroCrossOffset(opts)

			return nil
		},
	}
}

func reverseCommand(out *processor.Processor) *cli.Command {
	return &cli.Command{
		Name:  "reverse",
		Usage: "reverse frame order",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			*out = processor.NewReverse()

			return nil
		},
	}
}

func panCommand(out *processor.Processor) *cli.Command {
	opts := processor.DefaultPanOptions()

	return &cli.Command{
		Name:  "pan",
		Usage: "apply a per-channel gain to stereo files",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "value", Usage: "-1 (full left) to 1 (full right)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts.Value = cmd.Float64("value")
			*out = processor.NewPan(opts)

			return nil
		},
	}
}

func embedSamplerInfoCommand(out *processor.Processor) *cli.Command {
	opts := processor.DefaultEmbedSamplerInfoOptions()

	return &cli.Command{
		Name:  "embed-sampler-info",
		Usage: "write midi/sampler/timing/loop metadata, detecting the root note when not given",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "root-note", Usage: "MIDI note 0-127; omit to auto-detect from pitch"},
			&cli.BoolFlag{Name: "loop", Usage: "add a loop spanning the whole file"},
			&cli.StringFlag{Name: "loop-type", Usage: "forward, backward, or ping-pong", Value: "forward"},
			&cli.IntFlag{Name: "low-note"},
			&cli.IntFlag{Name: "high-note", Value: 127},
			&cli.IntFlag{Name: "low-velocity", Value: 1},
			&cli.IntFlag{Name: "high-velocity", Value: 127},
			&cli.IntFlag{Name: "fine-tune-cents"},
			&cli.IntFlag{Name: "gain-db"},
			&cli.Float64Flag{Name: "tempo-bpm"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.IsSet("root-note") {
				note := cmd.Int("root-note")
				opts.RootNote = &note
			}

			if cmd.IsSet("low-note") || cmd.IsSet("high-note") || cmd.IsSet("low-velocity") ||
				cmd.IsSet("high-velocity") || cmd.IsSet("fine-tune-cents") || cmd.IsSet("gain-db") {
				sm := metadata.SamplerMapping{
					LowNote:       cmd.Int("low-note"),
					HighNote:      cmd.Int("high-note"),
					LowVelocity:   cmd.Int("low-velocity"),
					HighVelocity:  cmd.Int("high-velocity"),
					FineTuneCents: cmd.Int("fine-tune-cents"),
					GainDb:        cmd.Int("gain-db"),
				}
				opts.SamplerMapping = &sm
			}

			if cmd.IsSet("tempo-bpm") {
				opts.TimingInfo = &metadata.TimingInfo{
					PlaybackType: metadata.PlaybackLoop,
					TempoBpm:     cmd.Float64("tempo-bpm"),
				}
			}

			opts.WholeFileLoop = cmd.Bool("loop")

			switch cmd.String("loop-type") {
			case "backward":
				opts.LoopType = metadata.LoopBackward
			case "ping-pong":
				opts.LoopType = metadata.LoopPingPong
			default:
				opts.LoopType = metadata.LoopForward
			}

			*out = processor.NewEmbedSamplerInfo(opts)

			return nil
		},
	}
}

func sampleBlendCommand(out *processor.Processor) *cli.Command {
	opts := processor.DefaultSampleBlendOptions()

	return &cli.Command{
		Name:  "sample-blend",
		Usage: "synthesize pitch-shifted crossfades between neighbouring root-noted samples",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "semitone-interval", Value: 2},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts.SemitoneInterval = cmd.Float64("semitone-interval")
			*out = processor.NewSampleBlend(opts)

			return nil
		},
	}
}
