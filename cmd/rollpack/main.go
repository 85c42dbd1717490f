package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rollpack/rollpack/pkg/api"
)

const rollpackVersion = "0.1.0"

const helpText = `
Usage:
  rollpack [options] [entry points]

Entry points are JSON module descriptors produced by a host parser. Use
"name=path" to override the output name of an entry point.

Options:
  --outdir=...          The output directory (default "dist")
  --format=...          Output format (esm, cjs, app; default esm)
  --entry-names=...     Entry file name template (default "[name].js")
  --chunk-names=...     Shared chunk file name template
                        (default "chunk-[hash].js")
  --banner=...          Text prepended to every output file
  --footer=...          Text appended to every output file
  --render-workers=N    Concurrently rendered modules per chunk (0 = all)

Advanced options:
  --version             Print the current version and exit (` + rollpackVersion + `)
  --error-limit=...     Maximum error count or 0 to disable (default 10)
  --log-level=...       Disable logging (info, warning, error, silent)

Examples:
  # Produces dist/main.js plus shared chunks
  rollpack src/main.json --outdir=dist --format=esm

  # Two entry points with explicit output names
  rollpack app=src/app.json worker=src/worker.json --outdir=out
`

func main() {
	options := api.BuildOptions{
		Outdir:     "dist",
		ErrorLimit: 10,
		Write:      true,
	}

	for _, arg := range os.Args[1:] {
		switch {
		case arg == "--help" || arg == "-h":
			fmt.Fprintf(os.Stderr, "%s\n", helpText)
			os.Exit(0)

		case arg == "--version":
			fmt.Printf("%s\n", rollpackVersion)
			os.Exit(0)

		case strings.HasPrefix(arg, "--outdir="):
			options.Outdir = arg[len("--outdir="):]

		case strings.HasPrefix(arg, "--entry-names="):
			options.EntryNames = arg[len("--entry-names="):]

		case strings.HasPrefix(arg, "--chunk-names="):
			options.ChunkNames = arg[len("--chunk-names="):]

		case strings.HasPrefix(arg, "--banner="):
			options.Banner = staticAddon(arg[len("--banner="):])

		case strings.HasPrefix(arg, "--footer="):
			options.Footer = staticAddon(arg[len("--footer="):])

		case strings.HasPrefix(arg, "--format="):
			switch value := arg[len("--format="):]; value {
			case "esm":
				options.Format = api.FormatESModule
			case "cjs":
				options.Format = api.FormatCommonJS
			case "app":
				options.Format = api.FormatApp
			default:
				exitWithError(fmt.Sprintf("Invalid format: %q (valid: esm, cjs, app)", value))
			}

		case strings.HasPrefix(arg, "--log-level="):
			switch value := arg[len("--log-level="):]; value {
			case "info":
				options.LogLevel = api.LogLevelInfo
			case "warning":
				options.LogLevel = api.LogLevelWarning
			case "error":
				options.LogLevel = api.LogLevelError
			case "silent":
				options.LogLevel = api.LogLevelSilent
			default:
				exitWithError(fmt.Sprintf("Invalid log level: %q", value))
			}

		case strings.HasPrefix(arg, "--error-limit="):
			value, err := strconv.Atoi(arg[len("--error-limit="):])
			if err != nil || value < 0 {
				exitWithError(fmt.Sprintf("Invalid error limit: %q", arg[len("--error-limit="):]))
			}
			options.ErrorLimit = value

		case strings.HasPrefix(arg, "--render-workers="):
			value, err := strconv.Atoi(arg[len("--render-workers="):])
			if err != nil || value < 0 {
				exitWithError(fmt.Sprintf("Invalid worker count: %q", arg[len("--render-workers="):]))
			}
			options.RenderWorkers = value

		case strings.HasPrefix(arg, "-"):
			exitWithError(fmt.Sprintf("Invalid flag: %s", arg))

		default:
			entry := api.EntryPoint{InputPath: arg}
			if equals := strings.IndexByte(arg, '='); equals != -1 {
				entry = api.EntryPoint{OutputName: arg[:equals], InputPath: arg[equals+1:]}
			}
			options.EntryPoints = append(options.EntryPoints, entry)
		}
	}

	if len(options.EntryPoints) == 0 {
		fmt.Fprintf(os.Stderr, "%s\n", helpText)
		os.Exit(1)
	}

	result := api.Build(options)
	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}

func staticAddon(text string) api.AddonFunc {
	return func(_ context.Context, _ *api.ChunkInfo) (string, error) {
		return text, nil
	}
}

func exitWithError(text string) {
	fmt.Fprintf(os.Stderr, "error: %s\n", text)
	os.Exit(1)
}
