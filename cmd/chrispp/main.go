// chrispp - chrispp compiler driver
//
// Usage: chrispp [flags] file
//
// Flags:
//   -o file      Write diagnostics to file instead of stderr
//   -json        Emit diagnostics as JSON instead of text
//   -config file Load compiler options from a TOML file (see internal/config)
//   -v           Verbose: log each pipeline phase as it completes
//
// chrispp runs lex through codegen in one process via
// internal/compiler, so there are no intermediate files and no
// stage-selection flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/gmofishsauce/chrispp/internal/compiler"
	"github.com/gmofishsauce/chrispp/internal/config"
)

var (
	outputFile = flag.String("o", "", "write diagnostics to file instead of stderr")
	jsonOutput = flag.Bool("json", false, "emit diagnostics as JSON")
	configFile = flag.String("config", "", "load compiler options from a TOML file")
	verbose    = flag.Bool("v", false, "log each pipeline phase as it completes")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] file\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "chrispp compiler driver\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(flag.Arg(0)))
}

func run(sourcePath string) int {
	opts := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "chrispp: %v\n", err)
			return 1
		}
		opts = loaded
	}
	if *jsonOutput {
		opts.DiagnosticFormat = config.DiagnosticJSON
	}

	logger := zap.NewNop()
	if *verbose {
		built, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "chrispp: %v\n", err)
			return 1
		}
		logger = built
		defer logger.Sync()
	}

	res, err := compiler.Compile(context.Background(), sourcePath, opts, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "chrispp: %v\n", err)
		return 1
	}

	out := os.Stderr
	if *outputFile != "" {
		f, err := os.Create(*outputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "chrispp: %v\n", err)
			return 1
		}
		defer f.Close()
		out = f
	}

	var rendered string
	if opts.DiagnosticFormat == config.DiagnosticJSON {
		rendered, err = res.Diags.FormatJSON()
		if err != nil {
			fmt.Fprintf(os.Stderr, "chrispp: %v\n", err)
			return 1
		}
	} else {
		rendered = res.Diags.Format()
	}
	if rendered != "" {
		fmt.Fprintln(out, rendered)
	}

	return res.Diags.ExitCode()
}
