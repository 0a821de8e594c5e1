// Command pdftext extracts the text of a PDF into a lower-cased text file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	pdftext "github.com/pyhub-apps/pdftext-golang"
	"github.com/pyhub-apps/pdftext-golang/pkg/config"
	"github.com/pyhub-apps/pdftext-golang/pkg/logging"
)

// Version is set via ldflags during build
var Version = "dev"

// Exit codes
const (
	exitOK = iota
	exitConfig
	exitUsage
	exitLoad
	exitWrite
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("pdftext", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: pdftext [flags] <source.pdf> <output.txt>\n\n")
		fmt.Fprintf(stderr, "Source and output may be local paths or s3://bucket/key.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "", "Path to configuration file")
	workers := fs.Int("workers", 0, "Concurrent page workers (0 = one per CPU)")
	loader := fs.String("loader", "", "Object graph loader: native, pdfcpu or auto")
	fallback := fs.String("fallback", "", "Fallback engine for failed pages: none, ledongthuc or dslipak")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn or error")
	logFormat := fs.String("log-format", "", "Log format: text or json")
	version := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if *version {
		fmt.Fprintf(stderr, "pdftext %s\n", Version)
		return exitOK
	}
	if fs.NArg() < 2 {
		fs.Usage()
		return exitUsage
	}
	src, dst := fs.Arg(0), fs.Arg(1)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "pdftext: %v\n", err)
		return exitConfig
	}

	// Flags override the file and the environment
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Extract.Workers = *workers
		case "loader":
			cfg.Loader.Engine = *loader
		case "fallback":
			cfg.Extract.Fallback = *fallback
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "pdftext: %v\n", err)
		return exitConfig
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: stderr,
	})

	_, err = pdftext.New(cfg, pdftext.WithLogger(logger)).Convert(ctx, src, dst)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, pdftext.ErrWrite):
		logger.Error("conversion failed", "error", err)
		return exitWrite
	default:
		logger.Error("conversion failed", "error", err)
		return exitLoad
	}
}
