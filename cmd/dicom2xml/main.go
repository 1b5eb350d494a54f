package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mrsinham/dicom2xml/internal/config"
	dcm "github.com/mrsinham/dicom2xml/internal/dicom"
	"github.com/mrsinham/dicom2xml/internal/extract"
	"github.com/mrsinham/dicom2xml/internal/logger"
	"github.com/mrsinham/dicom2xml/internal/util"
)

// version is set at build time via -ldflags
var version = "dev"

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.LookupEnv))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer, lookupEnv func(string) (string, bool)) int {
	fs := flag.NewFlagSet("dicom2xml", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr, fs) }

	configFile := fs.String("config", "", "Load configuration from YAML file")
	placeholder := fs.String("placeholder", "", "Stand-in for a missing patient name or ID (default: UNKNOWN)")
	quality := fs.Int("quality", 0, "JPEG quality 1-100 (default: 90)")
	maxDimension := fs.Int("max-dimension", 0, "Scale frames so their longest side fits (0 = keep size)")
	omitValues := fs.String("omit-values", "", "Comma-separated keywords written to XML without values (e.g. PixelData)")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error (default: info)")
	logFormat := fs.String("log-format", "", "Log format: text or json (default: text)")
	help := fs.Bool("help", false, "Show help message")
	showVersion := fs.Bool("version", false, "Show version")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	if *showVersion {
		fmt.Fprintf(stdout, "dicom2xml %s\n", version)
		return exitOK
	}
	if *help {
		printHelp(stdout)
		return exitOK
	}

	// Configuration layers: defaults, YAML file, environment, flags.
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.LoadFromYAML(*configFile)
		if err != nil {
			fmt.Fprintf(stderr, "Error loading config: %v\n", err)
			return exitUsage
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(lookupEnv); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "placeholder":
			cfg.Placeholder = *placeholder
		case "quality":
			cfg.Images.Quality = *quality
		case "max-dimension":
			cfg.Images.MaxDimension = *maxDimension
		case "omit-values":
			cfg.XML.OmitValues = config.SplitList(*omitValues)
		case "log-level":
			cfg.Log.Level = *logLevel
		case "log-format":
			cfg.Log.Format = *logFormat
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: invalid configuration: %v\n", err)
		return exitUsage
	}
	omitTags, err := cfg.OmitTags()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	log, err := logger.New(stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	runCfg, err := extract.FromArgs(fs.Args(), extract.Config{
		Placeholder:  cfg.Placeholder,
		JPEGQuality:  cfg.Images.Quality,
		MaxDimension: cfg.Images.MaxDimension,
		XMLIndent:    cfg.XML.Indent,
		OmitTags:     omitTags,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		printUsage(stderr, fs)
		return exitUsage
	}

	entry := logger.WithRun(log, runCfg.InputPath)
	report, err := extract.Run(runCfg, entry)
	if report != nil {
		printSummary(stdout, report)
	}
	if err != nil {
		return reportError(stderr, err)
	}
	entry.WithField("duration", report.Duration).Info("extraction complete")
	return exitOK
}

// reportError prints every classified failure and maps them to an exit code.
func reportError(stderr io.Writer, err error) int {
	failures := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		failures = joined.Unwrap()
	}
	for _, f := range failures {
		fmt.Fprintf(stderr, "Error: %v\n", f)
	}
	if dcm.KindOf(err) == dcm.KindInvalidArguments {
		return exitUsage
	}
	return exitFailure
}

func printSummary(w io.Writer, report *extract.Report) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Input:  %s\n", report.Input)
	fmt.Fprintf(w, "Output: %s\n", util.AbsPath(report.OutputDir))
	artifacts := report.Artifacts()
	if len(artifacts) > 0 {
		fmt.Fprintf(w, "Extracted %d file(s):\n", len(artifacts))
		for _, path := range artifacts {
			fmt.Fprintf(w, "  %s\n", util.AbsPath(path))
		}
	}
	if report.Succeeded() {
		fmt.Fprintln(w, "✓ Extraction complete!")
		return
	}
	fmt.Fprintf(w, "✗ Extraction finished with %d failure(s)\n", len(report.Failures))
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintln(w, "  dicom2xml [options] <input-dicom-file> <output-directory>")
	fmt.Fprintln(w, "\nOptions:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "dicom2xml")
	fmt.Fprintln(w, "=========")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Extract the contents of a DICOM file: an XML rendering of every data element,")
	fmt.Fprintln(w, "each embedded JPEG frame and any encapsulated document.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  dicom2xml [options] <input-dicom-file> <output-directory>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The output directory must not exist; it is created by the run.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --config <FILE>         Load configuration from YAML file")
	fmt.Fprintln(w, "  --placeholder <TEXT>    Stand-in for a missing patient name or ID (default: UNKNOWN)")
	fmt.Fprintln(w, "  --quality <N>           JPEG quality 1-100 (default: 90)")
	fmt.Fprintln(w, "  --max-dimension <N>     Scale frames so their longest side is at most N pixels")
	fmt.Fprintln(w, "  --omit-values <LIST>    Keywords written to XML without values (e.g. PixelData)")
	fmt.Fprintln(w, "  --log-level <LEVEL>     debug, info, warn, error (default: info)")
	fmt.Fprintln(w, "  --log-format <FORMAT>   text or json (default: text)")
	fmt.Fprintln(w, "  --version               Show version")
	fmt.Fprintln(w, "  --help                  Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  DICOM2XML_PLACEHOLDER, DICOM2XML_LOG_LEVEL, DICOM2XML_LOG_FORMAT,")
	fmt.Fprintln(w, "  DICOM2XML_JPEG_QUALITY, DICOM2XML_MAX_DIMENSION, DICOM2XML_XML_INDENT,")
	fmt.Fprintln(w, "  DICOM2XML_OMIT_VALUES override the configuration file; flags override both.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output:")
	fmt.Fprintln(w, "  {name}_{id}.xml         Native DICOM Model rendering of the dataset")
	fmt.Fprintln(w, "  {name}_{id}_{n}.jpeg    One file per frame (JPEG transfer syntaxes only)")
	fmt.Fprintln(w, "  {name}_{id}.pdf         Encapsulated document, written verbatim")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Exit status:")
	fmt.Fprintln(w, "  0 success, 1 extraction failure, 2 invalid arguments or configuration")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  dicom2xml study.dcm out/")
	fmt.Fprintln(w, "  dicom2xml --omit-values PixelData --log-format json report.dcm out/")
}
