// Package extract runs one extraction: it validates the run configuration,
// creates the output directory, derives the output prefix and drives the XML,
// image and document exporters.
package extract

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/suyashkumar/dicom/pkg/tag"

	dcm "github.com/mrsinham/dicom2xml/internal/dicom"
	"github.com/mrsinham/dicom2xml/internal/export"
	"github.com/mrsinham/dicom2xml/internal/util"
)

// Config describes a single run.
type Config struct {
	InputPath string
	OutputDir string

	// Placeholder replaces a missing patient name or ID in the output prefix.
	Placeholder string

	JPEGQuality  int
	MaxDimension int

	XMLIndent bool
	OmitTags  []tag.Tag
}

// Report lists what a run produced.
type Report struct {
	Input     string
	OutputDir string
	Context   dcm.Context

	XMLPath      string
	FrameCount   int
	ImagePaths   []string
	DocumentPath string

	// Failures holds every exporter failure, frame failures included.
	Failures []error
	Duration time.Duration
}

// Succeeded reports whether every stage completed without failure.
func (r *Report) Succeeded() bool {
	return len(r.Failures) == 0
}

// Artifacts returns the paths of every written file, XML first.
func (r *Report) Artifacts() []string {
	var out []string
	if r.XMLPath != "" {
		out = append(out, r.XMLPath)
	}
	out = append(out, r.ImagePaths...)
	if r.DocumentPath != "" {
		out = append(out, r.DocumentPath)
	}
	return out
}

// FromArgs builds a Config from the two positional arguments on top of base.
func FromArgs(args []string, base Config) (Config, error) {
	if len(args) != 2 {
		return base, dcm.InvalidArguments("expected <input-dicom-file> <output-directory>, got %d argument(s)", len(args))
	}
	cfg := base
	cfg.InputPath = args[0]
	cfg.OutputDir = args[1]
	return cfg, nil
}

// Validate checks the input and output paths. It does not touch the file
// system beyond stat calls.
func (c Config) Validate() error {
	if strings.TrimSpace(c.InputPath) == "" {
		return dcm.InvalidArguments("input file must not be empty")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return dcm.InvalidArguments("output directory must not be empty")
	}

	info, err := os.Stat(c.InputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return dcm.InvalidArguments("input file %s does not exist", c.InputPath)
		}
		return dcm.NewError(dcm.KindIOFailure, "arguments", c.InputPath, fmt.Errorf("stat input: %w", err))
	}
	if !info.Mode().IsRegular() {
		return dcm.InvalidArguments("input %s is not a regular file", c.InputPath)
	}

	if _, err := os.Lstat(c.OutputDir); err == nil {
		return dcm.InvalidArguments("output directory %s already exists, use a different directory or delete it and try again", c.OutputDir)
	} else if !errors.Is(err, os.ErrNotExist) {
		return dcm.NewError(dcm.KindIOFailure, "arguments", c.OutputDir, fmt.Errorf("stat output directory: %w", err))
	}
	return nil
}

// Run performs the extraction described by cfg. Validation, directory
// creation and metadata failures abort the run. Exporter failures do not:
// every exporter runs, and the returned error joins all of their failures.
// The report is non-nil whenever the output directory was created.
func Run(cfg Config, log logrus.FieldLogger) (*Report, error) {
	start := time.Now()
	if log == nil {
		log = logrus.StandardLogger()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, dcm.NewError(dcm.KindIOFailure, "output directory", cfg.OutputDir, fmt.Errorf("create directory: %w", err))
	}

	report := &Report{Input: cfg.InputPath, OutputDir: cfg.OutputDir}
	defer func() { report.Duration = time.Since(start) }()

	ds, err := dcm.ReadMetadata(cfg.InputPath)
	if err != nil {
		var classified *dcm.Error
		if errors.As(err, &classified) {
			classified.Stage = "metadata"
		}
		report.Failures = append(report.Failures, err)
		return report, err
	}
	report.Context = dcm.ExtractContext(ds.Meta, ds.Main, cfg.Placeholder)
	prefix := report.Context.OutputPrefix

	log.WithFields(logrus.Fields{
		"prefix":          prefix,
		"transfer_syntax": dcm.TransferSyntaxName(report.Context.TransferSyntaxUID),
	}).Info("metadata read")
	if !report.Context.HasPatientName || !report.Context.HasPatientID {
		log.WithFields(logrus.Fields{
			"patient_name": report.Context.HasPatientName,
			"patient_id":   report.Context.HasPatientID,
		}).Warn("patient identity incomplete, using placeholder")
	}

	runXML(cfg, prefix, report, log)
	runImages(cfg, prefix, report, log)
	runDocument(cfg, prefix, report, log)

	return report, errors.Join(report.Failures...)
}

func runXML(cfg Config, prefix string, report *Report, log logrus.FieldLogger) {
	path, err := export.ExportXML(cfg.InputPath, cfg.OutputDir, prefix, export.XMLOptions{
		Indent:   cfg.XMLIndent,
		OmitTags: cfg.OmitTags,
	})
	if err != nil {
		log.WithError(err).Error("xml export failed")
		report.Failures = append(report.Failures, err)
		return
	}
	report.XMLPath = path
	log.WithField("path", util.AbsPath(path)).Info("extracted xml")
}

func runImages(cfg Config, prefix string, report *Report, log logrus.FieldLogger) {
	ts := report.Context.TransferSyntaxUID
	if !dcm.IsJPEGFamily(ts) {
		log.WithField("transfer_syntax", ts).Info("no embedded JPEG images")
		return
	}

	result, err := export.ExportImages(cfg.InputPath, cfg.OutputDir, prefix, ts, export.ImageOptions{
		Quality:      cfg.JPEGQuality,
		MaxDimension: cfg.MaxDimension,
		Logger:       log,
	})
	report.FrameCount = result.Frames
	report.ImagePaths = result.Paths
	for _, path := range result.Paths {
		log.WithField("path", util.AbsPath(path)).Info("extracted image")
	}
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"written": result.Written(),
			"frames":  result.Frames,
		}).Error("image export incomplete")
		report.Failures = append(report.Failures, err)
		return
	}
	log.WithField("frames", result.Written()).Info("image export finished")
}

func runDocument(cfg Config, prefix string, report *Report, log logrus.FieldLogger) {
	path, ok, err := export.ExportDocument(cfg.InputPath, cfg.OutputDir, prefix)
	if err != nil {
		log.WithError(err).Error("document export failed")
		report.Failures = append(report.Failures, err)
		return
	}
	if !ok {
		log.Info("no encapsulated document")
		return
	}
	report.DocumentPath = path
	log.WithField("path", util.AbsPath(path)).Info("extracted document")
}
