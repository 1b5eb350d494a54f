// Package config holds the settings of a dicom2xml run: defaults, an optional
// YAML file and DICOM2XML_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mrsinham/dicom2xml/internal/util"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// Config is the YAML-serializable configuration.
type Config struct {
	Placeholder string       `yaml:"placeholder"`
	Log         LogConfig    `yaml:"log"`
	Images      ImagesConfig `yaml:"images"`
	XML         XMLConfig    `yaml:"xml"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ImagesConfig controls JPEG re-encoding.
type ImagesConfig struct {
	Quality      int `yaml:"quality"`
	MaxDimension int `yaml:"max_dimension"` // 0 keeps the decoded size
}

// XMLConfig controls the XML rendering.
type XMLConfig struct {
	Indent     bool     `yaml:"indent"`
	OmitValues []string `yaml:"omit_values,omitempty"` // keywords written without values
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Placeholder: "UNKNOWN",
		Log:         LogConfig{Level: "info", Format: "text"},
		Images:      ImagesConfig{Quality: 90},
		XML:         XMLConfig{Indent: true},
	}
}

// LoadFromYAML reads path on top of the defaults. Keys absent from the file
// keep their default value.
func LoadFromYAML(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveToYAML writes cfg to path.
func SaveToYAML(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with DICOM2XML_* environment variables.
// Malformed numeric or boolean values are reported, not ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup("DICOM2XML_PLACEHOLDER"); ok {
		c.Placeholder = v
	}
	if v, ok := lookup("DICOM2XML_LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("DICOM2XML_LOG_FORMAT"); ok && v != "" {
		c.Log.Format = v
	}
	if v, ok := lookup("DICOM2XML_JPEG_QUALITY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DICOM2XML_JPEG_QUALITY: %w", err)
		}
		c.Images.Quality = n
	}
	if v, ok := lookup("DICOM2XML_MAX_DIMENSION"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DICOM2XML_MAX_DIMENSION: %w", err)
		}
		c.Images.MaxDimension = n
	}
	if v, ok := lookup("DICOM2XML_XML_INDENT"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("DICOM2XML_XML_INDENT: %w", err)
		}
		c.XML.Indent = b
	}
	if v, ok := lookup("DICOM2XML_OMIT_VALUES"); ok {
		c.XML.OmitValues = SplitList(v)
	}
	return nil
}

// Validate checks if config is valid
func (c Config) Validate() error {
	if strings.TrimSpace(c.Placeholder) == "" {
		return fmt.Errorf("placeholder must not be blank")
	}
	if strings.ContainsAny(c.Placeholder, "/\\\x00") {
		return fmt.Errorf("placeholder %q must not contain path separators", c.Placeholder)
	}
	if c.Images.Quality < 1 || c.Images.Quality > 100 {
		return fmt.Errorf("images.quality must be between 1 and 100, got %d", c.Images.Quality)
	}
	if c.Images.MaxDimension < 0 {
		return fmt.Errorf("images.max_dimension must be >= 0, got %d", c.Images.MaxDimension)
	}
	if _, err := c.OmitTags(); err != nil {
		return fmt.Errorf("xml.omit_values: %w", err)
	}
	return nil
}

// OmitTags resolves XML.OmitValues to tags.
func (c Config) OmitTags() ([]tag.Tag, error) {
	infos, err := util.ParseTagNames(c.XML.OmitValues)
	if err != nil {
		return nil, err
	}
	tags := make([]tag.Tag, len(infos))
	for i, info := range infos {
		tags[i] = info.Tag
	}
	return tags, nil
}

// SplitList splits a comma-separated flag or env value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
