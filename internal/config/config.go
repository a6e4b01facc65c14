// Package config loads process configuration from an optional YAML file and
// environment variables. Environment values override file values; secrets
// only ever come from the environment.
package config

import (
	"errors"
	"io/fs"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the studycore commands.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Sources SourcesConfig `yaml:"sources"`
	Paths   PathsConfig   `yaml:"paths"`
	Export  ExportConfig  `yaml:"export"`
}

// StorageConfig selects and parameterizes the persistent store backend.
type StorageConfig struct {
	Driver      string `yaml:"driver" env:"STUDYCORE_STORAGE_DRIVER" env-default:"sqlite"`
	SQLitePath  string `yaml:"sqlite_path" env:"STUDYCORE_SQLITE_PATH" env-default:""`
	PostgresDSN string `yaml:"-" env:"STUDYCORE_POSTGRES_DSN"` // secret, env only
}

// SourcesConfig points at the remote sheet exports feeding ingestion. Tokens
// are secrets and never read from YAML.
type SourcesConfig struct {
	CRFSheetURL           string `yaml:"crf_sheet_url" env:"STUDYCORE_CRF_SHEET_URL" env-default:""`
	QuestionnaireSheetURL string `yaml:"questionnaire_sheet_url" env:"STUDYCORE_QUESTIONNAIRE_SHEET_URL" env-default:""`
	SheetToken            string `yaml:"-" env:"STUDYCORE_SHEET_TOKEN"`
}

// PathsConfig points at the storage trees the processing pipelines write into.
type PathsConfig struct {
	RawRoot         string `yaml:"raw_root" env:"STUDYCORE_RAW_ROOT" env-default:""`
	BIDSRoot        string `yaml:"bids_root" env:"STUDYCORE_BIDS_ROOT" env-default:""`
	DerivativesRoot string `yaml:"derivatives_root" env:"STUDYCORE_DERIVATIVES_ROOT" env-default:""`
}

// ExportConfig parameterizes report publication.
type ExportConfig struct {
	ReportKey string `yaml:"report_key" env:"STUDYCORE_EXPORT_REPORT_KEY" env-default:"sessions_with_derivatives.csv"`
}

// Load reads configuration from path (when non-empty and present) and then
// the environment. A missing file is not an error; the environment and
// defaults carry the full configuration on their own.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		err := cleanenv.ReadConfig(path, &cfg)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
