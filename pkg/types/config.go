package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "peakannotate/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AnnotationConfig holds settings shared by the pattern-annotation stages.
type AnnotationConfig struct {
	// PPM is the mass tolerance in parts per million.
	PPM float64 `json:"ppm" yaml:"ppm"`

	// Polarity selects the built-in libraries: "pos" or "neg". Ignored
	// when explicit library files are given.
	Polarity string `json:"polarity" yaml:"polarity"`

	// MaxOligomers is the highest oligomer size considered (2 = dimers).
	MaxOligomers int `json:"max_oligomers" yaml:"max_oligomers"`

	// ArtifactDiff is the absolute m/z difference below which two peaks
	// are flagged as a near-duplicate artifact.
	ArtifactDiff float64 `json:"artifact_diff" yaml:"artifact_diff"`
}

// RemoteConfig holds settings for the remote molecular-formula service.
type RemoteConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the service root; the range endpoint lives at
	// BaseURL + "/api/formula/mass_range".
	BaseURL string `json:"base_url" yaml:"base_url"`

	// RequestsPerSecond paces range queries (default 50, the service's
	// documented limit). Zero or negative disables pacing.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// FormulaConfig holds settings for the molecular-formula annotation stage.
type FormulaConfig struct {
	// Rules requires candidate formulae to satisfy all four validity
	// rules (lewis, senior, HC, NOPSC).
	Rules bool `json:"rules" yaml:"rules"`

	// MaxMZ skips peaks above this m/z. Zero means no cap.
	MaxMZ float64 `json:"max_mz" yaml:"max_mz"`

	// Remote configures the fallback service used when no local dump is
	// given.
	Remote RemoteConfig `json:"remote" yaml:"remote"`
}

// SummaryConfig holds settings for the summary stage.
type SummaryConfig struct {
	// SingleRow collapses each peak's annotations into one row with
	// delimiter-joined fields.
	SingleRow bool `json:"single_row" yaml:"single_row"`

	// SingleColumn further collapses the reference columns into one
	// "annotation" column. Only meaningful with SingleRow.
	SingleColumn bool `json:"single_column" yaml:"single_column"`

	// ConvertRT adds a converted retention-time column: "min" or "sec".
	// Empty means no conversion.
	ConvertRT string `json:"convert_rt" yaml:"convert_rt"`

	// NDigitsMZ rounds the reported m/z to this many decimals; zero
	// rounds to whole numbers. Nil leaves the column unchanged.
	NDigitsMZ *int `json:"ndigits_mz" yaml:"ndigits_mz"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Annotation AnnotationConfig `json:"annotation" yaml:"annotation"`
	Formula    FormulaConfig    `json:"formula" yaml:"formula"`
	Summary    SummaryConfig    `json:"summary" yaml:"summary"`
}
