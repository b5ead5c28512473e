package domain

// Config mirrors ~/.riskgate/config.yaml.
type Config struct {
	ConfigFormatVersion string            `yaml:"config_format_version"`
	Classifier          ClassifierConfig  `yaml:"classifier"`
	Family              FamilyConfig      `yaml:"family"`
	Decision            DecisionConfig    `yaml:"decision"`
	Store               StoreSettings     `yaml:"store"`
	Classify            ClassifySettings  `yaml:"classify"`
	History             HistorySettings   `yaml:"history"`
	Telemetry           TelemetrySettings `yaml:"telemetry"`
}

// ClassifierConfig points at the rule table. Thresholds here override the
// ones in the rules file when set.
type ClassifierConfig struct {
	RulesFile  string     `yaml:"rules_file"`
	Thresholds Thresholds `yaml:"thresholds,omitempty"`
}

// Thresholds are the lower score bounds of each non-SAFE level.
type Thresholds struct {
	Low      float64 `yaml:"low" json:"low"`
	Medium   float64 `yaml:"medium" json:"medium"`
	High     float64 `yaml:"high" json:"high"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// FamilyConfig tunes consensus for parent descriptors. A flag joins the
// parent baseline when set in more than Numerator/Denominator of members.
type FamilyConfig struct {
	ConsensusNumerator   int `yaml:"consensus_numerator"`
	ConsensusDenominator int `yaml:"consensus_denominator"`
}

// DecisionConfig points at escalation and substitution rules.
type DecisionConfig struct {
	RulesFile     string `yaml:"rules_file"`
	QuarantineDir string `yaml:"quarantine_dir"`
}

// StoreSettings selects the descriptor store backend.
type StoreSettings struct {
	Driver        string `yaml:"driver"`
	DSN           string `yaml:"dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix"`
}

// ClassifySettings bounds batch classification.
type ClassifySettings struct {
	Workers       int     `yaml:"workers"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// HistorySettings controls the decision journal.
type HistorySettings struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// TelemetrySettings configures OpenTelemetry export.
type TelemetrySettings struct {
	Enabled      bool   `yaml:"enabled"`
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}
