package config

// ServiceConfig is the top-level YAML structure.
type ServiceConfig struct {
	Version     string          `yaml:"version" json:"version"`
	Engine      EngineConf      `yaml:"engine" json:"engine"`
	Reliability ReliabilityConf `yaml:"reliability" json:"reliability"`
	Store       StoreConf       `yaml:"store" json:"store"`
}

// EngineConf holds tunable concurrency settings.
type EngineConf struct {
	Workers       int `yaml:"workers" json:"workers"`
	QueueDepth    int `yaml:"queue_depth" json:"queue_depth"`
	EditTimeoutMs int `yaml:"edit_timeout_ms" json:"edit_timeout_ms"`
}

// ReliabilityConf bounds evaluation cost. It is hot-reloadable.
type ReliabilityConf struct {
	Refinements      int     `yaml:"refinements" json:"refinements"` // exp-sinh step halvings
	Tolerance        float64 `yaml:"tolerance" json:"tolerance"`
	MaxTraceSteps    int     `yaml:"max_trace_steps" json:"max_trace_steps"`
	MaxSchemaCascade int     `yaml:"max_schema_cascade" json:"max_schema_cascade"`
}

// StoreConf selects where nodes live. Fixture, when set, seeds the store at startup.
type StoreConf struct {
	Path       string `yaml:"path" json:"path"`
	InMemory   bool   `yaml:"in_memory" json:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes" json:"sync_writes"`
	Fixture    string `yaml:"fixture" json:"fixture,omitempty"`
}
