// Package settings is the hot-reloadable runtime configuration shared by the
// triage pipeline and the queue scheduler.
//
// Settings are typed and versioned. Every change goes through Store.Update,
// which validates the merged result, persists it, swaps the snapshot and
// notifies watchers. Readers take immutable snapshots and never lock.
package settings

import "time"

// SchemaVersion is the settings layout written by this build. Persisted
// settings must satisfy SchemaConstraint to be accepted.
const (
	SchemaVersion    = "1.1.0"
	SchemaConstraint = "~1"
)

// DefaultQueue is the queue ticket jobs are enqueued on.
const DefaultQueue = "tickets"

// Settings is the root runtime configuration.
type Settings struct {
	SchemaVersion        string                   `koanf:"schema_version" yaml:"schema_version" json:"schema_version" validate:"required,semver"`
	AutoResolveThreshold float64                  `koanf:"auto_resolve_threshold" yaml:"auto_resolve_threshold" json:"auto_resolve_threshold" validate:"gte=0,lte=1"`
	AutoResolve          AutoResolveSettings      `koanf:"auto_resolve" yaml:"auto_resolve" json:"auto_resolve"`
	Classification       ClassificationSettings   `koanf:"classification" yaml:"classification" json:"classification"`
	Knowledge            KnowledgeSettings        `koanf:"knowledge" yaml:"knowledge" json:"knowledge"`
	Queues               map[string]QueueSettings `koanf:"queues" yaml:"queues" json:"queues" validate:"dive,keys,required,endkeys"`
	Integrations         IntegrationSettings      `koanf:"integrations" yaml:"integrations" json:"integrations"`
}

// AutoResolveSettings is the policy consumed by the auto-resolution gate.
type AutoResolveSettings struct {
	Enabled     bool     `koanf:"enabled" yaml:"enabled" json:"enabled"`
	Categories  []string `koanf:"categories" yaml:"categories" json:"categories" validate:"dive,required"`
	MaxPriority string   `koanf:"max_priority" yaml:"max_priority" json:"max_priority" validate:"oneof=low medium high urgent"`
}

// ClassificationSettings tunes the classification step.
type ClassificationSettings struct {
	MinConfidence float64  `koanf:"min_confidence" yaml:"min_confidence" json:"min_confidence" validate:"gte=0,lte=1"`
	Categories    []string `koanf:"categories" yaml:"categories" json:"categories" validate:"min=1,dive,required"`
}

// KnowledgeSettings tunes the knowledge search step.
type KnowledgeSettings struct {
	MaxResults int     `koanf:"max_results" yaml:"max_results" json:"max_results" validate:"min=1,max=50"`
	MinScore   float64 `koanf:"min_score" yaml:"min_score" json:"min_score" validate:"gte=0,lte=1"`
}

// QueueSettings configures one named queue of the scheduler.
type QueueSettings struct {
	Concurrency   int           `koanf:"concurrency" yaml:"concurrency" json:"concurrency" validate:"min=1,max=20"`
	Attempts      int           `koanf:"attempts" yaml:"attempts" json:"attempts" validate:"min=1,max=10"`
	Backoff       time.Duration `koanf:"backoff" yaml:"backoff" json:"backoff" validate:"gte=0"`
	Timeout       time.Duration `koanf:"timeout" yaml:"timeout" json:"timeout" validate:"gte=0"`
	KeepCompleted int           `koanf:"keep_completed" yaml:"keep_completed" json:"keep_completed" validate:"gte=0"`
	KeepFailed    int           `koanf:"keep_failed" yaml:"keep_failed" json:"keep_failed" validate:"gte=0"`
	StallInterval time.Duration `koanf:"stall_interval" yaml:"stall_interval" json:"stall_interval" validate:"gte=0"`
	MaxStalled    int           `koanf:"max_stalled" yaml:"max_stalled" json:"max_stalled" validate:"gte=0"`
}

// IntegrationSettings holds feature flags for externally-dependent features.
// An enabled feature must carry its credential.
type IntegrationSettings struct {
	LLM   LLMSettings   `koanf:"llm" yaml:"llm" json:"llm"`
	Email EmailSettings `koanf:"email" yaml:"email" json:"email"`
}

// LLMSettings enables model-backed response drafting.
type LLMSettings struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled" json:"enabled"`
	Model   string `koanf:"model" yaml:"model" json:"model"`
	APIKey  string `koanf:"api_key" yaml:"api_key" json:"-" validate:"required_if=Enabled true"`
}

// EmailSettings enables sending auto-resolved replies by email.
type EmailSettings struct {
	Enabled  bool   `koanf:"enabled" yaml:"enabled" json:"enabled"`
	SMTPHost string `koanf:"smtp_host" yaml:"smtp_host" json:"smtp_host" validate:"required_if=Enabled true"`
	From     string `koanf:"from" yaml:"from" json:"from" validate:"omitempty,email"`
}

// Defaults returns the compiled-in settings.
func Defaults() Settings {
	return Settings{
		SchemaVersion:        SchemaVersion,
		AutoResolveThreshold: 0.85,
		AutoResolve: AutoResolveSettings{
			Enabled:     true,
			Categories:  []string{"password_reset", "account_access", "billing_question", "how_to"},
			MaxPriority: "medium",
		},
		Classification: ClassificationSettings{
			MinConfidence: 0.3,
			Categories: []string{
				"password_reset", "account_access", "billing_question",
				"how_to", "bug_report", "feature_request", "general",
			},
		},
		Knowledge: KnowledgeSettings{
			MaxResults: 5,
			MinScore:   0.1,
		},
		Queues: map[string]QueueSettings{
			DefaultQueue: DefaultQueueSettings(),
		},
	}
}

// DefaultQueueSettings returns the settings applied to queues that are not
// listed explicitly.
func DefaultQueueSettings() QueueSettings {
	return QueueSettings{
		Concurrency:   4,
		Attempts:      3,
		Backoff:       2 * time.Second,
		Timeout:       2 * time.Minute,
		KeepCompleted: 100,
		KeepFailed:    50,
		StallInterval: 30 * time.Second,
		MaxStalled:    1,
	}
}

// Queue returns the settings for name, falling back to DefaultQueueSettings.
func (s Settings) Queue(name string) QueueSettings {
	if q, ok := s.Queues[name]; ok {
		return q
	}
	return DefaultQueueSettings()
}

// Clone returns a deep copy of s.
func (s Settings) Clone() Settings {
	out := s
	out.AutoResolve.Categories = append([]string(nil), s.AutoResolve.Categories...)
	out.Classification.Categories = append([]string(nil), s.Classification.Categories...)
	if s.Queues != nil {
		out.Queues = make(map[string]QueueSettings, len(s.Queues))
		for k, v := range s.Queues {
			out.Queues[k] = v
		}
	}
	return out
}
