package model

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BoostMode selects how graph metrics boost the raw relevance score
type BoostMode string

const (
	// BoostContinuous uses centrality and a decreasing function of depth
	BoostContinuous BoostMode = "continuous"
	// BoostDiscrete uses fixed increments per ancestor, child and related page, capped at 20%
	BoostDiscrete BoostMode = "discrete"
)

// CentralityMode selects how the centrality score is computed
type CentralityMode string

const (
	CentralityWeighted CentralityMode = "weighted"
	CentralityPageRank CentralityMode = "pagerank"
)

// Config is the single configuration of all components.
// It is built once at startup and passed by value.
type Config struct {
	// Query planning
	HopBudget    int `yaml:"hop_budget"`
	MaxReprompts int `yaml:"max_reprompts"`

	// Retrieval
	TopK           int            `yaml:"top_k"`
	EdgeTypes      []RelationType `yaml:"edge_types"`
	RequestTimeout time.Duration  `yaml:"request_timeout"`
	RetryBaseDelay time.Duration  `yaml:"retry_base_delay"`
	MaxRetries     int            `yaml:"max_retries"`

	// Ranking
	BoostMode        BoostMode `yaml:"boost_mode"`
	CentralityWeight float64   `yaml:"centrality_weight"` // beta 1
	DepthWeight      float64   `yaml:"depth_weight"`      // beta 2

	// Confidence
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	ScoreScale          float64 `yaml:"score_scale"`
	MaxAncestorLevels   int     `yaml:"max_ancestor_levels"`

	// Graph metrics
	CentralityMode        CentralityMode `yaml:"centrality_mode"`
	InDegreeWeight        float64        `yaml:"in_degree_weight"`
	OutDegreeWeight       float64        `yaml:"out_degree_weight"`
	BetweennessWeight     float64        `yaml:"betweenness_weight"`
	BetweennessExactLimit int            `yaml:"betweenness_exact_limit"`
	BetweennessSamples    int            `yaml:"betweenness_samples"`
	BetweennessSeed       uint64         `yaml:"betweenness_seed"`
	MetricsBatchSize      int            `yaml:"metrics_batch_size"`
	MetricsWorkers        int            `yaml:"metrics_workers"`
	MetricsWriteRetries   int            `yaml:"metrics_write_retries"`
	MetricsInterval       time.Duration  `yaml:"metrics_interval"`

	// Answering
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	FeedbackEnabled bool          `yaml:"feedback_enabled"`

	// Conversations
	ConversationTTL time.Duration `yaml:"conversation_ttl"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		HopBudget:             3,
		MaxReprompts:          2,
		TopK:                  5,
		EdgeTypes:             []RelationType{RelationParentOf, RelationLinksTo},
		RequestTimeout:        10 * time.Second,
		RetryBaseDelay:        200 * time.Millisecond,
		MaxRetries:            1,
		BoostMode:             BoostContinuous,
		CentralityWeight:      0.2,
		DepthWeight:           0.1,
		ConfidenceThreshold:   0.7,
		ScoreScale:            1.0,
		MaxAncestorLevels:     5,
		CentralityMode:        CentralityWeighted,
		InDegreeWeight:        0.4,
		OutDegreeWeight:       0.2,
		BetweennessWeight:     0.4,
		BetweennessExactLimit: 10000,
		BetweennessSamples:    256,
		BetweennessSeed:       42,
		MetricsBatchSize:      100,
		MetricsWorkers:        8,
		MetricsWriteRetries:   3,
		MetricsInterval:       time.Hour,
		CacheTTL:              time.Hour,
		FeedbackEnabled:       true,
		ConversationTTL:       24 * time.Hour,
	}
}

// Validate checks the configuration for values no component can work with
func (c Config) Validate() error {
	var errs []error
	if c.HopBudget < 1 {
		errs = append(errs, fmt.Errorf("hop_budget must be >= 1, got %d", c.HopBudget))
	}
	if c.TopK < 1 {
		errs = append(errs, fmt.Errorf("top_k must be >= 1, got %d", c.TopK))
	}
	if c.MaxRetries < 0 || c.MaxRetries > 2 {
		errs = append(errs, fmt.Errorf("max_retries must be between 0 and 2, got %d", c.MaxRetries))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive"))
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("confidence_threshold must be in [0,1], got %f", c.ConfidenceThreshold))
	}
	if c.ScoreScale <= 0 {
		errs = append(errs, fmt.Errorf("score_scale must be positive"))
	}
	if c.BoostMode != BoostContinuous && c.BoostMode != BoostDiscrete {
		errs = append(errs, fmt.Errorf("unknown boost_mode: %s", c.BoostMode))
	}
	if c.CentralityMode != CentralityWeighted && c.CentralityMode != CentralityPageRank {
		errs = append(errs, fmt.Errorf("unknown centrality_mode: %s", c.CentralityMode))
	}
	for _, edgeType := range c.EdgeTypes {
		if !edgeType.Valid() {
			errs = append(errs, fmt.Errorf("unknown edge type: %s", edgeType))
		}
	}
	if c.ConversationTTL <= 0 {
		errs = append(errs, fmt.Errorf("conversation_ttl must be positive"))
	}
	if c.MetricsBatchSize < 1 || c.MetricsWorkers < 1 {
		errs = append(errs, fmt.Errorf("metrics batch size and workers must be >= 1"))
	}
	return errors.Join(errs...)
}

// LoadConfig builds the configuration from defaults, an optional yaml file,
// an optional .env file and environment overrides, in that order.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(content, &config); err != nil {
			return Config{}, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// .env is optional, existing env vars take precedence
	_ = godotenv.Load()

	if err := applyEnv(&config); err != nil {
		return Config{}, err
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func applyEnv(config *Config) error {
	var errs []error

	intEnv := func(key string, target *int) {
		if v, ok := os.LookupEnv(key); ok {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*target = parsed
		}
	}
	floatEnv := func(key string, target *float64) {
		if v, ok := os.LookupEnv(key); ok {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*target = parsed
		}
	}
	durationEnv := func(key string, target *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*target = parsed
		}
	}

	intEnv("MAX_HOPS", &config.HopBudget)
	intEnv("TOP_K", &config.TopK)
	intEnv("MAX_RETRIES", &config.MaxRetries)
	intEnv("GRAPH_METRICS_BATCH_SIZE", &config.MetricsBatchSize)
	intEnv("GRAPH_METRICS_WORKERS", &config.MetricsWorkers)
	floatEnv("CONFIDENCE_THRESHOLD", &config.ConfidenceThreshold)
	floatEnv("CENTRALITY_BOOST_WEIGHT", &config.CentralityWeight)
	floatEnv("DEPTH_BOOST_WEIGHT", &config.DepthWeight)
	durationEnv("REQUEST_TIMEOUT", &config.RequestTimeout)
	durationEnv("GRAPH_METRICS_INTERVAL", &config.MetricsInterval)
	durationEnv("CACHE_TTL", &config.CacheTTL)
	durationEnv("CONVERSATION_TTL", &config.ConversationTTL)

	if v, ok := os.LookupEnv("BOOST_MODE"); ok {
		config.BoostMode = BoostMode(v)
	}
	if v, ok := os.LookupEnv("CENTRALITY_MODE"); ok {
		config.CentralityMode = CentralityMode(v)
	}
	if v, ok := os.LookupEnv("FEEDBACK_ENABLED"); ok {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid FEEDBACK_ENABLED: %w", err))
		} else {
			config.FeedbackEnabled = parsed
		}
	}

	return errors.Join(errs...)
}
