// Package config loads Amber's settings from an optional YAML file
// overridden by AMBER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is the release version reported by the CLI.
const Version = "0.1.0"

// Config holds all Amber configuration.
type Config struct {
	Tree       TreeConfig       `yaml:"tree"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Engine     EngineConfig     `yaml:"engine"`
	Session    SessionConfig    `yaml:"session"`
	Transcript TranscriptConfig `yaml:"transcript"`
	HTTP       HTTPConfig       `yaml:"http"`
	LogLevel   string           `yaml:"log_level"`
}

// TreeConfig locates the intent tree. An empty Path and Snapshot select the
// built-in portfolio tree.
type TreeConfig struct {
	Path     string `yaml:"path"`     // JSON or YAML tree source
	Snapshot string `yaml:"snapshot"` // prebuilt tree with cached embeddings
	Watch    bool   `yaml:"watch"`    // reload when Path changes
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Provider       string        `yaml:"provider"` // onnx, openai, tei, lexical
	ModelPath      string        `yaml:"model_path"`
	VocabPath      string        `yaml:"vocab_path"`
	ProjectionPath string        `yaml:"projection_path"`
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"api_key"`
	CacheDir       string        `yaml:"cache_dir"` // badger vector cache; empty disables
	Timeout        time.Duration `yaml:"timeout"`
}

// EngineConfig holds turn resolution settings.
type EngineConfig struct {
	ThresholdBase  float64       `yaml:"threshold_base"`
	ThresholdDecay float64       `yaml:"threshold_decay"`
	ThresholdMin   float64       `yaml:"threshold_min"`
	BotName        string        `yaml:"bot_name"`
	TurnTimeout    time.Duration `yaml:"turn_timeout"`
	Seed           uint64        `yaml:"seed"` // 0 seeds from the clock
}

// SessionConfig selects where conversation state lives.
type SessionConfig struct {
	Store     string        `yaml:"store"` // memory or redis
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

// TranscriptConfig selects the transcript sinks.
type TranscriptConfig struct {
	Sinks     []string `yaml:"sinks"` // stdout, file, sqlite, webhook
	File      string   `yaml:"file"`
	DB        string   `yaml:"db"`
	Webhook   string   `yaml:"webhook"`
	Verbosity string   `yaml:"verbosity"` // minimal, standard, full
	Pretty    bool     `yaml:"pretty"`
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Embedder: EmbedderConfig{
			Provider:  "onnx",
			ModelPath: "models/all-MiniLM-L12-v2/model.onnx",
			VocabPath: "models/all-MiniLM-L12-v2/vocab.txt",
			Model:     "text-embedding-3-small",
			Timeout:   15 * time.Second,
		},
		Engine: EngineConfig{
			ThresholdBase:  0.6,
			ThresholdDecay: 0.03,
			ThresholdMin:   0.25,
			BotName:        "Amber AI",
			TurnTimeout:    10 * time.Second,
		},
		Session: SessionConfig{
			Store: "memory",
			TTL:   24 * time.Hour,
		},
		Transcript: TranscriptConfig{
			Verbosity: "standard",
		},
		HTTP:     HTTPConfig{Addr: ":8080"},
		LogLevel: "info",
	}
}

// Load reads configuration from environment variables over the defaults.
// If AMBER_CONFIG names a file, it is applied between the two.
func Load() (Config, error) {
	return LoadFile(os.Getenv("AMBER_CONFIG"))
}

// LoadFile applies the YAML file at path (if non-empty) over the defaults,
// then environment variables over that.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(c *Config) {
	c.Tree.Path = getenv("AMBER_TREE_PATH", c.Tree.Path)
	c.Tree.Snapshot = getenv("AMBER_TREE_SNAPSHOT", c.Tree.Snapshot)
	c.Tree.Watch = getenvBool("AMBER_TREE_WATCH", c.Tree.Watch)

	c.Embedder.Provider = getenv("AMBER_EMBEDDER", c.Embedder.Provider)
	c.Embedder.ModelPath = getenv("AMBER_MODEL_PATH", c.Embedder.ModelPath)
	c.Embedder.VocabPath = getenv("AMBER_VOCAB_PATH", c.Embedder.VocabPath)
	c.Embedder.ProjectionPath = getenv("AMBER_PROJECTION_PATH", c.Embedder.ProjectionPath)
	c.Embedder.BaseURL = getenv("AMBER_EMBED_BASE_URL", c.Embedder.BaseURL)
	c.Embedder.Model = getenv("AMBER_EMBED_MODEL", c.Embedder.Model)
	c.Embedder.APIKey = getenv("AMBER_EMBED_API_KEY", getenv("OPENAI_API_KEY", c.Embedder.APIKey))
	c.Embedder.CacheDir = getenv("AMBER_EMBED_CACHE_DIR", c.Embedder.CacheDir)
	c.Embedder.Timeout = getenvDuration("AMBER_EMBED_TIMEOUT", c.Embedder.Timeout)

	c.Engine.ThresholdBase = getenvFloat("AMBER_THRESHOLD_BASE", c.Engine.ThresholdBase)
	c.Engine.ThresholdDecay = getenvFloat("AMBER_THRESHOLD_DECAY", c.Engine.ThresholdDecay)
	c.Engine.ThresholdMin = getenvFloat("AMBER_THRESHOLD_MIN", c.Engine.ThresholdMin)
	c.Engine.BotName = getenv("AMBER_BOT_NAME", c.Engine.BotName)
	c.Engine.TurnTimeout = getenvDuration("AMBER_TURN_TIMEOUT", c.Engine.TurnTimeout)
	c.Engine.Seed = getenvUint("AMBER_SEED", c.Engine.Seed)

	c.Session.Store = getenv("AMBER_SESSION_STORE", c.Session.Store)
	c.Session.RedisAddr = getenv("AMBER_REDIS_ADDR", c.Session.RedisAddr)
	c.Session.TTL = getenvDuration("AMBER_SESSION_TTL", c.Session.TTL)

	if v := os.Getenv("AMBER_TRANSCRIPT"); v != "" {
		c.Transcript.Sinks = splitList(v)
	}
	c.Transcript.File = getenv("AMBER_TRANSCRIPT_FILE", c.Transcript.File)
	c.Transcript.DB = getenv("AMBER_TRANSCRIPT_DB", c.Transcript.DB)
	c.Transcript.Webhook = getenv("AMBER_TRANSCRIPT_WEBHOOK", c.Transcript.Webhook)
	c.Transcript.Verbosity = getenv("AMBER_TRANSCRIPT_VERBOSITY", c.Transcript.Verbosity)
	c.Transcript.Pretty = getenvBool("AMBER_OUTPUT_PRETTY", c.Transcript.Pretty)

	c.HTTP.Addr = getenv("AMBER_HTTP_ADDR", c.HTTP.Addr)
	c.LogLevel = getenv("AMBER_LOG_LEVEL", c.LogLevel)
}

var (
	validProviders = map[string]bool{"onnx": true, "openai": true, "tei": true, "lexical": true}
	validStores    = map[string]bool{"memory": true, "redis": true}
	validSinks     = map[string]bool{"stdout": true, "file": true, "sqlite": true, "webhook": true}
	validVerbosity = map[string]bool{"minimal": true, "standard": true, "full": true}
)

// Validate checks the configuration for errors. All problems are reported
// together.
func (c Config) Validate() error {
	var errs []error

	e := c.Embedder
	if !validProviders[e.Provider] {
		errs = append(errs, fmt.Errorf("embedder %q must be one of onnx, openai, tei, lexical", e.Provider))
	}
	switch e.Provider {
	case "onnx":
		if _, err := os.Stat(e.ModelPath); err != nil {
			errs = append(errs, fmt.Errorf("model file: %w", err))
		}
		if _, err := os.Stat(e.VocabPath); err != nil {
			errs = append(errs, fmt.Errorf("vocab file: %w", err))
		}
		if e.ProjectionPath != "" {
			if _, err := os.Stat(e.ProjectionPath); err != nil {
				errs = append(errs, fmt.Errorf("projection file: %w", err))
			}
		}
	case "openai":
		if e.APIKey == "" && e.BaseURL == "" {
			errs = append(errs, errors.New("openai embedder needs AMBER_EMBED_API_KEY or AMBER_EMBED_BASE_URL"))
		}
	case "tei":
		if e.BaseURL == "" {
			errs = append(errs, errors.New("tei embedder needs AMBER_EMBED_BASE_URL"))
		}
	}
	if e.Timeout < 0 {
		errs = append(errs, fmt.Errorf("embed timeout must be >= 0, got %v", e.Timeout))
	}

	g := c.Engine
	if g.ThresholdBase <= 0 || g.ThresholdBase > 1 {
		errs = append(errs, fmt.Errorf("threshold base must be in (0, 1], got %v", g.ThresholdBase))
	}
	if g.ThresholdMin < 0 || g.ThresholdMin > g.ThresholdBase {
		errs = append(errs, fmt.Errorf("threshold min must be in [0, base], got %v", g.ThresholdMin))
	}
	if g.ThresholdDecay < 0 {
		errs = append(errs, fmt.Errorf("threshold decay must be >= 0, got %v", g.ThresholdDecay))
	}
	if strings.TrimSpace(g.BotName) == "" {
		errs = append(errs, errors.New("bot name must not be empty"))
	}
	if g.TurnTimeout < 0 {
		errs = append(errs, fmt.Errorf("turn timeout must be >= 0, got %v", g.TurnTimeout))
	}

	s := c.Session
	if !validStores[s.Store] {
		errs = append(errs, fmt.Errorf("session store %q must be memory or redis", s.Store))
	}
	if s.Store == "redis" && s.RedisAddr == "" {
		errs = append(errs, errors.New("redis session store needs AMBER_REDIS_ADDR"))
	}
	if s.TTL < 0 {
		errs = append(errs, fmt.Errorf("session ttl must be >= 0, got %v", s.TTL))
	}

	t := c.Transcript
	for _, sink := range t.Sinks {
		if !validSinks[sink] {
			errs = append(errs, fmt.Errorf("transcript sink %q must be one of stdout, file, sqlite, webhook", sink))
		}
	}
	if t.Has("file") && t.File == "" {
		errs = append(errs, errors.New("file transcript needs AMBER_TRANSCRIPT_FILE"))
	}
	if t.Has("sqlite") && t.DB == "" {
		errs = append(errs, errors.New("sqlite transcript needs AMBER_TRANSCRIPT_DB"))
	}
	if t.Has("webhook") && t.Webhook == "" {
		errs = append(errs, errors.New("webhook transcript needs AMBER_TRANSCRIPT_WEBHOOK"))
	}
	if !validVerbosity[t.Verbosity] {
		errs = append(errs, fmt.Errorf("transcript verbosity %q must be minimal, standard or full", t.Verbosity))
	}

	if c.Tree.Watch && c.Tree.Path == "" {
		errs = append(errs, errors.New("tree watch needs AMBER_TREE_PATH"))
	}

	return errors.Join(errs...)
}

// Has reports whether sink is enabled.
func (t TranscriptConfig) Has(sink string) bool {
	for _, s := range t.Sinks {
		if s == sink {
			return true
		}
	}
	return false
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvUint(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
