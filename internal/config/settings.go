package config

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

type Config struct {
	Feed struct {
		APIURL                string  `json:"api_url"`
		StreamURL             string  `json:"stream_url"`
		DiffBaseURL           string  `json:"diff_base_url"`
		UserAgent             string  `json:"user_agent"`
		Wiki                  string  `json:"wiki"`
		BatchLimit            int     `json:"batch_limit"`
		PollIntervalSeconds   int     `json:"poll_interval_seconds"`
		APIDelaySeconds       float64 `json:"api_delay_seconds"`
		TimeoutSeconds        int     `json:"timeout_seconds"`
		ReconnectDelaySeconds int     `json:"reconnect_delay_seconds"`
	} `json:"feed"`

	Ranges struct {
		File string `json:"file"`

		// Keyword tables for tier classification. Maintained as data,
		// reviewed independently of the classifier.
		CongressKeywords   []string `json:"congress_keywords"`
		CongressExactNames []string `json:"congress_exact_names"`
	} `json:"ranges"`

	Catchup struct {
		ThresholdDays       int `json:"threshold_days"`
		LiveLagSeconds      int `json:"live_lag_seconds"`
		DefaultLookbackDays int `json:"default_lookback_days"`
	} `json:"catchup"`

	Detection struct {
		PhonePatterns   []string `json:"phone_patterns"`
		AddressPatterns []string `json:"address_patterns"`
	} `json:"detection"`

	Screenshots struct {
		Enabled        bool   `json:"enabled"`
		Dir            string `json:"dir"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	} `json:"screenshots"`

	Reports struct {
		File          string `json:"file"`
		SensitiveFile string `json:"sensitive_file"`
	} `json:"reports"`

	Social struct {
		Enabled         bool   `json:"enabled"`
		ServiceURL      string `json:"service_url"`
		CredentialsFile string `json:"credentials_file"`
		DelaySeconds    int    `json:"delay_seconds"`
	} `json:"social"`

	State struct {
		MonitorFile    string `json:"monitor_file"`
		HistoricalFile string `json:"historical_file"`
		StreamingFile  string `json:"streaming_file"`
	} `json:"state"`
}

const settingsFilePath = "data/settings.json"

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue atomic.Value
	configMu    sync.Mutex
)

func init() {
	cfg, err := parseConfig(defaultConfig)
	if err != nil {
		// The embedded defaults ship with the binary; failing to parse
		// them is a build defect, not a runtime condition.
		panic(err)
	}
	configValue.Store(cfg)
}

// ReadSettings loads data/settings.json, creating it from the embedded
// defaults on first run. Parse failures keep the current configuration.
func ReadSettings() {
	configMu.Lock()
	defer configMu.Unlock()

	data, err := os.ReadFile(settingsFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Settings file not found, creating with default configuration")

			if err := os.MkdirAll(filepath.Dir(settingsFilePath), os.ModePerm); err != nil {
				log.Error("Error creating directory for settings file", "err", err)
				return
			}
			if err := os.WriteFile(settingsFilePath, defaultConfig, 0o644); err != nil {
				log.Error("Error writing default settings file", "err", err)
				return
			}
			data = defaultConfig
		} else {
			log.Error("Error reading settings file", "err", err)
			return
		}
	}

	cfg, err := parseConfig(data)
	if err != nil {
		log.Error("Error unmarshalling settings file", "err", err)
		return
	}

	configValue.Store(cfg)
	log.Debug("Settings file loaded successfully")
}

// GetConfig returns the current configuration snapshot.
func GetConfig() Config {
	return configValue.Load().(Config)
}

// SetConfig replaces the configuration snapshot. Used by tests and by the
// CLI when flags override file values.
func SetConfig(cfg Config) {
	configValue.Store(cfg)
}

func parseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
