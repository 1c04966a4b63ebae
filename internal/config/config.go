// Package config loads, validates and persists the translator configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "config.json"
	// EnvOpenAIAPIKey is the environment variable name for the OpenAI API key
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	// EnvOpenAIBaseURL is the environment variable name for the OpenAI base URL
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	// EnvOpenAIModel is the environment variable name for the chat model
	EnvOpenAIModel = "OPENAI_MODEL"

	DefaultDPI            = 72
	DefaultFontName       = "BIZUDGothic"
	DefaultFontPath       = "fonts/BIZUDGothic-Regular.ttf"
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultModel          = "gpt-4o-mini"
	DefaultSourceLanguage = "en"
	DefaultTargetLanguage = "ja"
	DefaultMaxChunkChars  = 1000
	DefaultMaxRetries     = 3
	DefaultConcurrency    = 1
	DefaultInputSize      = 1024
	DefaultConfThreshold  = 0.25
	DefaultNMSThreshold   = 0.45
	DefaultCacheFileName  = "translation-cache.json"
	DefaultLogFile        = "pdf-layout-translator.log"
	DefaultLogLevel       = "info"
)

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	config     *types.Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, it uses ~/.config/pdf-layout-translator/config.json.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "pdf-layout-translator", DefaultConfigFileName)
	}

	logger.Debug("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		config:     DefaultConfig(),
	}, nil
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *types.Config {
	return &types.Config{
		DPI:      DefaultDPI,
		FontName: DefaultFontName,
		FontPath: DefaultFontPath,
		Fitter:   types.FitterArea,
		Detector: types.DetectorConfig{
			Kind:          types.DetectorONNX,
			InputSize:     DefaultInputSize,
			ConfThreshold: DefaultConfThreshold,
			NMSThreshold:  DefaultNMSThreshold,
		},
		OpenAIBaseURL:        DefaultBaseURL,
		OpenAIModel:          DefaultModel,
		SourceLanguage:       DefaultSourceLanguage,
		TargetLanguage:       DefaultTargetLanguage,
		MaxChunkChars:        DefaultMaxChunkChars,
		MaxRetries:           DefaultMaxRetries,
		Concurrency:          DefaultConcurrency,
		ParagraphConcurrency: DefaultConcurrency,
		CacheBackend:         types.CacheJSON,
		LogLevel:             DefaultLogLevel,
		LogFile:              DefaultLogFile,
	}
}

// Load loads configuration from the config file.
// A missing file yields defaults; an unparsable file yields defaults with a warning.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Error("failed to read config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "failed to read config file", err)
		}
		logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
		m.config = DefaultConfig()
	} else {
		config := DefaultConfig()
		if err := json.Unmarshal(data, config); err != nil {
			logger.Warn("invalid config file format, using defaults", logger.String("path", m.configPath), logger.Err(err))
			config = DefaultConfig()
		} else {
			logger.Info("configuration loaded",
				logger.String("path", m.configPath),
				logger.Int("dpi", config.DPI),
				logger.String("detector", config.Detector.Kind),
				logger.String("model", config.OpenAIModel))
		}
		m.config = config
	}

	applyDefaults(m.config)
	return nil
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(c *types.Config) {
	if c.DPI == 0 {
		c.DPI = DefaultDPI
	}
	if c.FontName == "" {
		c.FontName = DefaultFontName
	}
	if c.Fitter == "" {
		c.Fitter = types.FitterArea
	}
	if c.Detector.Kind == "" {
		c.Detector.Kind = types.DetectorONNX
	}
	if c.Detector.InputSize == 0 {
		c.Detector.InputSize = DefaultInputSize
	}
	if c.Detector.ConfThreshold == 0 {
		c.Detector.ConfThreshold = DefaultConfThreshold
	}
	if c.Detector.NMSThreshold == 0 {
		c.Detector.NMSThreshold = DefaultNMSThreshold
	}
	if c.OpenAIModel == "" {
		c.OpenAIModel = DefaultModel
	}
	if c.SourceLanguage == "" {
		c.SourceLanguage = DefaultSourceLanguage
	}
	if c.TargetLanguage == "" {
		c.TargetLanguage = DefaultTargetLanguage
	}
	if c.MaxChunkChars == 0 {
		c.MaxChunkChars = DefaultMaxChunkChars
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.ParagraphConcurrency == 0 {
		c.ParagraphConcurrency = DefaultConcurrency
	}
	if c.CacheBackend == "" {
		c.CacheBackend = types.CacheJSON
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate reports the first invalid setting in c.
func Validate(c *types.Config) error {
	if c.DPI <= 0 {
		return types.NewAppErrorWithDetails(types.ErrConfig, "invalid dpi", fmt.Sprintf("%d", c.DPI), nil)
	}
	switch c.Fitter {
	case types.FitterArea, types.FitterMeasured:
	default:
		return types.NewAppErrorWithDetails(types.ErrConfig, "unknown fitter", c.Fitter, nil)
	}
	switch c.Detector.Kind {
	case types.DetectorONNX, types.DetectorProjection:
	default:
		return types.NewAppErrorWithDetails(types.ErrConfig, "unknown detector", c.Detector.Kind, nil)
	}
	switch c.CacheBackend {
	case types.CacheNone, types.CacheJSON, types.CacheSQLite:
	default:
		return types.NewAppErrorWithDetails(types.ErrConfig, "unknown cache backend", c.CacheBackend, nil)
	}
	if c.Concurrency < 1 || c.ParagraphConcurrency < 1 {
		return types.NewAppError(types.ErrConfig, "concurrency must be at least 1", nil)
	}
	if c.MaxRetries < 0 {
		return types.NewAppError(types.ErrConfig, "max_retries must not be negative", nil)
	}
	return nil
}

// Save writes the current configuration to the config file.
func (m *ConfigManager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved", logger.String("path", m.configPath))
	return nil
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		return DefaultConfig()
	}
	return m.config
}

// SetConfig sets the entire configuration.
func (m *ConfigManager) SetConfig(config *types.Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

// GetAPIKey returns the OpenAI API key, falling back to OPENAI_API_KEY.
func (m *ConfigManager) GetAPIKey() string {
	if m.config != nil && m.config.OpenAIAPIKey != "" {
		return m.config.OpenAIAPIKey
	}
	return os.Getenv(EnvOpenAIAPIKey)
}

// GetBaseURL returns the OpenAI API base URL.
// The config file value wins, then OPENAI_BASE_URL, then the public endpoint.
func (m *ConfigManager) GetBaseURL() string {
	if m.config != nil && m.config.OpenAIBaseURL != "" && m.config.OpenAIBaseURL != DefaultBaseURL {
		return m.config.OpenAIBaseURL
	}
	if envURL := os.Getenv(EnvOpenAIBaseURL); envURL != "" {
		return envURL
	}
	return DefaultBaseURL
}

// GetModel returns the chat model, falling back to OPENAI_MODEL.
func (m *ConfigManager) GetModel() string {
	if m.config != nil && m.config.OpenAIModel != "" && m.config.OpenAIModel != DefaultModel {
		return m.config.OpenAIModel
	}
	if env := os.Getenv(EnvOpenAIModel); env != "" {
		return env
	}
	return DefaultModel
}

// GetWorkDirectory returns the configured work directory or the OS temp dir.
func (m *ConfigManager) GetWorkDirectory() string {
	if m.config != nil && m.config.WorkDirectory != "" {
		return m.config.WorkDirectory
	}
	return filepath.Join(os.TempDir(), "pdf-layout-translator")
}

// GetCachePath returns the translation cache location for the configured backend.
func (m *ConfigManager) GetCachePath() string {
	if m.config != nil && m.config.CachePath != "" {
		return m.config.CachePath
	}
	name := DefaultCacheFileName
	if m.config != nil && m.config.CacheBackend == types.CacheSQLite {
		name = "translation-cache.db"
	}
	return filepath.Join(m.GetWorkDirectory(), name)
}

// GetConcurrency returns the number of pages processed in parallel.
func (m *ConfigManager) GetConcurrency() int {
	if m.config != nil && m.config.Concurrency > 0 {
		return m.config.Concurrency
	}
	return DefaultConcurrency
}
