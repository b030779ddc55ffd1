package cfg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"hcai-scorer/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	InputPath      string
	InputDriver    string
	InputDSN       string
	InputQuery     string
	NAValues       []string
	DropColumns    []string
	ModelPath      string
	ModelDir       string
	ModelTimeout   time.Duration
	OutputPath     string
	IncludeIndex   bool
	FactorCount    int
	HeadRows       int
	Catalyst       bool
	SummaryPath    string
	DriftThreshold float64
	SQLite         SQLiteConfig
	MySQL          DatabaseConfig
	MSSQL          DatabaseConfig
	BoltPath       string
	LogLevel       string
	PushgatewayURL string
}

type SQLiteConfig struct {
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
}

type DatabaseConfig struct {
	Server   string `yaml:"server"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
	Schema   string `yaml:"schema"`
}

// Enabled reports whether enough is configured to write to the database.
func (d DatabaseConfig) Enabled() bool {
	return d.Server != "" && d.Database != "" && d.Table != ""
}

type ConfigFile struct {
	Input struct {
		Path        string   `yaml:"path"`
		Driver      string   `yaml:"driver"`
		DSN         string   `yaml:"dsn"`
		Query       string   `yaml:"query"`
		NAValues    []string `yaml:"naValues"`
		DropColumns []string `yaml:"dropColumns"`
	} `yaml:"input"`

	Model struct {
		Path    string `yaml:"path"`
		Dir     string `yaml:"dir"`
		Timeout string `yaml:"timeout"`
	} `yaml:"model"`

	Output struct {
		Path           string  `yaml:"path"`
		IncludeIndex   *bool   `yaml:"includeIndex"`
		FactorCount    int     `yaml:"factorCount"`
		HeadRows       *int    `yaml:"headRows"`
		Catalyst       bool    `yaml:"catalyst"`
		SummaryPath    string  `yaml:"summaryPath"`
		DriftThreshold float64 `yaml:"driftThreshold"`
	} `yaml:"output"`

	Databases struct {
		SQLite SQLiteConfig   `yaml:"sqlite"`
		MySQL  DatabaseConfig `yaml:"mysql"`
		MSSQL  DatabaseConfig `yaml:"mssql"`
		Bolt   struct {
			Path string `yaml:"path"`
		} `yaml:"bolt"`
	} `yaml:"databases"`

	System struct {
		LogLevel       string `yaml:"logLevel"`
		PushgatewayURL string `yaml:"pushgatewayURL"`
	} `yaml:"system"`
}

// Load reads settings from the YAML file named by CONFIG_FILE, or from the
// environment alone. A .env file in the working directory is loaded first.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env: %w", err)
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

// LoadFile reads settings from a YAML file, with environment overrides.
func LoadFile(path string) (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("failed to load .env: %w", err)
	}
	return loadFromYAML(path)
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	timeout, err := time.ParseDuration(config.Model.Timeout)
	if err != nil {
		timeout = 10 * time.Second
	}
	timeout = getDurationOrDefault(common.EnvModelTimeout, timeout)

	includeIndex := true
	if config.Output.IncludeIndex != nil {
		includeIndex = *config.Output.IncludeIndex
	}

	headRows := common.DefaultHeadRows
	if config.Output.HeadRows != nil {
		headRows = *config.Output.HeadRows
	}

	mssql := config.Databases.MSSQL
	if mssql.Schema == "" {
		mssql.Schema = common.DefaultMSSQLSchema
	}

	settings := Settings{
		InputPath:      getEnvOrDefault(common.EnvInputPath, orDefault(config.Input.Path, common.DefaultInputPath)),
		InputDriver:    getEnvOrDefault(common.EnvInputDriver, config.Input.Driver),
		InputDSN:       getEnvOrDefault(common.EnvInputDSN, config.Input.DSN),
		InputQuery:     getEnvOrDefault(common.EnvInputQuery, config.Input.Query),
		NAValues:       getListFromEnvOrConfig(common.EnvNAValues, config.Input.NAValues, common.DefaultNAValues),
		DropColumns:    getListFromEnvOrConfig(common.EnvDropColumns, config.Input.DropColumns, common.DefaultDropColumns),
		ModelPath:      getEnvOrDefault(common.EnvModelPath, config.Model.Path),
		ModelDir:       getEnvOrDefault(common.EnvModelDir, config.Model.Dir),
		ModelTimeout:   timeout,
		OutputPath:     getEnvOrDefault(common.EnvOutputPath, orDefault(config.Output.Path, common.DefaultOutputPath)),
		IncludeIndex:   getBoolFromEnvOrConfig(common.EnvIncludeIndex, includeIndex),
		FactorCount:    getIntFromEnvOrConfig(common.EnvFactorCount, config.Output.FactorCount, common.DefaultFactorCount),
		HeadRows:       getIntOrDefault(common.EnvHeadRows, headRows),
		Catalyst:       getBoolFromEnvOrConfig(common.EnvCatalyst, config.Output.Catalyst),
		SummaryPath:    getEnvOrDefault(common.EnvSummaryPath, config.Output.SummaryPath),
		DriftThreshold: getFloatFromEnvOrConfig(common.EnvDriftThreshold, config.Output.DriftThreshold, common.DefaultDriftThreshold),
		SQLite: SQLiteConfig{
			Path:  getEnvOrDefault(common.EnvSQLitePath, config.Databases.SQLite.Path),
			Table: getEnvOrDefault(common.EnvSQLiteTable, config.Databases.SQLite.Table),
		},
		MySQL: DatabaseConfig{
			Server:   getEnvOrDefault(common.EnvMySQLServer, config.Databases.MySQL.Server),
			Database: getEnvOrDefault(common.EnvMySQLDatabase, config.Databases.MySQL.Database),
			User:     getEnvOrDefault(common.EnvMySQLUser, config.Databases.MySQL.User),
			Password: getEnvOrDefault(common.EnvMySQLPassword, config.Databases.MySQL.Password),
			Table:    getEnvOrDefault(common.EnvMySQLTable, config.Databases.MySQL.Table),
		},
		MSSQL: DatabaseConfig{
			Server:   getEnvOrDefault(common.EnvMSSQLServer, mssql.Server),
			Database: getEnvOrDefault(common.EnvMSSQLDatabase, mssql.Database),
			User:     getEnvOrDefault(common.EnvMSSQLUser, mssql.User),
			Password: getEnvOrDefault(common.EnvMSSQLPassword, mssql.Password),
			Table:    getEnvOrDefault(common.EnvMSSQLTable, mssql.Table),
			Schema:   getEnvOrDefault(common.EnvMSSQLSchema, mssql.Schema),
		},
		BoltPath:       getEnvOrDefault(common.EnvBoltPath, config.Databases.Bolt.Path),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
		PushgatewayURL: getEnvOrDefault(common.EnvPushgatewayURL, config.System.PushgatewayURL),
	}

	if settings.ModelPath == "" && settings.ModelDir == "" {
		settings.ModelPath = common.DefaultModelPath
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		InputPath:      getEnvOrDefault(common.EnvInputPath, common.DefaultInputPath),
		InputDriver:    os.Getenv(common.EnvInputDriver),
		InputDSN:       os.Getenv(common.EnvInputDSN),
		InputQuery:     os.Getenv(common.EnvInputQuery),
		NAValues:       splitOrDefault(os.Getenv(common.EnvNAValues), []string{common.DefaultNAValues}),
		DropColumns:    splitOrDefault(os.Getenv(common.EnvDropColumns), []string{common.DefaultDropColumns}),
		ModelPath:      os.Getenv(common.EnvModelPath),
		ModelDir:       os.Getenv(common.EnvModelDir),
		ModelTimeout:   getDurationOrDefault(common.EnvModelTimeout, 10*time.Second),
		OutputPath:     getEnvOrDefault(common.EnvOutputPath, common.DefaultOutputPath),
		IncludeIndex:   getBoolOrDefault(common.EnvIncludeIndex, true),
		FactorCount:    getIntOrDefault(common.EnvFactorCount, common.DefaultFactorCount),
		HeadRows:       getIntOrDefault(common.EnvHeadRows, common.DefaultHeadRows),
		Catalyst:       getBoolOrDefault(common.EnvCatalyst, false),
		SummaryPath:    os.Getenv(common.EnvSummaryPath),
		DriftThreshold: getFloatOrDefault(common.EnvDriftThreshold, common.DefaultDriftThreshold),
		SQLite: SQLiteConfig{
			Path:  os.Getenv(common.EnvSQLitePath),
			Table: os.Getenv(common.EnvSQLiteTable),
		},
		MySQL: DatabaseConfig{
			Server:   os.Getenv(common.EnvMySQLServer),
			Database: os.Getenv(common.EnvMySQLDatabase),
			User:     os.Getenv(common.EnvMySQLUser),
			Password: os.Getenv(common.EnvMySQLPassword),
			Table:    os.Getenv(common.EnvMySQLTable),
		},
		MSSQL: DatabaseConfig{
			Server:   os.Getenv(common.EnvMSSQLServer),
			Database: os.Getenv(common.EnvMSSQLDatabase),
			User:     os.Getenv(common.EnvMSSQLUser),
			Password: os.Getenv(common.EnvMSSQLPassword),
			Table:    os.Getenv(common.EnvMSSQLTable),
			Schema:   getEnvOrDefault(common.EnvMSSQLSchema, common.DefaultMSSQLSchema),
		},
		BoltPath:       os.Getenv(common.EnvBoltPath),
		LogLevel:       getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		PushgatewayURL: os.Getenv(common.EnvPushgatewayURL),
	}

	if settings.ModelPath == "" && settings.ModelDir == "" {
		settings.ModelPath = common.DefaultModelPath
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// Validate re-checks settings after callers changed them (for example from flags).
func (s *Settings) Validate() error {
	return validateSettings(s)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func orDefault(v, defaultValue string) string {
	if v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getListFromEnvOrConfig(key string, configValue []string, def string) []string {
	if env := os.Getenv(key); env != "" {
		return splitOrDefault(env, nil)
	}
	if configValue != nil {
		return configValue
	}
	return []string{def}
}

func getIntFromEnvOrConfig(key string, configValue, def int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return def
}

func getFloatFromEnvOrConfig(key string, configValue, def float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return def
}

func getBoolFromEnvOrConfig(key string, configValue bool) bool {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseBool(env); err == nil {
			return val
		}
	}
	return configValue
}

// validateSettings performs validation of configuration values
func validateSettings(settings *Settings) error {
	// Input: a file or a query against a database
	if settings.InputQuery != "" || settings.InputDriver != "" {
		if settings.InputDriver == "" || settings.InputDSN == "" || settings.InputQuery == "" {
			return fmt.Errorf("database input requires driver, dsn and query")
		}
	} else if settings.InputPath == "" {
		return fmt.Errorf("input path cannot be empty")
	}

	if settings.ModelPath == "" && settings.ModelDir == "" {
		return fmt.Errorf("either a model path or a model directory is required")
	}
	if settings.ModelTimeout < time.Second || settings.ModelTimeout > 5*time.Minute {
		return fmt.Errorf("model timeout must be between 1s and 5m, got %v", settings.ModelTimeout)
	}

	if settings.OutputPath == "" && settings.SQLite.Path == "" && settings.BoltPath == "" &&
		!settings.MySQL.Enabled() && !settings.MSSQL.Enabled() {
		return fmt.Errorf("at least one output must be configured")
	}

	if settings.FactorCount <= 0 || settings.FactorCount > common.MaxFactorCount {
		return fmt.Errorf("factor count must be between 1 and %d, got %d", common.MaxFactorCount, settings.FactorCount)
	}
	if settings.HeadRows < 0 || settings.HeadRows > common.MaxHeadRows {
		return fmt.Errorf("head rows must be between 0 and %d, got %d", common.MaxHeadRows, settings.HeadRows)
	}
	if settings.DriftThreshold <= 0 || settings.DriftThreshold > common.MaxDriftThreshold {
		return fmt.Errorf("drift threshold must be between 0 and %v, got %f", common.MaxDriftThreshold, settings.DriftThreshold)
	}

	if settings.SQLite.Path != "" && settings.SQLite.Table == "" {
		return fmt.Errorf("sqlite output requires a table name")
	}
	for name, db := range map[string]DatabaseConfig{"mysql": settings.MySQL, "mssql": settings.MSSQL} {
		if db.Server != "" && (db.Database == "" || db.Table == "") {
			return fmt.Errorf("%s output requires database and table", name)
		}
	}

	switch strings.ToLower(settings.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown log level %q", settings.LogLevel)
	}

	return nil
}
