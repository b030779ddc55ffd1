package common

// Environment variable keys
const (
	EnvConfigFile     = "CONFIG_FILE"
	EnvInputPath      = "HCAI_INPUT_PATH"
	EnvInputDriver    = "HCAI_INPUT_DRIVER"
	EnvInputDSN       = "HCAI_INPUT_DSN"
	EnvInputQuery     = "HCAI_INPUT_QUERY"
	EnvNAValues       = "HCAI_NA_VALUES"
	EnvDropColumns    = "HCAI_DROP_COLUMNS"
	EnvModelPath      = "HCAI_MODEL_PATH"
	EnvModelDir       = "HCAI_MODEL_DIR"
	EnvModelTimeout   = "HCAI_MODEL_TIMEOUT"
	EnvOutputPath     = "HCAI_OUTPUT_PATH"
	EnvIncludeIndex   = "HCAI_INCLUDE_INDEX"
	EnvFactorCount    = "HCAI_FACTOR_COUNT"
	EnvHeadRows       = "HCAI_HEAD_ROWS"
	EnvCatalyst       = "HCAI_CATALYST"
	EnvSummaryPath    = "HCAI_SUMMARY_PATH"
	EnvDriftThreshold = "HCAI_DRIFT_THRESHOLD"
	EnvSQLitePath     = "HCAI_SQLITE_PATH"
	EnvSQLiteTable    = "HCAI_SQLITE_TABLE"
	EnvMySQLServer    = "HCAI_MYSQL_SERVER"
	EnvMySQLDatabase  = "HCAI_MYSQL_DATABASE"
	EnvMySQLUser      = "HCAI_MYSQL_USER"
	EnvMySQLPassword  = "HCAI_MYSQL_PASSWORD"
	EnvMySQLTable     = "HCAI_MYSQL_TABLE"
	EnvMSSQLServer    = "HCAI_MSSQL_SERVER"
	EnvMSSQLDatabase  = "HCAI_MSSQL_DATABASE"
	EnvMSSQLUser      = "HCAI_MSSQL_USER"
	EnvMSSQLPassword  = "HCAI_MSSQL_PASSWORD"
	EnvMSSQLTable     = "HCAI_MSSQL_TABLE"
	EnvMSSQLSchema    = "HCAI_MSSQL_SCHEMA"
	EnvBoltPath       = "HCAI_BOLT_PATH"
	EnvLogLevel       = "HCAI_LOG_LEVEL"
	EnvPushgatewayURL = "HCAI_PUSHGATEWAY_URL"
)

// Configuration defaults
const (
	DefaultInputPath      = "healthcareai/tests/fixtures/DiabetesClinicalSampleData.csv"
	DefaultNAValues       = "None"
	DefaultDropColumns    = "PatientID"
	DefaultModelPath      = "your_filename_here.json"
	DefaultOutputPath     = "ClinicalPredictions.csv"
	DefaultFactorCount    = 4
	DefaultHeadRows       = 5
	DefaultMSSQLSchema    = "dbo"
	DefaultLogLevel       = "info"
	DefaultDriftThreshold = 0.5
)

// Validation constants
const (
	MaxFactorCount    = 50
	MaxHeadRows       = 1000
	MaxDriftThreshold = 100.0
)
