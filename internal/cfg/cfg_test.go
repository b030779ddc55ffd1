package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"hcai-scorer/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults mirror the example script",
			envVars: map[string]string{},
			validate: func(t *testing.T, settings Settings) {
				assert.Equal(t, common.DefaultInputPath, settings.InputPath)
				assert.Equal(t, []string{"None"}, settings.NAValues)
				assert.Equal(t, []string{"PatientID"}, settings.DropColumns)
				assert.Equal(t, common.DefaultModelPath, settings.ModelPath)
				assert.Equal(t, "ClinicalPredictions.csv", settings.OutputPath)
				assert.Equal(t, 4, settings.FactorCount)
				assert.Equal(t, 5, settings.HeadRows)
				assert.True(t, settings.IncludeIndex)
				assert.Equal(t, 10*time.Second, settings.ModelTimeout)
				assert.Equal(t, "dbo", settings.MSSQL.Schema)
				assert.Equal(t, 0.5, settings.DriftThreshold)
			},
		},
		{
			name: "custom values",
			envVars: map[string]string{
				common.EnvInputPath:      "data.csv",
				common.EnvNAValues:       "None, NA",
				common.EnvDropColumns:    "PatientID,PatientEncounterID",
				common.EnvModelDir:       "models",
				common.EnvFactorCount:    "2",
				common.EnvHeadRows:       "0",
				common.EnvIncludeIndex:   "false",
				common.EnvCatalyst:       "true",
				common.EnvModelTimeout:   "30s",
				common.EnvSQLitePath:     "out.db",
				common.EnvSQLiteTable:    "predictions",
				common.EnvLogLevel:       "debug",
				common.EnvDriftThreshold: "1.5",
			},
			validate: func(t *testing.T, settings Settings) {
				assert.Equal(t, "data.csv", settings.InputPath)
				assert.Equal(t, []string{"None", "NA"}, settings.NAValues)
				assert.Equal(t, []string{"PatientID", "PatientEncounterID"}, settings.DropColumns)
				assert.Equal(t, "models", settings.ModelDir)
				assert.Empty(t, settings.ModelPath)
				assert.Equal(t, 2, settings.FactorCount)
				assert.Equal(t, 0, settings.HeadRows)
				assert.False(t, settings.IncludeIndex)
				assert.True(t, settings.Catalyst)
				assert.Equal(t, 30*time.Second, settings.ModelTimeout)
				assert.Equal(t, "predictions", settings.SQLite.Table)
				assert.Equal(t, "debug", settings.LogLevel)
				assert.Equal(t, 1.5, settings.DriftThreshold)
			},
		},
		{
			name:    "factor count out of range",
			envVars: map[string]string{common.EnvFactorCount: "51"},
			wantErr: true,
		},
		{
			name:    "sqlite without table",
			envVars: map[string]string{common.EnvSQLitePath: "out.db"},
			wantErr: true,
		},
		{
			name:    "database input without query",
			envVars: map[string]string{common.EnvInputDriver: "sqlite3", common.EnvInputDSN: "in.db"},
			wantErr: true,
		},
		{
			name:    "mssql without table",
			envVars: map[string]string{common.EnvMSSQLServer: "localhost", common.EnvMSSQLDatabase: "SAM"},
			wantErr: true,
		},
		{
			name:    "unknown log level",
			envVars: map[string]string{common.EnvLogLevel: "verbose"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := Load()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tests := []struct {
		name        string
		yamlContent string
		envVars     map[string]string
		wantErr     bool
		validate    func(t *testing.T, settings Settings)
	}{
		{
			name: "full config",
			yamlContent: `
input:
  path: "fixtures/diabetes.csv"
  naValues: ["None", "NA"]
  dropColumns: ["PatientID"]
model:
  path: "models/regression.json"
  timeout: "20s"
output:
  path: "out.csv"
  includeIndex: false
  factorCount: 3
  headRows: 10
  catalyst: true
  summaryPath: "factor_summary.json"
databases:
  sqlite:
    path: "predictions.db"
    table: "PredictionsTest"
  mssql:
    server: "localhost"
    database: "SAM"
    table: "HCAIPredictionRegressionBASE"
  bolt:
    path: "data"
system:
  logLevel: "warn"
  pushgatewayURL: "http://localhost:9091"
`,
			validate: func(t *testing.T, settings Settings) {
				assert.Equal(t, "fixtures/diabetes.csv", settings.InputPath)
				assert.Equal(t, []string{"None", "NA"}, settings.NAValues)
				assert.Equal(t, "models/regression.json", settings.ModelPath)
				assert.Equal(t, 20*time.Second, settings.ModelTimeout)
				assert.Equal(t, "out.csv", settings.OutputPath)
				assert.False(t, settings.IncludeIndex)
				assert.Equal(t, 3, settings.FactorCount)
				assert.Equal(t, 10, settings.HeadRows)
				assert.True(t, settings.Catalyst)
				assert.Equal(t, "factor_summary.json", settings.SummaryPath)
				assert.Equal(t, "PredictionsTest", settings.SQLite.Table)
				assert.True(t, settings.MSSQL.Enabled())
				assert.Equal(t, "dbo", settings.MSSQL.Schema)
				assert.False(t, settings.MySQL.Enabled())
				assert.Equal(t, "data", settings.BoltPath)
				assert.Equal(t, "warn", settings.LogLevel)
				assert.Equal(t, "http://localhost:9091", settings.PushgatewayURL)
			},
		},
		{
			name: "environment overrides yaml",
			yamlContent: `
model:
  path: "models/a.json"
output:
  factorCount: 3
`,
			envVars: map[string]string{
				common.EnvModelPath:   "models/b.json",
				common.EnvFactorCount: "6",
			},
			validate: func(t *testing.T, settings Settings) {
				assert.Equal(t, "models/b.json", settings.ModelPath)
				assert.Equal(t, 6, settings.FactorCount)
				assert.Equal(t, common.DefaultOutputPath, settings.OutputPath)
				assert.True(t, settings.IncludeIndex)
			},
		},
		{
			name: "explicit zero head rows is kept",
			yamlContent: `
output:
  headRows: 0
`,
			validate: func(t *testing.T, settings Settings) {
				assert.Equal(t, 0, settings.HeadRows)
			},
		},
		{
			name: "head rows default when unset",
			yamlContent: `
output:
  factorCount: 2
`,
			validate: func(t *testing.T, settings Settings) {
				assert.Equal(t, common.DefaultHeadRows, settings.HeadRows)
			},
		},
		{
			name: "invalid values fail validation",
			yamlContent: `
output:
  headRows: 5000
`,
			wantErr: true,
		},
		{
			name:        "invalid yaml",
			yamlContent: `invalid: yaml: content: [`,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			configPath := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.yamlContent), 0o644))

			settings, err := LoadFile(configPath)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, settings)
		})
	}
}

func TestLoadUsesConfigFileEnv(t *testing.T) {
	clearTestEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("output:\n  factorCount: 7\n"), 0o644))
	t.Setenv(common.EnvConfigFile, configPath)

	settings, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, settings.FactorCount)
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearTestEnv(t)

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestSettingsValidate(t *testing.T) {
	clearTestEnv(t)

	settings, err := Load()
	require.NoError(t, err)

	settings.FactorCount = 0
	assert.Error(t, settings.Validate())

	settings.FactorCount = 3
	settings.ModelPath = ""
	assert.Error(t, settings.Validate())

	settings.ModelDir = "models"
	assert.NoError(t, settings.Validate())

	settings.OutputPath = ""
	assert.Error(t, settings.Validate())

	settings.BoltPath = "data"
	assert.NoError(t, settings.Validate())
}

func clearTestEnv(t *testing.T) {
	envVars := []string{
		common.EnvConfigFile, common.EnvInputPath, common.EnvInputDriver, common.EnvInputDSN,
		common.EnvInputQuery, common.EnvNAValues, common.EnvDropColumns, common.EnvModelPath,
		common.EnvModelDir, common.EnvModelTimeout, common.EnvOutputPath, common.EnvIncludeIndex,
		common.EnvFactorCount, common.EnvHeadRows, common.EnvCatalyst, common.EnvSummaryPath,
		common.EnvDriftThreshold, common.EnvSQLitePath, common.EnvSQLiteTable,
		common.EnvMySQLServer, common.EnvMySQLDatabase, common.EnvMySQLUser, common.EnvMySQLPassword,
		common.EnvMySQLTable, common.EnvMSSQLServer, common.EnvMSSQLDatabase, common.EnvMSSQLUser,
		common.EnvMSSQLPassword, common.EnvMSSQLTable, common.EnvMSSQLSchema, common.EnvBoltPath,
		common.EnvLogLevel, common.EnvPushgatewayURL,
	}

	for _, env := range envVars {
		if val := os.Getenv(env); val != "" {
			t.Setenv(env, "")
		}
	}
}
