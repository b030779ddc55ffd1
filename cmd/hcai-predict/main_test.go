package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hcai-scorer/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeModel(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "model.json")
	require.NoError(t, model.NewTestModel().Save(path))
	return path
}

func TestInspect(t *testing.T) {
	path := writeModel(t, t.TempDir())

	out, err := execute(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "grain column:      PatientEncounterID")
	assert.Contains(t, out, "'mean_squared_error': 12.5")

	_, err = execute(t, "inspect")
	assert.Error(t, err, "model argument is required")
}

func TestModelsCommands(t *testing.T) {
	dir := t.TempDir()
	registryDir := filepath.Join(dir, "models")
	path := writeModel(t, dir)

	_, err := execute(t, "models", "register", path, "--dir", registryDir)
	require.NoError(t, err)
	_, err = execute(t, "models", "register", path, "--dir", registryDir)
	require.NoError(t, err)

	registry, err := model.NewRegistry(registryDir)
	require.NoError(t, err)
	versions := registry.List()
	require.Len(t, versions, 2)
	newest, older := versions[0].Version, versions[1].Version

	out, err := execute(t, "models", "activate", newest, "--dir", registryDir)
	require.NoError(t, err)
	assert.Contains(t, out, newest)

	out, err = execute(t, "models", "rollback", "--dir", registryDir)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("active model: %s\n", older), out)

	out, err = execute(t, "models", "list", "--dir", registryDir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[2], "*"), "older version is active: %q", lines[2])

	_, err = execute(t, "models", "activate", "1999-01-01T00-00-00", "--dir", registryDir)
	assert.Error(t, err)
}

func TestPredict(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.csv")
	require.NoError(t, os.WriteFile(input, []byte(
		"PatientEncounterID,PatientID,SystolicBPNBR,LDLNBR,A1CNBR\n1,10,1,2,3\n2,11,None,0,-5\n"), 0o644))
	modelPath := writeModel(t, dir)
	output := filepath.Join(dir, "ClinicalPredictions.csv")

	config := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(config, []byte(fmt.Sprintf(`
input:
  path: %q
model:
  path: %q
output:
  path: %q
`, input, modelPath, output)), 0o644))

	out, err := execute(t, "predict", "--config", config, "--no-index", "--factors", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "[ Original + predictions + factors ]")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "PatientEncounterID,Prediction\n1,12\n2,15\n", string(data))

	_, err = execute(t, "predict", "--config", config, "--factors", "500")
	assert.Error(t, err, "factor count is validated")
}
