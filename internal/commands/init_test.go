package commands_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/forecast/internal/config"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build the binary once for all tests.
	tmpDir, err := os.MkdirTemp("", "forecast-test-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	binaryPath = filepath.Join(tmpDir, "forecast")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/forecast")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	os.Exit(m.Run())
}

// cleanEnv drops the variables that would override the test config.
func cleanEnv() []string {
	var env []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "FIREFLY_") || strings.HasPrefix(kv, "HASS_") || strings.HasPrefix(kv, "FORECAST_") {
			continue
		}
		env = append(env, kv)
	}
	return env
}

func runForecast(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Env = cleanEnv()
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// runStdout returns stdout only, for machine-readable output.
func runStdout(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Env = cleanEnv()
	out, err := cmd.Output()
	return string(out), err
}

func initProject(t *testing.T, mainAccount string) string {
	t.Helper()
	dir := t.TempDir()
	out, err := runForecast(t, "init", dir, "--main-account", mainAccount, "--salary", "4900", "--salary-day", "28")
	require.NoError(t, err, out)
	return dir
}

func TestInit_WritesConfig(t *testing.T) {
	dir := initProject(t, "Sparkasse giro")

	cfg, err := config.Load(filepath.Join(dir, "forecast.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Sparkasse giro", cfg.MainAccountName)
	assert.Equal(t, "4900", cfg.Salary.Amount.String())
	assert.Equal(t, 28, cfg.Salary.DayOfMonth)
	assert.Equal(t, "http://localhost:8080", cfg.Ledger.BaseURL)
	assert.Equal(t, filepath.Join(dir, "secrets.yaml"), cfg.Ledger.AccessTokenFile)
	assert.Equal(t, filepath.Join(dir, "history.db"), cfg.Publish.History.DSN)
	assert.NoError(t, cfg.Validate())
}

func TestInit_Secrets(t *testing.T) {
	dir := initProject(t, "Sparkasse giro")

	info, err := os.Stat(filepath.Join(dir, "secrets.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(filepath.Join(dir, "secrets.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "firefly_app_token")
}

func TestInit_Gitignore(t *testing.T) {
	dir := initProject(t, "Sparkasse giro")

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	contents := string(data)

	for _, pattern := range []string{"secrets.yaml", "history.db*"} {
		assert.Contains(t, contents, pattern, ".gitignore should contain %s", pattern)
	}
}

func TestInit_RequiresMainAccount(t *testing.T) {
	dir := t.TempDir()
	_, err := runForecast(t, "init", dir)
	require.Error(t, err, "init without --main-account should fail")
}

func TestInit_RefusesOverwrite(t *testing.T) {
	dir := initProject(t, "Sparkasse giro")

	out, err := runForecast(t, "init", dir, "--main-account", "Other")
	require.Error(t, err)
	assert.Contains(t, out, "already exists")

	_, err = runForecast(t, "init", dir, "--main-account", "Other", "--force")
	require.NoError(t, err)
	cfg, err := config.Load(filepath.Join(dir, "forecast.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Other", cfg.MainAccountName)
}

func TestInit_TOML(t *testing.T) {
	dir := t.TempDir()
	out, err := runForecast(t, "init", dir, "--main-account", "Sparkasse giro", "--format", "toml")
	require.NoError(t, err, out)

	cfg, err := config.Load(filepath.Join(dir, "forecast.toml"))
	require.NoError(t, err)
	assert.Equal(t, "Sparkasse giro", cfg.MainAccountName)
}

func TestInit_BadSalary(t *testing.T) {
	out, err := runForecast(t, "init", t.TempDir(), "--main-account", "X", "--salary", "lots")
	require.Error(t, err)
	assert.Contains(t, out, "parsing salary")
}
