package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/chunkbatch/pkg/batch/core/config"
	model "github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
)

const testYAML = `
chunkbatch:
  batch:
    chunk_size: 25
  system:
    logging:
      level: WARN
  infrastructure:
    job_repository: database
  database:
    type: sqlite
    database: ${BATCH_DB_PATH}
  storage:
    output:
      type: local
      base_dir: /tmp/out
`

func TestLoadConfig_Layers(t *testing.T) {
	t.Setenv("BATCH_DB_PATH", "/var/lib/batch.db")
	t.Setenv("CHUNKBATCH_BATCH_CHUNK_SIZE", "50")
	t.Setenv("CHUNKBATCH_STORAGE_OUTPUT_BASE_DIR", "/data/out")

	cfg, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.env"), config.EmbeddedConfig(testYAML), nil)
	require.NoError(t, err)

	cb := cfg.Chunkbatch
	assert.Equal(t, 50, cb.Batch.ChunkSize)
	assert.Equal(t, "WARN", cb.System.Logging.Level)
	assert.Equal(t, "UTC", cb.System.Timezone)
	assert.Equal(t, "/var/lib/batch.db", cb.Database.Database)
	assert.Equal(t, "/data/out", cb.Storage["output"].BaseDir)
	assert.Equal(t, "local", cb.Storage["output"].Type)
	assert.Equal(t, "none", cb.Metrics.Exporter)
	assert.True(t, cfg.UsesDatabaseRepository())
}

func TestLoadConfig_DotEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CHUNKBATCH_SYSTEM_LOGGING_LEVEL=DEBUG\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CHUNKBATCH_SYSTEM_LOGGING_LEVEL") })

	cfg, err := config.LoadConfig(envFile, config.EmbeddedConfig("chunkbatch: {}"), nil)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.Chunkbatch.System.Logging.Level)
	assert.Equal(t, config.DefaultChunkSize, cfg.Chunkbatch.Batch.ChunkSize)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"zero chunk":        "chunkbatch:\n  batch:\n    chunk_size: -1\n",
		"database missing":  "chunkbatch:\n  infrastructure:\n    job_repository: database\n",
		"unknown repo":      "chunkbatch:\n  infrastructure:\n    job_repository: redis\n",
		"prometheus traces": "chunkbatch:\n  tracing:\n    exporter: prometheus\n",
		"bad yaml":          "chunkbatch: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.LoadConfig(filepath.Join(t.TempDir(), "none.env"), config.EmbeddedConfig(doc), nil)
			assert.Error(t, err)
		})
	}
}

func TestNewStepConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		sc, err := config.NewStepConfig(model.NewJobParameters(), 0)
		require.NoError(t, err)
		assert.Equal(t, config.StepConfig{ChunkSize: 10, AllowDuplicate: false}, sc)
	})

	t.Run("typed values", func(t *testing.T) {
		params := model.NewJobParameters()
		params.Put("chunkSize", 5)
		params.Put("allowDuplicate", true)
		sc, err := config.NewStepConfig(params, 10)
		require.NoError(t, err)
		assert.Equal(t, config.StepConfig{ChunkSize: 5, AllowDuplicate: true}, sc)
	})

	t.Run("string values and alias", func(t *testing.T) {
		params := model.NewJobParameters()
		params.Put("chunkSize", "3")
		params.Put("allow_duplicate", "true")
		sc, err := config.NewStepConfig(params, 10)
		require.NoError(t, err)
		assert.Equal(t, 3, sc.ChunkSize)
		assert.True(t, sc.AllowDuplicate)
	})

	t.Run("canonical wins over alias", func(t *testing.T) {
		params := model.NewJobParameters()
		params.Put("allowDuplicate", "false")
		params.Put("allow_duplicate", "true")
		sc, err := config.NewStepConfig(params, 10)
		require.NoError(t, err)
		assert.False(t, sc.AllowDuplicate)
	})

	t.Run("non-positive chunk size", func(t *testing.T) {
		for _, v := range []interface{}{0, "-4"} {
			params := model.NewJobParameters()
			params.Put("chunkSize", v)
			_, err := config.NewStepConfig(params, 10)
			assert.ErrorContains(t, err, "chunkSize must be positive")
		}
	})

	t.Run("malformed", func(t *testing.T) {
		params := model.NewJobParameters()
		params.Put("chunkSize", "ten")
		_, err := config.NewStepConfig(params, 10)
		assert.Error(t, err)
	})
}

func TestOsEnvironmentExpander_Defaults(t *testing.T) {
	t.Setenv("CB_SET", "sqlite")
	t.Setenv("CB_EMPTY", "")
	os.Unsetenv("CB_UNSET")

	out, err := config.NewOsEnvironmentExpander().Expand([]byte("${CB_SET:-mysql} ${CB_EMPTY:-x} ${CB_UNSET:-person.db} ${CB_UNSET} $CB_SET"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite x person.db  sqlite", string(out))
}
