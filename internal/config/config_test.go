package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 5, cfg.Search.MaxPages)
	require.Equal(t, 25*time.Second, cfg.Search.NavTimeout())
	require.Equal(t, 1500*time.Millisecond, cfg.Search.BaseDelay())
	require.Equal(t, 12*time.Second, cfg.Fetch.HomepageTimeout())
	require.Equal(t, 500*time.Millisecond, cfg.Fetch.ContactDelay())
	require.Equal(t, 5*time.Second, cfg.Email.DNSTimeout())
	require.Equal(t, 1000, cfg.Job.TargetLeads)
	require.Equal(t, 50, cfg.Job.MinScore)
	require.Equal(t, 5, cfg.Job.Concurrency)
	require.Equal(t, "erp", cfg.Job.UseCase)
	require.True(t, cfg.Logging.Development)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
search:
  max_pages: 3
job:
  min_score: 60
  use_case: recruitment
pubsub:
  project_id: proj
  topic_name: topic
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Server.Port)
	require.Equal(t, 3, cfg.Search.MaxPages)
	require.Equal(t, 60, cfg.Job.MinScore)
	require.Equal(t, "recruitment", cfg.Job.UseCase)
	require.Equal(t, "proj", cfg.PubSub.ProjectID)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LEADENGINE_SERVER_PORT", "7070")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := cfg
	bad.Server.Port = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Search.MaxPages = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.PubSub.ProjectID = "proj"
	require.Error(t, bad.Validate(), "topic must accompany project")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
