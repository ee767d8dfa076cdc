package analyzer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sectorsJSON = `[
	{"key": "logistics", "label": "Logistiek", "queries": ["logistiek bedrijf"]},
	{"key": "wholesale", "label": "Groothandel", "queries": ["groothandel", "importeur"]}
]`

func TestLoadSectorsFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sectors.json")
	require.NoError(t, os.WriteFile(path, []byte(sectorsJSON), 0o600))

	src, err := LoadSectors(path, nil)
	require.NoError(t, err)
	defer src.Close()

	sectors := src.Sectors()
	require.Len(t, sectors, 2)
	require.Equal(t, "logistics", sectors[0].Key)
	require.Equal(t, []string{"groothandel", "importeur"}, sectors[1].Queries)
}

func TestLoadSectorsDefaults(t *testing.T) {
	t.Parallel()

	src, err := LoadSectors("", nil)
	require.NoError(t, err)
	defer src.Close()
	require.Len(t, src.Sectors(), 5)
}

func TestLoadSectorsBadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sectors.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))
	_, err := LoadSectors(path, nil)
	require.Error(t, err)

	_, err = LoadSectors(filepath.Join(t.TempDir(), "missing.json"), nil)
	require.Error(t, err)
}

func TestSectorsReloadKeepsOldOnError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sectors.json")
	require.NoError(t, os.WriteFile(path, []byte(sectorsJSON), 0o600))
	src, err := LoadSectors(path, nil)
	require.NoError(t, err)
	defer src.Close()

	require.NoError(t, os.WriteFile(path, []byte("broken"), 0o600))
	require.Error(t, src.Reload())
	require.Len(t, src.Sectors(), 2, "previous taxonomy survives a bad reload")
}

func TestSectorsHotReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sectors.json")
	require.NoError(t, os.WriteFile(path, []byte(sectorsJSON), 0o600))
	src, err := LoadSectors(path, nil)
	require.NoError(t, err)
	defer src.Close()

	updated := `[{"key": "retail", "label": "Retail", "queries": ["webshop"]}]`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	require.Eventually(t, func() bool {
		sectors := src.Sectors()
		return len(sectors) == 1 && sectors[0].Key == "retail"
	}, 5*time.Second, 20*time.Millisecond)
}
