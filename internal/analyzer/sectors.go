package analyzer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Sector is one entry of the sector taxonomy: a stable key, a display label,
// and the base query templates searched for it.
type Sector struct {
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Queries []string `json:"queries"`
}

// SectorSource serves the ERP sector taxonomy from a JSON file and reloads
// it when the file changes on disk.
type SectorSource struct {
	mu      sync.RWMutex
	path    string
	sectors []Sector
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	done    chan struct{}
}

// LoadSectors reads the taxonomy file and starts watching it for changes.
// An empty path yields the built-in defaults without a watcher.
func LoadSectors(path string, logger *zap.Logger) (*SectorSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SectorSource{path: path, logger: logger, done: make(chan struct{})}
	if path == "" {
		s.sectors = defaultERPSectors
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("sector watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which would drop a
	// direct file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch sector dir: %w", err)
	}
	s.watcher = watcher
	go s.watch()
	return s, nil
}

// Sectors returns the current taxonomy snapshot.
func (s *SectorSource) Sectors() []Sector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Sector(nil), s.sectors...)
}

// Reload re-reads the file. The previous taxonomy stays in place on error.
func (s *SectorSource) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read sectors file: %w", err)
	}
	var sectors []Sector
	if err := json.Unmarshal(data, &sectors); err != nil {
		return fmt.Errorf("parse sectors file: %w", err)
	}
	if len(sectors) == 0 {
		return fmt.Errorf("sectors file %s is empty", s.path)
	}
	s.mu.Lock()
	s.sectors = sectors
	s.mu.Unlock()
	return nil
}

// Close stops the file watcher.
func (s *SectorSource) Close() {
	close(s.done)
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
}

func (s *SectorSource) watch() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Name != s.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("sector reload failed", zap.Error(err))
				continue
			}
			s.logger.Info("sector taxonomy reloaded", zap.String("path", s.path))
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("sector watcher error", zap.Error(err))
		case <-s.done:
			return
		}
	}
}

// defaultERPSectors back the ERP analyzer when no taxonomy file is
// configured.
var defaultERPSectors = []Sector{
	{
		Key:   "logistics",
		Label: "Logistiek & Transport",
		Queries: []string{
			"logistiek bedrijf",
			"transportbedrijf",
			"warehousing fulfilment bedrijf",
		},
	},
	{
		Key:   "wholesale",
		Label: "Groothandel",
		Queries: []string{
			"groothandel",
			"technische groothandel",
			"importeur distributeur",
		},
	},
	{
		Key:   "manufacturing",
		Label: "Productie & Maakindustrie",
		Queries: []string{
			"productiebedrijf",
			"maakindustrie bedrijf",
			"machinebouw bedrijf",
		},
	},
	{
		Key:   "construction",
		Label: "Bouw & Installatie",
		Queries: []string{
			"installatiebedrijf",
			"aannemersbedrijf",
			"bouwbedrijf utiliteitsbouw",
		},
	},
	{
		Key:   "retail",
		Label: "Retail & E-commerce",
		Queries: []string{
			"webshop bedrijf",
			"retailketen",
			"e-commerce bedrijf",
		},
	},
}
