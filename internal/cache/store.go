package cache

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// perSourceSuffix is the naming convention for per-source cache files. The
// matching monolithic pre-split file for dataset X is X.json.
const perSourceSuffix = "_place_names.json"

// legacyBackupSuffix is appended to a migrated monolithic file. Original
// data is renamed aside, never deleted.
const legacyBackupSuffix = ".v2.bak"

// Store holds the two cache namespaces for one run and knows where they
// persist. The shared namespace (coordinates, hex place ids) is reused
// across datasets; the per-source namespace (free-text place names) is
// isolated per input file because names collide across datasets.
type Store struct {
	Shared    *Namespace
	PerSource *Namespace

	sharedPath    string
	perSourcePath string
	log           *zap.Logger
}

// Open loads both namespaces, migrating older schema versions forward. When
// a pre-split monolithic cache file is found next to the per-source path, it
// is migrated, merged into the current files and renamed to a backup.
func Open(sharedPath, perSourcePath string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		sharedPath:    sharedPath,
		perSourcePath: perSourcePath,
		log:           log,
	}

	if legacyPath, ok := s.legacyPath(); ok {
		if err := s.openFromLegacy(legacyPath); err != nil {
			return nil, err
		}
		return s, nil
	}

	var err error
	if s.Shared, err = loadNamespace(sharedPath); err != nil {
		return nil, err
	}
	if s.PerSource, err = loadNamespace(perSourcePath); err != nil {
		return nil, err
	}
	return s, nil
}

// legacyPath derives the pre-split monolithic file name for this dataset and
// reports whether it exists.
func (s *Store) legacyPath() (string, bool) {
	if !strings.HasSuffix(s.perSourcePath, perSourceSuffix) {
		return "", false
	}
	path := strings.TrimSuffix(s.perSourcePath, perSourceSuffix) + ".json"
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// openFromLegacy migrates a monolithic v1/v2 cache file: value shapes are
// brought to the current version, keys are routed into the two namespaces,
// migrated shared entries are merged over any existing shared file, and the
// legacy file is renamed to a backup once the split files are saved.
func (s *Store) openFromLegacy(legacyPath string) error {
	s.log.Info("migrating legacy cache file", zap.String("path", legacyPath))

	b, err := readBlob(legacyPath)
	if err != nil {
		return fmt.Errorf("read legacy cache: %w", err)
	}
	migrate(b)
	entries, err := decodeEntries(b.entries)
	if err != nil {
		return fmt.Errorf("legacy cache %s: %w", legacyPath, err)
	}
	sharedEntries, perSourceEntries := splitLegacy(entries)

	if s.Shared, err = loadNamespace(s.sharedPath); err != nil {
		return err
	}
	s.Shared.fill(sharedEntries)

	s.PerSource = NewNamespace()
	s.PerSource.fill(perSourceEntries)

	if err := s.Save(); err != nil {
		return fmt.Errorf("save migrated cache: %w", err)
	}
	backup := legacyPath + legacyBackupSuffix
	if err := os.Rename(legacyPath, backup); err != nil {
		return fmt.Errorf("back up legacy cache: %w", err)
	}
	s.log.Info("legacy cache migrated",
		zap.Int("shared_entries", len(sharedEntries)),
		zap.Int("place_name_entries", len(perSourceEntries)),
		zap.String("backup", backup))
	return nil
}

// Save persists both namespaces at the current schema version
func (s *Store) Save() error {
	if err := saveNamespace(s.sharedPath, s.Shared); err != nil {
		return err
	}
	return saveNamespace(s.perSourcePath, s.PerSource)
}
