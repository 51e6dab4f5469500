package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/stackwatch/election-observer/internal/badge"
)

// CorruptDataError reports a store file that exists but cannot be decoded,
// typically the remains of an interrupted write from before atomic
// replacement was in place. It must surface to the operator; the data needed
// for automatic recovery is the thing that was lost.
type CorruptDataError struct {
	Path string
	Err  error
}

func (e *CorruptDataError) Error() string {
	return fmt.Sprintf("corrupt badge data file %s: %v", e.Path, e.Err)
}

func (e *CorruptDataError) Unwrap() error {
	return e.Err
}

// envelope is the on-disk representation of one badge's award set.
type envelope struct {
	Site    string        `json:"site"`
	BadgeID int           `json:"badge_id"`
	Awards  []badge.Award `json:"awards"`
}

// Store persists one badge's award set as a zstd-compressed JSON file,
// replacing the whole file on every save. A single process owns the file for
// the duration of a run.
type Store struct {
	dir     string
	site    string
	name    string
	badgeID int
	logger  *zap.Logger
}

func New(dir, site, name string, badgeID int, logger *zap.Logger) *Store {
	return &Store{
		dir:     dir,
		site:    site,
		name:    name,
		badgeID: badgeID,
		logger:  logger,
	}
}

func (s *Store) Path() string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.json.zst", s.site, s.name))
}

// legacyPath is the uncompressed layout older data directories used.
func (s *Store) legacyPath() string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.json", s.site, s.name))
}

// Load reads all previously persisted awards. A missing file yields an empty
// set; an unreadable file yields a *CorruptDataError.
func (s *Store) Load() (*badge.AwardSet, error) {
	env, err := s.readCompressed(s.Path())
	if os.IsNotExist(err) {
		env, err = s.readPlain(s.legacyPath())
		if os.IsNotExist(err) {
			s.logger.Info("no existing badge data file",
				zap.String("path", s.Path()))
			return badge.NewSet(), nil
		}
	}
	if err != nil {
		return nil, err
	}

	if env.BadgeID != s.badgeID {
		return nil, &CorruptDataError{
			Path: s.Path(),
			Err:  fmt.Errorf("file holds badge %d, store expects %d", env.BadgeID, s.badgeID),
		}
	}

	set := badge.NewSetOf(env.Awards)
	s.logger.Info("loaded badge data",
		zap.String("site", s.site),
		zap.String("badge", s.name),
		zap.Int("awards", set.Len()))
	return set, nil
}

// Save replaces the persisted set. The new contents are written to a
// temporary file, decoded back to confirm readability, and only then renamed
// over the previous file. The previous file is never truncated or removed
// before the replacement is complete.
func (s *Store) Save(set *badge.AwardSet) error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	tmpPath := s.Path() + ".tmp"
	if err := s.writeCompressed(tmpPath, set); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	// Confirm the replacement is readable before it replaces anything.
	if _, err := s.readCompressed(tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("verifying written data: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path()); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing data file: %w", err)
	}

	s.logger.Info("wrote badge data",
		zap.String("site", s.site),
		zap.String("badge", s.name),
		zap.Int("awards", set.Len()))
	return nil
}

func (s *Store) writeCompressed(path string, set *badge.AwardSet) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("creating zstd writer: %w", err)
	}

	env := envelope{
		Site:    s.site,
		BadgeID: s.badgeID,
		Awards:  set.Sorted(),
	}

	err = json.NewEncoder(zw).Encode(env)
	if closeErr := zw.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("writing badge data: %w", err)
	}
	return nil
}

func (s *Store) readCompressed(path string) (*envelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, &CorruptDataError{Path: path, Err: err}
	}
	defer zr.Close()

	var env envelope
	if err := json.NewDecoder(zr).Decode(&env); err != nil {
		return nil, &CorruptDataError{Path: path, Err: err}
	}
	return &env, nil
}

func (s *Store) readPlain(path string) (*envelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var env envelope
	if err := json.NewDecoder(f).Decode(&env); err != nil {
		return nil, &CorruptDataError{Path: path, Err: err}
	}
	return &env, nil
}
