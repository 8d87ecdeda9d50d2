package watermark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/AndreyKarmanov/aw-garmin/internal/domain"
	xlog "github.com/AndreyKarmanov/aw-garmin/internal/log"
)

// FileStore keeps the state as a small JSON document on local disk.
type FileStore struct {
	path   string
	logger zerolog.Logger
}

// NewFileStore constructs a FileStore for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, logger: xlog.WithComponent("watermark")}
}

// Path returns the state file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the state file. A missing, unreadable or malformed file yields the fresh state.
func (s *FileStore) Load(_ context.Context) (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn().Err(fmt.Errorf("%w: %v", domain.ErrStateCorrupt, err)).Str("path", s.path).Msg("state unreadable, starting fresh")
		}
		return State{}, nil
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn().Err(fmt.Errorf("%w: %v", domain.ErrStateCorrupt, err)).Str("path", s.path).Msg("state malformed, starting fresh")
		return State{}, nil
	}
	return state, nil
}

// Save writes the state to a temporary file, fsyncs it and renames it over the old record.
func (s *FileStore) Save(_ context.Context, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	pending, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending state file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			s.logger.Debug().Err(err).Msg("cleanup pending state file")
		}
	}()

	if _, err := pending.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace state file: %w", err)
	}
	return nil
}
