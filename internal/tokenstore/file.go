package tokenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/auctionledger/onboard/internal/common"
	"github.com/auctionledger/onboard/internal/filex"
	"github.com/auctionledger/onboard/internal/logging"
	"github.com/auctionledger/onboard/internal/token"
)

// FileStore persists the token set as one JSON document at a fixed path.
// Replacement is atomic: the document is written to a temporary file and
// renamed over the target, so a concurrent reader never observes a missing
// or partially written file.
type FileStore struct {
	path   string
	logger logging.Logger
}

func NewFileStore(path string, logger logging.Logger) *FileStore {
	return &FileStore{path: path, logger: logger.With("module", "token_store")}
}

func (s *FileStore) Persist(ctx context.Context, tokens []token.IssuedToken) error {
	if tokens == nil {
		// an empty batch still produces a valid document
		tokens = []token.IssuedToken{}
	}

	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	if err := filex.EnsureDir(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	if err := filex.WriteFileAtomic(s.path, data, 0o640); err != nil {
		return fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	s.logger.Info(ctx, "tokens persisted", "path", s.path, "count", len(tokens))
	return nil
}
