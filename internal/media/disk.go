package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

// DiskStore writes files under a local directory that the API serves
// at /uploads/.
type DiskStore struct {
	root    string
	baseURL string
	now     func() time.Time
	logger  *logging.Logger
}

// NewDiskStore creates a store rooted at dir. publicBaseURL is the server's
// external origin; files resolve to <publicBaseURL>/uploads/<key>.
func NewDiskStore(dir, publicBaseURL string, logger *logging.Logger) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("media: upload dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("media: create upload dir: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DiskStore{
		root:    dir,
		baseURL: joinURL(publicBaseURL, "uploads"),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}, nil
}

// Root is the directory served as static files.
func (s *DiskStore) Root() string {
	return s.root
}

func (s *DiskStore) Save(ctx context.Context, prefix string, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("media: empty body")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := objectKey(prefix, mimeType, s.now())
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("media: create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("media: write %s: %w", key, err)
	}
	s.logger.Debug("stored media on disk", "key", key, "bytes", len(data))
	return joinURL(s.baseURL, key), nil
}
