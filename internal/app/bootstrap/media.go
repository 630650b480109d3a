package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/wolfman30/goodchoice-relay/internal/config"
	"github.com/wolfman30/goodchoice-relay/internal/media"
	"github.com/wolfman30/goodchoice-relay/pkg/logging"
)

// MediaStore is the selected image store. UploadDir is non-empty only for
// the disk backend and names the directory served at /uploads.
type MediaStore struct {
	Store     media.Store
	UploadDir string
}

// BuildMediaStore selects MEDIA_BACKEND (disk or s3).
func BuildMediaStore(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (MediaStore, error) {
	if cfg == nil {
		return MediaStore{}, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.MediaBackend {
	case "", "disk":
		store, err := media.NewDiskStore(cfg.UploadDir, cfg.PublicBaseURL, logger)
		if err != nil {
			return MediaStore{}, err
		}
		logger.Info("media stored on disk", "dir", store.Root())
		return MediaStore{Store: store, UploadDir: store.Root()}, nil
	case "s3":
		if loadAWS == nil {
			return MediaStore{}, fmt.Errorf("bootstrap: MEDIA_BACKEND=s3 requires AWS config")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return MediaStore{}, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		pathStyle := strings.TrimSpace(cfg.AWSEndpointOverride) != ""
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.UsePathStyle = pathStyle
		})
		store, err := media.NewS3Store(client, cfg.S3Bucket, cfg.S3PublicBaseURL, logger)
		if err != nil {
			return MediaStore{}, err
		}
		logger.Info("media stored in s3", "bucket", cfg.S3Bucket)
		return MediaStore{Store: store}, nil
	default:
		return MediaStore{}, fmt.Errorf("bootstrap: unknown MEDIA_BACKEND %q", cfg.MediaBackend)
	}
}
