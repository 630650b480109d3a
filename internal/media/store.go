// Package media persists image bytes and returns publicly reachable URLs.
package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Object prefixes.
const (
	PrefixGenerated = "generated"
	PrefixUploads   = "user-uploads"
)

// Store saves image bytes and returns the URL the frontend can load them from.
type Store interface {
	Save(ctx context.Context, prefix string, data []byte, mimeType string) (string, error)
}

// objectKey builds "<prefix>/yyyy/mm/dd/<uuid><ext>".
func objectKey(prefix, mimeType string, now time.Time) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = PrefixGenerated
	}
	return fmt.Sprintf("%s/%d/%02d/%02d/%s%s",
		prefix, now.Year(), now.Month(), now.Day(), uuid.NewString(), extension(mimeType))
}

func extension(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
