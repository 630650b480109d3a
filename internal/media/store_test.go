package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func fixedClock() time.Time {
	return time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
}

func TestDiskStoreSave(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "https://relay.test/", nil)
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	store.now = fixedClock

	url, err := store.Save(context.Background(), PrefixGenerated, []byte("png"), "image/png")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	prefix := "https://relay.test/uploads/generated/2026/03/07/"
	if !strings.HasPrefix(url, prefix) || !strings.HasSuffix(url, ".png") {
		t.Fatalf("unexpected url %q", url)
	}
	key := strings.TrimPrefix(url, "https://relay.test/uploads/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "png" {
		t.Fatalf("unexpected file contents %q", data)
	}
}

func TestDiskStoreRejectsEmpty(t *testing.T) {
	store, err := NewDiskStore(t.TempDir(), "http://localhost:5000", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(context.Background(), PrefixUploads, nil, "image/jpeg"); err == nil {
		t.Fatal("expected error for empty body")
	}
	if _, err := NewDiskStore("", "", nil); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	if params.Body != nil {
		f.body, _ = io.ReadAll(params.Body)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreSave(t *testing.T) {
	client := &fakeS3{}
	store, err := NewS3Store(client, "exhibits", "https://cdn.test", nil)
	if err != nil {
		t.Fatal(err)
	}
	store.now = fixedClock

	url, err := store.Save(context.Background(), PrefixUploads, []byte("jpeg"), "image/jpeg")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if *client.input.Bucket != "exhibits" {
		t.Fatalf("bucket = %q", *client.input.Bucket)
	}
	key := *client.input.Key
	if !strings.HasPrefix(key, "user-uploads/2026/03/07/") || !strings.HasSuffix(key, ".jpg") {
		t.Fatalf("unexpected key %q", key)
	}
	if url != "https://cdn.test/"+key {
		t.Fatalf("url = %q", url)
	}
	if *client.input.ContentType != "image/jpeg" || string(client.body) != "jpeg" {
		t.Fatalf("unexpected put %+v", client.input)
	}
}

func TestS3StoreErrors(t *testing.T) {
	if _, err := NewS3Store(nil, "b", "", nil); err == nil {
		t.Fatal("expected error without client")
	}
	if _, err := NewS3Store(&fakeS3{}, "", "", nil); err == nil {
		t.Fatal("expected error without bucket")
	}
	store, err := NewS3Store(&fakeS3{err: errors.New("denied")}, "b", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Save(context.Background(), "", []byte("x"), ""); err == nil {
		t.Fatal("expected put error")
	}
	if store.baseURL != "https://b.s3.amazonaws.com" {
		t.Fatalf("default base url = %q", store.baseURL)
	}
}
