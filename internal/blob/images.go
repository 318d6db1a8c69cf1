package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImagePrefix is the key prefix of every image blob.
const ImagePrefix = "images/"

// Images stores uploaded image bytes under freshly minted keys of the form
// images/<uuid hex>[.<ext>].
type Images struct {
	store Store
	newID func() uuid.UUID
}

// NewImages wraps store.
func NewImages(store Store) *Images {
	return &Images{store: store, newID: uuid.New}
}

// Store returns the wrapped backend.
func (i *Images) Store() Store { return i.store }

// NewRef mints a fresh key for filename, keeping its lower-cased extension.
func (i *Images) NewRef(filename string) string {
	id := i.newID()
	ref := ImagePrefix + strings.ReplaceAll(id.String(), "-", "")
	if ext := strings.ToLower(path.Ext(path.Base(filename))); ext != "" && ext != "." {
		ref += ext
	}
	return ref
}

// Save writes data under a new reference and returns it.
func (i *Images) Save(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	ref := i.NewRef(filename)
	opts := PutOptions{ContentType: contentType, Metadata: map[string]string{"filename": path.Base(filename)}}
	if _, err := i.store.Put(ctx, ref, bytes.NewReader(data), opts); err != nil {
		return "", fmt.Errorf("store image %s: %w", filename, err)
	}
	return ref, nil
}

// Remove deletes ref. A missing blob is not an error.
func (i *Images) Remove(ctx context.Context, ref string) error {
	if _, err := i.store.Delete(ctx, ref); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("remove image %s: %w", ref, err)
	}
	return nil
}

// Open returns the blob metadata and a reader for ref.
func (i *Images) Open(ctx context.Context, ref string) (Info, io.ReadCloser, error) {
	return i.store.Get(ctx, ref)
}

// URL returns a time-limited GET URL for ref. Drivers without signing
// report ErrUnsupported; a missing blob reports ErrNotFound.
func (i *Images) URL(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	if _, err := i.store.Head(ctx, ref); err != nil {
		return "", err
	}
	return i.store.PresignURL(ctx, ref, SignedURLOptions{Method: "GET", Expiry: ttl})
}

// List returns every stored image blob ordered by key.
func (i *Images) List(ctx context.Context) ([]Info, error) {
	return i.store.List(ctx, ImagePrefix)
}
