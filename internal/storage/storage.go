// Package storage declares where uploaded recipe images live. Keys are
// slash-separated object names such as "uploads/recipe/<uuid>.png"; the
// backend decides how a key maps to bytes on disk or in a bucket and to a
// public URL.
package storage

import (
	"context"
	"io"
)

type ImageStore interface {
	// Save writes the object under key, replacing any existing object.
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns the public URL clients use to fetch the object.
	URL(key string) string
}
