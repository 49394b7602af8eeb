// Package storage reads input tables from and writes output tables to blob
// locations. Local paths and gs://bucket/object URIs are supported.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrNotFound signals that the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Store reads and writes whole objects.
type Store interface {
	// GetObject opens the object at path. Callers must close the reader.
	GetObject(ctx context.Context, path string) (io.ReadCloser, error)
	// PutObject writes r to path and returns a URI for the stored object.
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Scheme identifies the backing store of a Location.
type Scheme string

// Supported schemes.
const (
	SchemeFile Scheme = "file"
	SchemeGCS  Scheme = "gs"
)

// Location is a parsed object address. For files, Root is the containing
// directory; for GCS it is the bucket. Object is relative to Root.
type Location struct {
	Scheme Scheme
	Root   string
	Object string
}

// ParseLocation accepts gs://bucket/object, file:///path, or a plain
// filesystem path.
func ParseLocation(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, errors.New("location is required")
	}
	if rest, ok := strings.CutPrefix(raw, "gs://"); ok {
		bucket, object, _ := strings.Cut(rest, "/")
		if bucket == "" || object == "" {
			return Location{}, fmt.Errorf("invalid gcs location %q: want gs://bucket/object", raw)
		}
		return Location{Scheme: SchemeGCS, Root: bucket, Object: object}, nil
	}
	path := strings.TrimPrefix(raw, "file://")
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(filepath.Separator)) {
		return Location{}, fmt.Errorf("location %q names a directory", raw)
	}
	path = filepath.Clean(path)
	return Location{Scheme: SchemeFile, Root: filepath.Dir(path), Object: filepath.Base(path)}, nil
}

func (l Location) String() string {
	if l.Scheme == SchemeGCS {
		return fmt.Sprintf("gs://%s/%s", l.Root, l.Object)
	}
	return filepath.Join(l.Root, l.Object)
}
