// Package blob stores product images and sale receipts in object storage.
//
// Two drivers are available:
//   - "local" writes under a root directory and serves from a base URL
//   - "s3" targets any S3-compatible endpoint (AWS S3, MinIO, R2)
package blob

import (
	"context"
	"fmt"
	"path"
	"strings"
)

type Store interface {
	// Put writes content under key and returns its public reference.
	Put(ctx context.Context, key string, contentType string, content []byte) (string, error)
	URL(key string) string
}

type Options struct {
	Driver    string
	LocalRoot string
	BaseURL   string
	Bucket    string
	Region    string
	Key       string
	Secret    string
	Endpoint  string
}

func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "local":
		return NewLocal(opts.LocalRoot, opts.BaseURL)
	case "s3":
		return NewS3(ctx, opts)
	default:
		return nil, fmt.Errorf("blob: unknown driver %q", opts.Driver)
	}
}

// CleanKey rejects keys that would escape the store root.
func CleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.TrimSpace(key))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("blob: empty key")
	}
	return cleaned, nil
}
