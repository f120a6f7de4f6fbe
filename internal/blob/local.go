package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Local struct {
	root    string
	baseURL string
}

func NewLocal(root string, baseURL string) (*Local, error) {
	if root == "" {
		root = "storage"
	}
	if !filepath.IsAbs(root) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("blob/local: resolve root: %w", err)
		}
		root = filepath.Join(cwd, root)
	}
	return &Local{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *Local) Put(_ context.Context, key string, _ string, content []byte) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	full := filepath.Join(d.root, filepath.FromSlash(cleaned))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("blob/local: mkdir: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return "", fmt.Errorf("blob/local: write %s: %w", cleaned, err)
	}
	return d.URL(cleaned), nil
}

func (d *Local) URL(key string) string {
	return d.baseURL + "/" + strings.TrimLeft(key, "/")
}
