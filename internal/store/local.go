package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const dirPerm = 0o750

// Local stores documents on the filesystem. Writes land under the
// base directory; reads are additionally allowed from the extra read
// roots (the blank-form directory, typically). Keys may not escape
// their root.
type Local struct {
	baseDir   string
	readRoots []string
}

// NewLocal creates a local store writing under baseDir and reading
// from baseDir plus any readRoots.
func NewLocal(baseDir string, readRoots ...string) (*Local, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}
	roots := []string{abs}
	for _, r := range readRoots {
		ar, err := filepath.Abs(r)
		if err != nil {
			return nil, fmt.Errorf("resolve read root %s: %w", r, err)
		}
		roots = append(roots, ar)
	}
	return &Local{baseDir: abs, readRoots: roots}, nil
}

// Load reads the document at key.
func (l *Local) Load(_ context.Context, key string) ([]byte, error) {
	p, err := l.resolveRead(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return data, nil
}

// Save writes the document at key under the base directory, creating
// parent directories as needed.
func (l *Local) Save(_ context.Context, key string, data []byte) error {
	p, err := resolveUnder(l.baseDir, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), dirPerm); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	if err := os.WriteFile(p, data, 0o640); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (l *Local) resolveRead(key string) (string, error) {
	var lastErr error
	for _, root := range l.readRoots {
		p, err := resolveUnder(root, key)
		if err != nil {
			lastErr = err
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", fmt.Errorf("load %s: %w", key, os.ErrNotExist)
}

// resolveUnder maps a key to an absolute path and rejects anything
// escaping root. Absolute keys are accepted when already inside it.
func resolveUnder(root, key string) (string, error) {
	p := key
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key escapes store root: %s", key)
	}
	return abs, nil
}
