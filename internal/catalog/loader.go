// Package catalog loads challenge content, checks it, and serves lookups by id.
package catalog

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/ashureev/challenge-lab/internal/domain"
	"gopkg.in/yaml.v3"
)

// Parse decodes one challenge from YAML.
func Parse(data []byte) (*domain.Challenge, error) {
	var c domain.Challenge
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse challenge: %w", err)
	}
	return &c, nil
}

// LoadFile reads and validates a single challenge file from fsys.
func LoadFile(fsys fs.FS, name string) (*domain.Challenge, []string, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, nil, fmt.Errorf("read challenge file %s: %w", name, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	warnings, err := Validate(c)
	if err != nil {
		return nil, warnings, fmt.Errorf("%s: %w", name, err)
	}
	return c, warnings, nil
}

// LoadResult is the outcome of loading a content pack.
type LoadResult struct {
	Challenges []*domain.Challenge
	Warnings   []string
	Errors     []error
}

// LoadPack loads every .yaml/.yml file under fsys. Invalid challenges are
// reported in Errors and skipped; a duplicate id keeps the first file loaded.
func LoadPack(fsys fs.FS) (*LoadResult, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(path.Ext(p)) {
		case ".yaml", ".yml":
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk content pack: %w", err)
	}
	sort.Strings(files)

	result := &LoadResult{}
	seen := make(map[string]string, len(files))
	for _, name := range files {
		c, warnings, err := LoadFile(fsys, name)
		for _, w := range warnings {
			result.Warnings = append(result.Warnings, name+": "+w)
		}
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		if first, dup := seen[c.ID]; dup {
			result.Errors = append(result.Errors, fmt.Errorf("%s: duplicate challenge id %q (first defined in %s)", name, c.ID, first))
			continue
		}
		seen[c.ID] = name
		result.Challenges = append(result.Challenges, c)
	}

	slog.Debug("Content pack loaded",
		"files", len(files),
		"challenges", len(result.Challenges),
		"warnings", len(result.Warnings),
		"errors", len(result.Errors))
	return result, nil
}
