package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type configurer interface {
	Configure(ctx context.Context, directive string, cfg map[string]any) error
}

var templateExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// configureDir registers every template file of dir, in name order, and
// stops at the first failure.
func configureDir(ctx context.Context, c configurer, dir, directive string, out io.Writer) error {
	files, err := templateFiles(dir)
	if err != nil {
		return err
	}

	for _, path := range files {
		cfg, err := readTemplate(path)
		if err != nil {
			return err
		}
		if err := c.Configure(ctx, directive, cfg); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		_, _ = fmt.Fprintf(out, "registered %v (%s)\n", cfg["name"], directive)
	}
	return nil
}

func templateFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !templateExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// readTemplate decodes a template file as is. Keys keep their case, so
// mapping field names such as zipCode survive. A missing name defaults to the
// file stem.
func readTemplate(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}

	var cfg map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode template %s: %w", path, err)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}

	if name, _ := cfg["name"].(string); name == "" {
		base := filepath.Base(path)
		cfg["name"] = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return cfg, nil
}
