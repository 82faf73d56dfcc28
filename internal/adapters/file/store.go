package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goflowspace/goflow/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Format selects the on-disk encoding of snapshots.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Store implements ports.ProjectStore using the local filesystem.
// It stores one snapshot file per project in a configured directory.
type Store struct {
	BasePath string
	Format   Format
}

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".goflow/projects".
func New(basePath string, format Format) *Store {
	if basePath == "" {
		basePath = filepath.Join(".goflow", "projects")
	}
	if format != FormatYAML {
		format = FormatJSON
	}
	return &Store{BasePath: basePath, Format: format}
}

func (s *Store) ext() string {
	return "." + string(s.Format)
}

func (s *Store) path(projectID string) (string, error) {
	if projectID == "" {
		return "", errors.New("projectID cannot be empty")
	}
	if strings.ContainsAny(projectID, `/\`) || projectID == "." || projectID == ".." {
		return "", fmt.Errorf("invalid projectID %q", projectID)
	}
	return filepath.Join(s.BasePath, projectID+s.ext()), nil
}

func (s *Store) marshal(p *domain.Project) ([]byte, error) {
	if s.Format == FormatYAML {
		return yaml.Marshal(p)
	}
	return json.MarshalIndent(p, "", "  ")
}

func (s *Store) unmarshal(data []byte, p *domain.Project) error {
	if s.Format == FormatYAML {
		return yaml.Unmarshal(data, p)
	}
	return json.Unmarshal(data, p)
}

// Save persists the snapshot atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, projectID string, p *domain.Project) error {
	destPath, err := s.path(projectID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure project directory: %w", err)
	}

	data, err := s.marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal project: %w", err)
	}

	// Same directory so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+projectID+"-*"+s.ext())
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to remove existing project file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to project file: %w", err)
	}
	return nil
}

// Load reads the snapshot of projectID.
func (s *Store) Load(ctx context.Context, projectID string) (*domain.Project, error) {
	filePath, err := s.path(projectID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	var p domain.Project
	if err := s.unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project: %w", err)
	}
	return &p, nil
}

// Delete removes the snapshot file. Deleting a missing project is not an error.
func (s *Store) Delete(ctx context.Context, projectID string) error {
	filePath, err := s.path(projectID)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete project file: %w", err)
	}
	return nil
}

// List returns the ids of all stored projects.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != s.ext() || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, s.ext()))
	}
	sort.Strings(ids)
	return ids, nil
}
