// Package store owns the on-disk layout of a batch: the aggregate result
// file that doubles as the batch cache, and the per-run log files.
//
//	<output>/.cache-experiment/<batch>/testResults.json
//	<output>/.cache-experiment/<batch>/batch.fingerprint
//	<output>/.cache-experiment/<batch>/<version>/<project>.<state>.log
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/spachava753/compatprobe/internal/models"
)

const (
	CacheDirName        = ".cache-experiment"
	AggregateFileName   = "testResults.json"
	FingerprintFileName = "batch.fingerprint"
)

// Store reads and writes batch artifacts under one output directory.
type Store struct {
	root string
}

// New creates a Store rooted at <outputDir>/.cache-experiment.
func New(outputDir string) *Store {
	return &Store{root: filepath.Join(outputDir, CacheDirName)}
}

// BatchDir returns the directory holding every artifact of a batch.
func (s *Store) BatchDir(batch string) string {
	return filepath.Join(s.root, filepath.FromSlash(batch))
}

// AggregatePath returns the location of the batch's aggregate file.
func (s *Store) AggregatePath(batch string) string {
	return filepath.Join(s.BatchDir(batch), AggregateFileName)
}

// LogPath returns the log location of one run. Paths differ for every
// (version, project, state), so concurrent runs never share a file.
func (s *Store) LogPath(batch, version, project string, state models.State) string {
	return filepath.Join(s.BatchDir(batch), version, fmt.Sprintf("%s.%s.log", ProjectFileName(project), state))
}

// ProjectFileName makes a project identifier safe for use as a file name.
func ProjectFileName(project string) string {
	return strings.ReplaceAll(project, "/", "$")
}

// HasAggregate reports whether the batch already has an aggregate file.
func (s *Store) HasAggregate(batch string) (bool, error) {
	_, err := os.Stat(s.AggregatePath(batch))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("checking aggregate: %w", err)
	}
}

// LoadAggregate reads the batch's aggregate file.
func (s *Store) LoadAggregate(batch string) ([][]models.TestResult, error) {
	data, err := os.ReadFile(s.AggregatePath(batch))
	if err != nil {
		return nil, fmt.Errorf("reading aggregate: %w", err)
	}

	var results [][]models.TestResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parsing aggregate: %w", err)
	}
	return results, nil
}

// WriteAggregate writes the nested results as indented JSON. The file is
// written to a temporary name first and renamed into place, so a partial
// aggregate is never observed.
func (s *Store) WriteAggregate(batch string, results [][]models.TestResult) error {
	normalized := make([][]models.TestResult, len(results))
	for i, r := range results {
		if r == nil {
			r = []models.TestResult{}
		}
		normalized[i] = r
	}

	data, err := json.MarshalIndent(normalized, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding aggregate: %w", err)
	}

	return writeFileAtomic(s.AggregatePath(batch), data)
}

// WriteLog persists the captured output of one run.
func (s *Store) WriteLog(batch, version, project string, state models.State, log string) error {
	path := s.LogPath(batch, version, project, state)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(log), 0644); err != nil {
		return fmt.Errorf("writing log: %w", err)
	}
	return nil
}

// Fingerprint computes a blake3 digest of the batch inputs.
func Fingerprint(inputs []models.ExperimentInput) (string, error) {
	if inputs == nil {
		inputs = []models.ExperimentInput{}
	}
	canonical, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("canonicalize inputs: %w", err)
	}

	hasher := blake3.New()
	if _, err := hasher.Write(canonical); err != nil {
		return "", fmt.Errorf("hash inputs: %w", err)
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// WriteFingerprint records the fingerprint the aggregate was built from.
func (s *Store) WriteFingerprint(batch, fingerprint string) error {
	path := filepath.Join(s.BatchDir(batch), FingerprintFileName)
	return writeFileAtomic(path, []byte(fingerprint+"\n"))
}

// FingerprintMatches reports whether the recorded fingerprint equals
// fingerprint. A batch without a recorded fingerprint never matches.
func (s *Store) FingerprintMatches(batch, fingerprint string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(s.BatchDir(batch), FingerprintFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading fingerprint: %w", err)
	}
	return string(bytes.TrimSpace(data)) == fingerprint, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}
