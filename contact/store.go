package contact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Store persists contact records keyed by nickname.
type Store interface {
	Load() ([]Record, error)
	Save(rec Record) error
	Delete(nickname string) error
	Close() error
}

// JSONStore keeps one "<nickname>.json" file per contact in a directory.
type JSONStore struct {
	dir string
}

// NewJSONStore creates the directory if needed.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create contact directory: %w", err)
	}
	return &JSONStore{dir: dir}, nil
}

func (s *JSONStore) path(nickname string) string {
	return filepath.Join(s.dir, nickname+".json")
}

// Load reads every record file. Unreadable files are skipped with a warning.
func (s *JSONStore) Load() ([]Record, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "JSONStore.Load",
				"file":     entry.Name(),
				"error":    err.Error(),
			}).Warn("Skipping unreadable contact file")
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Nickname < records[j].Nickname })
	return records, nil
}

// Save writes a record atomically.
func (s *JSONStore) Save(rec Record) error {
	if err := ValidateNickname(rec.Nickname); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".contact-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(rec.Nickname))
}

// Delete removes a record file.
func (s *JSONStore) Delete(nickname string) error {
	err := os.Remove(s.path(nickname))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, nickname)
	}
	return err
}

// Close is a no-op.
func (s *JSONStore) Close() error { return nil }
