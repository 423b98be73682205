package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

const namePrefix = "snapshot-"

// Snapshot is a point-in-time dump of server records. Records are kept as
// raw JSON so the package stays independent of the domain types it stores.
type Snapshot struct {
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Records   []json.RawMessage      `json:"records"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Storage abstracts where snapshots are kept.
type Storage interface {
	Save(ctx context.Context, name string, data io.Reader) error
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// Service writes and reads snapshots through a Storage backend.
type Service struct {
	storage Storage
	version string
}

// NewService creates a snapshot service. version is stamped into every
// snapshot it writes.
func NewService(storage Storage, version string) *Service {
	return &Service{storage: storage, version: version}
}

// Write stores a snapshot and returns its generated name. The name embeds
// the timestamp, so lexicographic order is chronological order.
func (s *Service) Write(ctx context.Context, snap *Snapshot) (string, error) {
	snap.Version = s.version
	snap.Timestamp = time.Now()

	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	name := fmt.Sprintf("%s%s.json", namePrefix, snap.Timestamp.UTC().Format("20060102-150405"))
	if err := s.storage.Save(ctx, name, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to save snapshot: %w", err)
	}
	return name, nil
}

// Read loads a snapshot by name.
func (s *Service) Read(ctx context.Context, name string) (*Snapshot, error) {
	reader, err := s.storage.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if snap.Version == "" {
		return nil, fmt.Errorf("invalid snapshot %s: missing version", name)
	}
	return &snap, nil
}

// List returns all snapshot names, oldest first.
func (s *Service) List(ctx context.Context) ([]string, error) {
	names, err := s.storage.List(ctx, namePrefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Latest reads the most recent snapshot, or ("", nil, nil) when none exist.
func (s *Service) Latest(ctx context.Context) (string, *Snapshot, error) {
	names, err := s.List(ctx)
	if err != nil {
		return "", nil, err
	}
	if len(names) == 0 {
		return "", nil, nil
	}

	name := names[len(names)-1]
	snap, err := s.Read(ctx, name)
	if err != nil {
		return "", nil, err
	}
	return name, snap, nil
}

// Delete removes a snapshot by name.
func (s *Service) Delete(ctx context.Context, name string) error {
	return s.storage.Delete(ctx, name)
}

// Prune deletes snapshots whose embedded timestamp is older than the cutoff
// and returns how many were removed.
func (s *Service) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	names, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, name := range names {
		ts, err := parseName(name)
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			if err := s.storage.Delete(ctx, name); err != nil {
				return removed, fmt.Errorf("failed to delete snapshot %s: %w", name, err)
			}
			removed++
		}
	}
	return removed, nil
}

func parseName(name string) (time.Time, error) {
	trimmed := name
	if len(trimmed) > len(namePrefix) {
		trimmed = trimmed[len(namePrefix):]
	}
	if len(trimmed) > len("20060102-150405") {
		trimmed = trimmed[:len("20060102-150405")]
	}
	return time.Parse("20060102-150405", trimmed)
}
