package merkle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Stats summarizes the indexed codebase as of the last manifest write.
type Stats struct {
	TotalFiles  int `json:"total_files"`
	TotalChunks int `json:"total_chunks"`
}

// Manifest is the Merkle forest plus the counters and timestamps persisted
// between runs (§3, §4.10).
type Manifest struct {
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Tree      *Node     `json:"tree"`
	Stats     Stats     `json:"stats"`
}

// NewManifest creates an empty manifest (first run: no tree yet).
func NewManifest() *Manifest {
	now := time.Now().UTC()
	return &Manifest{
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Forest returns the manifest's tree as a Forest, for feeding back into a
// Scanner as the prior state.
func (m *Manifest) Forest() *Forest {
	if m == nil {
		return &Forest{}
	}
	return &Forest{Root: m.Tree}
}

// LoadManifest reads and parses the manifest at path. A missing file returns
// (nil, nil) — the documented "first run" case.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Save writes the manifest to path atomically (temp file + rename), bumping
// UpdatedAt first. Callers must invoke this as the last step of an index run
// (§4.8 step 7): a crash before this point leaves the prior manifest intact.
func (m *Manifest) Save(path string) error {
	m.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
