package reportgen

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/buildsight/buildsight/report"
)

// ErrArtefactNotFound indicates an unknown or expired report id.
var ErrArtefactNotFound = errors.New("reportgen: report not found")

// Artefact describes a stored report.
type Artefact struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	FileExtension string `json:"fileExtension"`
	ContentType   string `json:"contentType"`
	Path          string `json:"-"`
}

// Storage keeps asynchronously generated reports on disk as <id>.<ext> with
// a <id>.json metadata sidecar.
type Storage struct {
	dir string
}

// NewStorage constructs a storage rooted at dir, defaulting to the temp dir.
func NewStorage(dir string) *Storage {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "buildsight-reports")
	}
	return &Storage{dir: dir}
}

// Dir returns the storage root.
func (s *Storage) Dir() string {
	return s.dir
}

// Save writes out and returns its artefact.
func (s *Storage) Save(out report.Output) (Artefact, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Artefact{}, err
	}
	a := Artefact{
		ID:            uuid.NewString(),
		Filename:      out.Filename,
		FileExtension: out.FileExtension,
		ContentType:   out.ContentType,
	}
	a.Path = filepath.Join(s.dir, fmt.Sprintf("%s.%s", a.ID, a.FileExtension))
	if err := os.WriteFile(a.Path, out.Buffer, 0o600); err != nil {
		return Artefact{}, err
	}
	meta, err := json.Marshal(a)
	if err != nil {
		return Artefact{}, err
	}
	if err := os.WriteFile(filepath.Join(s.dir, a.ID+".json"), meta, 0o600); err != nil {
		return Artefact{}, err
	}
	return a, nil
}

// Open resolves a stored artefact by id.
func (s *Storage) Open(id string) (Artefact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Artefact{}, ErrArtefactNotFound
	}
	raw, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return Artefact{}, ErrArtefactNotFound
	}
	if err != nil {
		return Artefact{}, err
	}
	var a Artefact
	if err := json.Unmarshal(raw, &a); err != nil {
		return Artefact{}, fmt.Errorf("reportgen: artefact metadata: %w", err)
	}
	a.ID = id
	a.Path = filepath.Join(s.dir, fmt.Sprintf("%s.%s", id, filepath.Base(a.FileExtension)))
	if _, err := os.Stat(a.Path); errors.Is(err, os.ErrNotExist) {
		return Artefact{}, ErrArtefactNotFound
	}
	return a, nil
}
