// Package files persists entity version logs as one YAML file per entity
// on an afero filesystem. Entity data is embedded as canonical JSON.
package files

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/spf13/afero"

	"github.com/agentstation/curator/pkg/constants"
	"github.com/agentstation/curator/pkg/errors"
	"github.com/agentstation/curator/pkg/value"
	"github.com/agentstation/curator/pkg/versions"
)

const ext = ".yaml"

// Compile-time interface check.
var _ versions.Store = (*Store)(nil)

// document is the on-disk layout of one entity file.
type document struct {
	EntityID string   `json:"entity"`
	Versions []record `json:"versions"`
}

// record is one version on disk. Data is kept as canonical JSON text so
// numbers survive the YAML round trip exactly.
type record struct {
	ID        string            `json:"id"`
	EntityID  string            `json:"entityId"`
	Timestamp time.Time         `json:"timestamp"`
	Data      string            `json:"data"`
	Checksum  string            `json:"checksum"`
	Metadata  versions.Metadata `json:"metadata"`
}

func toRecord(v versions.DataVersion) (record, error) {
	data, err := value.Encode(v.Data)
	if err != nil {
		return record{}, err
	}
	return record{
		ID:        v.ID,
		EntityID:  v.EntityID,
		Timestamp: v.Timestamp,
		Data:      string(data),
		Checksum:  v.Checksum,
		Metadata:  v.Metadata,
	}, nil
}

func (r record) version() (versions.DataVersion, error) {
	data, err := value.Parse([]byte(r.Data))
	if err != nil {
		return versions.DataVersion{}, err
	}
	return versions.DataVersion{
		ID:        r.ID,
		EntityID:  r.EntityID,
		Timestamp: r.Timestamp,
		Data:      data,
		Checksum:  r.Checksum,
		Metadata:  r.Metadata,
	}, nil
}

// Store is a versions.Store over a directory of YAML files.
type Store struct {
	fs afero.Fs
}

// New creates a store on fs. A nil fs uses ~/.curator/entities on the
// host filesystem.
func New(fs afero.Fs) *Store {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(expandHome(constants.DefaultDataPath), "entities"))
	}
	return &Store{fs: fs}
}

// NewOS creates a store rooted at dir on the host filesystem.
func NewOS(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", dir, err)
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// Get implements versions.Store.
func (s *Store) Get(ctx context.Context, entityID string) ([]versions.DataVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := fileName(entityID)
	raw, err := afero.ReadFile(s.fs, name)
	if os.IsNotExist(err) {
		return []versions.DataVersion{}, nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", name, err)
	}

	js, err := yaml.YAMLToJSON(raw)
	if err != nil {
		return nil, errors.WrapSerialization(entityID, err)
	}
	var doc document
	if err := json.Unmarshal(js, &doc); err != nil {
		return nil, errors.WrapSerialization(entityID, err)
	}
	if doc.EntityID != entityID {
		return nil, errors.WrapSerialization(entityID, fmt.Errorf("file %s holds entity %q", name, doc.EntityID))
	}
	log := make([]versions.DataVersion, 0, len(doc.Versions))
	for _, r := range doc.Versions {
		v, err := r.version()
		if err != nil {
			return nil, errors.WrapSerialization(entityID, err)
		}
		log = append(log, v)
	}
	return log, nil
}

// Put implements versions.Store. The file is replaced by rename so readers
// never see a partial log.
func (s *Store) Put(ctx context.Context, entityID string, log []versions.DataVersion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(log) == 0 {
		return s.Delete(ctx, entityID)
	}

	doc := document{EntityID: entityID, Versions: make([]record, 0, len(log))}
	for _, v := range log {
		r, err := toRecord(v)
		if err != nil {
			return errors.WrapSerialization(entityID, err)
		}
		doc.Versions = append(doc.Versions, r)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return errors.WrapSerialization(entityID, err)
	}
	out, err := yaml.JSONToYAML(js)
	if err != nil {
		return errors.WrapSerialization(entityID, err)
	}

	name := fileName(entityID)
	tmp := name + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, out, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", tmp, err)
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		return errors.WrapIO("rename", name, err)
	}
	return nil
}

// Delete implements versions.Store.
func (s *Store) Delete(ctx context.Context, entityID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := fileName(entityID)
	if err := s.fs.Remove(name); err != nil && !os.IsNotExist(err) {
		return errors.WrapIO("remove", name, err)
	}
	return nil
}

// List implements versions.Store.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := afero.ReadDir(s.fs, ".")
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errors.WrapIO("list", ".", err)
	}

	ids := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(e.Name(), ext))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// fileName maps an entity id to a flat, reversible file name.
func fileName(entityID string) string {
	return url.PathEscape(entityID) + ext
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path[2:]
	}
	return filepath.Join(home, path[2:])
}
