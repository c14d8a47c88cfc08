package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"BoostLab/internal/domain/models"
	domrepo "BoostLab/internal/domain/repository"
	applogger "BoostLab/pkg/logger"
)

const (
	modelFile    = "model.json"
	metadataFile = "metadata.yaml"
	tmpPrefix    = ".tmp-"
)

// ModelCheck decodes serialized model bytes and reports the feature count.
type ModelCheck func(data []byte) (nFeatures int, err error)

// FileArtifactStore keeps one directory per artifact under root.
type FileArtifactStore struct {
	root  string
	check ModelCheck
	l     *applogger.Logger
	mu    sync.Mutex
	now   func() time.Time
}

var _ domrepo.ArtifactStore = (*FileArtifactStore)(nil)

func NewFileArtifactStore(root string, check ModelCheck, l *applogger.Logger) (*FileArtifactStore, error) {
	if root == "" {
		return nil, fmt.Errorf("artifact root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &models.ArtifactIOError{ID: root, Op: "init", Err: err}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &FileArtifactStore{root: root, check: check, l: l, now: time.Now}, nil
}

func (s *FileArtifactStore) Root() string { return s.root }

// Save writes into a temporary sibling directory and renames it into place,
// so readers never see a half-written artifact. The stored id is returned;
// it gains a numeric suffix when the natural id is taken. The caller's artifact
// is left untouched.
func (s *FileArtifactStore) Save(ctx context.Context, in *models.ModelArtifact) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(in.Model) == 0 {
		return "", &models.ArtifactIOError{ID: in.ID, Op: "save", Err: errors.New("empty model payload")}
	}
	cp := *in
	a := &cp
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	if a.ID == "" {
		a.ID = models.ArtifactID(a.ModelType, a.CreatedAt)
	}
	a.FormatVersion = models.ArtifactFormatVersion

	meta, err := yaml.Marshal(a)
	if err != nil {
		return "", &models.ArtifactIOError{ID: a.ID, Op: "encode", Err: err}
	}

	tmp := filepath.Join(s.root, tmpPrefix+a.ID+"-"+uuid.NewString())
	if err := os.Mkdir(tmp, 0o755); err != nil {
		return "", &models.ArtifactIOError{ID: a.ID, Op: "save", Err: err}
	}
	cleanup := func() { _ = os.RemoveAll(tmp) }
	if err := writeSynced(filepath.Join(tmp, modelFile), a.Model); err != nil {
		cleanup()
		return "", &models.ArtifactIOError{ID: a.ID, Op: "save", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.freeID(a.ID)
	if id != a.ID {
		a.ID = id
		if meta, err = yaml.Marshal(a); err != nil {
			cleanup()
			return "", &models.ArtifactIOError{ID: id, Op: "encode", Err: err}
		}
	}
	if err := writeSynced(filepath.Join(tmp, metadataFile), meta); err != nil {
		cleanup()
		return "", &models.ArtifactIOError{ID: id, Op: "save", Err: err}
	}
	if err := os.Rename(tmp, filepath.Join(s.root, id)); err != nil {
		cleanup()
		return "", &models.ArtifactIOError{ID: id, Op: "commit", Err: err}
	}
	syncDir(s.root)
	s.l.Info("artifact saved",
		applogger.String("id", id),
		applogger.String("model_type", string(a.ModelType)),
		applogger.Int("bytes", len(a.Model)),
	)
	return id, nil
}

func (s *FileArtifactStore) freeID(id string) string {
	candidate := id
	for n := 1; ; n++ {
		if _, err := os.Stat(filepath.Join(s.root, candidate)); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d", id, n)
	}
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// syncDir flushes the rename; not every filesystem supports it.
func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}

func validID(id string) bool {
	return id != "" && !strings.HasPrefix(id, ".") && !strings.ContainsAny(id, `/\`) && id != ".."
}

func (s *FileArtifactStore) Load(ctx context.Context, id string) (*models.ModelArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, &models.ArtifactIOError{ID: id, Op: "load", Err: models.ErrArtifactNotFound}
	}
	dir := filepath.Join(s.root, id)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, &models.ArtifactIOError{ID: id, Op: "load", Err: models.ErrArtifactNotFound}
	}
	meta, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, &models.ArtifactIOError{ID: id, Op: "load metadata", Err: err}
	}
	var a models.ModelArtifact
	if err := yaml.Unmarshal(meta, &a); err != nil {
		return nil, &models.ArtifactIOError{ID: id, Op: "decode metadata", Err: err}
	}
	if a.FormatVersion != models.ArtifactFormatVersion {
		return nil, &models.ArtifactIOError{ID: id, Op: "load",
			Err: fmt.Errorf("unsupported format version %d", a.FormatVersion)}
	}
	if a.Model, err = os.ReadFile(filepath.Join(dir, modelFile)); err != nil {
		return nil, &models.ArtifactIOError{ID: id, Op: "load model", Err: err}
	}
	if s.check != nil {
		n, err := s.check(a.Model)
		if err != nil {
			return nil, &models.ArtifactIOError{ID: id, Op: "decode model", Err: err}
		}
		if n != len(a.FeatureNames) {
			return nil, &models.ArtifactIOError{ID: id, Op: "load",
				Err: fmt.Errorf("model expects %d features, metadata lists %d", n, len(a.FeatureNames))}
		}
	}
	a.ID = id
	return &a, nil
}

// List returns committed artifact ids ordered by creation time.
func (s *FileArtifactStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, &models.ArtifactIOError{ID: s.root, Op: "list", Err: err}
	}
	type item struct {
		id string
		at time.Time
	}
	items := make([]item, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.IsDir() || !validID(e.Name()) {
			continue
		}
		meta, err := os.ReadFile(filepath.Join(s.root, e.Name(), metadataFile))
		if err != nil {
			continue
		}
		var head struct {
			CreatedAt time.Time `yaml:"created_at"`
		}
		if err := yaml.Unmarshal(meta, &head); err != nil {
			s.l.Warn("skipping unreadable artifact", applogger.String("id", e.Name()), applogger.Error(err))
			continue
		}
		items = append(items, item{id: e.Name(), at: head.CreatedAt})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].at.Equal(items[j].at) {
			return items[i].at.Before(items[j].at)
		}
		return items[i].id < items[j].id
	})
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids, nil
}

func (s *FileArtifactStore) Latest(ctx context.Context) (*models.ModelArtifact, error) {
	ids, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, &models.ArtifactIOError{ID: "latest", Op: "load", Err: models.ErrArtifactNotFound}
	}
	return s.Load(ctx, ids[len(ids)-1])
}
