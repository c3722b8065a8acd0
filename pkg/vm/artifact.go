package vm

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/vmls/pkg/diff"
	"gitlab.com/tozd/go/errors"
)

var ErrArtifactWrite = errors.New("writing config artifact")

const artifactSuffix = "_config.xml"

// ArtifactStore keeps the latest configuration document of each domain on disk,
// one file per name, overwritten by every observation.
type ArtifactStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// ArtifactWrite describes one stored snapshot.
type ArtifactWrite struct {
	Path    string
	Changed bool
	Diff    string
}

// NewArtifactStore stores artifacts in dir, or the OS temp dir when dir is empty.
func NewArtifactStore(dir string) *ArtifactStore {
	if dir == "" {
		dir = os.TempDir()
	}
	return &ArtifactStore{dir: dir, locks: make(map[string]*sync.Mutex)}
}

func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Path is <dir>/<name>_config.xml. Path separators in name are replaced so the
// artifact never leaves dir.
func (s *ArtifactStore) Path(name string) string {
	safe := strings.NewReplacer("/", "_", `\`, "_", string(os.PathSeparator), "_").Replace(name)
	return filepath.Join(s.dir, safe+artifactSuffix)
}

func (s *ArtifactStore) lock(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	return l
}

// Write stores content for name and reports whether it differs from the previous snapshot.
// Writes for the same name are serialized.
func (s *ArtifactStore) Write(ctx context.Context, name, content string) (*ArtifactWrite, error) {
	logger := zerolog.Ctx(ctx)

	l := s.lock(name)
	l.Lock()
	defer l.Unlock()

	path := s.Path(name)
	out := &ArtifactWrite{Path: path}

	previous, err := os.ReadFile(path)
	switch {
	case err == nil:
		if string(previous) != content {
			out.Changed = true
			out.Diff = diff.Unified(string(previous), content, path+" (previous)", path)
		}
	case !errors.Is(err, os.ErrNotExist):
		logger.Warn().Err(err).Str("path", path).Msg("Reading previous config artifact failed")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, errors.Errorf("%w: creating %s: %s", ErrArtifactWrite, s.dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, errors.Errorf("%w: %s: %s", ErrArtifactWrite, path, err)
	}

	if out.Changed {
		logger.Debug().Str("domain", name).Str("path", path).Str("diff", out.Diff).Msg("Domain configuration changed")
	}

	return out, nil
}
