package workflow

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/waabox/builddeck/internal/domain"
)

// cacheSize is far above the artifact count of any build, so entries are
// never evicted during a session.
const cacheSize = 4096

// FileFetcher fetches one artifact file.
type FileFetcher interface {
	GetBuildFile(ctx context.Context, ownerID string, id domain.BuildID, relativePath string) (string, error)
}

// FileCache holds the content of a build's files, keyed by relative path.
// A path is fetched at most once; concurrent requests for it share the fetch.
type FileCache struct {
	fetcher FileFetcher
	ownerID string
	buildID domain.BuildID
	files   *lru.Cache[string, string]
	group   singleflight.Group
}

// NewFileCache creates an empty cache for one build.
func NewFileCache(fetcher FileFetcher, ownerID string, id domain.BuildID) *FileCache {
	files, _ := lru.New[string, string](cacheSize)
	return &FileCache{fetcher: fetcher, ownerID: ownerID, buildID: id, files: files}
}

// BuildID returns the build whose files are cached.
func (c *FileCache) BuildID() domain.BuildID {
	return c.buildID
}

// Peek returns cached content without fetching.
func (c *FileCache) Peek(path string) (string, bool) {
	return c.files.Get(path)
}

// Len returns the number of cached files.
func (c *FileCache) Len() int {
	return c.files.Len()
}

// Get returns the content of path, fetching it on first use.
func (c *FileCache) Get(ctx context.Context, path string) (string, error) {
	if content, ok := c.files.Get(path); ok {
		return content, nil
	}
	v, err, _ := c.group.Do(path, func() (interface{}, error) {
		if content, ok := c.files.Get(path); ok {
			return content, nil
		}
		content, err := c.fetcher.GetBuildFile(ctx, c.ownerID, c.buildID, path)
		if err != nil {
			return "", err
		}
		c.files.Add(path, content)
		return content, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Prefetch fetches every path with at most limit requests in flight.
// A failed file does not stop the others; failures are returned per path.
func (c *FileCache) Prefetch(ctx context.Context, paths []string, limit int) map[string]error {
	if limit < 1 {
		limit = 1
	}
	var mu sync.Mutex
	failures := make(map[string]error)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, p := range paths {
		g.Go(func() error {
			if _, err := c.Get(gctx, p); err != nil {
				mu.Lock()
				failures[p] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failures
}
