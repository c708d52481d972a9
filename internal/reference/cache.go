package reference

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/patrickmn/go-cache"

	"surveyflow/pkg/metrics"
)

type cachedTable struct {
	table   *Table
	modTime time.Time
	size    int64
}

// CachedLoader reuses a loaded table while the file's mtime and size are unchanged.
// The TTL bounds how long an entry lives even when the file looks untouched.
type CachedLoader struct {
	next    Loader
	cache   *cache.Cache
	metrics *metrics.Metrics
}

func NewCachedLoader(next Loader, ttl time.Duration, m *metrics.Metrics) *CachedLoader {
	return &CachedLoader{
		next:    next,
		cache:   cache.New(ttl, 2*ttl),
		metrics: m,
	}
}

func (l *CachedLoader) Load(ctx context.Context, path string) (*Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		l.cache.Delete(path)
		if errors.Is(err, fs.ErrNotExist) {
			l.metrics.IncReferenceLoad("not_found")
			return nil, notFound(path)
		}
		return nil, fmt.Errorf("failed to stat reference file %s: %w", path, err)
	}

	if v, ok := l.cache.Get(path); ok {
		entry := v.(cachedTable)
		if entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
			l.metrics.IncReferenceLoad("cache_hit")
			return entry.table, nil
		}
	}

	table, err := l.next.Load(ctx, path)
	if err != nil {
		l.cache.Delete(path)
		return nil, err
	}

	l.cache.Set(path, cachedTable{
		table:   table,
		modTime: info.ModTime(),
		size:    info.Size(),
	}, cache.DefaultExpiration)

	return table, nil
}
