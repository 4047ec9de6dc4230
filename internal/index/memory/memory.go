// Package memory implements an exact brute-force cosine index persisted as
// one folder per database, the moral equivalent of a flat on-disk index.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mtrtrdev/localQA/internal/index"
	"github.com/mtrtrdev/localQA/internal/model"
	errs "github.com/mtrtrdev/localQA/internal/pkg/errors"
)

const (
	entriesFile = "entries.json"
	metaFile    = "meta.json"
)

type meta struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	CreatedAt int64  `json:"created_at"`
}

type Provider struct {
	dir       string
	dimension int

	mu   sync.Mutex
	open map[string]*Index
}

type providerConfig struct {
	Dir string `json:"dir"`
}

func NewProvider(args interface{}, dimension int) (*Provider, error) {
	cfg := &providerConfig{}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("encode index config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode index config: %w", err)
		}
	}
	if cfg.Dir == "" {
		cfg.Dir = "./index"
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Provider{dir: cfg.Dir, dimension: dimension, open: make(map[string]*Index)}, nil
}

func (p *Provider) Create(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	dir := filepath.Join(p.dir, name)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%w: database %q already exists", errs.ErrConflict, name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	idx := &Index{
		dir:      dir,
		meta:     meta{Name: name, Dimension: p.dimension, CreatedAt: time.Now().Unix()},
		entries:  make(map[string]model.IndexEntry),
		bySource: make(map[string]map[int]string),
	}
	if err := idx.persistLocked(); err != nil {
		_ = os.RemoveAll(dir)
		return err
	}
	p.open[name] = idx
	return nil
}

func (p *Provider) Open(ctx context.Context, name string) (index.Index, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx, ok := p.open[name]; ok {
		return idx, nil
	}
	dir := filepath.Join(p.dir, name)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("%w: database %q", errs.ErrNotFound, name)
	}
	idx, err := load(dir)
	if err != nil {
		return nil, err
	}
	if idx.meta.Dimension != p.dimension {
		return nil, fmt.Errorf("%w: database %q stores %d-dim vectors, configured model produces %d",
			errs.ErrDimensionMismatch, name, idx.meta.Dimension, p.dimension)
	}
	p.open[name] = idx
	return idx, nil
}

func (p *Provider) List(ctx context.Context) ([]model.DatabaseInfo, error) {
	dirents, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, err
	}
	infos := make([]model.DatabaseInfo, 0, len(dirents))
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		idx, err := p.Open(ctx, d.Name())
		if err != nil {
			// a corrupt folder should not hide the remaining databases
			continue
		}
		count, _ := idx.Count(ctx)
		mIdx := idx.(*Index)
		infos = append(infos, model.DatabaseInfo{
			Name:       mIdx.meta.Name,
			ChunkCount: count,
			CreatedAt:  mIdx.meta.CreatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (p *Provider) Drop(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	dir := filepath.Join(p.dir, name)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: database %q", errs.ErrNotFound, name)
	}
	delete(p.open, name)
	return os.RemoveAll(dir)
}

// Index holds all entries of one database in memory, mirrored to disk on
// every mutation. bySource keys chunks by (source, sequence) for O(window)
// neighbor lookups.
type Index struct {
	dir  string
	meta meta

	mu       sync.RWMutex
	entries  map[string]model.IndexEntry
	bySource map[string]map[int]string
}

func load(dir string) (*Index, error) {
	var m meta
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	var list []model.IndexEntry
	data, err = os.ReadFile(filepath.Join(dir, entriesFile))
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	idx := &Index{
		dir:      dir,
		meta:     m,
		entries:  make(map[string]model.IndexEntry, len(list)),
		bySource: make(map[string]map[int]string),
	}
	for _, e := range list {
		idx.entries[e.ChunkID] = e
		idx.link(e)
	}
	return idx, nil
}

func (x *Index) link(e model.IndexEntry) {
	seqs := x.bySource[e.SourceID]
	if seqs == nil {
		seqs = make(map[int]string)
		x.bySource[e.SourceID] = seqs
	}
	seqs[e.SequenceIndex] = e.ChunkID
}

func (x *Index) Upsert(ctx context.Context, entries []model.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if len(e.Embedding) != x.meta.Dimension {
			return fmt.Errorf("%w: entry %s has %d dims, index has %d",
				errs.ErrDimensionMismatch, e.ChunkID, len(e.Embedding), x.meta.Dimension)
		}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, e := range entries {
		x.entries[e.ChunkID] = e
		x.link(e)
	}
	return x.persistLocked()
}

func (x *Index) Search(ctx context.Context, vector []float32, k int) ([]model.ScoredChunk, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.entries) == 0 {
		return nil, fmt.Errorf("%w: database %q", errs.ErrEmptyIndex, x.meta.Name)
	}
	if len(vector) != x.meta.Dimension {
		return nil, fmt.Errorf("%w: query vector has %d dims, index has %d",
			errs.ErrDimensionMismatch, len(vector), x.meta.Dimension)
	}
	if k <= 0 {
		k = 1
	}
	scored := make([]model.ScoredChunk, 0, len(x.entries))
	for _, e := range x.entries {
		scored = append(scored, model.ScoredChunk{
			Chunk: e.Chunk,
			Score: index.CosineSimilarity(vector, e.Embedding),
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.ChunkID < scored[j].Chunk.ChunkID
	})
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func (x *Index) Neighbors(ctx context.Context, sourceID string, seq, window int) ([]model.Chunk, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	seqs := x.bySource[sourceID]
	if seqs == nil {
		return nil, nil
	}
	var out []model.Chunk
	for i := seq - window; i <= seq+window; i++ {
		if i < 0 {
			continue
		}
		id, ok := seqs[i]
		if !ok {
			continue
		}
		out = append(out, x.entries[id].Chunk)
	}
	return out, nil
}

func (x *Index) DeleteAll(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries = make(map[string]model.IndexEntry)
	x.bySource = make(map[string]map[int]string)
	return x.persistLocked()
}

func (x *Index) ListEntries(ctx context.Context) ([]model.IndexEntry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]model.IndexEntry, 0, len(x.entries))
	for _, e := range x.entries {
		out = append(out, e)
	}
	// stable iteration for a given index state
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkID < out[j].ChunkID })
	return out, nil
}

func (x *Index) Count(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries), nil
}

// persistLocked writes both files via rename so a crash mid-write leaves
// the previous state intact.
func (x *Index) persistLocked() error {
	list := make([]model.IndexEntry, 0, len(x.entries))
	for _, e := range x.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ChunkID < list[j].ChunkID })
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	if err := writeAtomic(filepath.Join(x.dir, entriesFile), data); err != nil {
		return err
	}
	metaData, err := json.Marshal(x.meta)
	if err != nil {
		return err
	}
	return writeAtomic(filepath.Join(x.dir, metaFile), metaData)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
