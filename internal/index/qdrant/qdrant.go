// Package qdrant backs the vector index with a qdrant server over gRPC.
// Each named database maps to one collection under a shared prefix;
// point ids are UUIDs derived from the chunk id so upserts stay
// idempotent.
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/mtrtrdev/localQA/internal/index"
	"github.com/mtrtrdev/localQA/internal/model"
	errs "github.com/mtrtrdev/localQA/internal/pkg/errors"
)

const scrollPageSize = 256

type providerArgs struct {
	URL              string `json:"url"`
	APIKey           string `json:"api_key"`
	CollectionPrefix string `json:"collection_prefix"`
}

type Provider struct {
	client    *qdrant.Client
	prefix    string
	dimension int
}

func NewProvider(args interface{}, dimension int) (*Provider, error) {
	cfg := &providerArgs{}
	if args != nil {
		data, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("%w: encode qdrant args: %w", errs.ErrConfig, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: decode qdrant args: %w", errs.ErrConfig, err)
		}
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: qdrant url is required", errs.ErrConfig)
	}
	raw := cfg.URL
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse qdrant url: %w", errs.ErrConfig, err)
	}
	port := 6334
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("%w: invalid qdrant port: %w", errs.ErrConfig, err)
		}
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	prefix := cfg.CollectionPrefix
	if prefix == "" {
		prefix = "localqa_"
	}
	return &Provider{client: client, prefix: prefix, dimension: dimension}, nil
}

func (p *Provider) collection(name string) string {
	return p.prefix + name
}

func (p *Provider) Create(ctx context.Context, name string) error {
	exists, err := p.client.CollectionExists(ctx, p.collection(name))
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: database %q already exists", errs.ErrConflict, name)
	}
	return p.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: p.collection(name),
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(p.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (p *Provider) Open(ctx context.Context, name string) (index.Index, error) {
	exists, err := p.client.CollectionExists(ctx, p.collection(name))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: database %q", errs.ErrNotFound, name)
	}
	return &Index{client: p.client, collection: p.collection(name), dimension: p.dimension}, nil
}

func (p *Provider) List(ctx context.Context) ([]model.DatabaseInfo, error) {
	collections, err := p.client.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	var infos []model.DatabaseInfo
	for _, collection := range collections {
		if !strings.HasPrefix(collection, p.prefix) {
			continue
		}
		count, err := p.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: collection,
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			return nil, err
		}
		// qdrant keeps no creation timestamp for collections
		infos = append(infos, model.DatabaseInfo{
			Name:       strings.TrimPrefix(collection, p.prefix),
			ChunkCount: int(count),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (p *Provider) Drop(ctx context.Context, name string) error {
	exists, err := p.client.CollectionExists(ctx, p.collection(name))
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: database %q", errs.ErrNotFound, name)
	}
	return p.client.DeleteCollection(ctx, p.collection(name))
}

func (p *Provider) Close() error {
	return p.client.Close()
}

type Index struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// pointID derives a deterministic UUID so re-ingesting a document
// overwrites its points instead of duplicating them.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

func (x *Index) Upsert(ctx context.Context, entries []model.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) != x.dimension {
			return fmt.Errorf("%w: entry %s has %d dims, index has %d",
				errs.ErrDimensionMismatch, e.ChunkID, len(e.Embedding), x.dimension)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(e.ChunkID)),
			Vectors: qdrant.NewVectors(e.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"chunk_id":       e.ChunkID,
				"source_id":      e.SourceID,
				"filename":       e.Filename,
				"file_type":      string(e.FileType),
				"sequence_index": int64(e.SequenceIndex),
				"chunk_total":    int64(e.ChunkTotal),
				"char_length":    int64(e.CharLength),
				"content":        e.Text,
			}),
		})
	}
	_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	return err
}

func (x *Index) Search(ctx context.Context, vector []float32, k int) ([]model.ScoredChunk, error) {
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("%w: query vector has %d dims, index has %d",
			errs.ErrDimensionMismatch, len(vector), x.dimension)
	}
	count, err := x.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: collection %q", errs.ErrEmptyIndex, x.collection)
	}
	if k <= 0 {
		k = 1
	}
	if k > count {
		k = count
	}
	points, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.ScoredChunk, 0, len(points))
	for _, point := range points {
		out = append(out, model.ScoredChunk{
			Chunk: chunkFromPayload(point.Payload),
			Score: point.Score,
		})
	}
	// qdrant orders by score only; make ties deterministic
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.ChunkID < out[j].Chunk.ChunkID
	})
	return out, nil
}

func (x *Index) Neighbors(ctx context.Context, sourceID string, seq, window int) ([]model.Chunk, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("source_id", sourceID),
			qdrant.NewRange("sequence_index", &qdrant.Range{
				Gte: qdrant.PtrOf(float64(seq - window)),
				Lte: qdrant.PtrOf(float64(seq + window)),
			}),
		},
	}
	points, err := x.scrollAll(ctx, filter, false)
	if err != nil {
		return nil, err
	}
	out := make([]model.Chunk, 0, len(points))
	for _, point := range points {
		out = append(out, chunkFromPayload(point.Payload))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceIndex < out[j].SequenceIndex })
	return out, nil
}

// DeleteAll removes every point but keeps the collection, so a failure
// partway through cannot take the database with it.
func (x *Index) DeleteAll(ctx context.Context) error {
	_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: x.collection,
		Points:         qdrant.NewPointsSelectorFilter(&qdrant.Filter{}),
		Wait:           qdrant.PtrOf(true),
	})
	return err
}

func (x *Index) ListEntries(ctx context.Context) ([]model.IndexEntry, error) {
	points, err := x.scrollAll(ctx, nil, true)
	if err != nil {
		return nil, err
	}
	out := make([]model.IndexEntry, 0, len(points))
	for _, point := range points {
		entry := model.IndexEntry{Chunk: chunkFromPayload(point.Payload)}
		if vectors := point.Vectors.GetVector(); vectors != nil {
			entry.Embedding = vectors.Data
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkID < out[j].ChunkID })
	return out, nil
}

func (x *Index) Count(ctx context.Context) (int, error) {
	count, err := x.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: x.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (x *Index) scrollAll(ctx context.Context, filter *qdrant.Filter, withVectors bool) ([]*qdrant.RetrievedPoint, error) {
	var (
		out    []*qdrant.RetrievedPoint
		offset *qdrant.PointId
	)
	for {
		resp, err := x.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: x.collection,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			Offset:         offset,
			Filter:         filter,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(withVectors),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, resp.GetResult()...)
		offset = resp.GetNextPageOffset()
		if offset == nil {
			return out, nil
		}
	}
}

func chunkFromPayload(payload map[string]*qdrant.Value) model.Chunk {
	var ch model.Chunk
	ch.ChunkID = payload["chunk_id"].GetStringValue()
	ch.SourceID = payload["source_id"].GetStringValue()
	ch.Filename = payload["filename"].GetStringValue()
	ch.FileType = model.FileType(payload["file_type"].GetStringValue())
	ch.SequenceIndex = int(payload["sequence_index"].GetIntegerValue())
	ch.ChunkTotal = int(payload["chunk_total"].GetIntegerValue())
	ch.CharLength = int(payload["char_length"].GetIntegerValue())
	ch.Text = payload["content"].GetStringValue()
	return ch
}
