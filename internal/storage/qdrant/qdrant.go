// Package qdrant keeps vectors in a remote Qdrant collection. The local
// <prefix>.qdrant.json descriptor records where they live.
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"

	"github.com/0x5457/decl-index/internal/constants"
	"github.com/0x5457/decl-index/internal/matrix"
	"github.com/0x5457/decl-index/internal/storage"
)

const Ext = ".qdrant.json"

// Descriptor is the on-disk pointer to a built collection.
type Descriptor struct {
	Addr       string `json:"addr"`
	Collection string `json:"collection"`
	Dimension  int    `json:"dimension"`
	Rows       int    `json:"rows"`
}

// Params configure the collection's HNSW index and the query beam width.
type Params struct {
	M              int
	EfConstruction int
	EfSearch       int
}

func (p Params) withDefaults() Params {
	if p.M <= 0 {
		p.M = constants.DefaultM
	}
	if p.EfConstruction <= 0 {
		p.EfConstruction = constants.DefaultEfConstruction
	}
	if p.EfSearch <= 0 {
		p.EfSearch = constants.DefaultEfSearch
	}
	return p
}

type Factory struct {
	addr       string
	collection string
	params     Params
	dial       func(addr string) (*conn, error)
}

// NewFactory uses addr (default localhost:6334) and an optional fixed
// collection name; when empty the collection is named after the prefix.
func NewFactory(addr, collection string, p Params) *Factory {
	if addr == "" {
		addr = constants.DefaultQdrantAddr
	}
	return &Factory{addr: addr, collection: collection, params: p.withDefaults(), dial: dial}
}

func (f *Factory) Name() string              { return "qdrant" }
func (f *Factory) Path(prefix string) string { return prefix + Ext }

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// CollectionName returns the collection used for prefix.
func (f *Factory) CollectionName(prefix string) string {
	if f.collection != "" {
		return f.collection
	}
	name := unsafeName.ReplaceAllString(filepath.Base(prefix), "_")
	return strings.Trim(name, "_")
}

type conn struct {
	cc          *grpc.ClientConn
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
}

func dial(addr string) (*conn, error) {
	c, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("could not connect to Qdrant: %w", err)
	}
	return &conn{
		cc:          c,
		points:      qdrant.NewPointsClient(c),
		collections: qdrant.NewCollectionsClient(c),
	}, nil
}

func (c *conn) close() error {
	if c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Create drops and recreates the collection with Euclidean distance.
func (f *Factory) Create(ctx context.Context, prefix string, dim int) (storage.IndexWriter, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dim=%d", matrix.ErrShape, dim)
	}
	c, err := f.dial(f.addr)
	if err != nil {
		return nil, err
	}
	name := f.CollectionName(prefix)
	if _, err := c.collections.Delete(ctx, &qdrant.DeleteCollection{CollectionName: name}); err != nil {
		log.Printf("qdrant: drop collection %s: %v", name, err)
	}
	_, err = c.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Euclid,
		}),
		HnswConfig: &qdrant.HnswConfigDiff{
			M:           proto.Uint64(uint64(f.params.M)),
			EfConstruct: proto.Uint64(uint64(f.params.EfConstruction)),
		},
	})
	if err != nil {
		_ = c.close()
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &Writer{
		conn: c,
		path: f.Path(prefix),
		desc: Descriptor{Addr: f.addr, Collection: name, Dimension: dim},
	}, nil
}

// Open reads the descriptor and counts the points the collection actually
// holds; Len reports that count.
func (f *Factory) Open(ctx context.Context, prefix string, dim int) (storage.VectorIndex, error) {
	desc, err := ReadDescriptor(f.Path(prefix))
	if err != nil {
		return nil, err
	}
	if desc.Dimension != dim {
		return nil, fmt.Errorf("%w: collection %s has dimension %d, want %d", matrix.ErrShape, desc.Collection, desc.Dimension, dim)
	}
	c, err := f.dial(desc.Addr)
	if err != nil {
		return nil, err
	}
	res, err := c.points.Count(ctx, &qdrant.CountPoints{
		CollectionName: desc.Collection,
		Exact:          proto.Bool(true),
	})
	if err != nil {
		_ = c.close()
		return nil, fmt.Errorf("failed to count points in %s: %w", desc.Collection, err)
	}
	rows := int(res.GetResult().GetCount())
	if rows != desc.Rows {
		log.Printf("qdrant: collection %s holds %d points, descriptor records %d", desc.Collection, rows, desc.Rows)
	}
	return &Index{conn: c, desc: desc, rows: rows, efSearch: f.params.EfSearch}, nil
}

func ReadDescriptor(path string) (Descriptor, error) {
	var d Descriptor
	b, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("cannot open index %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &d); err != nil {
		return d, fmt.Errorf("cannot parse index %s: %w", path, err)
	}
	return d, nil
}

func WriteDescriptor(path string, d Descriptor) error {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}

func pointID(row int64) *qdrant.PointId {
	return &qdrant.PointId{PointIdOptions: &qdrant.PointId_Num{Num: uint64(row)}}
}

type Writer struct {
	*conn
	path string
	desc Descriptor
}

func (w *Writer) Add(ctx context.Context, start int64, vecs [][]float32) error {
	if start != int64(w.desc.Rows) {
		return fmt.Errorf("%w: add at row %d, next row is %d", matrix.ErrShape, start, w.desc.Rows)
	}
	points := make([]*qdrant.PointStruct, 0, len(vecs))
	for i, v := range vecs {
		if len(v) != w.desc.Dimension {
			return fmt.Errorf("%w: row %d has %d values, want %d", matrix.ErrShape, start+int64(i), len(v), w.desc.Dimension)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      pointID(start + int64(i)),
			Vectors: &qdrant.Vectors{VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: v}}},
		})
	}
	if len(points) == 0 {
		return nil
	}
	_, err := w.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: w.desc.Collection,
		Points:         points,
		Wait:           proto.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points to Qdrant: %w", err)
	}
	w.desc.Rows += len(points)
	return nil
}

// Commit writes the descriptor; the points are already durable in Qdrant.
func (w *Writer) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return WriteDescriptor(w.path, w.desc)
}

func (w *Writer) Close() error { return w.conn.close() }

type Index struct {
	*conn
	desc     Descriptor
	rows     int
	efSearch int
}

func (i *Index) Len() int { return i.rows }

func (i *Index) Search(ctx context.Context, query []float32, k int) ([]storage.Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}
	if i.rows == 0 {
		return storage.PadNeighbors(nil, k), nil
	}
	res, err := i.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: i.desc.Collection,
		Vector:         query,
		Limit:          uint64(k),
		Params:         &qdrant.SearchParams{HnswEf: proto.Uint64(uint64(max(i.efSearch, k)))},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points in Qdrant: %w", err)
	}
	hits := make([]storage.Neighbor, 0, len(res.GetResult()))
	for _, hit := range res.GetResult() {
		num, ok := hit.GetId().GetPointIdOptions().(*qdrant.PointId_Num)
		if !ok {
			continue
		}
		// Euclid scores are plain L2 distances
		d := hit.GetScore()
		hits = append(hits, storage.Neighbor{Label: int64(num.Num), Distance: d * d})
	}
	storage.SortNeighbors(hits)
	return storage.PadNeighbors(hits, k), nil
}

func (i *Index) Close() error { return i.conn.close() }
