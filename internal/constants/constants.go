package constants

import "time"

const (
	DefaultCorpusPath = "datasets/type_doc.jsonl"
	DefaultMatrixPath = "datasets/vecs.f32"
	DefaultPrefix     = "datasets/mathlib4_hnsw"

	DefaultProvider  = "openai"
	DefaultModel     = "text-embedding-3-large"
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultEmbedURL  = "http://localhost:8000/embed"
	LargeModelDim    = 3072
	DefaultModelDim  = 1536
	DefaultBatchSize = 2048
	// MaxEmbedBatch is the provider's hard limit on inputs per request.
	MaxEmbedBatch = 2048
	// DefaultTokensPerMinute is the provider budget per rate window.
	DefaultTokensPerMinute = 350_000
	RateWindow             = 60 * time.Second

	DefaultBackend        = "hnsw"
	DefaultM              = 32
	DefaultEfConstruction = 200
	DefaultEfSearch       = 64
	DefaultChunkSize      = 4096
	DefaultTopK           = 15

	DefaultQdrantAddr = "localhost:6334"

	NamesExt    = ".names.json"
	ManifestExt = ".manifest.json"
	CatalogExt  = ".catalog.db"
	// MatrixInfoExt is appended to the matrix path, not to the index prefix.
	MatrixInfoExt = ".json"
)
