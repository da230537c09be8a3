package commands

import (
	"github.com/0x5457/decl-index/internal/config/configfx"
	"github.com/spf13/cobra"
)

// configFlags are command line overrides of the loaded configuration. Only
// flags the user actually set are applied.
type configFlags struct {
	corpus   string
	matrix   string
	prefix   string
	backend  string
	provider string
	model    string

	dimension      int
	batchSize      int
	chunkSize      int
	m              int
	efConstruction int
	efSearch       int
}

func (f *configFlags) addCorpus(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.corpus, "corpus", "", "corpus JSONL path")
}

func (f *configFlags) addMatrix(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.matrix, "matrix", "", "embedding matrix path")
}

func (f *configFlags) addIndex(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.prefix, "prefix", "", "index artifact prefix")
	cmd.Flags().StringVar(&f.backend, "backend", "", "index backend (hnsw, sqlvec, qdrant, flat)")
}

func (f *configFlags) addProvider(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.provider, "provider", "", "embedding provider (openai, api, local)")
	cmd.Flags().StringVar(&f.model, "model", "", "embedding model")
	cmd.Flags().IntVar(&f.dimension, "dimension", 0, "embedding dimension (0 follows the model)")
}

func (f *configFlags) addBuildParams(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.m, "m", 0, "graph degree")
	cmd.Flags().IntVar(&f.efConstruction, "ef-construction", 0, "build-time candidate list size")
	cmd.Flags().IntVar(&f.efSearch, "ef-search", 0, "query-time candidate list size")
	cmd.Flags().IntVar(&f.chunkSize, "chunk-size", 0, "rows inserted per chunk")
}

func (f *configFlags) apply(cmd *cobra.Command) func(*configfx.Config) {
	return func(cfg *configfx.Config) {
		set := cmd.Flags().Changed
		strs := []struct {
			name string
			src  string
			dst  *string
		}{
			{"corpus", f.corpus, &cfg.CorpusPath},
			{"matrix", f.matrix, &cfg.MatrixPath},
			{"prefix", f.prefix, &cfg.Index.Prefix},
			{"backend", f.backend, &cfg.Index.Backend},
			{"provider", f.provider, &cfg.Embedding.Provider},
			{"model", f.model, &cfg.Embedding.Model},
		}
		for _, s := range strs {
			if set(s.name) {
				*s.dst = s.src
			}
		}
		ints := []struct {
			name string
			src  int
			dst  *int
		}{
			{"dimension", f.dimension, &cfg.Embedding.Dimension},
			{"batch-size", f.batchSize, &cfg.Embedding.BatchSize},
			{"chunk-size", f.chunkSize, &cfg.Index.ChunkSize},
			{"m", f.m, &cfg.Index.M},
			{"ef-construction", f.efConstruction, &cfg.Index.EfConstruction},
			{"ef-search", f.efSearch, &cfg.Index.EfSearch},
		}
		for _, i := range ints {
			if set(i.name) && i.src > 0 {
				*i.dst = i.src
			}
		}
	}
}
