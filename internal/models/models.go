package models

// Record is one corpus line: a declaration and the text used to embed it.
type Record struct {
	ID   int    `json:"id"`
	Decl string `json:"decl"`
	Type string `json:"type"`
	Doc  string `json:"doc"`
	Path string `json:"path"`
	Text string `json:"text"`
}

// EmbedText joins the type signature and the first doc line.
func EmbedText(typ, doc string) string {
	if doc == "" {
		return typ
	}
	return typ + "\n" + doc
}

// Hit is a single nearest-neighbour result. Distance is the squared
// Euclidean distance between the normalized query and the stored vector.
type Hit struct {
	Row      int     `json:"row"`
	Name     string  `json:"name"`
	Distance float32 `json:"distance"`
}

// DetailedHit is a Hit joined with its catalog record.
type DetailedHit struct {
	Hit
	Record *Record `json:"record,omitempty"`
}

// Stage names a step of the indexing workflow.
type Stage string

const (
	StageCount   Stage = "count"
	StageEmbed   Stage = "embed"
	StageInsert  Stage = "insert"
	StageNames   Stage = "names"
	StageCatalog Stage = "catalog"
	StageDone    Stage = "done"
)

// Progress represents streaming progress updates for embedding and index builds
type Progress struct {
	Stage   Stage
	Done    int
	Total   int
	Message string
	Percent float32
}

// NewProgress fills Percent from Done and Total.
func NewProgress(stage Stage, done, total int) Progress {
	p := Progress{Stage: stage, Done: done, Total: total}
	if total > 0 {
		p.Percent = float32(done) / float32(total)
	}
	return p
}

// ProgressFunc receives progress updates. A nil ProgressFunc is ignored.
type ProgressFunc func(Progress)

// Report calls f when it is non-nil.
func (f ProgressFunc) Report(p Progress) {
	if f != nil {
		f(p)
	}
}
