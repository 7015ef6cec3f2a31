package domain

import "time"

// SourceALSInfo tags every chunk crawled from the ALS information site.
const SourceALSInfo = "als_info"

type Chunk struct {
	ID          string        `json:"id"`
	URL         string        `json:"url"`
	ChunkNumber int           `json:"chunk_number"`
	Title       string        `json:"title"`
	Summary     string        `json:"summary"`
	Content     string        `json:"content"`
	Metadata    ChunkMetadata `json:"metadata"`
	Embedding   []float32     `json:"embedding,omitempty"`
}

type ChunkMetadata struct {
	Source    string    `json:"source"`
	ChunkSize int       `json:"chunk_size"`
	CrawledAt time.Time `json:"crawled_at"`
	URLPath   string    `json:"url_path"`
}

type ScoredChunk struct {
	Chunk      Chunk
	Similarity float64
}

// Filter restricts store queries to one source partition. An empty Source matches all rows.
type Filter struct {
	Source string
}

func (f Filter) Matches(c Chunk) bool {
	return f.Source == "" || c.Metadata.Source == f.Source
}

// Enrichment is what the enricher derives for a single chunk.
type Enrichment struct {
	Title     string
	Summary   string
	Embedding []float32
}

type CrawlTarget struct {
	URL  string
	Kept bool
	Rule string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type ConversationTurn struct {
	Role      Role   `json:"role"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
}

// StoreStatus summarises what a document store currently holds.
type StoreStatus struct {
	TotalChunks  int
	SampleTitles []string
	TestResults  []ScoredChunk
}
