package store

import "time"

// ProvenanceKind is the closed set of provenance record kinds.
type ProvenanceKind string

const (
	KindDocument         ProvenanceKind = "DOCUMENT"
	KindOCRResult        ProvenanceKind = "OCR_RESULT"
	KindChunk            ProvenanceKind = "CHUNK"
	KindImage            ProvenanceKind = "IMAGE"
	KindVLMDescription   ProvenanceKind = "VLM_DESCRIPTION"
	KindEmbedding        ProvenanceKind = "EMBEDDING"
	KindExtraction       ProvenanceKind = "EXTRACTION"
	KindFormFill         ProvenanceKind = "FORM_FILL"
	KindEntityExtraction ProvenanceKind = "ENTITY_EXTRACTION"
	KindComparison       ProvenanceKind = "COMPARISON"
	KindClustering       ProvenanceKind = "CLUSTERING"
	KindKnowledgeGraph   ProvenanceKind = "KNOWLEDGE_GRAPH"
	KindCorpusIntel      ProvenanceKind = "CORPUS_INTELLIGENCE"
)

// Provenance is one node in the content-addressed provenance DAG.
type Provenance struct {
	ID                string
	Kind              ProvenanceKind
	SourceKind        ProvenanceKind
	SourcePath        *string
	SourceID          *string
	RootDocumentID    string
	ContentHash       string
	InputHash         *string
	FileHash          *string
	Processor         string
	ProcessorVersion  string
	ProcessingParams  string // encoded JSON
	ParentID          *string
	ParentIDs         []string
	ChainDepth        int
	CreatedAt         time.Time
}

// DocumentStatus is the closed status enum for documents.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusComplete   DocumentStatus = "complete"
	StatusFailed     DocumentStatus = "failed"
)

// Document is a single ingested file.
type Document struct {
	ID              string
	FilePath        string
	FileName        string
	FileHash        string
	FileSize        int64
	FileType        string
	Status          DocumentStatus
	ProvenanceID    string
	Title           *string
	Author          *string
	Subject         *string
	PageCount       *int
	ErrorMessage    *string
	OCRCompletedAt  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OCRMode is the closed set of OCR fidelity modes.
type OCRMode string

const (
	OCRFast     OCRMode = "fast"
	OCRBalanced OCRMode = "balanced"
	OCRAccurate OCRMode = "accurate"
)

// OCRResult is the extracted text for one document.
type OCRResult struct {
	ID                  string
	ProvenanceID        string
	DocumentID          string
	ExtractedText       string
	TextLength          int
	Mode                OCRMode
	PageCount           int
	ProcessingDurationMS int64
	BlockLayout         *string // encoded JSON
	Extras              *string // encoded JSON
	CreatedAt           time.Time
}

// EmbeddingStatus is the closed embedding-lifecycle enum for chunks.
type EmbeddingStatus string

const (
	EmbeddingPending  EmbeddingStatus = "pending"
	EmbeddingComplete EmbeddingStatus = "complete"
	EmbeddingFailed   EmbeddingStatus = "failed"
)

// Chunk is one segment of a document's OCR text.
type Chunk struct {
	ID               string
	DocumentID       string
	OCRResultID      string
	Text             string
	TextHash         string
	ChunkIndex       int
	CharacterStart   int
	CharacterEnd     int
	PageNumber       *int
	OverlapPrevious  int
	OverlapNext      int
	ProvenanceID     string
	EmbeddingStatus  EmbeddingStatus
	CreatedAt        time.Time
}

// Image is an extracted image with its source bounding box.
type Image struct {
	ID           string
	DocumentID   string
	ProvenanceID string
	PageNumber   *int
	FilePath     string
	BoundingBox  *string // encoded JSON
	CreatedAt    time.Time
}

// Extraction is a structured extraction (e.g. form fill) over a document.
type Extraction struct {
	ID           string
	DocumentID   string
	ProvenanceID string
	ExtractorName string
	Data         string // encoded JSON
	CreatedAt    time.Time
}

// EntityType is the closed set of entity types.
type EntityType string

const (
	EntityPerson        EntityType = "person"
	EntityOrganization  EntityType = "organization"
	EntityDate          EntityType = "date"
	EntityAmount        EntityType = "amount"
	EntityCaseNumber    EntityType = "case_number"
	EntityLocation      EntityType = "location"
	EntityStatute       EntityType = "statute"
	EntityExhibit       EntityType = "exhibit"
	EntityMedication    EntityType = "medication"
	EntityDiagnosis     EntityType = "diagnosis"
	EntityMedicalDevice EntityType = "medical_device"
	EntityOther         EntityType = "other"
)

// Entity is a single extracted surface form.
type Entity struct {
	ID             string
	DocumentID     string
	EntityType     EntityType
	RawText        string
	NormalizedText string
	Confidence     float64
	Metadata       *string // encoded JSON
	ProvenanceID   string
	CreatedAt      time.Time
}

// EntityMention locates an occurrence of an entity within a document.
type EntityMention struct {
	ID             string
	EntityID       string
	DocumentID     string
	ChunkID        *string
	PageNumber     *int
	CharacterStart *int
	CharacterEnd   *int
	ContextText    string
	ProvenanceID   string
	CreatedAt      time.Time
}

// KnowledgeNode is a resolved entity cluster in the graph.
type KnowledgeNode struct {
	ID              string
	EntityType      EntityType
	CanonicalName   string
	NormalizedName  string
	Aliases         []string
	DocumentCount   int
	MentionCount    int
	EdgeCount       int
	AvgConfidence   float64
	ImportanceScore *float64
	ResolutionType  *string
	ProvenanceID    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RelationshipType is the set of typed edges between nodes; the closed set
// is extensible by migration.
type RelationshipType string

const (
	RelCoMentioned RelationshipType = "co_mentioned"
	RelCoLocated   RelationshipType = "co_located"
	RelWorksAt     RelationshipType = "works_at"
	RelRepresents  RelationshipType = "represents"
	RelLocatedIn   RelationshipType = "located_in"
	RelFiledIn     RelationshipType = "filed_in"
	RelCites       RelationshipType = "cites"
	RelReferences  RelationshipType = "references"
	RelPartyTo     RelationshipType = "party_to"
	RelRelatedTo   RelationshipType = "related_to"
	RelPrecedes    RelationshipType = "precedes"
	RelOccurredAt  RelationshipType = "occurred_at"
	RelDiagnosedWith RelationshipType = "diagnosed_with"
	RelTreatedWith RelationshipType = "treated_with"
	RelSupervisedBy RelationshipType = "supervised_by"
)

// KnowledgeEdge is a typed, weighted relationship between two nodes.
type KnowledgeEdge struct {
	ID                string
	SourceNodeID      string
	TargetNodeID      string
	RelationshipType  RelationshipType
	Weight            float64
	EvidenceCount     int
	DocumentIDs       []string
	Metadata          string // encoded JSON: evidence, source, synthesis_level, shared_chunk_ids...
	ValidFrom         *time.Time
	ValidUntil        *time.Time
	NormalizedWeight  *float64
	ContradictionCount *int
	ProvenanceID      string
	CreatedAt         time.Time
}

// NodeEntityLink resolves one entity to exactly one node (UNIQUE on
// entity_id).
type NodeEntityLink struct {
	ID               string
	NodeID           string
	EntityID         string
	DocumentID       string
	SimilarityScore  float64
	ResolutionMethod string
	CreatedAt        time.Time
}

// Cluster is one cluster within a clustering run.
type Cluster struct {
	ID         string
	RunID      string
	ClusterIndex int
	Centroid   *string // encoded JSON vector
	Label      *string
	Coherence  *float64
	CreatedAt  time.Time
}

// DocumentCluster links a document to a cluster within a run.
type DocumentCluster struct {
	ID         string
	RunID      string
	ClusterID  string
	DocumentID string
	Overlap    *float64
	CreatedAt  time.Time
}

// CorpusIntelligence is the single database-wide synthesis record: a
// summary, ranked key actors, themes, and narrative arcs, each referencing
// entities by exact canonical_name. Produced by the corpus-wide synthesis
// tier.
type CorpusIntelligence struct {
	ID           string
	Summary      string
	KeyActors    string // encoded JSON: [{name, importance}]
	Themes       string // encoded JSON: []string
	NarrativeArcs string // encoded JSON: []string
	ProvenanceID string
	CreatedAt    time.Time
}

// DocumentNarrative is the per-document synthesized narrative.
type DocumentNarrative struct {
	ID           string
	DocumentID   string
	Narrative    string
	ProvenanceID string
	CreatedAt    time.Time
}

// RoleScope distinguishes a database-wide role assignment from a
// document-scoped one.
type RoleScope string

const (
	ScopeDatabase RoleScope = "database"
	ScopeDocument RoleScope = "document"
)

// EntityRole is one role classification for a node.
type EntityRole struct {
	ID              string
	NodeID          string
	Scope           RoleScope
	DocumentID      *string
	Role            string
	Theme           *string
	ImportanceRank  *int
	ContextSummary  string
	ProvenanceID    string
	CreatedAt       time.Time
}

// CensusEntry is one flattened row of the entity census fed to Tier 1:
// a node with its aliases, ranked within its entity type.
type CensusEntry struct {
	EntityType      EntityType
	CanonicalName   string
	Aliases         []string
	ImportanceScore float64
	MentionCount    int
}
