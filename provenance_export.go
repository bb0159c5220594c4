package provkg

import (
	"context"
	"fmt"
	"sort"

	"github.com/danvers-labs/provkg/store"
)

// ExportScope selects how much of the provenance ledger an export covers.
type ExportScope string

const (
	// ExportDocument covers one document's full chain plus every row
	// derived from it, grouped by kind.
	ExportDocument ExportScope = "document"

	// ExportDatabase covers every document currently in the store, each
	// exported the same way as ExportDocument.
	ExportDatabase ExportScope = "database"

	// ExportAll is ExportDatabase plus any provenance records that are
	// their own root (graph-level and database-wide synthesis records
	// that are not chained under a single document).
	ExportAll ExportScope = "all"
)

// ProvenanceExport is the JSON export shape: one entry per document root,
// with its derived rows grouped by provenance kind.
type ProvenanceExport struct {
	Scope     ExportScope                             `json:"scope"`
	Documents []DocumentProvenanceExport               `json:"documents"`
	Orphans   []*store.Provenance                      `json:"orphans,omitempty"`
}

// DocumentProvenanceExport is the per-document unit of a provenance export.
type DocumentProvenanceExport struct {
	DocumentID string                            `json:"document_id"`
	Records    map[string][]*store.Provenance    `json:"records_by_kind"`
}

// ExportProvenance builds a JSON-ready provenance export. documentID is
// required for ExportDocument and ignored otherwise.
func (e *engine) ExportProvenance(ctx context.Context, scope ExportScope, documentID string) (*ProvenanceExport, error) {
	switch scope {
	case ExportDocument:
		doc, err := e.exportOneDocument(ctx, documentID)
		if err != nil {
			return nil, err
		}
		return &ProvenanceExport{Scope: scope, Documents: []DocumentProvenanceExport{*doc}}, nil
	case ExportDatabase, ExportAll:
		docs, err := e.store.ListDocuments(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("provkg: export: listing documents: %w", err)
		}
		out := &ProvenanceExport{Scope: scope}
		seen := make(map[string]bool, len(docs))
		for _, d := range docs {
			exp, err := e.exportOneDocument(ctx, d.ID)
			if err != nil {
				return nil, err
			}
			out.Documents = append(out.Documents, *exp)
			seen[d.ID] = true
		}
		if scope == ExportAll {
			orphans, err := e.orphanProvenance(ctx, seen)
			if err != nil {
				return nil, err
			}
			out.Orphans = orphans
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown export scope %q", ErrInvalidConfig, scope)
	}
}

func (e *engine) exportOneDocument(ctx context.Context, documentID string) (*DocumentProvenanceExport, error) {
	if documentID == "" {
		return nil, ErrDocumentNotFound
	}
	records, err := e.store.ByRoot(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("provkg: export: loading chain for %s: %w", documentID, err)
	}
	if len(records) == 0 {
		return nil, ErrDocumentNotFound
	}
	grouped := make(map[string][]*store.Provenance)
	for _, r := range records {
		grouped[string(r.Kind)] = append(grouped[string(r.Kind)], r)
	}
	return &DocumentProvenanceExport{DocumentID: documentID, Records: grouped}, nil
}

// orphanProvenance finds provenance records whose root_document_id is not
// one of the store's documents — graph-build and database-wide synthesis
// runs mint their own root rather than chaining under a single document.
func (e *engine) orphanProvenance(ctx context.Context, knownDocuments map[string]bool) ([]*store.Provenance, error) {
	var out []*store.Provenance
	roots, err := e.store.DistinctProvenanceRoots(ctx)
	if err != nil {
		return nil, fmt.Errorf("provkg: export: listing provenance roots: %w", err)
	}
	for _, rootID := range roots {
		if knownDocuments[rootID] {
			continue
		}
		records, err := e.store.ByRoot(ctx, rootID)
		if err != nil {
			return nil, fmt.Errorf("provkg: export: loading orphan root %s: %w", rootID, err)
		}
		out = append(out, records...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainDepth < out[j].ChainDepth })
	return out, nil
}

// ProvActivity is one prov:Activity in the W3C-PROV export: a processor
// that produced one or more prov:Entity records.
type ProvActivity struct {
	ID       string   `json:"id"`
	Produced []string `json:"produced"`
}

// ProvDocument is the W3C-PROV export shape: entities keyed by provenance
// id, activities keyed by processor name, and derivation edges.
type ProvDocument struct {
	Entities    map[string]ProvEntity `json:"entity"`
	Activities  map[string]ProvActivity `json:"activity"`
	Derivations []ProvDerivation      `json:"wasDerivedFrom"`
}

// ProvEntity is one prov:Entity: a single provenance-ledger row.
type ProvEntity struct {
	Kind        string `json:"kind"`
	ContentHash string `json:"content_hash"`
	GeneratedBy string `json:"wasGeneratedBy"`
}

// ProvDerivation is one prov:wasDerivedFrom edge between two entities.
type ProvDerivation struct {
	Entity   string `json:"entity"`
	Ancestor string `json:"ancestor"`
}

// ToPROV converts a JSON provenance export into its W3C-PROV equivalent:
// every provenance record becomes a prov:Entity, its processor becomes a
// prov:Activity, and its parent link becomes a prov:wasDerivedFrom edge.
func (pe *ProvenanceExport) ToPROV() *ProvDocument {
	doc := &ProvDocument{
		Entities:   make(map[string]ProvEntity),
		Activities: make(map[string]ProvActivity),
	}
	addRecord := func(r *store.Provenance) {
		doc.Entities[r.ID] = ProvEntity{Kind: string(r.Kind), ContentHash: r.ContentHash, GeneratedBy: r.Processor}
		act := doc.Activities[r.Processor]
		act.ID = r.Processor
		act.Produced = append(act.Produced, r.ID)
		doc.Activities[r.Processor] = act
		if r.ParentID != nil {
			doc.Derivations = append(doc.Derivations, ProvDerivation{Entity: r.ID, Ancestor: *r.ParentID})
		}
		for _, parentID := range r.ParentIDs {
			if r.ParentID != nil && parentID == *r.ParentID {
				continue
			}
			doc.Derivations = append(doc.Derivations, ProvDerivation{Entity: r.ID, Ancestor: parentID})
		}
	}
	for _, d := range pe.Documents {
		for _, records := range d.Records {
			for _, r := range records {
				addRecord(r)
			}
		}
	}
	for _, r := range pe.Orphans {
		addRecord(r)
	}
	return doc
}
