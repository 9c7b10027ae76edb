package graph

import (
	"context"
	"errors"
	"log"
	"strings"
)

// minRebuildContentChars gates rebuild extraction: shorter documents carry too
// little signal to be worth a model call.
const minRebuildContentChars = 200

// Entity is one extracted entity mention.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Extraction is the structured result of analyzing one document.
type Extraction struct {
	Entities  []Entity `json:"entities"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

// Extractor is the collaborator that turns raw text into an Extraction.
type Extractor interface {
	Extract(ctx context.Context, text string) (Extraction, error)
}

// SourceDocument is the corpus view the rebuild scans.
type SourceDocument struct {
	ID      uint64
	Title   string
	Content string
}

// DocumentSource lets the rebuild enumerate documents that still lack
// extracted entities and write the extraction back once it succeeds.
type DocumentSource interface {
	DocumentsMissingEntities(ctx context.Context, userID uint64) ([]SourceDocument, error)
	SaveExtraction(ctx context.Context, documentID uint64, extraction Extraction) error
}

// RebuildStats summarizes one rebuild pass.
type RebuildStats struct {
	NodesCreated       int `json:"nodes_created"`
	ConnectionsCreated int `json:"connections_created"`
	DocumentsProcessed int `json:"documents_processed"`
	DocumentsSkipped   int `json:"documents_skipped"`
}

// RebuildGraph scans the user's documents that have no extracted entities,
// re-runs extraction, and applies the upsert and linking operations for every
// document that passes the content gate. Failing documents are skipped, not
// retried within the pass.
func (s *Store) RebuildGraph(ctx context.Context, userID uint64, source DocumentSource, extractor Extractor) (RebuildStats, error) {
	var stats RebuildStats
	if s == nil || s.db == nil {
		return stats, errors.New("graph: store is not configured")
	}
	if source == nil || extractor == nil {
		return stats, errors.New("graph: document source and extractor are required")
	}

	documents, err := source.DocumentsMissingEntities(ctx, userID)
	if err != nil {
		return stats, err
	}

	for _, doc := range documents {
		if !rebuildable(doc.Content) {
			stats.DocumentsSkipped++
			continue
		}

		extraction, err := extractor.Extract(ctx, doc.Content)
		if err != nil {
			log.Printf("graph: extraction for document %d failed, skipping: %v", doc.ID, err)
			stats.DocumentsSkipped++
			continue
		}
		if len(extraction.Entities) == 0 {
			stats.DocumentsSkipped++
			continue
		}

		created, linked := s.ApplyExtraction(ctx, userID, doc.ID, doc.Title, extraction)
		stats.NodesCreated += created
		stats.ConnectionsCreated += linked
		stats.DocumentsProcessed++

		if err := source.SaveExtraction(ctx, doc.ID, extraction); err != nil {
			log.Printf("graph: persist extraction for document %d failed: %v", doc.ID, err)
		}
	}
	return stats, nil
}

// ApplyExtraction upserts the document node and every extracted entity node,
// then links them as co-occurring. Per-node failures are logged and skipped.
// Returns how many nodes were created and how many connections were added.
func (s *Store) ApplyExtraction(ctx context.Context, userID, documentID uint64, title string, extraction Extraction) (nodesCreated, connectionsCreated int) {
	docNode, created, err := s.UpsertDocumentNode(ctx, userID, title)
	if err != nil {
		log.Printf("graph: upsert document node for %q failed: %v", title, err)
		return 0, 0
	}
	if created {
		nodesCreated++
	}

	entityIDs := make([]uint64, 0, len(extraction.Entities))
	for _, entity := range extraction.Entities {
		node, created, err := s.UpsertEntityNode(ctx, userID, entity.Name, entity.Type)
		if err != nil {
			log.Printf("graph: upsert entity %q failed, skipping: %v", entity.Name, err)
			continue
		}
		if created {
			nodesCreated++
		}
		if node.ID != docNode.ID {
			entityIDs = append(entityIDs, node.ID)
		}
	}

	connectionsCreated = s.LinkCooccurring(ctx, entityIDs, docNode.ID)
	return nodesCreated, connectionsCreated
}

// rebuildable reports whether document content carries enough real text to
// justify extraction. Placeholder bodies written by failed format conversions
// start with a bracketed marker and are rejected.
func rebuildable(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || strings.HasPrefix(trimmed, "[") {
		return false
	}
	return len([]rune(trimmed)) >= minRebuildContentChars
}
