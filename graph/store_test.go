package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&KnowledgeNode{}))
	store, err := NewStore(db, Config{})
	require.NoError(t, err)
	return store
}

func TestUpsertEntityNodeCreates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	node, created, err := store.UpsertEntityNode(ctx, 1, "Paris", "concept")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Paris", node.Label)
	assert.Equal(t, NodeTypeConcept, node.Type)
	assert.Equal(t, 1.0, node.Strength)
	assert.Empty(t, node.ConnectionSet())
}

func TestUpsertEntityNodeNormalizesInput(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	node, _, err := store.UpsertEntityNode(ctx, 1, "  Eiffel \n Tower  ", "LANDMARK")
	require.NoError(t, err)
	assert.Equal(t, "Eiffel Tower", node.Label)
	// Unknown types fall back to the generic entity type.
	assert.Equal(t, NodeTypeEntity, node.Type)

	long, _, err := store.UpsertEntityNode(ctx, 1, strings.Repeat("x", 150), "topic")
	require.NoError(t, err)
	assert.Len(t, []rune(long.Label), 100)
}

func TestUpsertEntityNodeReinforces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, created, err := store.UpsertEntityNode(ctx, 1, "Paris", "concept")
	require.NoError(t, err)
	require.True(t, created)

	node, created, err := store.UpsertEntityNode(ctx, 1, "Paris", "concept")
	require.NoError(t, err)
	assert.False(t, created)
	assert.InDelta(t, 1.5, node.Strength, 1e-9)
}

func TestUpsertEntityNodeStrengthCap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var node *KnowledgeNode
	for i := 0; i < 30; i++ {
		var err error
		node, _, err = store.UpsertEntityNode(ctx, 1, "Paris", "concept")
		require.NoError(t, err)
	}
	assert.Equal(t, defaultStrengthCap, node.Strength)
}

func TestUpsertEntityNodeTypePromotion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.UpsertEntityNode(ctx, 1, "Curie", "nonsense")
	require.NoError(t, err)

	// Generic is promoted to specific.
	node, _, err := store.UpsertEntityNode(ctx, 1, "Curie", "person")
	require.NoError(t, err)
	assert.Equal(t, NodeTypePerson, node.Type)

	// Specific is never demoted or sideways-promoted.
	node, _, err = store.UpsertEntityNode(ctx, 1, "Curie", "topic")
	require.NoError(t, err)
	assert.Equal(t, NodeTypePerson, node.Type)
	assert.Equal(t, NodeTypePerson, storedNodeType(t, store, 1, "Curie"))
}

// storedNodeType reloads the persisted type straight from the store.
func storedNodeType(t *testing.T, store *Store, userID uint64, label string) string {
	t.Helper()
	nodes, err := store.NodesForUser(context.Background(), userID)
	require.NoError(t, err)
	for _, node := range nodes {
		if node.Label == label {
			return node.Type
		}
	}
	t.Fatalf("node %q not found", label)
	return ""
}

func TestUpsertEntityNodesAreUserScoped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, createdA, err := store.UpsertEntityNode(ctx, 1, "Paris", "concept")
	require.NoError(t, err)
	_, createdB, err := store.UpsertEntityNode(ctx, 2, "Paris", "concept")
	require.NoError(t, err)

	assert.True(t, createdA)
	assert.True(t, createdB, "the same label belongs to each user independently")
}

func TestUpsertDocumentNodeForcesType(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.UpsertEntityNode(ctx, 1, "Shared Label", "concept")
	require.NoError(t, err)

	node, created, err := store.UpsertDocumentNode(ctx, 1, "Shared Label")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, NodeTypeDocument, node.Type)
}

func TestLinkCooccurringSymmetric(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paris, _, err := store.UpsertEntityNode(ctx, 1, "Paris", "concept")
	require.NoError(t, err)
	france, _, err := store.UpsertEntityNode(ctx, 1, "France", "concept")
	require.NoError(t, err)
	doc, _, err := store.UpsertDocumentNode(ctx, 1, "Travel notes")
	require.NoError(t, err)

	added := store.LinkCooccurring(ctx, []uint64{paris.ID, france.ID}, doc.ID)
	assert.Equal(t, 6, added)

	nodes, err := store.NodesForUser(ctx, 1)
	require.NoError(t, err)
	byLabel := make(map[string]KnowledgeNode, len(nodes))
	for _, node := range nodes {
		byLabel[node.Label] = node
	}

	parisNode := byLabel["Paris"]
	franceNode := byLabel["France"]
	docNode := byLabel["Travel notes"]
	assert.Equal(t, setOf(france.ID, doc.ID), parisNode.ConnectionSet())
	assert.Equal(t, setOf(paris.ID, doc.ID), franceNode.ConnectionSet())
	assert.Equal(t, setOf(paris.ID, france.ID), docNode.ConnectionSet())
}

func TestLinkCooccurringIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	paris, _, err := store.UpsertEntityNode(ctx, 1, "Paris", "concept")
	require.NoError(t, err)
	france, _, err := store.UpsertEntityNode(ctx, 1, "France", "concept")
	require.NoError(t, err)
	doc, _, err := store.UpsertDocumentNode(ctx, 1, "Travel notes")
	require.NoError(t, err)

	require.Equal(t, 6, store.LinkCooccurring(ctx, []uint64{paris.ID, france.ID}, doc.ID))
	assert.Equal(t, 0, store.LinkCooccurring(ctx, []uint64{paris.ID, france.ID}, doc.ID))
}

func TestLinkCooccurringDegenerateInputs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc, _, err := store.UpsertDocumentNode(ctx, 1, "Travel notes")
	require.NoError(t, err)

	assert.Equal(t, 0, store.LinkCooccurring(ctx, nil, doc.ID))
	assert.Equal(t, 0, store.LinkCooccurring(ctx, []uint64{doc.ID}, doc.ID))
	assert.Equal(t, 0, store.LinkCooccurring(ctx, []uint64{1, 2}, 0))
}

func setOf(ids ...uint64) map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func TestEdgesFromNodes(t *testing.T) {
	nodes := []KnowledgeNode{
		{ID: 1, Strength: 4, Connections: connectionsToJSON(setOf(2))},
		{ID: 2, Strength: 2, Connections: connectionsToJSON(setOf(1, 3))},
		{ID: 3, Strength: 6, Connections: connectionsToJSON(setOf(2))},
	}

	edges := EdgesFromNodes(nodes)
	require.Len(t, edges, 2, "undirected edges are emitted once")

	weights := make(map[[2]uint64]float64, len(edges))
	for _, edge := range edges {
		key := [2]uint64{edge.Source, edge.Target}
		if key[0] > key[1] {
			key[0], key[1] = key[1], key[0]
		}
		weights[key] = edge.Weight
	}
	assert.InDelta(t, 3.0, weights[[2]uint64{1, 2}], 1e-9)
	assert.InDelta(t, 4.0, weights[[2]uint64{2, 3}], 1e-9)
}

type fakeDocumentSource struct {
	docs  []SourceDocument
	saved map[uint64]Extraction
}

func (f *fakeDocumentSource) DocumentsMissingEntities(ctx context.Context, userID uint64) ([]SourceDocument, error) {
	return f.docs, nil
}

func (f *fakeDocumentSource) SaveExtraction(ctx context.Context, documentID uint64, extraction Extraction) error {
	if f.saved == nil {
		f.saved = make(map[uint64]Extraction)
	}
	f.saved[documentID] = extraction
	return nil
}

type fakeExtractor struct {
	fn func(text string) (Extraction, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, text string) (Extraction, error) {
	return f.fn(text)
}

func TestRebuildGraph(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	longContent := strings.Repeat("Paris and France share a long history. ", 10)
	source := &fakeDocumentSource{docs: []SourceDocument{
		{ID: 1, Title: "Travel notes", Content: longContent},
		{ID: 2, Title: "Too short", Content: "Paris."},
		{ID: 3, Title: "Conversion failure", Content: "[unsupported format] " + longContent},
		{ID: 4, Title: "Empty", Content: "   "},
	}}
	extractor := &fakeExtractor{fn: func(text string) (Extraction, error) {
		return Extraction{
			Entities: []Entity{{Name: "Paris", Type: "concept"}, {Name: "France", Type: "concept"}},
			Summary:  "Notes about Paris and France.",
		}, nil
	}}

	stats, err := store.RebuildGraph(ctx, 1, source, extractor)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.DocumentsProcessed)
	assert.Equal(t, 3, stats.DocumentsSkipped)
	assert.Equal(t, 3, stats.NodesCreated, "two entities plus the document node")
	assert.Equal(t, 6, stats.ConnectionsCreated)

	require.Contains(t, source.saved, uint64(1))
	assert.Len(t, source.saved, 1)
}

func TestRebuildGraphSkipsFailingExtraction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	source := &fakeDocumentSource{docs: []SourceDocument{
		{ID: 1, Title: "Broken", Content: strings.Repeat("A perfectly reasonable document body. ", 10)},
		{ID: 2, Title: "Entity-free", Content: strings.Repeat("Nothing nameable appears in this text. ", 10)},
	}}
	extractor := &fakeExtractor{fn: func(text string) (Extraction, error) {
		if strings.HasPrefix(text, "A perfectly") {
			return Extraction{}, errors.New("model unavailable")
		}
		return Extraction{}, nil
	}}

	stats, err := store.RebuildGraph(ctx, 1, source, extractor)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.DocumentsProcessed)
	assert.Equal(t, 2, stats.DocumentsSkipped)
	assert.Empty(t, source.saved)
}
