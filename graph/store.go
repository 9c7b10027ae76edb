package graph

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	defaultStrengthIncrement = 0.5
	defaultStrengthCap       = 10.0
)

// Config tunes the strength accounting of the store.
type Config struct {
	// StrengthIncrement is added to an existing node's strength on every
	// re-mention, up to StrengthCap.
	StrengthIncrement float64
	StrengthCap       float64
}

// Store performs node lifecycle operations against the persistence layer.
// Every node mutation is an independent unit of work: there are no cross-node
// transactions, and a failure writing one node is logged and skipped rather
// than aborting the surrounding batch.
type Store struct {
	db  *gorm.DB
	cfg Config
}

// NewStore wraps an open database connection.
func NewStore(db *gorm.DB, cfg Config) (*Store, error) {
	if db == nil {
		return nil, errors.New("graph: database connection is required")
	}
	if cfg.StrengthIncrement <= 0 {
		cfg.StrengthIncrement = defaultStrengthIncrement
	}
	if cfg.StrengthCap <= 0 {
		cfg.StrengthCap = defaultStrengthCap
	}
	return &Store{db: db, cfg: cfg}, nil
}

// NewStoreFromEnv opens the database configured by DATABASE_DSN and
// DATABASE_DRIVER and automigrates the node model. The strength increment is
// overridable through GRAPH_STRENGTH_INCREMENT.
func NewStoreFromEnv() (*Store, error) {
	dsn := strings.TrimSpace(os.Getenv("DATABASE_DSN"))
	if dsn == "" {
		return nil, errors.New("graph: DATABASE_DSN environment variable is required")
	}
	driver := strings.TrimSpace(os.Getenv("DATABASE_DRIVER"))
	if driver == "" {
		driver = inferDriverFromDSN(dsn)
		if driver == "" {
			return nil, errors.New("graph: DATABASE_DRIVER environment variable is required when DSN does not contain a scheme")
		}
	}

	db, err := openDatabase(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&KnowledgeNode{}); err != nil {
		return nil, fmt.Errorf("graph: migrate models: %w", err)
	}

	cfg := Config{}
	if raw := strings.TrimSpace(os.Getenv("GRAPH_STRENGTH_INCREMENT")); raw != "" {
		if parsed, convErr := strconv.ParseFloat(raw, 64); convErr == nil && parsed > 0 {
			cfg.StrengthIncrement = parsed
		}
	}
	return NewStore(db, cfg)
}

func openDatabase(driver, dsn string) (*gorm.DB, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pg":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{NowFunc: func() time.Time { return time.Now().UTC() }})
	case "mysql":
		return gorm.Open(mysql.Open(dsn), &gorm.Config{NowFunc: func() time.Time { return time.Now().UTC() }})
	case "sqlite", "sqlite3":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: func() time.Time { return time.Now().UTC() }})
	default:
		return nil, fmt.Errorf("graph: unsupported database driver %q", driver)
	}
}

func inferDriverFromDSN(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "mysql://"):
		return "mysql"
	case strings.HasPrefix(lower, "sqlite://"), strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"), strings.Contains(lower, ":memory:"):
		return "sqlite"
	default:
		return ""
	}
}

// UpsertEntityNode creates or reinforces the node identified by (user, label).
// A new node starts at strength 1.0 with no connections. An existing node
// gains the configured increment up to the cap, and its type is promoted when
// the stored type is the generic fallback and the new one is more specific.
// The returned bool reports whether a node was created.
func (s *Store) UpsertEntityNode(ctx context.Context, userID uint64, label, nodeType string) (*KnowledgeNode, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, errors.New("graph: store is not configured")
	}
	label = normalizeLabel(label)
	if userID == 0 || label == "" {
		return nil, false, errors.New("graph: user id and label are required")
	}
	nodeType = normalizeNodeType(nodeType)

	var node KnowledgeNode
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND label = ?", userID, label).
		Take(&node).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, fmt.Errorf("graph: lookup node %q: %w", label, err)
		}
		node = KnowledgeNode{
			UserID:      userID,
			Label:       label,
			Type:        nodeType,
			Strength:    1.0,
			Connections: connectionsToJSON(nil),
		}
		if err := s.db.WithContext(ctx).Create(&node).Error; err != nil {
			return nil, false, fmt.Errorf("graph: create node %q: %w", label, err)
		}
		return &node, true, nil
	}

	updates := map[string]any{}
	if node.Strength < s.cfg.StrengthCap {
		node.Strength += s.cfg.StrengthIncrement
		if node.Strength > s.cfg.StrengthCap {
			node.Strength = s.cfg.StrengthCap
		}
		updates["strength"] = node.Strength
	}
	if node.Type == NodeTypeEntity && nodeType != NodeTypeEntity {
		node.Type = nodeType
		updates["type"] = nodeType
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now().UTC()
		if err := s.db.WithContext(ctx).
			Model(&KnowledgeNode{}).
			Where("id = ?", node.ID).
			Updates(updates).Error; err != nil {
			return nil, false, fmt.Errorf("graph: reinforce node %q: %w", label, err)
		}
	}
	return &node, false, nil
}

// UpsertDocumentNode creates or reinforces the document node keyed by
// (user, truncated title).
func (s *Store) UpsertDocumentNode(ctx context.Context, userID uint64, title string) (*KnowledgeNode, bool, error) {
	node, created, err := s.UpsertEntityNode(ctx, userID, title, NodeTypeDocument)
	if err != nil {
		return nil, false, err
	}
	// An entity node can share the document's label; force the type so the
	// document identity is never lost.
	if node.Type != NodeTypeDocument {
		node.Type = NodeTypeDocument
		if err := s.db.WithContext(ctx).
			Model(&KnowledgeNode{}).
			Where("id = ?", node.ID).
			Update("type", NodeTypeDocument).Error; err != nil {
			return nil, false, fmt.Errorf("graph: mark document node %q: %w", node.Label, err)
		}
	}
	return node, created, nil
}

// LinkCooccurring records that the given entity nodes co-occur in the given
// document: every entity is connected to every other entity in the batch and
// to the document node, and the document node is connected back to every
// entity. Both directions of each edge are written explicitly. A failure
// writing one node's side is logged and skipped; the rest of the batch still
// goes through. Returns the number of connection entries actually added.
func (s *Store) LinkCooccurring(ctx context.Context, entityIDs []uint64, documentID uint64) int {
	if s == nil || s.db == nil {
		return 0
	}

	batch := make(map[uint64]struct{}, len(entityIDs)+1)
	for _, id := range entityIDs {
		if id != 0 && id != documentID {
			batch[id] = struct{}{}
		}
	}
	if len(batch) == 0 || documentID == 0 {
		return 0
	}

	added := 0
	for id := range batch {
		desired := make(map[uint64]struct{}, len(batch))
		for other := range batch {
			if other != id {
				desired[other] = struct{}{}
			}
		}
		desired[documentID] = struct{}{}
		added += s.mergeConnections(ctx, id, desired)
	}
	added += s.mergeConnections(ctx, documentID, batch)
	return added
}

// mergeConnections unions the desired ids into the node's connection set.
// Concurrent writers may race, but set union is commutative so the stored
// set converges.
func (s *Store) mergeConnections(ctx context.Context, nodeID uint64, desired map[uint64]struct{}) int {
	var node KnowledgeNode
	if err := s.db.WithContext(ctx).Where("id = ?", nodeID).Take(&node).Error; err != nil {
		log.Printf("graph: load node %d for linking failed, skipping: %v", nodeID, err)
		return 0
	}

	connections := node.ConnectionSet()
	added := 0
	for id := range desired {
		if id == nodeID {
			continue
		}
		if _, exists := connections[id]; !exists {
			connections[id] = struct{}{}
			added++
		}
	}
	if added == 0 {
		return 0
	}

	if err := s.db.WithContext(ctx).
		Model(&KnowledgeNode{}).
		Where("id = ?", nodeID).
		Updates(map[string]any{
			"connections": connectionsToJSON(connections),
			"updated_at":  time.Now().UTC(),
		}).Error; err != nil {
		log.Printf("graph: write connections for node %d failed, skipping: %v", nodeID, err)
		return 0
	}
	return added
}

// NodesForUser loads the user's full node set.
func (s *Store) NodesForUser(ctx context.Context, userID uint64) ([]KnowledgeNode, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("graph: store is not configured")
	}
	var nodes []KnowledgeNode
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("strength DESC").
		Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("graph: load nodes: %w", err)
	}
	return nodes, nil
}

// EdgesFromNodes derives the undirected edge list from the nodes' connection
// sets. Edge weight is the mean strength of its endpoints, so edges between
// frequently mentioned nodes sort first during clustering.
func EdgesFromNodes(nodes []KnowledgeNode) []Edge {
	byID := make(map[uint64]*KnowledgeNode, len(nodes))
	for i := range nodes {
		byID[nodes[i].ID] = &nodes[i]
	}

	seen := make(map[[2]uint64]struct{})
	edges := make([]Edge, 0, len(nodes))
	for i := range nodes {
		node := &nodes[i]
		for target := range node.ConnectionSet() {
			other, ok := byID[target]
			if !ok || other.ID == node.ID {
				continue
			}
			key := [2]uint64{node.ID, other.ID}
			if key[0] > key[1] {
				key[0], key[1] = key[1], key[0]
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, Edge{
				Source: key[0],
				Target: key[1],
				Weight: (node.Strength + other.Strength) / 2,
			})
		}
	}
	return edges
}
