// Package graph maintains the per-user weighted entity graph derived from the
// ingested corpus: node and edge lifecycle, strength accounting, and the
// cap-and-bridge clustering that keeps the graph safe to visualize.
package graph

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Node types. NodeTypeEntity is the generic fallback: an upsert may promote
// it to any more specific type, never the other way around.
const (
	NodeTypeConcept      = "concept"
	NodeTypeEntity       = "entity"
	NodeTypeIdea         = "idea"
	NodeTypeDocument     = "document"
	NodeTypePerson       = "person"
	NodeTypeTechnology   = "technology"
	NodeTypeTopic        = "topic"
	NodeTypeOrganization = "organization"
)

var knownNodeTypes = map[string]struct{}{
	NodeTypeConcept:      {},
	NodeTypeEntity:       {},
	NodeTypeIdea:         {},
	NodeTypeDocument:     {},
	NodeTypePerson:       {},
	NodeTypeTechnology:   {},
	NodeTypeTopic:        {},
	NodeTypeOrganization: {},
}

// maxLabelChars bounds node labels; document titles are truncated to fit.
const maxLabelChars = 100

// KnowledgeNode is one node of a user's graph. Connections are stored as a
// JSON id array at the persistence boundary and exposed as a set in the core.
// The symmetric-connection invariant (A lists B iff B lists A) is maintained
// by LinkCooccurring writing both directions explicitly.
type KnowledgeNode struct {
	ID          uint64         `gorm:"primaryKey" json:"id"`
	UserID      uint64         `gorm:"not null;uniqueIndex:idx_user_label" json:"user_id"`
	Label       string         `gorm:"size:100;not null;uniqueIndex:idx_user_label" json:"label"`
	Type        string         `gorm:"size:32;not null;default:'entity'" json:"type"`
	Strength    float64        `gorm:"not null;default:1" json:"strength"`
	Connections datatypes.JSON `gorm:"type:json" json:"connections,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (KnowledgeNode) TableName() string {
	return "knowledge_nodes"
}

// ConnectionSet returns the node's connections as a set of node ids.
func (n *KnowledgeNode) ConnectionSet() map[uint64]struct{} {
	return parseConnections(n.Connections)
}

func parseConnections(raw datatypes.JSON) map[uint64]struct{} {
	set := make(map[uint64]struct{})
	if len(raw) == 0 {
		return set
	}
	var ids []uint64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return set
	}
	for _, id := range ids {
		if id != 0 {
			set[id] = struct{}{}
		}
	}
	return set
}

func connectionsToJSON(set map[uint64]struct{}) datatypes.JSON {
	if len(set) == 0 {
		return datatypes.JSON([]byte("[]"))
	}
	ids := make([]uint64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	raw, err := json.Marshal(ids)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}

// normalizeLabel collapses whitespace and truncates to the label limit.
func normalizeLabel(label string) string {
	collapsed := strings.Join(strings.Fields(label), " ")
	runes := []rune(collapsed)
	if len(runes) > maxLabelChars {
		collapsed = string(runes[:maxLabelChars])
	}
	return collapsed
}

// normalizeNodeType lowercases the type and falls back to the generic entity
// type for anything unknown.
func normalizeNodeType(nodeType string) string {
	lowered := strings.ToLower(strings.TrimSpace(nodeType))
	if _, ok := knownNodeTypes[lowered]; ok {
		return lowered
	}
	return NodeTypeEntity
}
