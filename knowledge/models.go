package knowledge

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Document is one item of a user's corpus. Fingerprint, Entities and
// KeyPoints are filled by the ingestion pipeline; a document whose Entities
// column is still empty is picked up by the next graph rebuild.
type Document struct {
	ID          uint64         `gorm:"primaryKey" json:"id"`
	UserID      uint64         `gorm:"not null;index:idx_user_document" json:"user_id"`
	Title       string         `gorm:"size:200;not null" json:"title"`
	Summary     *string        `gorm:"size:500" json:"summary,omitempty"`
	Source      *string        `gorm:"size:255" json:"source,omitempty"`
	Content     string         `gorm:"type:mediumtext;not null" json:"content"`
	Domain      string         `gorm:"size:64" json:"domain,omitempty"`
	Tags        datatypes.JSON `gorm:"type:json" json:"tags,omitempty"`
	Fingerprint datatypes.JSON `gorm:"type:json" json:"-"`
	Entities    datatypes.JSON `gorm:"type:json" json:"entities,omitempty"`
	KeyPoints   datatypes.JSON `gorm:"type:json" json:"key_points,omitempty"`
	ObjectKey   *string        `gorm:"size:255" json:"-"`
	Status      string         `gorm:"size:16;not null;default:'active'" json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (Document) TableName() string {
	return "knowledge_documents"
}

func fingerprintToJSON(vector []float64) datatypes.JSON {
	if len(vector) == 0 {
		return nil
	}
	raw, err := json.Marshal(vector)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func parseFingerprint(raw datatypes.JSON) []float64 {
	if len(raw) == 0 {
		return nil
	}
	var vector []float64
	if err := json.Unmarshal(raw, &vector); err != nil {
		return nil
	}
	return vector
}
