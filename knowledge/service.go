package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Kirthidass/Neural-Cortex/agents"
	"github.com/Kirthidass/Neural-Cortex/fingerprint"
	"github.com/Kirthidass/Neural-Cortex/graph"
	"github.com/Kirthidass/Neural-Cortex/storage"
)

// Service owns a user's document corpus: CRUD against the database, raw
// payload retention in object storage, and the ingestion pipeline that
// fingerprints content, extracts entities and feeds the knowledge graph.
type Service struct {
	db        *gorm.DB
	graph     *graph.Store
	objects   *storage.DocumentStorage
	extractor graph.Extractor
}

type DocumentInput struct {
	Title   string   `json:"title"`
	Summary *string  `json:"summary,omitempty"`
	Source  *string  `json:"source,omitempty"`
	Content string   `json:"content"`
	Domain  string   `json:"domain"`
	Tags    []string `json:"tags"`
	Status  string   `json:"status"`
}

type DocumentUpdate struct {
	Title   *string   `json:"title"`
	Summary *string   `json:"summary"`
	Source  *string   `json:"source"`
	Content *string   `json:"content"`
	Domain  *string   `json:"domain"`
	Tags    *[]string `json:"tags"`
	Status  *string   `json:"status"`
}

type DocumentRecord struct {
	ID        uint64         `json:"id"`
	Title     string         `json:"title"`
	Summary   *string        `json:"summary,omitempty"`
	Source    *string        `json:"source,omitempty"`
	Content   string         `json:"content,omitempty"`
	Domain    string         `json:"domain,omitempty"`
	Tags      []string       `json:"tags"`
	Status    string         `json:"status"`
	Entities  []graph.Entity `json:"entities,omitempty"`
	KeyPoints []string       `json:"key_points,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func NewService(db *gorm.DB, graphStore *graph.Store, objects *storage.DocumentStorage, extractor graph.Extractor) (*Service, error) {
	if db == nil {
		return nil, errors.New("knowledge: database connection is required")
	}
	return &Service{
		db:        db,
		graph:     graphStore,
		objects:   objects,
		extractor: extractor,
	}, nil
}

func (s *Service) AutoMigrate() error {
	if s.db == nil {
		return errors.New("knowledge: database connection is not configured")
	}
	return s.db.AutoMigrate(&Document{})
}

func (s *Service) ListDocuments(ctx context.Context, userID uint64) ([]DocumentRecord, error) {
	if s.db == nil {
		return nil, errors.New("knowledge: database connection is not configured")
	}
	var docs []Document
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&docs).Error; err != nil {
		return nil, err
	}

	records := make([]DocumentRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, buildDocumentRecord(doc, false))
	}
	return records, nil
}

func (s *Service) GetDocument(ctx context.Context, userID uint64, docID uint64) (*DocumentRecord, error) {
	if s.db == nil {
		return nil, errors.New("knowledge: database connection is not configured")
	}
	var doc Document
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", docID, userID).
		Take(&doc).Error; err != nil {
		return nil, err
	}
	record := buildDocumentRecord(doc, true)
	return &record, nil
}

// CreateDocument persists the document and runs the ingestion pipeline. The
// document is created even when extraction fails; the next graph rebuild
// retries anything that still lacks entities.
func (s *Service) CreateDocument(ctx context.Context, userID uint64, input DocumentInput) (*DocumentRecord, error) {
	if s.db == nil {
		return nil, errors.New("knowledge: database connection is not configured")
	}
	sanitized := sanitizeDocumentInput(input)
	if sanitized.Title == "" {
		return nil, errors.New("knowledge: title is required")
	}
	if sanitized.Content == "" {
		return nil, errors.New("knowledge: content is required")
	}

	doc := Document{
		UserID:      userID,
		Title:       sanitized.Title,
		Summary:     sanitized.Summary,
		Source:      sanitized.Source,
		Content:     sanitized.Content,
		Domain:      sanitized.Domain,
		Tags:        tagsToJSON(sanitized.Tags),
		Fingerprint: fingerprintToJSON(fingerprint.Generate(sanitized.Content)),
		Status:      sanitized.Status,
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		return nil, err
	}

	s.runExtraction(ctx, &doc)

	record := buildDocumentRecord(doc, true)
	return &record, nil
}

func (s *Service) UpdateDocument(ctx context.Context, userID uint64, docID uint64, changes DocumentUpdate) (*DocumentRecord, error) {
	if s.db == nil {
		return nil, errors.New("knowledge: database connection is not configured")
	}

	var existing Document
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", docID, userID).
		Take(&existing).Error; err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"updated_at": time.Now().UTC()}
	if changes.Title != nil {
		title := strings.TrimSpace(*changes.Title)
		if title == "" {
			return nil, errors.New("knowledge: title cannot be empty")
		}
		existing.Title = title
		updates["title"] = title
	}
	if changes.Summary != nil {
		summary := strings.TrimSpace(*changes.Summary)
		if summary == "" {
			existing.Summary = nil
			updates["summary"] = gorm.Expr("NULL")
		} else {
			existing.Summary = &summary
			updates["summary"] = summary
		}
	}
	if changes.Source != nil {
		source := strings.TrimSpace(*changes.Source)
		if source == "" {
			existing.Source = nil
			updates["source"] = gorm.Expr("NULL")
		} else {
			existing.Source = &source
			updates["source"] = source
		}
	}
	if changes.Domain != nil {
		existing.Domain = strings.ToLower(strings.TrimSpace(*changes.Domain))
		updates["domain"] = existing.Domain
	}
	if changes.Status != nil {
		existing.Status = sanitizeStatus(*changes.Status, "active")
		updates["status"] = existing.Status
	}
	if changes.Tags != nil {
		existing.Tags = tagsToJSON(*changes.Tags)
		updates["tags"] = existing.Tags
	}

	contentChanged := false
	if changes.Content != nil {
		trimmed := strings.TrimSpace(*changes.Content)
		if trimmed == "" {
			return nil, errors.New("knowledge: content cannot be empty")
		}
		contentChanged = trimmed != existing.Content
		if contentChanged {
			existing.Content = trimmed
			existing.Fingerprint = fingerprintToJSON(fingerprint.Generate(trimmed))
			existing.Entities = nil
			existing.KeyPoints = nil
			updates["content"] = trimmed
			updates["fingerprint"] = existing.Fingerprint
			updates["entities"] = gorm.Expr("NULL")
			updates["key_points"] = gorm.Expr("NULL")
		}
	}

	if err := s.db.WithContext(ctx).Model(&Document{}).
		Where("id = ? AND user_id = ?", docID, userID).
		Updates(updates).Error; err != nil {
		return nil, err
	}

	if contentChanged {
		s.runExtraction(ctx, &existing)
	}

	record := buildDocumentRecord(existing, true)
	return &record, nil
}

func (s *Service) DeleteDocument(ctx context.Context, userID uint64, docID uint64) error {
	if s.db == nil {
		return errors.New("knowledge: database connection is not configured")
	}

	var doc Document
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", docID, userID).
		Take(&doc).Error; err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&Document{}, doc.ID).Error; err != nil {
		return err
	}

	if doc.ObjectKey != nil {
		if err := s.objects.Remove(ctx, *doc.ObjectKey); err != nil {
			log.Printf("knowledge: remove stored payload for document %d failed: %v", doc.ID, err)
		}
	}
	return nil
}

// DocumentsForUser returns the active corpus in the shape the knowledge
// expert scores against.
func (s *Service) DocumentsForUser(ctx context.Context, userID uint64) ([]agents.Document, error) {
	if s.db == nil {
		return nil, errors.New("knowledge: database connection is not configured")
	}
	var docs []Document
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, "active").
		Find(&docs).Error; err != nil {
		return nil, err
	}

	corpus := make([]agents.Document, 0, len(docs))
	for _, doc := range docs {
		summary := ""
		if doc.Summary != nil {
			summary = *doc.Summary
		}
		corpus = append(corpus, agents.Document{
			ID:          doc.ID,
			Title:       doc.Title,
			Summary:     summary,
			Content:     doc.Content,
			Fingerprint: parseFingerprint(doc.Fingerprint),
		})
	}
	return corpus, nil
}

// DocumentsMissingEntities implements graph.DocumentSource.
func (s *Service) DocumentsMissingEntities(ctx context.Context, userID uint64) ([]graph.SourceDocument, error) {
	if s.db == nil {
		return nil, errors.New("knowledge: database connection is not configured")
	}
	var docs []Document
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND (entities IS NULL OR entities = ? OR entities = ?)", userID, "", "[]").
		Find(&docs).Error; err != nil {
		return nil, err
	}

	sources := make([]graph.SourceDocument, 0, len(docs))
	for _, doc := range docs {
		sources = append(sources, graph.SourceDocument{
			ID:      doc.ID,
			Title:   doc.Title,
			Content: doc.Content,
		})
	}
	return sources, nil
}

// SaveExtraction implements graph.DocumentSource.
func (s *Service) SaveExtraction(ctx context.Context, documentID uint64, extraction graph.Extraction) error {
	if s.db == nil {
		return errors.New("knowledge: database connection is not configured")
	}
	updates := map[string]interface{}{
		"entities":   entitiesToJSON(extraction.Entities),
		"key_points": keyPointsToJSON(extraction.KeyPoints),
		"updated_at": time.Now().UTC(),
	}
	if summary := strings.TrimSpace(extraction.Summary); summary != "" {
		updates["summary"] = summary
	}
	return s.db.WithContext(ctx).Model(&Document{}).
		Where("id = ?", documentID).
		Updates(updates).Error
}

// runExtraction analyzes the document and feeds the graph. Failures leave the
// entities column empty so the rebuild pass can pick the document up later.
func (s *Service) runExtraction(ctx context.Context, doc *Document) {
	if s.extractor == nil {
		return
	}
	extraction, err := s.extractor.Extract(ctx, doc.Content)
	if err != nil {
		log.Printf("knowledge: extraction for document %d failed: %v", doc.ID, err)
		return
	}
	if len(extraction.Entities) == 0 {
		return
	}

	if err := s.SaveExtraction(ctx, doc.ID, extraction); err != nil {
		log.Printf("knowledge: persist extraction for document %d failed: %v", doc.ID, err)
		return
	}
	doc.Entities = entitiesToJSON(extraction.Entities)
	doc.KeyPoints = keyPointsToJSON(extraction.KeyPoints)
	if doc.Summary == nil {
		if summary := strings.TrimSpace(extraction.Summary); summary != "" {
			doc.Summary = &summary
		}
	}

	if s.graph != nil {
		s.graph.ApplyExtraction(ctx, doc.UserID, doc.ID, doc.Title, extraction)
	}
}

func sanitizeDocumentInput(input DocumentInput) DocumentInput {
	sanitized := DocumentInput{
		Title:   strings.TrimSpace(input.Title),
		Content: strings.TrimSpace(input.Content),
		Domain:  strings.ToLower(strings.TrimSpace(input.Domain)),
		Status:  sanitizeStatus(input.Status, "active"),
	}
	if input.Summary != nil {
		trimmed := strings.TrimSpace(*input.Summary)
		if trimmed != "" {
			sanitized.Summary = &trimmed
		}
	}
	if input.Source != nil {
		trimmed := strings.TrimSpace(*input.Source)
		if trimmed != "" {
			sanitized.Source = &trimmed
		}
	}
	sanitized.Tags = normalizeTags(input.Tags)
	return sanitized
}

func sanitizeStatus(value string, fallback string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "active", "draft", "inactive":
		return normalized
	case "archived":
		return "inactive"
	default:
		if fallback != "" {
			return fallback
		}
		return "active"
	}
}

func tagsToJSON(tags []string) datatypes.JSON {
	normalized := normalizeTags(tags)
	if len(normalized) == 0 {
		return datatypes.JSON([]byte("[]"))
	}
	raw, err := json.Marshal(normalized)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if _, exists := seen[lower]; exists {
			continue
		}
		seen[lower] = struct{}{}
		result = append(result, trimmed)
	}
	sort.Strings(result)
	return result
}

func parseTags(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil
	}
	return normalizeTags(tags)
}

func entitiesToJSON(entities []graph.Entity) datatypes.JSON {
	if len(entities) == 0 {
		return datatypes.JSON([]byte("[]"))
	}
	raw, err := json.Marshal(entities)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}

func parseEntities(raw datatypes.JSON) []graph.Entity {
	if len(raw) == 0 {
		return nil
	}
	var entities []graph.Entity
	if err := json.Unmarshal(raw, &entities); err != nil {
		return nil
	}
	return entities
}

func keyPointsToJSON(points []string) datatypes.JSON {
	if len(points) == 0 {
		return datatypes.JSON([]byte("[]"))
	}
	raw, err := json.Marshal(points)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}

func parseKeyPoints(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var points []string
	if err := json.Unmarshal(raw, &points); err != nil {
		return nil
	}
	return points
}

func buildDocumentRecord(doc Document, includeContent bool) DocumentRecord {
	record := DocumentRecord{
		ID:        doc.ID,
		Title:     doc.Title,
		Summary:   doc.Summary,
		Source:    doc.Source,
		Domain:    doc.Domain,
		Status:    doc.Status,
		Tags:      parseTags(doc.Tags),
		Entities:  parseEntities(doc.Entities),
		KeyPoints: parseKeyPoints(doc.KeyPoints),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if includeContent {
		record.Content = doc.Content
	}
	return record
}
