package knowledge

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Kirthidass/Neural-Cortex/authorization"
	"github.com/Kirthidass/Neural-Cortex/graph"
	"github.com/Kirthidass/Neural-Cortex/llm"
	"github.com/Kirthidass/Neural-Cortex/storage"
)

// GraphInvalidator drops cached graph projections after the corpus changes.
type GraphInvalidator interface {
	Invalidate(ctx context.Context, userID uint64)
}

// Module exposes the document corpus endpoints.
type Module struct {
	service     *Service
	invalidator GraphInvalidator
}

// Service returns the underlying document service so other modules can read
// the corpus or use it as a graph document source.
func (m *Module) Service() *Service {
	if m == nil {
		return nil
	}
	return m.service
}

// SetGraphInvalidator wires the cache invalidation hook. Registration order
// puts the graph module after this one, so the hook arrives late.
func (m *Module) SetGraphInvalidator(invalidator GraphInvalidator) {
	if m != nil {
		m.invalidator = invalidator
	}
}

// RegisterRoutes mounts the document endpoints under /knowledge/documents.
// Object storage and the extractor are both optional: without MinIO raw
// payloads are not retained, and without an LLM client documents wait for a
// graph rebuild to gain entities.
func RegisterRoutes(router *gin.Engine, guard *authorization.Guard, graphStore *graph.Store) (*Module, error) {
	db, err := openDatabaseFromEnv()
	if err != nil {
		return nil, err
	}

	objects, err := storage.NewDocumentStorageFromEnv()
	if err != nil {
		return nil, err
	}

	var extractor graph.Extractor
	if client, err := llm.NewClientFromEnv(); err != nil {
		log.Printf("knowledge: extraction disabled: %v", err)
	} else if built, err := NewLLMExtractor(client); err == nil {
		extractor = built
	}

	service, err := NewService(db, graphStore, objects, extractor)
	if err != nil {
		return nil, err
	}
	if err := service.AutoMigrate(); err != nil {
		return nil, err
	}

	module := &Module{service: service}

	group := router.Group("/knowledge/documents")
	if guard != nil {
		group.Use(guard.RequireAuthenticated())
	}
	group.GET("", module.handleListDocuments)
	group.POST("", module.handleCreateDocument)
	group.GET("/:id", module.handleGetDocument)
	group.PUT("/:id", module.handleUpdateDocument)
	group.DELETE("/:id", module.handleDeleteDocument)
	group.GET("/:id/download", module.handleDownloadDocument)
	group.POST("/upload", module.handleUploadDocument)
	group.POST("/import", module.handleImportArchive)

	return module, nil
}

// Extractor returns the module's extraction collaborator for reuse by the
// graph rebuild endpoint.
func (m *Module) Extractor() graph.Extractor {
	if m == nil || m.service == nil {
		return nil
	}
	return m.service.extractor
}

func (m *Module) handleListDocuments(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	records, err := m.service.ListDocuments(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list documents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": records})
}

func (m *Module) handleGetDocument(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	record, err := m.service.GetDocument(c.Request.Context(), userID, docID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load document"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": record})
}

func (m *Module) handleCreateDocument(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	var input DocumentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	record, err := m.service.CreateDocument(c.Request.Context(), userID, input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m.invalidateGraph(c.Request.Context(), userID)
	c.JSON(http.StatusCreated, gin.H{"document": record})
}

func (m *Module) handleUpdateDocument(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	var changes DocumentUpdate
	if err := c.ShouldBindJSON(&changes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}

	record, err := m.service.UpdateDocument(c.Request.Context(), userID, docID, changes)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	m.invalidateGraph(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"document": record})
}

func (m *Module) handleDeleteDocument(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	if err := m.service.DeleteDocument(c.Request.Context(), userID, docID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete document"})
		}
		return
	}

	m.invalidateGraph(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{"deleted": docID})
}

func (m *Module) handleDownloadDocument(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	docID, ok := parseDocumentID(c)
	if !ok {
		return
	}

	var doc Document
	if err := m.service.db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", docID, userID).
		Take(&doc).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	if doc.ObjectKey == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document has no stored payload"})
		return
	}

	url, err := m.service.objects.PresignedURL(c.Request.Context(), *doc.ObjectKey, 15*time.Minute)
	if err != nil || url == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stored payload unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (m *Module) handleUploadDocument(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	domain := strings.TrimSpace(c.PostForm("domain"))

	record, err := m.service.IngestUpload(c.Request.Context(), userID, fileHeader, domain)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m.invalidateGraph(c.Request.Context(), userID)
	c.JSON(http.StatusCreated, gin.H{"document": record})
}

func (m *Module) handleImportArchive(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	domain := strings.TrimSpace(c.PostForm("domain"))

	records, err := m.service.IngestArchive(c.Request.Context(), userID, fileHeader, domain)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m.invalidateGraph(c.Request.Context(), userID)
	c.JSON(http.StatusCreated, gin.H{"documents": records, "imported": len(records)})
}

func (m *Module) invalidateGraph(ctx context.Context, userID uint64) {
	if m != nil && m.invalidator != nil {
		m.invalidator.Invalidate(ctx, userID)
	}
}

func parseDocumentID(c *gin.Context) (uint64, bool) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return 0, false
	}
	return id, true
}
