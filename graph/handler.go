package graph

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Kirthidass/Neural-Cortex/authorization"
	"github.com/Kirthidass/Neural-Cortex/cache"
)

// Module exposes the graph endpoints and owns the store plus the visual
// cache.
type Module struct {
	store     *Store
	cache     *visualCache
	source    DocumentSource
	extractor Extractor
}

// Store returns the module's node store for other modules to link against.
func (m *Module) Store() *Store {
	if m == nil {
		return nil
	}
	return m.store
}

// RegisterRoutes mounts the graph endpoints under /graph. The document source
// and extractor back the rebuild endpoint; the Redis cache is optional and
// the endpoints degrade to recomputing when it is absent.
func RegisterRoutes(router *gin.Engine, guard *authorization.Guard, store *Store, source DocumentSource, extractor Extractor) (*Module, error) {
	if store == nil {
		var err error
		store, err = NewStoreFromEnv()
		if err != nil {
			return nil, err
		}
	}

	module := &Module{store: store, source: source, extractor: extractor}
	if client, err := cache.GetRedisClient(); err == nil {
		module.cache = newVisualCache(client)
	}

	group := router.Group("/graph")
	if guard != nil {
		group.Use(guard.RequireAuthenticated())
	}
	group.GET("", module.handleVisualGraph)
	group.POST("/rebuild", module.handleRebuild)

	return module, nil
}

func (m *Module) handleVisualGraph(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	caps := DefaultCaps()
	if raw := strings.TrimSpace(c.Query("max_nodes")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= DefaultCaps().MaxNodes {
			caps.MaxNodes = parsed
		}
	}

	ctx := c.Request.Context()
	useCache := caps == DefaultCaps()
	if useCache && m.cache != nil {
		if cached, ok := m.cache.get(ctx, userID); ok {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	nodes, err := m.store.NodesForUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load graph"})
		return
	}

	visual := ComputeVisualGraph(nodes, EdgesFromNodes(nodes), caps)
	if useCache && m.cache != nil {
		m.cache.store(ctx, userID, &visual)
	}
	c.JSON(http.StatusOK, visual)
}

func (m *Module) handleRebuild(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if m.source == nil || m.extractor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "graph rebuild not configured"})
		return
	}

	stats, err := m.store.RebuildGraph(c.Request.Context(), userID, m.source, m.extractor)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "graph rebuild failed"})
		return
	}

	m.Invalidate(c.Request.Context(), userID)
	c.JSON(http.StatusOK, stats)
}
