package agents

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Kirthidass/Neural-Cortex/authorization"
	"github.com/Kirthidass/Neural-Cortex/llm"
	"github.com/Kirthidass/Neural-Cortex/search"
)

// DocumentProvider supplies the user's corpus for the knowledge expert.
type DocumentProvider interface {
	DocumentsForUser(ctx context.Context, userID uint64) ([]Document, error)
}

// Module wires the query pipeline behind the HTTP endpoints: classify,
// fan out to experts, prompt the model, validate, respond.
type Module struct {
	llm          *llm.Client
	orchestrator *Orchestrator
	summarizer   *Summarizer
	validator    *Validator
	documents    DocumentProvider
}

type queryRequest struct {
	Query   string `json:"query" binding:"required"`
	Context string `json:"context"`
}

type queryResponse struct {
	QueryID     string   `json:"query_id"`
	Answer      string   `json:"answer"`
	Model       string   `json:"model,omitempty"`
	Sources     []Source `json:"sources"`
	ExpertsUsed []Intent `json:"experts_used"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RegisterRoutes mounts the query endpoints under /agent. The language model
// client is required; search clients are optional and their experts degrade
// to empty results when unconfigured.
func RegisterRoutes(router *gin.Engine, guard *authorization.Guard, documents DocumentProvider) (*Module, error) {
	client, err := llm.NewClientFromEnv()
	if err != nil {
		return nil, err
	}

	var searcher Searcher
	var videos VideoSearcher
	if searchClient, err := search.NewClientFromEnv(); err != nil {
		log.Printf("agents: web search disabled: %v", err)
	} else {
		searcher = searchClient
		videos = search.NewVideoClient(searchClient)
	}

	module := &Module{
		llm:          client,
		orchestrator: NewOrchestrator(NewClassifier(), NewExpertPool(searcher, videos)),
		summarizer:   NewSummarizer(client, client.PrimaryModel(), client.SecondaryModel()),
		validator:    NewValidator(client, client.SecondaryModel()),
		documents:    documents,
	}

	group := router.Group("/agent")
	if guard != nil {
		group.Use(guard.RequireAuthenticated())
	}
	group.POST("/query", module.handleQuery)
	group.GET("/query/stream", module.handleQueryStream)
	group.GET("/query/ws", module.handleQuerySocket)

	return module, nil
}

func (m *Module) handleQuery(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	ctx := c.Request.Context()
	agentCtx, prompt := m.prepare(ctx, userID, req.Query, req.Context)

	result, err := m.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "language model unavailable"})
		return
	}

	answer := m.validator.ValidateAnswer(ctx, req.Query, result.Content, supportingContext(agentCtx))

	c.JSON(http.StatusOK, queryResponse{
		QueryID:     agentCtx.QueryID,
		Answer:      answer,
		Model:       result.Model,
		Sources:     agentCtx.Sources,
		ExpertsUsed: agentCtx.ExpertsUsed,
	})
}

// handleQueryStream answers over SSE: a sources event, delta events as the
// model produces tokens, then a done event carrying the validated answer.
func (m *Module) handleQueryStream(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q parameter is required"})
		return
	}
	extra := strings.TrimSpace(c.Query("context"))

	ctx := c.Request.Context()
	agentCtx, prompt := m.prepare(ctx, userID, query, extra)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("sources", gin.H{
		"query_id":     agentCtx.QueryID,
		"sources":      agentCtx.Sources,
		"experts_used": agentCtx.ExpertsUsed,
	})
	c.Writer.Flush()

	result, err := m.llm.CompleteStream(ctx, llm.Request{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	}, func(delta llm.StreamDelta) error {
		if delta.Content != "" {
			c.SSEvent("delta", gin.H{"content": delta.Content})
			c.Writer.Flush()
		}
		return nil
	})
	if err != nil {
		c.SSEvent("error", gin.H{"error": "language model unavailable"})
		c.Writer.Flush()
		return
	}

	answer := m.validator.ValidateAnswer(ctx, query, result.Content, supportingContext(agentCtx))
	c.SSEvent("done", gin.H{"answer": answer, "model": result.Model})
	c.Writer.Flush()
}

// handleQuerySocket serves the same pipeline over a websocket. Each inbound
// JSON message is one query; the connection stays open for the next one.
func (m *Module) handleQuerySocket(c *gin.Context) {
	userID := authorization.CurrentUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var req queryRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("agents: websocket read: %v", err)
			}
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			if err := conn.WriteJSON(gin.H{"type": "error", "error": "query is required"}); err != nil {
				return
			}
			continue
		}

		if err := m.streamToSocket(c.Request.Context(), conn, userID, req); err != nil {
			return
		}
	}
}

func (m *Module) streamToSocket(ctx context.Context, conn *websocket.Conn, userID uint64, req queryRequest) error {
	agentCtx, prompt := m.prepare(ctx, userID, req.Query, req.Context)

	if err := conn.WriteJSON(gin.H{
		"type":         "sources",
		"query_id":     agentCtx.QueryID,
		"sources":      agentCtx.Sources,
		"experts_used": agentCtx.ExpertsUsed,
	}); err != nil {
		return err
	}

	var writeErr error
	result, err := m.llm.CompleteStream(ctx, llm.Request{
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	}, func(delta llm.StreamDelta) error {
		if delta.Content == "" {
			return nil
		}
		writeErr = conn.WriteJSON(gin.H{"type": "delta", "content": delta.Content})
		return writeErr
	})
	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		return conn.WriteJSON(gin.H{"type": "error", "error": "language model unavailable"})
	}

	answer := m.validator.ValidateAnswer(ctx, req.Query, result.Content, supportingContext(agentCtx))
	return conn.WriteJSON(gin.H{"type": "done", "answer": answer, "model": result.Model})
}

// prepare runs orchestration and renders the prompt. A summarize intent
// condenses the knowledge context through the consensus summarizer before the
// prompt is built; corpus load failures degrade to an empty corpus.
func (m *Module) prepare(ctx context.Context, userID uint64, query, extra string) (*AgentContext, string) {
	var corpus []Document
	if m.documents != nil {
		loaded, err := m.documents.DocumentsForUser(ctx, userID)
		if err != nil {
			log.Printf("agents: load corpus for user %d failed: %v", userID, err)
		} else {
			corpus = loaded
		}
	}

	agentCtx := m.orchestrator.RunOrchestration(ctx, query, corpus)

	if agentCtx.UsedExpert(IntentSummarize) && agentCtx.KnowledgeContext != "" {
		if summary := m.summarizer.ConsensusSummarize(ctx, agentCtx.KnowledgeContext); summary != "" {
			agentCtx.KnowledgeContext = summary
		}
	}

	return agentCtx, BuildPrompt(agentCtx, extra)
}

// supportingContext joins every expert context for the validator.
func supportingContext(agentCtx *AgentContext) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{agentCtx.KnowledgeContext, agentCtx.SearchContext, agentCtx.VideoContext} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, "\n\n")
}
