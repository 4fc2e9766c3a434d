package entry

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/RuslanFatikhov/CoffeeLog/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Handler serves the journal API. Every operation derives its owner key
// from the authenticated principal; nothing in a request body can name
// an owner.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes attaches the journal API to an authenticated group.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/entries", h.List)
	api.POST("/entries", h.Upsert)
	api.GET("/entry/:id", h.Get)
	api.DELETE("/entry/:id", h.Delete)
}

func principal(c *gin.Context) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_required"})
	}
	return p, ok
}

func (h *Handler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	entries, err := h.store.ListByOwner(c.Request.Context(), p.Subject)
	if err != nil {
		logrus.WithError(err).Error("failed to list entries")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_unavailable"})
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (h *Handler) Get(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	e, err := h.store.Get(c.Request.Context(), c.Param("id"), p.Subject)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		logrus.WithError(err).Error("failed to load entry")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_unavailable"})
		return
	}

	c.JSON(http.StatusOK, e)
}

// Upsert accepts a single entry or a batch of entries. Ids are assigned
// when empty; the owner key is always the session's subject, so a batch
// can never smuggle a record onto another account.
func (h *Handler) Upsert(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	entries, err := decodePayload(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for i := range entries {
		if entries[i].CoffeeName == "" || entries[i].BrewDate == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_entry"})
			return
		}
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		if entries[i].CreatedAt == "" {
			entries[i].CreatedAt = now
		}
		entries[i].OwnerKey = p.Subject
	}

	if err := h.store.UpsertBatch(c.Request.Context(), entries); err != nil {
		if errors.Is(err, ErrNotFound) {
			// an id in the batch is held by another owner; absence and
			// foreign ownership answer identically
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
			return
		}
		logrus.WithError(err).Error("failed to save entries")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_unavailable"})
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (h *Handler) Delete(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	err := h.store.Delete(c.Request.Context(), c.Param("id"), p.Subject)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if err != nil {
		logrus.WithError(err).Error("failed to delete entry")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// decodePayload reads either a single entry object or an array of them.
func decodePayload(body io.Reader) ([]Entry, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	var batch []Entry
	if err := json.Unmarshal(raw, &batch); err == nil {
		return batch, nil
	}

	var single Entry
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, err
	}
	return []Entry{single}, nil
}
