package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/muni-digital/turnos-api/internal/display"
	"github.com/muni-digital/turnos-api/internal/service"
	"github.com/muni-digital/turnos-api/pkg/config"
	"github.com/muni-digital/turnos-api/pkg/response"
)

// QueueHandler exposes queue reads and the public display stream.
type QueueHandler struct {
	turns     *service.TurnService
	hub       *display.Hub
	metrics   *service.MetricsService
	heartbeat time.Duration
}

// NewQueueHandler constructs handler.
func NewQueueHandler(turns *service.TurnService, hub *display.Hub, metrics *service.MetricsService, cfg config.DisplayConfig) *QueueHandler {
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &QueueHandler{turns: turns, hub: hub, metrics: metrics, heartbeat: heartbeat}
}

// Departments godoc
// @Summary List active departments
// @Tags Queue
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *QueueHandler) Departments(c *gin.Context) {
	depts, err := h.turns.Departments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, depts, nil)
}

// Queue godoc
// @Summary Ordered active queue snapshot for a department
// @Tags Queue
// @Produce json
// @Param id path string true "Department id"
// @Success 200 {object} response.Envelope
// @Router /departments/{id}/queue [get]
func (h *QueueHandler) Queue(c *gin.Context) {
	departmentID := c.Param("id")
	turns, err := h.turns.Queue(c.Request.Context(), departmentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.SetQueueDepth(departmentID, len(turns))
	response.JSON(c, http.StatusOK, turns, nil)
}

// Next godoc
// @Summary Peek the next turn to be called
// @Tags Queue
// @Produce json
// @Param id path string true "Department id"
// @Success 200 {object} response.Envelope
// @Router /departments/{id}/queue/next [get]
func (h *QueueHandler) Next(c *gin.Context) {
	turn, err := h.turns.Next(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, turn, nil)
}

// Stream godoc
// @Summary Server-sent event stream of turn events for public displays
// @Tags Queue
// @Produce text/event-stream
// @Param id path string true "Department id"
// @Success 200 {string} string "event stream"
// @Router /departments/{id}/display [get]
func (h *QueueHandler) Stream(c *gin.Context) {
	departmentID := c.Param("id")
	if _, err := h.turns.Queue(c.Request.Context(), departmentID); err != nil {
		response.Error(c, err)
		return
	}

	clientID := uuid.NewString()
	client := h.hub.Register(clientID, departmentID)
	defer h.hub.Unregister(clientID)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-client.Send:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: turn\ndata: %s\n\n", payload)
			c.Writer.Flush()
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": heartbeat\n\n")
			c.Writer.Flush()
		}
	}
}
