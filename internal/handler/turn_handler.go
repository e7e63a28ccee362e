package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muni-digital/turnos-api/internal/service"
	appErrors "github.com/muni-digital/turnos-api/pkg/errors"
	"github.com/muni-digital/turnos-api/pkg/response"
)

// TurnHandler exposes the turn lifecycle endpoints.
type TurnHandler struct {
	turns *service.TurnService
}

// NewTurnHandler constructs handler.
func NewTurnHandler(turns *service.TurnService) *TurnHandler {
	return &TurnHandler{turns: turns}
}

// actionRequest is the optional body for lifecycle actions.
type actionRequest struct {
	Notes string `json:"notes"`
}

func bindOptional(c *gin.Context, target interface{}) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(target)
}

// Generate godoc
// @Summary Generate a new turn
// @Tags Turns
// @Accept json
// @Produce json
// @Param payload body service.GenerateTurnRequest true "Turn payload"
// @Success 201 {object} response.Envelope
// @Router /turns [post]
func (h *TurnHandler) Generate(c *gin.Context) {
	var req service.GenerateTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	turn, err := h.turns.Generate(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, turn)
}

// Get godoc
// @Summary Get a turn by id
// @Tags Turns
// @Produce json
// @Param id path string true "Turn id"
// @Success 200 {object} response.Envelope
// @Router /turns/{id} [get]
func (h *TurnHandler) Get(c *gin.Context) {
	turn, err := h.turns.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, turn, nil)
}

// Call godoc
// @Summary Call a queued turn to the counter
// @Tags Turns
// @Accept json
// @Produce json
// @Param id path string true "Turn id"
// @Param payload body actionRequest false "Optional notes"
// @Success 200 {object} response.Envelope
// @Router /turns/{id}/call [post]
func (h *TurnHandler) Call(c *gin.Context) {
	var req actionRequest
	if err := bindOptional(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	turn, err := h.turns.Call(c.Request.Context(), c.Param("id"), actorID(c), req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, turn, nil)
}

// Start godoc
// @Summary Start attention for a called turn
// @Tags Turns
// @Accept json
// @Produce json
// @Param id path string true "Turn id"
// @Param payload body actionRequest false "Optional notes"
// @Success 200 {object} response.Envelope
// @Router /turns/{id}/start [post]
func (h *TurnHandler) Start(c *gin.Context) {
	var req actionRequest
	if err := bindOptional(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	turn, err := h.turns.StartAttention(c.Request.Context(), c.Param("id"), actorID(c), req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, turn, nil)
}

// Finish godoc
// @Summary Finish attention for a turn
// @Tags Turns
// @Accept json
// @Produce json
// @Param id path string true "Turn id"
// @Param payload body actionRequest false "Optional notes"
// @Success 200 {object} response.Envelope
// @Router /turns/{id}/finish [post]
func (h *TurnHandler) Finish(c *gin.Context) {
	var req actionRequest
	if err := bindOptional(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	turn, err := h.turns.Finish(c.Request.Context(), c.Param("id"), actorID(c), req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, turn, nil)
}

// Absent godoc
// @Summary Mark a called turn absent
// @Tags Turns
// @Accept json
// @Produce json
// @Param id path string true "Turn id"
// @Param payload body actionRequest false "Optional notes"
// @Success 200 {object} response.Envelope
// @Router /turns/{id}/absent [post]
func (h *TurnHandler) Absent(c *gin.Context) {
	var req actionRequest
	if err := bindOptional(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	turn, err := h.turns.MarkAbsent(c.Request.Context(), c.Param("id"), actorID(c), req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, turn, nil)
}

// Redirect godoc
// @Summary Redirect a turn to another department
// @Tags Turns
// @Accept json
// @Produce json
// @Param id path string true "Turn id"
// @Param payload body service.RedirectTurnRequest true "Redirect payload"
// @Success 200 {object} response.Envelope
// @Router /turns/{id}/redirect [post]
func (h *TurnHandler) Redirect(c *gin.Context) {
	var req service.RedirectTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	turn, err := h.turns.Redirect(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, turn, nil)
}

// Cancel godoc
// @Summary Cancel a turn
// @Tags Turns
// @Accept json
// @Produce json
// @Param id path string true "Turn id"
// @Param payload body service.CancelTurnRequest false "Cancel payload"
// @Success 200 {object} response.Envelope
// @Router /turns/{id}/cancel [post]
func (h *TurnHandler) Cancel(c *gin.Context) {
	var req service.CancelTurnRequest
	if err := bindOptional(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	turn, err := h.turns.Cancel(c.Request.Context(), c.Param("id"), actorID(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, turn, nil)
}
