package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/inklet/inklet"
	"github.com/inklet/inklet/internal/domain"
	"github.com/inklet/inklet/internal/present/rest/presenter"
	"github.com/inklet/inklet/internal/service"
	"github.com/inklet/inklet/internal/usecase"
)

type Handler struct {
	allocator  *usecase.AllocatorUsecase
	engine     *usecase.EngineUsecase
	visibility *usecase.VisibilityUsecase
	clear      *usecase.ClearUsecase
	signal     *service.SignalService
}

func NewHandler(
	allocator *usecase.AllocatorUsecase,
	engine *usecase.EngineUsecase,
	visibility *usecase.VisibilityUsecase,
	clear *usecase.ClearUsecase,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		allocator:  allocator,
		engine:     engine,
		visibility: visibility,
		clear:      clear,
		signal:     signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/inklet", h.handleWellKnown)
	e.POST("/api/v1/strokes", h.handleSubmit)
	e.POST("/api/v1/rooms/:room/undo", h.handleUndo)
	e.POST("/api/v1/rooms/:room/redo", h.handleRedo)
	e.POST("/api/v1/clear", h.handleClear)
	e.GET("/api/v1/rooms/:room/strokes", h.handleListStrokes)
	e.GET("/api/v1/counter", h.handleCounter)
	e.GET("/realtime", h.handleRealtime)
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	wellknown := inklet.WellKnownInklet{
		Version: "1.0",
		Name:    "inklet",
		Endpoints: map[string]string{
			"dev.inklet.stroke.submit": "/api/v1/strokes",
			"dev.inklet.stroke.list":   "/api/v1/rooms/{room}/strokes",
			"dev.inklet.undo":          "/api/v1/rooms/{room}/undo",
			"dev.inklet.redo":          "/api/v1/rooms/{room}/redo",
			"dev.inklet.clear":         "/api/v1/clear",
			"dev.inklet.realtime":      "/realtime",
		},
	}
	return presenter.OK(c, wellknown)
}

func (h *Handler) handleSubmit(c echo.Context) error {
	ctx := c.Request().Context()

	var req inklet.SubmitRequest
	err := c.Bind(&req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	if req.RoomID == "" || req.UserID == "" {
		return presenter.BadRequestMessage(c, "roomId and userId are required")
	}

	stroke, err := h.engine.SubmitStroke(ctx, usecase.SubmitInput{
		RoomID:    req.RoomID,
		UserID:    req.UserID,
		Timestamp: req.Timestamp,
		Payload:   req.Payload,
	})
	if err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return presenter.ServiceUnavailable(c, err)
		}
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, inklet.SubmitResponse{
		ID:              stroke.ID,
		ServerTimestamp: stroke.ServerTimestamp,
	})
}

func (h *Handler) handleUndo(c echo.Context) error {
	return h.handleReverse(c, h.engine.Undo)
}

func (h *Handler) handleRedo(c echo.Context) error {
	return h.handleReverse(c, h.engine.Redo)
}

type reverseOp func(ctx context.Context, roomID, userID string) (domain.OpStatus, error)

func (h *Handler) handleReverse(c echo.Context, op reverseOp) error {
	ctx := c.Request().Context()
	roomID := c.Param("room")

	var req inklet.UndoRequest
	err := c.Bind(&req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	if roomID == "" || req.UserID == "" {
		return presenter.BadRequestMessage(c, "room and userId are required")
	}

	status, err := op(ctx, roomID, req.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return presenter.ServiceUnavailable(c, err)
		}
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, inklet.OpResponse{Status: string(status)})
}

func (h *Handler) handleClear(c echo.Context) error {
	ctx := c.Request().Context()

	var req inklet.ClearRequest
	err := c.Bind(&req)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	watermark, err := h.clear.Clear(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return presenter.ServiceUnavailable(c, err)
		}
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, echo.Map{
		"status":    string(domain.StatusSuccess),
		"watermark": watermark,
	})
}

func (h *Handler) handleListStrokes(c echo.Context) error {
	ctx := c.Request().Context()
	roomID := c.Param("room")

	var window *domain.Window
	sinceStr := c.QueryParam("since")
	untilStr := c.QueryParam("until")
	if sinceStr != "" || untilStr != "" {
		window = &domain.Window{}
		if sinceStr != "" {
			since, err := strconv.ParseInt(sinceStr, 10, 64)
			if err != nil {
				return presenter.BadRequestMessage(c, "invalid since parameter")
			}
			window.Since = &since
		}
		if untilStr != "" {
			until, err := strconv.ParseInt(untilStr, 10, 64)
			if err != nil {
				return presenter.BadRequestMessage(c, "invalid until parameter")
			}
			window.Until = &until
		}
	}

	strokes, degraded, err := h.visibility.ListStrokes(ctx, roomID, window)
	if err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return presenter.ServiceUnavailable(c, err)
		}
		return presenter.InternalError(c, err)
	}

	return presenter.OK(c, echo.Map{
		"strokes":  strokes,
		"degraded": degraded,
	})
}

func (h *Handler) handleCounter(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := h.allocator.CurrentCount(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return presenter.ServiceUnavailable(c, err)
		}
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, echo.Map{"count": count})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *Handler) handleRealtime(c echo.Context) error {
	roomID := c.QueryParam("room")
	if roomID == "" {
		return presenter.BadRequestMessage(c, "room parameter is required")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx := c.Request().Context()

	sub := h.signal.Subscribe(ctx, roomID)
	defer sub.Close()

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			// the read loop only serves heartbeats and close detection
			if _, _, err := ws.ReadMessage(); err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.DebugContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}
		}
	}()

	events := sub.Channel()
	for {
		select {
		case <-quit:
			return nil
		case <-ctx.Done():
			return nil
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			err := ws.WriteMessage(websocket.TextMessage, []byte(msg.Payload))
			if err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
