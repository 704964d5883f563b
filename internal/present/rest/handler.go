package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/totegamma/culturebridge"
	"github.com/totegamma/culturebridge/internal/domain"
	"github.com/totegamma/culturebridge/internal/infra/gateway"
	"github.com/totegamma/culturebridge/internal/present/rest/middleware"
	"github.com/totegamma/culturebridge/internal/present/rest/presenter"
	"github.com/totegamma/culturebridge/internal/service"
	"github.com/totegamma/culturebridge/internal/usecase"
	"github.com/totegamma/culturebridge/nostr"
	"github.com/totegamma/culturebridge/schemas"
)

// RelayStatusProvider reports the NIP-11 documents of the configured relays.
type RelayStatusProvider interface {
	Status(ctx context.Context) []gateway.RelayStatus
}

type Handler struct {
	info      culturebridge.NodeInfo
	signer    nostr.Signer
	record    *usecase.RecordUsecase
	republish *usecase.RepublishUsecase
	batch     *usecase.BatchUsecase
	validator *usecase.Validator
	relays    RelayStatusProvider
	signal    *service.SignalService
}

func NewHandler(
	info culturebridge.NodeInfo,
	signer nostr.Signer,
	record *usecase.RecordUsecase,
	republish *usecase.RepublishUsecase,
	batch *usecase.BatchUsecase,
	validator *usecase.Validator,
	relays RelayStatusProvider,
	signal *service.SignalService,
) *Handler {
	return &Handler{
		info:      info,
		signer:    signer,
		record:    record,
		republish: republish,
		batch:     batch,
		validator: validator,
		relays:    relays,
		signal:    signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/.well-known/culturebridge", h.handleWellKnown)
	e.GET("/relays", h.handleRelays)
	e.GET("/records/:type", h.handleList)
	e.GET("/resource/:naddr", h.handleResource)
	e.GET("/resource/:naddr/revisions", h.handleRevisions)
	e.POST("/validate", h.handleValidate)
	e.GET("/realtime", h.handleRealtime)

	e.POST("/records/:type", h.handleCreate, middleware.RequireOwner)
	e.POST("/resource/:naddr/republish", h.handleRepublish, middleware.RequireOwner)
	e.DELETE("/resource/:naddr", h.handleDelete, middleware.RequireOwner)
	e.POST("/sessions/:sid/:naddr/operations", h.handleRecordOperation, middleware.RequireOwner)
	e.GET("/sessions/:sid/:naddr/operations", h.handlePending, middleware.RequireOwner)
	e.DELETE("/sessions/:sid/:naddr/operations", h.handleClear, middleware.RequireOwner)
	e.POST("/sessions/:sid/:naddr/commit", h.handleCommit, middleware.RequireOwner)
	e.POST("/sessions/:sid/:naddr/retry", h.handleRetry, middleware.RequireOwner)
}

func (h *Handler) handleWellKnown(c echo.Context) error {
	info := h.info
	info.Version = "1.0"
	info.Endpoints = map[string]string{
		"records":    "/records/{type}",
		"resource":   "/resource/{naddr}",
		"revisions":  "/resource/{naddr}/revisions",
		"republish":  "/resource/{naddr}/republish",
		"validate":   "/validate",
		"operations": "/sessions/{sid}/{naddr}/operations",
		"commit":     "/sessions/{sid}/{naddr}/commit",
		"realtime":   "/realtime",
	}
	return presenter.OK(c, info)
}

func (h *Handler) handleRelays(c echo.Context) error {
	if h.relays == nil {
		return presenter.OK(c, []gateway.RelayStatus{})
	}
	return presenter.OK(c, h.relays.Status(c.Request().Context()))
}

func kindParam(c echo.Context) (int, error) {
	kind, ok := schemas.KindForType(c.Param("type"))
	if !ok {
		return 0, fmt.Errorf("unknown record type %q", c.Param("type"))
	}
	return kind, nil
}

func addressParam(c echo.Context) (culturebridge.Address, error) {
	return culturebridge.ParseAddress(c.Param("naddr"))
}

func (h *Handler) handleList(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := kindParam(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	limit := usecase.DefaultListLimit
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return presenter.BadRequestMessage(c, "invalid limit parameter")
		}
	}

	author := c.QueryParam("author")
	if author != "" && !culturebridge.IsHexKey(author) {
		return presenter.BadRequestMessage(c, "invalid author parameter")
	}

	records, err := h.record.List(ctx, kind, author, limit)
	if err != nil {
		return presenter.Error(c, err, nil)
	}
	return presenter.OK(c, records)
}

func (h *Handler) handleResource(c echo.Context) error {
	ctx := c.Request().Context()

	address, err := addressParam(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	record, err := h.record.Get(ctx, address)
	if err != nil {
		return presenter.Error(c, err, nil)
	}
	return presenter.OK(c, record)
}

func (h *Handler) handleRevisions(c echo.Context) error {
	ctx := c.Request().Context()

	address, err := addressParam(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	history, err := h.record.History(ctx, address)
	if err != nil {
		return presenter.Error(c, err, nil)
	}
	return presenter.OK(c, history)
}

func (h *Handler) handleValidate(c echo.Context) error {
	files, err := readFiles(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	outcome := h.validator.Validate(files)

	valid := make([]domain.Attachment, len(outcome.ValidFiles))
	for i, d := range outcome.ValidFiles {
		valid[i] = d.Attachment
	}
	return presenter.OK(c, echo.Map{
		"valid":        outcome.Valid(),
		"validFiles":   valid,
		"invalidFiles": outcome.InvalidFiles,
		"batchErrors":  outcome.BatchErrors,
		"limits":       h.validator.Limits(),
	})
}

func (h *Handler) handleCreate(c echo.Context) error {
	ctx := c.Request().Context()

	kind, err := kindParam(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	var fields domain.Fields
	if err := formJSON(c, "fields", &fields); err != nil {
		return presenter.BadRequest(c, err)
	}
	if fields.Title == "" {
		return presenter.BadRequestMessage(c, "title is required")
	}

	files, err := readFiles(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	result, err := h.record.Create(ctx, usecase.CreateInput{
		Kind:   kind,
		Fields: fields,
		Files:  files,
		Signer: h.signer,
	})
	if err != nil {
		return presenter.Error(c, err, result)
	}
	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) handleRepublish(c echo.Context) error {
	ctx := c.Request().Context()

	address, err := addressParam(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	var updates domain.FieldUpdates
	if err := formJSON(c, "fields", &updates); err != nil {
		return presenter.BadRequest(c, err)
	}

	// absent keeps every attachment, "[]" removes them all
	var kept []string
	if err := formJSON(c, "keptAttachmentIds", &kept); err != nil {
		return presenter.BadRequest(c, err)
	}
	var order []string
	if err := formJSON(c, "order", &order); err != nil {
		return presenter.BadRequest(c, err)
	}

	files, err := readFiles(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	result, err := h.republish.Republish(ctx, usecase.RepublishInput{
		Address:            address,
		Updates:            updates,
		NewFiles:           files,
		KeptAttachmentIDs:  kept,
		Order:              order,
		ExpectedRevisionID: c.FormValue("expectedRevisionId"),
		Signer:             h.signer,
	})
	if err != nil {
		return presenter.Error(c, err, result)
	}
	return presenter.OK(c, result)
}

func (h *Handler) handleDelete(c echo.Context) error {
	ctx := c.Request().Context()

	address, err := addressParam(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	accepted, rejected, err := h.record.Delete(ctx, address, c.QueryParam("reason"), h.signer)
	if err != nil {
		return presenter.Error(c, err, nil)
	}
	return presenter.OK(c, echo.Map{"accepted": accepted, "rejected": rejected})
}

func sessionParams(c echo.Context) (string, culturebridge.Address, error) {
	sid := c.Param("sid")
	if sid == "" {
		return "", culturebridge.Address{}, fmt.Errorf("session id required")
	}
	address, err := addressParam(c)
	return sid, address, err
}

func (h *Handler) handleRecordOperation(c echo.Context) error {
	ctx := c.Request().Context()

	sid, address, err := sessionParams(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	op := domain.Operation{
		Kind:               domain.OperationKind(c.FormValue("kind")),
		TargetAttachmentID: c.FormValue("targetAttachmentId"),
	}
	if v := c.FormValue("fromPosition"); v != "" {
		if op.FromPosition, err = strconv.Atoi(v); err != nil {
			return presenter.BadRequestMessage(c, "invalid fromPosition")
		}
	}
	if v := c.FormValue("toPosition"); v != "" {
		if op.ToPosition, err = strconv.Atoi(v); err != nil {
			return presenter.BadRequestMessage(c, "invalid toPosition")
		}
	}
	if op.PayloadFiles, err = readFiles(c); err != nil {
		return presenter.BadRequest(c, err)
	}

	recorded, err := h.batch.Record(ctx, sid, address, op)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	return c.JSON(http.StatusCreated, recorded)
}

func (h *Handler) handlePending(c echo.Context) error {
	sid, address, err := sessionParams(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	return presenter.OK(c, h.batch.Pending(c.Request().Context(), sid, address))
}

func (h *Handler) handleClear(c echo.Context) error {
	sid, address, err := sessionParams(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	h.batch.Clear(c.Request().Context(), sid, address)
	return presenter.OK(c, echo.Map{"status": "ok"})
}

type commitRequest struct {
	Fields             domain.FieldUpdates `json:"fields"`
	ExpectedRevisionID string              `json:"expectedRevisionId"`
}

func (h *Handler) handleCommit(c echo.Context) error {
	ctx := c.Request().Context()

	sid, address, err := sessionParams(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	var req commitRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return presenter.BadRequest(c, err)
		}
	}

	result, err := h.batch.Execute(ctx, usecase.CommitInput{
		SessionID:          sid,
		Address:            address,
		Updates:            req.Fields,
		ExpectedRevisionID: req.ExpectedRevisionID,
		Signer:             h.signer,
	})
	if err != nil {
		return presenter.Error(c, err, result)
	}
	return presenter.OK(c, result)
}

type retryRequest struct {
	OperationIDs []string `json:"operationIds"`
}

func (h *Handler) handleRetry(c echo.Context) error {
	ctx := c.Request().Context()

	sid, address, err := sessionParams(c)
	if err != nil {
		return presenter.BadRequest(c, err)
	}

	var req retryRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return presenter.BadRequest(c, err)
		}
	}

	pending, err := h.batch.Retry(ctx, sid, address, req.OperationIDs...)
	if err != nil {
		return presenter.Error(c, err, nil)
	}
	return presenter.OK(c, pending)
}

// formJSON decodes a JSON encoded form value. A missing value leaves v untouched.
func formJSON(c echo.Context, name string, v any) error {
	raw := c.FormValue(name)
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("invalid %s: %v", name, err)
	}
	return nil
}

// readFiles collects the "files" parts of a multipart request. Optional
// "alt" values pair with files by position.
func readFiles(c echo.Context) ([]domain.FileInput, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid multipart form: %v", err)
	}

	headers := form.File["files"]
	alts := form.Value["alt"]
	files := make([]domain.FileInput, 0, len(headers))
	for i, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %v", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %v", fh.Filename, err)
		}

		input := domain.FileInput{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		}
		if i < len(alts) {
			input.Alt = alts[i]
		}
		files = append(files, input)
	}
	return files, nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Request is a realtime client frame. "listen" replaces the address
// prefixes the socket follows, e.g. "30402:" or "30023:<pubkey>:".
type Request struct {
	Type     string   `json:"type"`
	Prefixes []string `json:"prefixes"`
}

func (h *Handler) handleRealtime(c echo.Context) error {
	if h.signal == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "realtime disabled"})
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
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	input := make(chan []string)
	output := make(chan domain.ContentRecord)

	go h.signal.Realtime(ctx, input, output)

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req Request
			err := ws.ReadJSON(&req)
			if err != nil {
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
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "listen":
				select {
				case input <- req.Prefixes:
				case <-ctx.Done():
					return
				}
				slog.DebugContext(
					ctx, fmt.Sprintf("Socket subscribe: %s", req.Prefixes),
					slog.String("module", "socket"),
				)
			case "h": // heartbeat
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	for {
		select {
		case <-quit:
			return nil
		case record := <-output:
			err := ws.WriteJSON(record)
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
