package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rezolv/rezolv/internal/alias"
	"github.com/rezolv/rezolv/internal/clicks"
	"github.com/rezolv/rezolv/internal/service"
	"go.uber.org/zap"
)

// Handler serves the alias CRUD surface and the redirect endpoint.
type Handler struct {
	svc          *service.Service
	baseURL      string
	notFoundPath string
	expiredPath  string
	logger       *zap.Logger
}

// NewHandler creates an HTTP handler over the resolution service.
// notFoundPath and expiredPath are where failed redirects land.
func NewHandler(svc *service.Service, baseURL, notFoundPath, expiredPath string, logger *zap.Logger) *Handler {
	return &Handler{
		svc:          svc,
		baseURL:      baseURL,
		notFoundPath: notFoundPath,
		expiredPath:  expiredPath,
		logger:       logger,
	}
}

func (h *Handler) CreateAlias(ctx context.Context, req *CreateAliasRequest) (*CreateAliasResponse, error) {
	rec, err := h.svc.Create(ctx, UserIDFromContext(ctx), service.CreateInput{
		Destination: req.Body.Destination,
		Title:       req.Body.Title,
		Tags:        req.Body.Tags,
		CustomCode:  req.Body.CustomCode,
		ExpiresAt:   req.Body.ExpiresAt,
	})
	if err != nil {
		return nil, h.mapError(err)
	}

	resp := &CreateAliasResponse{Body: toAliasBody(rec, h.baseURL)}
	resp.Headers.Location = resp.Body.ShortURL

	return resp, nil
}

func (h *Handler) ListAliases(ctx context.Context, req *ListAliasesRequest) (*ListAliasesResponse, error) {
	page, err := h.svc.List(ctx, UserIDFromContext(ctx), alias.ListFilter{
		Page:       req.Page,
		Limit:      req.Limit,
		Search:     req.Search,
		Tags:       req.Tags,
		ActiveOnly: req.ActiveOnly,
	})
	if err != nil {
		return nil, h.mapError(err)
	}

	resp := &ListAliasesResponse{}
	resp.Body.Items = make([]AliasBody, 0, len(page.Items))
	resp.Body.Page = page.Page
	resp.Body.Limit = page.Limit
	resp.Body.Total = page.Total

	for _, rec := range page.Items {
		resp.Body.Items = append(resp.Body.Items, toAliasBody(rec, h.baseURL))
	}

	return resp, nil
}

func (h *Handler) UpdateAlias(ctx context.Context, req *UpdateAliasRequest) (*UpdateAliasResponse, error) {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, apiError(http.StatusBadRequest, CodeValidation, "invalid alias id")
	}

	rec, err := h.svc.Update(ctx, UserIDFromContext(ctx), id, service.UpdateInput{
		Title:     req.Body.Title,
		Tags:      req.Body.Tags,
		Active:    req.Body.Active,
		ExpiresAt: req.Body.ExpiresAt,
	})
	if err != nil {
		return nil, h.mapError(err)
	}

	return &UpdateAliasResponse{Body: toAliasBody(rec, h.baseURL)}, nil
}

func (h *Handler) DeleteAlias(ctx context.Context, req *DeleteAliasRequest) (*struct{}, error) {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, apiError(http.StatusBadRequest, CodeValidation, "invalid alias id")
	}

	if err := h.svc.Delete(ctx, UserIDFromContext(ctx), id); err != nil {
		return nil, h.mapError(err)
	}

	return nil, nil
}

// Redirect resolves a short code. Unknown and expired codes redirect to
// their dedicated pages rather than returning a bare error.
func (h *Handler) Redirect(ctx context.Context, req *RedirectRequest) (*RedirectResponse, error) {
	resolution, err := h.svc.Resolve(ctx, req.Code, RequestMetaFromContext(ctx))
	if err != nil {
		h.logger.Error("resolution failed",
			zap.String("code", req.Code),
			zap.Error(err),
		)

		return nil, apiError(http.StatusInternalServerError, CodeInternal, "resolution failed")
	}

	resp := &RedirectResponse{Status: http.StatusFound}
	resp.Headers.CacheControl = "no-store"

	switch resolution.Outcome {
	case clicks.OutcomeNotFound:
		resp.Headers.Location = h.notFoundPath
	case clicks.OutcomeExpired:
		resp.Headers.Location = h.expiredPath
	default:
		resp.Headers.Location = resolution.Destination
	}

	return resp, nil
}

func (h *Handler) mapError(err error) error {
	var verr *alias.ValidationError

	switch {
	case errors.As(err, &verr):
		return apiError(http.StatusBadRequest, CodeValidation, verr.Error())
	case errors.Is(err, alias.ErrCodeTaken):
		return apiError(http.StatusConflict, CodeCodeTaken, "short code already taken")
	case errors.Is(err, alias.ErrNotFound):
		return apiError(http.StatusNotFound, CodeNotFound, "alias not found")
	case errors.Is(err, alias.ErrForbidden):
		return apiError(http.StatusForbidden, CodeForbidden, "not the alias owner")
	default:
		h.logger.Error("unexpected service error", zap.Error(err))

		return apiError(http.StatusInternalServerError, CodeInternal, "unexpected error")
	}
}
