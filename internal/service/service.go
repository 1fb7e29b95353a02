package service

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rezolv/rezolv/internal/alias"
	"github.com/rezolv/rezolv/internal/cache"
	"github.com/rezolv/rezolv/internal/clicks"
	"go.uber.org/zap"
)

var customCodePattern = regexp.MustCompile(`^[0-9a-zA-Z]{4,32}$`)

// Service orchestrates alias creation, mutation, and resolution. Admission
// control runs in front of it at the HTTP layer; every mutation here is
// followed by a synchronous cache invalidation.
type Service struct {
	repo       alias.Repository
	cache      *cache.Cache
	pipeline   *clicks.Pipeline
	codeLength int
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a resolution service.
func New(
	repo alias.Repository,
	c *cache.Cache,
	pipeline *clicks.Pipeline,
	codeLength int,
	logger *zap.Logger,
) *Service {
	if codeLength <= 0 {
		codeLength = alias.DefaultCodeLength
	}

	return &Service{
		repo:       repo,
		cache:      c,
		pipeline:   pipeline,
		codeLength: codeLength,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateInput is a validated-on-entry alias creation request.
type CreateInput struct {
	Destination string
	Title       string
	Tags        []string
	CustomCode  string
	ExpiresAt   *time.Time
}

// Create validates the input, picks a unique code, stores the record, and
// pre-populates both cache tiers.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (*alias.Record, error) {
	destination, err := alias.SanitizeDestination(in.Destination)
	if err != nil {
		return nil, err
	}

	if err := alias.ValidateTitle(in.Title); err != nil {
		return nil, err
	}

	tags, err := alias.NormalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	now := s.now()

	if in.ExpiresAt != nil && in.ExpiresAt.Before(now) {
		return nil, &alias.ValidationError{Field: "expiresAt", Reason: "must be in the future"}
	}

	code, err := s.pickCode(ctx, destination, ownerID, in.CustomCode)
	if err != nil {
		return nil, err
	}

	rec := &alias.Record{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Destination: destination,
		Code:        code,
		Title:       in.Title,
		Tags:        tags,
		Active:      true,
		ExpiresAt:   in.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.cache.Populate(ctx, code, rec)

	s.logger.Info("alias created",
		zap.String("id", rec.ID.String()),
		zap.String("code", rec.Code),
	)

	return rec, nil
}

func (s *Service) pickCode(ctx context.Context, destination, ownerID, custom string) (string, error) {
	if custom == "" {
		return alias.GenerateUnique(ctx, destination, ownerID, s.codeLength, s.repo.Exists)
	}

	if !customCodePattern.MatchString(custom) {
		return "", &alias.ValidationError{
			Field:  "customCode",
			Reason: "must be 4-32 characters from 0-9a-zA-Z",
		}
	}

	taken, err := s.repo.Exists(ctx, custom)
	if err != nil {
		return "", err
	}

	if taken {
		return "", alias.ErrCodeTaken
	}

	return custom, nil
}

// UpdateInput carries the partial-update fields; nil means unchanged.
type UpdateInput struct {
	Title     *string
	Tags      *[]string
	Active    *bool
	ExpiresAt *time.Time
}

// Update applies an owner-only partial update and synchronously
// invalidates the alias in both cache tiers.
func (s *Service) Update(
	ctx context.Context, ownerID string, id uuid.UUID, in UpdateInput,
) (*alias.Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.OwnerID != ownerID {
		return nil, alias.ErrForbidden
	}

	if in.Title != nil {
		if err := alias.ValidateTitle(*in.Title); err != nil {
			return nil, err
		}

		rec.Title = *in.Title
	}

	if in.Tags != nil {
		tags, err := alias.NormalizeTags(*in.Tags)
		if err != nil {
			return nil, err
		}

		rec.Tags = tags
	}

	if in.Active != nil {
		rec.Active = *in.Active
	}

	if in.ExpiresAt != nil {
		rec.ExpiresAt = in.ExpiresAt
	}

	rec.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, rec.Code)

	return rec, nil
}

// Delete soft-deletes an owner's alias and synchronously invalidates it.
func (s *Service) Delete(ctx context.Context, ownerID string, id uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if rec.OwnerID != ownerID {
		return alias.ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.cache.Invalidate(ctx, rec.Code)

	return nil
}

// List returns one page of the owner's aliases.
func (s *Service) List(
	ctx context.Context, ownerID string, filter alias.ListFilter,
) (*alias.Page, error) {
	return s.repo.List(ctx, ownerID, filter)
}

// Resolution is the terminal outcome of a redirect request.
type Resolution struct {
	Outcome     clicks.Outcome
	Destination string
	Record      *alias.Record
}

// Resolve looks up a code through the cache tiers and decides the redirect
// outcome. The click event is fired after the decision and never gates the
// response. The returned error is non-nil only when the durable store
// itself failed.
func (s *Service) Resolve(
	ctx context.Context, code string, meta clicks.RequestMeta,
) (Resolution, error) {
	rec, err := s.cache.Resolve(ctx, code)
	if err != nil {
		if errors.Is(err, alias.ErrNotFound) {
			// No alias id to attribute the attempt to.
			return Resolution{Outcome: clicks.OutcomeNotFound}, nil
		}

		return Resolution{}, err
	}

	resolution := Resolution{Record: rec}

	switch {
	case !rec.Active:
		resolution.Outcome = clicks.OutcomeNotFound
	case rec.Expired(s.now()):
		resolution.Outcome = clicks.OutcomeExpired
	default:
		resolution.Outcome = clicks.OutcomeFound
		resolution.Destination = rec.Destination
	}

	s.pipeline.RecordAttempt(rec.ID, resolution.Outcome, meta)

	return resolution, nil
}
