package handlers

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rezolv/rezolv/internal/alias"
)

// Stable machine-readable error codes carried in the error body's type
// field.
const (
	CodeValidation  = "validation_error"
	CodeCodeTaken   = "code_taken"
	CodeNotFound    = "not_found"
	CodeForbidden   = "forbidden"
	CodeRateLimited = "rate_limited"
	CodeInternal    = "internal"
)

// AliasBody is the JSON projection of an alias record.
type AliasBody struct {
	ID          string     `doc:"Alias identifier"                json:"id"`
	Code        string     `doc:"Short code"                      example:"x7Yd91a"                          json:"code"`
	ShortURL    string     `doc:"Full short URL"                  example:"https://rzl.example/x7Yd91a"      json:"shortUrl"`
	Destination string     `doc:"Destination URL"                 example:"https://example.com/landing-page" json:"destination"`
	Title       string     `doc:"Display title"                   json:"title,omitempty"`
	Tags        []string   `doc:"Tags, at most ten"               json:"tags,omitempty"`
	Active      bool       `doc:"Whether the alias resolves"      json:"active"`
	ExpiresAt   *time.Time `doc:"Expiry, absent means never"      json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// CreateAliasRequest is the request for creating an alias.
type CreateAliasRequest struct {
	Body struct {
		Destination string     `doc:"URL to shorten, absolute http/https" example:"https://example.com/landing-page" json:"destination"`
		Title       string     `doc:"Optional display title"              json:"title,omitempty"`
		Tags        []string   `doc:"Optional tags, at most ten"          json:"tags,omitempty"    maxItems:"10"`
		CustomCode  string     `doc:"Optional explicit short code"        json:"customCode,omitempty"`
		ExpiresAt   *time.Time `doc:"Optional expiry"                     json:"expiresAt,omitempty"`
	}
}

// CreateAliasResponse is the response for a created alias.
type CreateAliasResponse struct {
	Headers struct {
		Location string `doc:"The short URL" header:"Location"`
	}
	Body AliasBody
}

// ListAliasesRequest narrows and pages the caller's aliases.
type ListAliasesRequest struct {
	Page       int      `doc:"Page number, starting at 1" minimum:"1" query:"page"`
	Limit      int      `doc:"Page size"                  maximum:"100" minimum:"1" query:"limit"`
	Search     string   `doc:"Substring match on code, title, or destination" query:"search"`
	Tags       []string `doc:"Require all given tags" query:"tags"`
	ActiveOnly bool     `doc:"Only active aliases" query:"activeOnly"`
}

// ListAliasesResponse is one page of aliases.
type ListAliasesResponse struct {
	Body struct {
		Items []AliasBody `json:"items"`
		Page  int         `json:"page"`
		Limit int         `json:"limit"`
		Total int64       `json:"total"`
	}
}

// UpdateAliasRequest is a partial update; absent fields stay unchanged.
type UpdateAliasRequest struct {
	ID   string `doc:"Alias identifier" path:"id"`
	Body struct {
		Title     *string    `json:"title,omitempty"`
		Tags      *[]string  `json:"tags,omitempty"  maxItems:"10"`
		Active    *bool      `json:"active,omitempty"`
		ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	}
}

// UpdateAliasResponse returns the updated alias.
type UpdateAliasResponse struct {
	Body AliasBody
}

// DeleteAliasRequest identifies the alias to soft-delete.
type DeleteAliasRequest struct {
	ID string `doc:"Alias identifier" path:"id"`
}

// RedirectRequest is a short code resolution request.
type RedirectRequest struct {
	Code string `doc:"The short code" example:"x7Yd91a" path:"code"`
}

// RedirectResponse redirects to the destination, or to the not-found or
// expired page.
type RedirectResponse struct {
	Status  int
	Headers struct {
		Location     string `header:"Location"`
		CacheControl string `header:"Cache-Control"`
	}
}

// apiError builds a structured error body with a stable code in the type
// field.
func apiError(status int, code, detail string) error {
	return &huma.ErrorModel{
		Type:   code,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

func toAliasBody(rec *alias.Record, baseURL string) AliasBody {
	return AliasBody{
		ID:          rec.ID.String(),
		Code:        rec.Code,
		ShortURL:    baseURL + "/" + rec.Code,
		Destination: rec.Destination,
		Title:       rec.Title,
		Tags:        rec.Tags,
		Active:      rec.Active,
		ExpiresAt:   rec.ExpiresAt,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}
