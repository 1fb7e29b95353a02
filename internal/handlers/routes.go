package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rezolv/rezolv/internal/ratelimit"
)

// RegisterRoutes registers the alias CRUD surface and the redirect
// endpoint, tagging each with its admission endpoint key. The redirect
// route suppresses quota headers.
func RegisterRoutes(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		Method:        http.MethodPost,
		Path:          "/aliases",
		Summary:       "Create alias",
		Description:   "Creates a short alias for a destination URL.",
		Tags:          []string{"Aliases"},
		DefaultStatus: http.StatusCreated,
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Endpoint: ratelimit.EndpointCreate},
		},
	}, h.CreateAlias)

	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/aliases",
		Summary:     "List aliases",
		Description: "Lists the caller's aliases with pagination and filters.",
		Tags:        []string{"Aliases"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Endpoint: ratelimit.EndpointList},
		},
	}, h.ListAliases)

	huma.Register(api, huma.Operation{
		Method:      http.MethodPut,
		Path:        "/aliases/{id}",
		Summary:     "Update alias",
		Description: "Updates title, tags, active flag, or expiry. Owner only.",
		Tags:        []string{"Aliases"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Endpoint: ratelimit.EndpointUpdate},
		},
	}, h.UpdateAlias)

	huma.Register(api, huma.Operation{
		Method:        http.MethodDelete,
		Path:          "/aliases/{id}",
		Summary:       "Delete alias",
		Description:   "Soft-deletes an alias. Owner only.",
		Tags:          []string{"Aliases"},
		DefaultStatus: http.StatusNoContent,
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{Endpoint: ratelimit.EndpointDelete},
		},
	}, h.DeleteAlias)

	huma.Register(api, huma.Operation{
		Method:      http.MethodGet,
		Path:        "/{code}",
		Summary:     "Resolve short code",
		Description: "Redirects to the destination, or to the not-found or expired page.",
		Tags:        []string{"Redirect"},
		Metadata: map[string]any{
			ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Endpoint:        ratelimit.EndpointRedirect,
				SuppressHeaders: true,
			},
		},
	}, h.Redirect)
}
