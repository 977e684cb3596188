// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	tomeerr "github.com/sigil-dev/tome/pkg/errors"
	"github.com/sigil-dev/tome/pkg/types"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-stores",
		Method:      http.MethodGet,
		Path:        "/stores",
		Summary:     "List stores",
		Tags:        []string{"stores"},
	}, s.handleListStores)

	huma.Register(s.api, huma.Operation{
		OperationID: "search-store",
		Method:      http.MethodGet,
		Path:        "/stores/{name}/search",
		Summary:     "Similarity search within a store",
		Tags:        []string{"stores"},
	}, s.handleSearch)
}

// StoreSummary is one catalog entry.
type StoreSummary struct {
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// SearchHit is one search result.
type SearchHit struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Distance float64 `json:"distance" doc:"Lower is more similar"`
}

type listStoresOutput struct {
	Body struct {
		Stores []StoreSummary `json:"stores"`
	}
}

type searchInput struct {
	Name   string `path:"name"`
	Query  string `query:"query" doc:"Text to search for"`
	Column string `query:"column" default:"content" doc:"title or content"`
	Limit  int    `query:"limit" default:"10" doc:"Maximum number of results"`
}

type searchOutput struct {
	Body struct {
		Message string      `json:"message"`
		Data    []SearchHit `json:"data"`
	}
}

func (s *Server) handleListStores(ctx context.Context, _ *struct{}) (*listStoresOutput, error) {
	recs, err := s.services.stores.List(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing stores", err)
	}
	out := &listStoresOutput{}
	out.Body.Stores = make([]StoreSummary, 0, len(recs))
	for _, r := range recs {
		out.Body.Stores = append(out.Body.Stores, StoreSummary{Name: r.Name, Location: r.Location, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (s *Server) handleSearch(ctx context.Context, input *searchInput) (*searchOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, huma.Error400BadRequest("query is required")
	}
	field, ok := types.ParseSearchField(input.Column)
	if !ok {
		return nil, huma.Error400BadRequest(fmt.Sprintf("column must be title or content, got %q", input.Column))
	}
	if input.Limit <= 0 {
		return nil, huma.Error400BadRequest(fmt.Sprintf("limit must be greater than 0, got %d", input.Limit))
	}

	results, err := s.services.stores.Search(ctx, input.Name, input.Query, field, input.Limit)
	if err != nil {
		return nil, toHTTPError(err)
	}

	out := &searchOutput{}
	out.Body.Message = fmt.Sprintf("%d results", len(results))
	out.Body.Data = make([]SearchHit, 0, len(results))
	for _, r := range results {
		out.Body.Data = append(out.Body.Data, SearchHit{ID: r.ID, Title: r.Title, Content: r.Content, Distance: r.Distance})
	}
	return out, nil
}

// toHTTPError maps a coded error onto the matching HTTP status.
func toHTTPError(err error) error {
	status := tomeerr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		return huma.Error500InternalServerError("internal error", err)
	}
	return huma.NewError(status, err.Error())
}
