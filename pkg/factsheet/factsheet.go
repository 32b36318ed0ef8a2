// Package factsheet holds the shared work product of a single pipeline run.
package factsheet

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrScopeEmpty is returned when a ProjectScope asks for nothing at all.
	ErrScopeEmpty = errors.New("project scope has no required capability: at least one flag must be true")
	// ErrScopeIncomplete is returned when a ProjectScope document omits a flag.
	ErrScopeIncomplete = errors.New("project scope is missing required fields")
)

// ProjectScope summarises which capabilities a website build needs.
type ProjectScope struct {
	IsCRUDRequired         bool `json:"is_crud_required" jsonschema:"required,description=true if site needs CRUD functionality"`
	IsUserLoginAndLogout   bool `json:"is_user_login_and_logout" jsonschema:"required,description=true if site needs users to be able to log in and log out"`
	IsExternalURLsRequired bool `json:"is_external_urls_required" jsonschema:"required,description=true if site needs to fetch data from third party providers"`
}

// UnmarshalJSON requires all three flags and rejects any other key, so an
// incomplete answer never decodes into false.
func (s *ProjectScope) UnmarshalJSON(data []byte) error {
	var raw struct {
		IsCRUDRequired         *bool `json:"is_crud_required"`
		IsUserLoginAndLogout   *bool `json:"is_user_login_and_logout"`
		IsExternalURLsRequired *bool `json:"is_external_urls_required"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("project scope: %w", err)
	}

	var missing []string
	if raw.IsCRUDRequired == nil {
		missing = append(missing, "is_crud_required")
	}
	if raw.IsUserLoginAndLogout == nil {
		missing = append(missing, "is_user_login_and_logout")
	}
	if raw.IsExternalURLsRequired == nil {
		missing = append(missing, "is_external_urls_required")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrScopeIncomplete, strings.Join(missing, ", "))
	}

	*s = ProjectScope{
		IsCRUDRequired:         *raw.IsCRUDRequired,
		IsUserLoginAndLogout:   *raw.IsUserLoginAndLogout,
		IsExternalURLsRequired: *raw.IsExternalURLsRequired,
	}
	return nil
}

// Validate enforces that at least one flag is set.
func (s ProjectScope) Validate() error {
	if !s.IsCRUDRequired && !s.IsUserLoginAndLogout && !s.IsExternalURLsRequired {
		return ErrScopeEmpty
	}
	return nil
}

// RouteObject describes one generated web server endpoint. It is produced by
// later pipeline stages and carried here unread.
type RouteObject struct {
	IsRouteDynamic string          `json:"is_route_dynamic"`
	Method         string          `json:"method"`
	RequestBody    json.RawMessage `json:"request_body"`
	Response       json.RawMessage `json:"response"`
	Route          string          `json:"route"`
}

// FactSheet is the mutable record a run accumulates. The caller owns it and
// lends it to one agent at a time.
//
// ExternalURLs distinguishes "never populated" (nil) from "populated, possibly
// empty" (non-nil). The JSON form keeps that distinction as null versus [].
type FactSheet struct {
	ProjectDescription string        `json:"project_description"`
	ProjectScope       *ProjectScope `json:"project_scope"`
	ExternalURLs       []string      `json:"external_urls"`
	BackendCode        *string       `json:"backend_code"`
	APIEndpointSchema  []RouteObject `json:"api_endpoint_schema"`
}

// New creates a fact sheet holding only the project description.
func New(description string) *FactSheet {
	return &FactSheet{ProjectDescription: description}
}

// SetProjectScope stores a copy of scope.
func (f *FactSheet) SetProjectScope(scope ProjectScope) {
	f.ProjectScope = &scope
}

// SetExternalURLs replaces the URL list with a copy of urls. A nil argument
// is stored as an empty, present list.
func (f *FactSheet) SetExternalURLs(urls []string) {
	if urls == nil {
		f.ExternalURLs = []string{}
		return
	}
	f.ExternalURLs = slices.Clone(urls)
}

// HasExternalURLs reports whether the URL list has been populated.
func (f *FactSheet) HasExternalURLs() bool {
	return f.ExternalURLs != nil
}

// ExternalURLsRequired reports whether discovery decided the build needs
// third party data.
func (f *FactSheet) ExternalURLsRequired() bool {
	return f.ProjectScope != nil && f.ProjectScope.IsExternalURLsRequired
}
