package resource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrResourceNotFound  = errors.New("resource not found")
	ErrDuplicateResource = errors.New("resource already registered")
)

// ValidationError lists the ways request params failed a resource's schema
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid params: %s", strings.Join(e.Errors, "; "))
}

type entry struct {
	resource Resource
	schema   *gojsonschema.Schema
}

// Registry maps resource ids to their implementations and compiled params
// schemas
type Registry struct {
	entries map[string]*entry
}

func NewRegistry(resources ...Resource) (*Registry, error) {
	r := &Registry{
		entries: make(map[string]*entry),
	}
	for _, resource := range resources {
		if err := r.register(resource); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(resource Resource) error {
	if len(resource.Id()) == 0 {
		return errors.New("resource id is required")
	}
	if _, ok := r.entries[resource.Id()]; ok {
		return errors.Wrap(ErrDuplicateResource, resource.Id())
	}
	if resource.PriceInfo().Amount == 0 {
		return errors.Errorf("resource %s has no price", resource.Id())
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(resource.ParamsSchema()))
	if err != nil {
		return errors.Wrapf(err, "invalid params schema for resource %s", resource.Id())
	}

	r.entries[resource.Id()] = &entry{
		resource: resource,
		schema:   schema,
	}
	return nil
}

// Get returns the resource registered under id
func (r *Registry) Get(id string) (Resource, error) {
	entry, ok := r.entries[id]
	if !ok {
		return nil, ErrResourceNotFound
	}
	return entry.resource, nil
}

// All returns every registered resource ordered by id
func (r *Registry) All() []Resource {
	res := make([]Resource, 0, len(r.entries))
	for _, entry := range r.entries {
		res = append(res, entry.resource)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Id() < res[j].Id()
	})
	return res
}

// ValidateParams checks params against the resource's schema. Absent or null
// params are treated as an empty object. The normalized params are returned.
func (r *Registry) ValidateParams(id string, params json.RawMessage) (json.RawMessage, error) {
	entry, ok := r.entries[id]
	if !ok {
		return nil, ErrResourceNotFound
	}

	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	result, err := entry.schema.Validate(gojsonschema.NewBytesLoader(trimmed))
	if err != nil {
		return nil, &ValidationError{Errors: []string{err.Error()}}
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
		}
		return nil, &ValidationError{Errors: errs}
	}

	return json.RawMessage(trimmed), nil
}
