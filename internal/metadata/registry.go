package metadata

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// ErrNotRegistered is returned by Lookup for model types never registered.
var ErrNotRegistered = errors.New("model not registered")

// Registry maps model types to their metadata. Reads are safe for concurrent
// use; registration is expected to happen at startup but is locked as well.
type Registry struct {
	mu       sync.RWMutex
	entities map[reflect.Type]*EntityMetadata
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[reflect.Type]*EntityMetadata)}
}

// Register analyzes entity and stores its metadata.
func (r *Registry) Register(entity interface{}) (*EntityMetadata, error) {
	meta, err := AnalyzeEntity(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze entity: %w", err)
	}
	if err := r.RegisterMetadata(meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(entity interface{}) *EntityMetadata {
	meta, err := r.Register(entity)
	if err != nil {
		panic(err)
	}
	return meta
}

// RegisterMetadata stores metadata produced elsewhere, such as by Declare or
// AnalyzeGormSchema.
func (r *Registry) RegisterMetadata(meta *EntityMetadata) error {
	if meta == nil || meta.EntityType == nil {
		return fmt.Errorf("metadata must describe an entity type")
	}
	if meta.TableName == "" {
		return fmt.Errorf("entity %s has no table name", meta.EntityName)
	}
	key := dereferenceType(meta.EntityType)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entities == nil {
		r.entities = make(map[reflect.Type]*EntityMetadata)
	}
	if _, exists := r.entities[key]; exists {
		return fmt.Errorf("entity %s is already registered", meta.EntityName)
	}
	r.entities[key] = meta
	return nil
}

// Lookup returns the metadata registered for the dynamic type of model.
// Pointers are dereferenced, so T and *T resolve to the same entry.
func (r *Registry) Lookup(model any) (*EntityMetadata, error) {
	if model == nil {
		return nil, fmt.Errorf("nil model: %w", ErrNotRegistered)
	}
	key := dereferenceType(reflect.TypeOf(model))

	r.mu.RLock()
	meta, ok := r.entities[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotRegistered)
	}
	return meta, nil
}

// Entities returns every registered entity ordered by name.
func (r *Registry) Entities() []*EntityMetadata {
	r.mu.RLock()
	out := make([]*EntityMetadata, 0, len(r.entities))
	for _, meta := range r.entities {
		out = append(out, meta)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].EntityName < out[j].EntityName })
	return out
}
