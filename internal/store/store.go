package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Collection names the document collections the platform synchronizes.
type Collection string

const (
	Users         Collection = "users"
	Jobs          Collection = "jobs"
	Contracts     Collection = "contracts"
	Applications  Collection = "applications"
	Students      Collection = "students"
	Properties    Collection = "property_registrations"
	SystemMetrics Collection = "system_metrics"
)

// Document is one schemaless record as held by the remote store. The "id"
// field is the store-assigned identifier and is stable for the record's
// lifetime.
type Document map[string]any

// ID returns the document identifier, or "" when unset.
func (d Document) ID() string {
	id, _ := d["id"].(string)
	return id
}

// Clone returns a shallow copy so callers can hold snapshots without
// aliasing store-internal state.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Encode converts a typed entity into a Document via its JSON form.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

// Decode converts a Document back into a typed entity.
func Decode(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// DecodeAll converts a snapshot into typed entities, skipping nothing;
// a single undecodable document fails the whole batch.
func DecodeAll[T any](docs []Document) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := Decode(doc, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Filter matches documents by field equality. A nil filter matches all.
type Filter map[string]any

// Matches reports whether every filter field equals the document's value.
// Comparison goes through fmt to tolerate json number widening.
func (f Filter) Matches(doc Document) bool {
	for k, want := range f {
		got, ok := doc[k]
		if !ok {
			return false
		}
		if fmt.Sprintf("%v", got) != fmt.Sprintf("%v", want) {
			return false
		}
	}
	return true
}

// Key returns a canonical string for the filter so subscriptions to the same
// (collection, filter) pair share one upstream watch.
func (f Filter) Key() string {
	if len(f) == 0 {
		return ""
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		out += fmt.Sprintf("%s=%v;", k, f[k])
	}
	return out
}

// Watcher is a live change feed for one (collection, filter) pair. Every
// element on Snapshots is a complete replacement snapshot in the store's
// notification order, never a diff. The channel closes when the watch ends;
// Err reports why (nil after Close).
type Watcher interface {
	Snapshots() <-chan []Document
	Err() error
	Close()
}

// Client is the narrow surface this core needs from the remote document
// store. Implementations must translate transport failures into the sentinel
// taxonomy: ErrStoreUnavailable for connectivity, ErrWriteRejected for
// store-side refusals, ErrNotFound for missing records.
type Client interface {
	GetAll(ctx context.Context, col Collection, filter Filter) ([]Document, error)
	Create(ctx context.Context, col Collection, doc Document) (string, error)
	Update(ctx context.Context, col Collection, id string, patch Document) error
	Delete(ctx context.Context, col Collection, id string) error
	AtomicIncrement(ctx context.Context, col Collection, id, field string, delta int64) error
	Watch(ctx context.Context, col Collection, filter Filter) (Watcher, error)
}
