package fakegateway

import (
	"encoding/json"
	"maps"

	"github.com/google/uuid"
)

type record = map[string]any

// collection keeps records in insertion order, like the gateway's listing.
type collection struct {
	items []record
}

func (c *collection) add(r record) record {
	if _, ok := r["id"]; !ok {
		r["id"] = uuid.NewString()
	}
	c.items = append(c.items, r)
	return r
}

func (c *collection) find(match func(record) bool) (record, bool) {
	for _, r := range c.items {
		if match(r) {
			return r, true
		}
	}
	return nil, false
}

func (c *collection) filter(match func(record) bool) []record {
	out := make([]record, 0)
	for _, r := range c.items {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (c *collection) remove(match func(record) bool) int {
	kept := c.items[:0]
	removed := 0
	for _, r := range c.items {
		if match(r) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	c.items = kept
	return removed
}

func byID(id string) func(record) bool {
	return func(r record) bool { return str(r, "id") == id }
}

func byField(field, value string) func(record) bool {
	return func(r record) bool { return str(r, field) == value }
}

func byIDOr(field, value string) func(record) bool {
	return func(r record) bool { return str(r, "id") == value || str(r, field) == value }
}

func ownedBy(field, id string) func(record) bool {
	return func(r record) bool { return refID(r, field) == id }
}

func and(preds ...func(record) bool) func(record) bool {
	return func(r record) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

func str(r record, field string) string {
	s, _ := r[field].(string)
	return s
}

func refID(r record, field string) string {
	if ref, ok := r[field].(map[string]any); ok {
		id, _ := ref["id"].(string)
		return id
	}
	if field == "consumer" {
		return str(r, "consumer_id")
	}
	return ""
}

func ref(id string) map[string]any {
	return map[string]any{"id": id}
}

// merge applies a PATCH body. Nested config maps are merged one level deep.
func merge(dst, patch record) {
	for k, v := range patch {
		if k == "id" {
			continue
		}
		if k == "config" {
			cur, curOK := dst[k].(map[string]any)
			next, nextOK := v.(map[string]any)
			if curOK && nextOK {
				merged := maps.Clone(cur)
				maps.Copy(merged, next)
				dst[k] = merged
				continue
			}
		}
		dst[k] = v
	}
}

func clone(r record) record {
	data, _ := json.Marshal(r)
	var out record
	_ = json.Unmarshal(data, &out)
	return out
}

func decodeInto[T any](r record) T {
	var out T
	data, _ := json.Marshal(r)
	_ = json.Unmarshal(data, &out)
	return out
}
