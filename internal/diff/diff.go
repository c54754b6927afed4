// Package diff partitions desired and observed entity sets by identity key.
//
// Every reconciler uses the same rule: desired entities whose key is not
// observed are created, desired entities whose key is observed are updated
// (unconditionally, no content comparison), observed entities whose key is not
// desired are deleted.
package diff

// Match pairs a desired entity with the observed entity sharing its key.
type Match[D, O any] struct {
	Desired  D
	Observed O
}

// Result is the create/update/delete partition of one comparison.
type Result[D, O any] struct {
	Create []D
	Update []Match[D, O]
	Delete []O
}

// Empty reports whether the comparison produced no work.
func (r Result[D, O]) Empty() bool {
	return len(r.Create) == 0 && len(r.Update) == 0 && len(r.Delete) == 0
}

// Compute compares desired against observed where the two sides have
// different shapes. Input order is preserved in every partition. When several
// observed entities share a key, the first one is matched for update and none
// of them is deleted.
func Compute[D, O any, K comparable](desired []D, observed []O, desiredKey func(D) K, observedKey func(O) K) Result[D, O] {
	observedByKey := make(map[K]O, len(observed))
	for _, o := range observed {
		k := observedKey(o)
		if _, seen := observedByKey[k]; !seen {
			observedByKey[k] = o
		}
	}
	desiredKeys := make(map[K]struct{}, len(desired))

	res := Result[D, O]{
		Create: make([]D, 0),
		Update: make([]Match[D, O], 0),
		Delete: make([]O, 0),
	}
	for _, d := range desired {
		k := desiredKey(d)
		desiredKeys[k] = struct{}{}
		if o, ok := observedByKey[k]; ok {
			res.Update = append(res.Update, Match[D, O]{Desired: d, Observed: o})
			continue
		}
		res.Create = append(res.Create, d)
	}
	for _, o := range observed {
		if _, ok := desiredKeys[observedKey(o)]; !ok {
			res.Delete = append(res.Delete, o)
		}
	}
	return res
}

// Diff is Compute for sets of the same entity type.
func Diff[T any, K comparable](desired, observed []T, keyOf func(T) K) Result[T, T] {
	return Compute(desired, observed, keyOf, keyOf)
}

// Identity keys a comparable value by itself.
func Identity[T comparable](v T) T {
	return v
}
