package diff

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type entity struct {
	ID   string
	Name string
}

func byName(e entity) string { return e.Name }

func TestDiffPartitionLaw(t *testing.T) {
	desired := []entity{{Name: "A"}, {Name: "B"}}
	observed := []entity{{ID: "2", Name: "B"}, {ID: "3", Name: "C"}}

	res := Diff(desired, observed, byName)

	if diff := cmp.Diff([]entity{{Name: "A"}}, res.Create); diff != "" {
		t.Fatalf("create mismatch (-want +got):\n%s", diff)
	}
	wantUpdate := []Match[entity, entity]{{Desired: entity{Name: "B"}, Observed: entity{ID: "2", Name: "B"}}}
	if diff := cmp.Diff(wantUpdate, res.Update); diff != "" {
		t.Fatalf("update mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]entity{{ID: "3", Name: "C"}}, res.Delete); diff != "" {
		t.Fatalf("delete mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffCoversBothSidesWithoutOverlap(t *testing.T) {
	desired := []string{"a", "b", "c", "d"}
	observed := []string{"c", "d", "e", "f", "g"}
	res := Diff(desired, observed, Identity[string])

	seenDesired := map[string]int{}
	for _, d := range res.Create {
		seenDesired[d]++
	}
	seenObserved := map[string]int{}
	for _, m := range res.Update {
		seenDesired[m.Desired]++
		seenObserved[m.Observed]++
	}
	for _, o := range res.Delete {
		seenObserved[o]++
	}
	for _, d := range desired {
		if seenDesired[d] != 1 {
			t.Fatalf("desired %q covered %d times", d, seenDesired[d])
		}
	}
	for _, o := range observed {
		if seenObserved[o] != 1 {
			t.Fatalf("observed %q covered %d times", o, seenObserved[o])
		}
	}
}

func TestComputeAcrossShapes(t *testing.T) {
	type remote struct {
		ID    string
		Group string
	}
	desired := []string{"admins", "readers"}
	observed := []remote{{ID: "1", Group: "readers"}, {ID: "2", Group: "legacy"}}

	res := Compute(desired, observed, Identity[string], func(r remote) string { return r.Group })
	if len(res.Create) != 1 || res.Create[0] != "admins" {
		t.Fatalf("unexpected create: %v", res.Create)
	}
	if len(res.Update) != 1 || res.Update[0].Observed.ID != "1" {
		t.Fatalf("unexpected update: %v", res.Update)
	}
	if len(res.Delete) != 1 || res.Delete[0].ID != "2" {
		t.Fatalf("unexpected delete: %v", res.Delete)
	}
}

func TestDiffDuplicateObservedKeys(t *testing.T) {
	observed := []entity{{ID: "1", Name: "jwt"}, {ID: "2", Name: "jwt"}}
	res := Diff([]entity{{Name: "jwt"}}, observed, byName)

	if len(res.Update) != 1 || res.Update[0].Observed.ID != "1" {
		t.Fatalf("expected first observed match, got %v", res.Update)
	}
	if len(res.Delete) != 0 {
		t.Fatalf("expected no deletes, got %v", res.Delete)
	}
}

func TestDiffEmptyInputs(t *testing.T) {
	res := Diff[entity](nil, nil, byName)
	if !res.Empty() {
		t.Fatalf("expected empty result, got %+v", res)
	}
	if res.Create == nil || res.Update == nil || res.Delete == nil {
		t.Fatalf("partitions must be non-nil")
	}
}
