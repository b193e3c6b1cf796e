package registry

import (
	"testing"

	"vividd/pkg/types"
)

func TestCatalogWellFormed(t *testing.T) {
	r := New()
	if r.Len() != 8 {
		t.Fatalf("expected 8 catalog entries got %d", r.Len())
	}
	for _, a := range r.List() {
		if a.ID == "" || a.URL == "" || a.ExpectedBytes <= 0 {
			t.Fatalf("malformed catalog entry: %+v", a)
		}
		switch a.Kind {
		case types.KindTextToVideo, types.KindImageToVideo, types.KindForcing:
		default:
			t.Fatalf("unknown kind in catalog: %+v", a)
		}
	}
}

func TestGetAndList(t *testing.T) {
	r := NewWith([]types.Artifact{
		{ID: "b", Kind: types.KindTextToVideo},
		{ID: "a", Kind: types.KindImageToVideo},
		{ID: "b", Kind: types.KindForcing}, // duplicate, ignored
	})
	if r.Len() != 2 {
		t.Fatalf("expected duplicate dropped, len %d", r.Len())
	}
	got, ok := r.Get("b")
	if !ok || got.Kind != types.KindTextToVideo {
		t.Fatalf("first declaration must win: %+v", got)
	}
	if _, ok := r.Get("nope"); ok {
		t.Fatalf("expected miss for unknown id")
	}
	list := r.List()
	if len(list) != 2 || list[0].ID != "b" || list[1].ID != "a" {
		t.Fatalf("expected declaration order, got %+v", list)
	}
	// mutating the returned slice must not affect the registry
	list[0].ID = "z"
	if got, _ := r.Get("b"); got.ID != "b" {
		t.Fatalf("registry mutated via returned slice")
	}
}

func TestByKind(t *testing.T) {
	r := New()
	t2v := r.ByKind(types.KindTextToVideo)
	if len(t2v) != 2 {
		t.Fatalf("expected 2 t2v artifacts got %d", len(t2v))
	}
	for _, a := range t2v {
		if a.Kind != types.KindTextToVideo {
			t.Fatalf("wrong kind in result: %+v", a)
		}
	}
	if got := r.ByKind(types.ArtifactKind("nope")); len(got) != 0 {
		t.Fatalf("expected empty result got %+v", got)
	}
}

func TestMandatoryFiles(t *testing.T) {
	r := New()
	files := r.MandatoryFiles("skyreels-v2-t2v-14b-540p")
	if len(files) != 3 {
		t.Fatalf("expected 3 mandatory files got %v", files)
	}
	// returned slice is a copy
	files[0] = "hacked"
	if again := r.MandatoryFiles("skyreels-v2-t2v-14b-540p"); again[0] == "hacked" {
		t.Fatalf("mandatory files mutated via returned slice")
	}
}
