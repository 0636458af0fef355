package store

import (
	"reflect"
	"testing"
)

func TestBuildPetPatchKnownColumns(t *testing.T) {
	sets, args, err := buildPetPatch("pet-1", map[string]any{
		"name":    "rexy",
		"species": "dog",
	})
	if err != nil {
		t.Fatalf("buildPetPatch() error = %v", err)
	}
	// keys are sorted, so name comes before species
	wantSets := []string{"name=$2", "species=$3"}
	if !reflect.DeepEqual(sets, wantSets) {
		t.Fatalf("sets = %v, want %v", sets, wantSets)
	}
	wantArgs := []any{"pet-1", "rexy", "dog"}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Fatalf("args = %v, want %v", args, wantArgs)
	}
}

func TestBuildPetPatchRenamedColumns(t *testing.T) {
	sets, args, err := buildPetPatch("pet-1", map[string]any{
		"imageUrl":      "https://blobs/petImages/x.png",
		"institutionId": "inst-9",
	})
	if err != nil {
		t.Fatalf("buildPetPatch() error = %v", err)
	}
	wantSets := []string{"image_url=$2", "institution_id=$3"}
	if !reflect.DeepEqual(sets, wantSets) {
		t.Fatalf("sets = %v, want %v", sets, wantSets)
	}
	if args[1] != "https://blobs/petImages/x.png" || args[2] != "inst-9" {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildPetPatchFiltersReplaceWholesale(t *testing.T) {
	sets, args, err := buildPetPatch("pet-1", map[string]any{
		"filters": map[string]any{"size": "small"},
	})
	if err != nil {
		t.Fatalf("buildPetPatch() error = %v", err)
	}
	if len(sets) != 1 || sets[0] != "filters=$2::jsonb" {
		t.Fatalf("sets = %v", sets)
	}
	if args[1] != `{"size":"small"}` {
		t.Fatalf("encoded filters = %v", args[1])
	}
}

func TestBuildPetPatchUnknownKeysMergeIntoFilters(t *testing.T) {
	sets, args, err := buildPetPatch("pet-1", map[string]any{
		"name":       "rexy",
		"vaccinated": true,
	})
	if err != nil {
		t.Fatalf("buildPetPatch() error = %v", err)
	}
	wantSets := []string{"name=$2", "filters=filters || $3::jsonb"}
	if !reflect.DeepEqual(sets, wantSets) {
		t.Fatalf("sets = %v, want %v", sets, wantSets)
	}
	if args[2] != `{"vaccinated":true}` {
		t.Fatalf("encoded extras = %v", args[2])
	}
}

func TestBuildPetPatchEmpty(t *testing.T) {
	sets, args, err := buildPetPatch("pet-1", nil)
	if err != nil {
		t.Fatalf("buildPetPatch() error = %v", err)
	}
	if len(sets) != 0 {
		t.Fatalf("sets = %v", sets)
	}
	if len(args) != 1 || args[0] != "pet-1" {
		t.Fatalf("args = %v", args)
	}
}

func TestBuildPetPatchRejectsUnencodableExtra(t *testing.T) {
	if _, _, err := buildPetPatch("pet-1", map[string]any{"odd": func() {}}); err == nil {
		t.Fatal("expected encode error")
	}
}
