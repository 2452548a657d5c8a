package storage

import (
	"testing"
	"time"

	"github.com/lehigh-university-libraries/bookscore/internal/models"
)

func TestRunStore(t *testing.T) {
	store := New()
	now := time.Now()

	store.Set(&models.Run{ID: "old", Title: "Dune", CreatedAt: now.Add(-time.Hour)})
	store.Set(&models.Run{ID: "new", Title: "Emma", CreatedAt: now})

	run, ok := store.Get("old")
	if !ok || run.Title != "Dune" {
		t.Fatalf("Expected run old for Dune, got %+v (found=%v)", run, ok)
	}

	if _, ok := store.Get("missing"); ok {
		t.Error("Expected missing run to be absent")
	}

	all := store.GetAll()
	if len(all) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(all))
	}
	if all[0].ID != "new" || all[1].ID != "old" {
		t.Errorf("Expected newest first, got %s, %s", all[0].ID, all[1].ID)
	}

	if !store.Delete("old") {
		t.Error("Expected Delete to report an existing run")
	}
	if store.Delete("old") {
		t.Error("Expected second Delete to report nothing removed")
	}
	if len(store.GetAll()) != 1 {
		t.Errorf("Expected 1 run after delete, got %d", len(store.GetAll()))
	}
}

func TestRunStoreReplace(t *testing.T) {
	store := New()
	store.Set(&models.Run{ID: "a", Title: "Dune"})
	store.Set(&models.Run{ID: "a", Title: "Emma"})

	run, _ := store.Get("a")
	if run.Title != "Emma" {
		t.Errorf("Expected replaced run, got %s", run.Title)
	}
	if len(store.GetAll()) != 1 {
		t.Errorf("Expected 1 run, got %d", len(store.GetAll()))
	}
}
