package database

import (
	"context"
	"errors"
	"slices"
	"testing"
)

func TestPlaylistLifecycle(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)

	if err := db.SavePlaylist(ctx, "  ", []string{"a"}); err == nil {
		t.Error("SavePlaylist() with blank name should fail")
	}

	if err := db.SavePlaylist(ctx, "evening", []string{"b", "a"}); err != nil {
		t.Fatalf("SavePlaylist() error = %v", err)
	}
	if err := db.SavePlaylist(ctx, "morning", nil); err != nil {
		t.Fatalf("SavePlaylist() error = %v", err)
	}

	p, err := db.GetPlaylist(ctx, "evening")
	if err != nil {
		t.Fatalf("GetPlaylist() error = %v", err)
	}
	if !slices.Equal(p.IDs, []string{"b", "a"}) {
		t.Errorf("GetPlaylist().IDs = %v, want [b a]", p.IDs)
	}

	list, err := db.ListPlaylists(ctx)
	if err != nil {
		t.Fatalf("ListPlaylists() error = %v", err)
	}
	if len(list) != 2 || list[0].Name != "evening" || list[1].Name != "morning" {
		t.Errorf("ListPlaylists() = %+v", list)
	}
	if list[1].IDs == nil || len(list[1].IDs) != 0 {
		t.Errorf("empty playlist IDs = %#v, want empty slice", list[1].IDs)
	}

	if err := db.DeletePlaylist(ctx, "evening"); err != nil {
		t.Fatalf("DeletePlaylist() error = %v", err)
	}
	if err := db.DeletePlaylist(ctx, "evening"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeletePlaylist() error = %v, want ErrNotFound", err)
	}
}
