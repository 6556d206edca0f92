package page

import "testing"

func TestCreateSpaceAssignsIncreasingIDs(t *testing.T) {
	dm := NewDiskManager(t.TempDir())

	id1, _, err := dm.CreateSpace("orders")
	if err != nil {
		t.Fatal(err)
	}
	id2, _, err := dm.CreateSpace("customers")
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id2 {
		t.Fatal("expected distinct space ids")
	}

	if _, _, err := dm.CreateSpace("orders"); err == nil {
		t.Fatal("expected duplicate space name to fail")
	}
}

func TestSpaceByNameResolvesCreatedSpace(t *testing.T) {
	dm := NewDiskManager(t.TempDir())
	id, _, err := dm.CreateSpace("orders")
	if err != nil {
		t.Fatal(err)
	}

	gotID, ts, err := dm.SpaceByName("orders")
	if err != nil {
		t.Fatal(err)
	}
	if gotID != id {
		t.Fatalf("id = %d, want %d", gotID, id)
	}
	if ts == nil {
		t.Fatal("expected non-nil table space")
	}
}

func TestSpaceUnknownIDFails(t *testing.T) {
	dm := NewDiskManager(t.TempDir())
	if _, err := dm.Space(999); err == nil {
		t.Fatal("expected error for unknown space id")
	}
}
