package page

import (
	"path/filepath"
	"testing"
)

func TestAllocateWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ts, err := Open("orders", filepath.Join(dir, "orders.ibd"))
	if err != nil {
		t.Fatal(err)
	}
	defer ts.Close()

	no, err := ts.AllocatePage()
	if err != nil {
		t.Fatal(err)
	}
	pg := New(1, no, TypeIndex)
	if err := pg.Write(0, []byte("row data")); err != nil {
		t.Fatal(err)
	}
	pg.UpdateChecksumAndLSN(7)
	if err := ts.WritePage(pg); err != nil {
		t.Fatal(err)
	}

	got, err := ts.ReadPage(no)
	if err != nil {
		t.Fatal(err)
	}
	data, _ := got.Read(0, len("row data"))
	if string(data) != "row data" {
		t.Fatalf("got %q", data)
	}
}

func TestReadPageOutOfRangeFails(t *testing.T) {
	dir := t.TempDir()
	ts, err := Open("orders", filepath.Join(dir, "orders.ibd"))
	if err != nil {
		t.Fatal(err)
	}
	defer ts.Close()

	if _, err := ts.ReadPage(5); err == nil {
		t.Fatal("expected error for unallocated page")
	}
}

func TestOpenRefusesSecondExclusiveLock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders.ibd")
	ts, err := Open("orders", path)
	if err != nil {
		t.Fatal(err)
	}
	defer ts.Close()

	if _, err := Open("orders", path); err == nil {
		t.Fatal("expected second Open to fail on the held flock")
	}
}
