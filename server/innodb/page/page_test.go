package page

import "testing"

func TestUpdateChecksumAndLSNRoundTrips(t *testing.T) {
	p := New(1, 0, TypeIndex)
	if err := p.Write(0, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	p.UpdateChecksumAndLSN(42)

	buf := p.Serialize()
	got, err := Deserialize(buf)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Verify() {
		t.Fatal("expected round-tripped page to verify")
	}
	if got.Header.LSN != 42 {
		t.Fatalf("lsn = %d, want 42", got.Header.LSN)
	}
}

func TestVerifyRejectsCorruptedData(t *testing.T) {
	p := New(1, 0, TypeIndex)
	p.UpdateChecksumAndLSN(1)
	p.Data[0] ^= 0xFF
	if p.Verify() {
		t.Fatal("expected corrupted page to fail verification")
	}
}

func TestWriteRejectsOutOfBounds(t *testing.T) {
	p := New(1, 0, TypeIndex)
	if err := p.Write(DataSize-1, []byte("ab")); err == nil {
		t.Fatal("expected out-of-bounds write to fail")
	}
}

func TestDeserializeRejectsWrongLength(t *testing.T) {
	if _, err := Deserialize([]byte("too short")); err == nil {
		t.Fatal("expected error for short buffer")
	}
}
