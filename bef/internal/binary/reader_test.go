package binary

import "testing"

func TestReadVarint(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want uint64
	}{
		{"zero", []byte{0x00}, 0},
		{"single byte", []byte{0x7F}, 0x7F},
		{"two bytes", []byte{0x80, 0x01}, 0x80},
		{"three bytes", []byte{0xE5, 0x8E, 0x26}, 624485},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.buf)
			got, err := r.ReadVarint()
			if err != nil {
				t.Fatalf("ReadVarint() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ReadVarint() = %d, want %d", got, tt.want)
			}
			if !r.Empty() {
				t.Errorf("expected reader to be exhausted, %d bytes remaining", r.Remaining())
			}
		})
	}
}

func TestReadVarintTruncated(t *testing.T) {
	r := NewReader([]byte{0x80, 0x80})
	if _, err := r.ReadVarint(); err == nil {
		t.Fatal("expected error on truncated varint")
	}
}

func TestReadVarintOverflow(t *testing.T) {
	buf := make([]byte, 11)
	for i := range buf {
		buf[i] = 0x80
	}
	buf[len(buf)-1] = 0x01
	r := NewReader(buf)
	if _, err := r.ReadVarint(); err == nil {
		t.Fatal("expected overflow error on 11-byte varint")
	}
}

func TestTakeIsZeroCopy(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	r := NewReader(buf)
	got, err := r.Take(3)
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	if &got[0] != &buf[0] {
		t.Error("Take() should return a sub-slice of the original buffer, not a copy")
	}
	if r.Remaining() != 2 {
		t.Errorf("Remaining() = %d, want 2", r.Remaining())
	}
}

func TestTakeTruncated(t *testing.T) {
	r := NewReader([]byte{1, 2})
	if _, err := r.Take(3); err == nil {
		t.Fatal("expected error taking more bytes than remain")
	}
}

func TestReadSection(t *testing.T) {
	// id=5, length=3, payload={0xAA,0xBB,0xCC}
	buf := []byte{5, 3, 0xAA, 0xBB, 0xCC}
	r := NewReader(buf)
	sec, err := r.ReadSection()
	if err != nil {
		t.Fatalf("ReadSection() error = %v", err)
	}
	if sec.ID != 5 {
		t.Errorf("ID = %d, want 5", sec.ID)
	}
	if len(sec.Payload) != 3 || sec.Payload[0] != 0xAA {
		t.Errorf("Payload = %v, want [0xAA 0xBB 0xCC]", sec.Payload)
	}
}

func TestReadAligned(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	if _, err := r.ReadU8(); err != nil {
		t.Fatal(err)
	}
	if err := r.ReadAligned(4); err != nil {
		t.Fatalf("ReadAligned() error = %v", err)
	}
	if r.Position() != 4 {
		t.Errorf("Position() = %d, want 4", r.Position())
	}
}
