package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"
)

func mustEncode(t *testing.T, epoch uint64, slots []Slot) []byte {
	t.Helper()
	b, err := EncodeSnapshot(epoch, slots)
	if err != nil {
		t.Fatalf("EncodeSnapshot error: %v", err)
	}
	return b
}

func TestSnapshotRoundTrip(t *testing.T) {
	cases := []struct {
		epoch uint64
		slots []Slot
	}{
		{0, nil},
		{1, []Slot{{Key: "a", Values: [][]byte{[]byte("x")}}}},
		{math.MaxUint64, []Slot{
			{Key: "item", Values: [][]byte{[]byte("1"), nil, {9, 8, 7}}},
			{Key: "empty", Values: nil},
		}},
		// duplicate keys are preserved as separate slots
		{7, []Slot{
			{Key: "dup", Values: [][]byte{[]byte("old")}},
			{Key: "dup", Values: [][]byte{[]byte("new")}},
		}},
	}
	for _, tc := range cases {
		enc := mustEncode(t, tc.epoch, tc.slots)
		epoch, got, err := DecodeSnapshot(enc)
		if err != nil {
			t.Fatalf("DecodeSnapshot: %v", err)
		}
		if epoch != tc.epoch {
			t.Fatalf("epoch: got %d want %d", epoch, tc.epoch)
		}
		if len(got) != len(tc.slots) {
			t.Fatalf("slots: got %d want %d", len(got), len(tc.slots))
		}
		for i := range tc.slots {
			if got[i].Key != tc.slots[i].Key || len(got[i].Values) != len(tc.slots[i].Values) {
				t.Fatalf("slot %d mismatch: got=%+v want=%+v", i, got[i], tc.slots[i])
			}
			for j := range tc.slots[i].Values {
				if !bytes.Equal(got[i].Values[j], tc.slots[i].Values[j]) {
					t.Fatalf("slot %d value %d: got %x want %x", i, j, got[i].Values[j], tc.slots[i].Values[j])
				}
			}
		}
	}
}

func TestSnapshotRejectsTrailingBytes(t *testing.T) {
	enc := mustEncode(t, 1, []Slot{{Key: "k", Values: [][]byte{[]byte("v")}}})
	enc = append(enc, 0xDE, 0xAD)
	if _, _, err := DecodeSnapshot(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestSnapshotCorruptHeaders(t *testing.T) {
	enc := mustEncode(t, 3, []Slot{{Key: "k", Values: [][]byte{[]byte("abc")}}})

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, _, err := DecodeSnapshot(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, _, err := DecodeSnapshot(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	if _, _, err := DecodeSnapshot(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error on truncated buffer")
	}
	if _, _, err := DecodeSnapshot(enc[:hdrLen-1]); err == nil {
		t.Fatalf("expected error on short header")
	}
}

func TestSnapshotBogusCounts(t *testing.T) {
	// n = 0xFFFFFFFF with no slots -> must error, not allocate or panic
	var buf bytes.Buffer
	buf.Write(magic4[:])
	buf.WriteByte(version)
	var u8 [8]byte
	buf.Write(u8[:])
	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], ^uint32(0))
	buf.Write(u4[:])
	if _, _, err := DecodeSnapshot(buf.Bytes()); err == nil {
		t.Fatalf("expected error on bogus slot count")
	}

	// value count larger than the remaining bytes
	enc := mustEncode(t, 0, []Slot{{Key: "k", Values: [][]byte{[]byte("v")}}})
	// count sits after header(17) + keyLen(2) + key(1)
	binary.BigEndian.PutUint32(enc[hdrLen+3:hdrLen+7], 1<<20)
	if _, _, err := DecodeSnapshot(enc); err == nil {
		t.Fatalf("expected error on bogus value count")
	}

	// vlen beyond buffer
	enc = mustEncode(t, 0, []Slot{{Key: "k", Values: [][]byte{[]byte("v")}}})
	binary.BigEndian.PutUint32(enc[hdrLen+7:hdrLen+11], 2)
	if _, _, err := DecodeSnapshot(enc); err == nil {
		t.Fatalf("expected error on vlen beyond buffer")
	}
}

func TestSnapshotKeyLengthValidation(t *testing.T) {
	if _, err := EncodeSnapshot(0, []Slot{{Key: ""}}); err == nil {
		t.Fatalf("expected error on empty key")
	}
	if _, err := EncodeSnapshot(0, []Slot{{Key: strings.Repeat("a", 0x10000)}}); err == nil {
		t.Fatalf("expected error on key length > 0xFFFF")
	}
	if _, err := EncodeSnapshot(0, []Slot{{Key: strings.Repeat("b", 0xFFFF)}}); err != nil {
		t.Fatalf("boundary key length should succeed: %v", err)
	}
}

func TestSnapshotPayloadAliasesInput(t *testing.T) {
	enc := mustEncode(t, 0, []Slot{{Key: "k", Values: [][]byte{[]byte("Z")}}})
	_, slots, _ := DecodeSnapshot(enc)
	slots[0].Values[0][0] = 'Q'
	_, again, _ := DecodeSnapshot(enc)
	if again[0].Values[0][0] != 'Q' {
		t.Fatalf("expected zero-copy payload slices")
	}
}
