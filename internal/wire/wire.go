package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("retainstate: corrupt snapshot")
	magic4     = [...]byte{'R', 'T', 'S', 'N'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Slot is one key of a snapshot with its encoded values in consumption order.
type Slot struct {
	Key    string
	Values [][]byte
}

// Snapshot:
//
//	magic(4) | ver(1) | epoch(u64 be) | n(u32 be)
//	keyLen(u16 be) | key(keyLen) | count(u32 be) | (vlen(u32 be) | payload(vlen)) * count   * n
func EncodeSnapshot(epoch uint64, slots []Slot) ([]byte, error) {
	total := hdrLen
	for _, s := range slots {
		if l := len(s.Key); l == 0 || l > 0xFFFF {
			return nil, fmt.Errorf("retainstate: invalid key length %d in snapshot", l)
		}
		total += 2 + len(s.Key) + 4
		for _, v := range s.Values {
			total += 4 + len(v)
		}
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], epoch)
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(slots)))
	buf.Write(u4[:])

	for _, s := range slots {
		binary.BigEndian.PutUint16(u2[:], uint16(len(s.Key)))
		buf.Write(u2[:])
		buf.WriteString(s.Key)

		binary.BigEndian.PutUint32(u4[:], uint32(len(s.Values)))
		buf.Write(u4[:])
		for _, v := range s.Values {
			binary.BigEndian.PutUint32(u4[:], uint32(len(v)))
			buf.Write(u4[:])
			buf.Write(v)
		}
	}
	return buf.Bytes(), nil
}

// DecodeSnapshot validates framing and returns the epoch and slots. Payloads alias b.
func DecodeSnapshot(b []byte) (epoch uint64, slots []Slot, err error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return 0, nil, ErrCorrupt
	}
	off := 5

	epoch = binary.BigEndian.Uint64(b[off : off+8])
	off += 8

	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// every slot needs at least keyLen(2) + 1 key byte + count(4)
	if n < 0 || n > (len(b)-off)/7 {
		return 0, nil, ErrCorrupt
	}

	slots = make([]Slot, 0, n)
	for i := 0; i < n; i++ {
		if off+2 > len(b) {
			return 0, nil, ErrCorrupt
		}
		klen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if klen <= 0 || klen > len(b)-off {
			return 0, nil, ErrCorrupt
		}
		key := string(b[off : off+klen])
		off += klen

		if off+4 > len(b) {
			return 0, nil, ErrCorrupt
		}
		count := int(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if count < 0 || count > (len(b)-off)/4 {
			return 0, nil, ErrCorrupt
		}

		values := make([][]byte, 0, count)
		for j := 0; j < count; j++ {
			if off+4 > len(b) {
				return 0, nil, ErrCorrupt
			}
			vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
			off += 4
			if vlen < 0 || vlen > len(b)-off { // overflow-safe bound check
				return 0, nil, ErrCorrupt
			}
			values = append(values, b[off:off+vlen])
			off += vlen
		}
		slots = append(slots, Slot{Key: key, Values: values})
	}

	if off != len(b) {
		return 0, nil, ErrCorrupt
	}
	return epoch, slots, nil
}
