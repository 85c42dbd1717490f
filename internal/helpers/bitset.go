package helpers

import "bytes"

// BitSet holds one bit per entry point. A module's bit set records which entry
// points can reach it, and modules with equal bit sets end up in the same
// chunk. The string form is only ever used as a map key, never for ordering.
type BitSet struct {
	entries []byte
}

func NewBitSet(bitCount uint) BitSet {
	return BitSet{make([]byte, (bitCount+7)/8)}
}

func (bs BitSet) IsEmpty() bool {
	for _, b := range bs.entries {
		if b != 0 {
			return false
		}
	}
	return true
}

func (bs BitSet) HasBit(bit uint) bool {
	return (bs.entries[bit/8] & (1 << (bit & 7))) != 0
}

func (bs BitSet) SetBit(bit uint) {
	bs.entries[bit/8] |= 1 << (bit & 7)
}

func (bs BitSet) Equals(other BitSet) bool {
	return bytes.Equal(bs.entries, other.entries)
}

func (bs BitSet) String() string {
	return string(bs.entries)
}
