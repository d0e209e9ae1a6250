package refs

import "encoding/binary"

// Key layout mirrors the teacher's prefix-byte plus length-prefixed-name
// convention (service/storage/prefixes.go, encoding.go): a one-byte prefix
// tags the record kind, a two-byte length isolates the table name from
// whatever binary suffix follows it.
const (
	prefixCurrent byte = 1
	prefixHistory byte = 2
)

func currentKey(name string) []byte {
	buf := make([]byte, 1+2+len(name))
	buf[0] = prefixCurrent
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(name)))
	copy(buf[3:], name)
	return buf
}

func historyKey(name string, seq uint64) []byte {
	buf := make([]byte, 1+2+len(name)+8)
	buf[0] = prefixHistory
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(name)))
	n := copy(buf[3:], name)
	binary.BigEndian.PutUint64(buf[3+n:], seq)
	return buf
}

func historyPrefix(name string) []byte {
	buf := make([]byte, 1+2+len(name))
	buf[0] = prefixHistory
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(name)))
	copy(buf[3:], name)
	return buf
}

// encodeCurrent packs the sequence number and digest into the value stored
// at currentKey(name), so Advance can compute the next sequence number
// without a separate counter key or a history range scan.
func encodeCurrent(seq uint64, digest [32]byte) []byte {
	buf := make([]byte, 8+32)
	binary.BigEndian.PutUint64(buf[:8], seq)
	copy(buf[8:], digest[:])
	return buf
}

func decodeCurrent(data []byte) (seq uint64, digest [32]byte, ok bool) {
	if len(data) != 8+32 {
		return 0, digest, false
	}
	seq = binary.BigEndian.Uint64(data[:8])
	copy(digest[:], data[8:])
	return seq, digest, true
}
