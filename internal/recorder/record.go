package recorder

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"toucan/internal/schema"
)

// Frame layout, little endian:
//
//	magic [4]byte | frame version u16 | header size u16
//	type u16 | schema version u16 | source u16 | flags u16
//	payload length u32 | seq u64 | ts event i64 | ts recv i64 | trace id u64 | reserved u32
//	payload | crc32-c(header, payload) u32
const (
	frameVersion  uint16 = 1
	headerSize           = 56
	checksumSize         = 4
	maxPayloadLen        = uint64(^uint32(0))
)

var (
	frameMagic = [4]byte{'T', 'J', 'N', '1'}
	crcTable   = crc32.MakeTable(crc32.Castagnoli)
)

var (
	ErrInvalidMagic        = errors.New("journal invalid magic")
	ErrUnsupportedVersion  = errors.New("journal unsupported frame version")
	ErrInvalidHeaderSize   = errors.New("journal invalid header size")
	ErrPayloadTooLarge     = errors.New("journal payload too large")
	ErrChecksumMismatch    = errors.New("journal checksum mismatch")
	ErrTruncated           = errors.New("journal truncated record")
	ErrSequenceMismatch    = errors.New("journal sequence mismatch")
	ErrUnexpectedEventType = errors.New("journal unexpected event type")
)

// Record is one journal entry.
type Record struct {
	Header  schema.EventHeader
	Payload []byte
}

func appendHeader(dst []byte, h schema.EventHeader, payloadLen int) []byte {
	le := binary.LittleEndian
	dst = append(dst, frameMagic[:]...)
	dst = le.AppendUint16(dst, frameVersion)
	dst = le.AppendUint16(dst, headerSize)
	dst = le.AppendUint16(dst, uint16(h.Type))
	dst = le.AppendUint16(dst, h.Version)
	dst = le.AppendUint16(dst, h.Source)
	dst = le.AppendUint16(dst, h.Flags)
	dst = le.AppendUint32(dst, uint32(payloadLen))
	dst = le.AppendUint64(dst, h.Seq)
	dst = le.AppendUint64(dst, uint64(h.TsEvent))
	dst = le.AppendUint64(dst, uint64(h.TsRecv))
	dst = le.AppendUint64(dst, h.TraceID)
	return le.AppendUint32(dst, 0)
}

// appendFrame encodes a full frame for rec onto dst.
func appendFrame(dst []byte, rec Record) []byte {
	start := len(dst)
	dst = appendHeader(dst, rec.Header, len(rec.Payload))
	dst = append(dst, rec.Payload...)
	return binary.LittleEndian.AppendUint32(dst, checksum(dst[start:start+headerSize], rec.Payload))
}

func frameSize(payloadLen int) int64 {
	return int64(headerSize + payloadLen + checksumSize)
}

func checksum(header, payload []byte) uint32 {
	crc := crc32.Update(0, crcTable, header)
	return crc32.Update(crc, crcTable, payload)
}

type cursor struct {
	b []byte
}

func (c *cursor) u16() uint16 {
	v := binary.LittleEndian.Uint16(c.b)
	c.b = c.b[2:]
	return v
}

func (c *cursor) u32() uint32 {
	v := binary.LittleEndian.Uint32(c.b)
	c.b = c.b[4:]
	return v
}

func (c *cursor) u64() uint64 {
	v := binary.LittleEndian.Uint64(c.b)
	c.b = c.b[8:]
	return v
}

// parseHeader decodes a frame header and returns the payload length it announces.
func parseHeader(src []byte) (schema.EventHeader, uint32, error) {
	if len(src) < headerSize {
		return schema.EventHeader{}, 0, ErrInvalidHeaderSize
	}
	if [4]byte(src[0:4]) != frameMagic {
		return schema.EventHeader{}, 0, ErrInvalidMagic
	}

	c := cursor{b: src[4:headerSize]}
	if c.u16() != frameVersion {
		return schema.EventHeader{}, 0, ErrUnsupportedVersion
	}
	if c.u16() != headerSize {
		return schema.EventHeader{}, 0, ErrInvalidHeaderSize
	}

	var h schema.EventHeader
	h.Type = schema.EventType(c.u16())
	h.Version = c.u16()
	h.Source = c.u16()
	h.Flags = c.u16()
	payloadLen := c.u32()
	h.Seq = c.u64()
	h.TsEvent = int64(c.u64())
	h.TsRecv = int64(c.u64())
	h.TraceID = c.u64()
	return h, payloadLen, nil
}
