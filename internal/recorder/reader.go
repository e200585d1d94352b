package recorder

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ReaderOptions controls record decoding.
type ReaderOptions struct {
	DisableChecksum bool
	MaxPayloadSize  int
}

// Reader decodes journal frames sequentially.
type Reader struct {
	r       *bufio.Reader
	opts    ReaderOptions
	header  [headerSize]byte
	payload []byte
}

// NewReader wraps r with frame decoding.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	return &Reader{r: bufio.NewReader(r), opts: opts}
}

// Next returns the next record. The payload is only valid until the next call.
// A frame cut short by a crash returns ErrTruncated, a clean end of input io.EOF.
func (r *Reader) Next() (Record, error) {
	n, err := io.ReadFull(r.r, r.header[:])
	switch {
	case errors.Is(err, io.EOF) && n == 0:
		return Record{}, io.EOF
	case err != nil:
		return Record{}, truncated(err)
	}

	header, payloadLen, err := parseHeader(r.header[:])
	if err != nil {
		return Record{}, err
	}
	if uint64(payloadLen) > maxPayloadLen || (r.opts.MaxPayloadSize > 0 && payloadLen > uint32(r.opts.MaxPayloadSize)) {
		return Record{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, payloadLen)
	}

	if cap(r.payload) < int(payloadLen) {
		r.payload = make([]byte, payloadLen)
	}
	r.payload = r.payload[:payloadLen]
	if _, err := io.ReadFull(r.r, r.payload); err != nil {
		return Record{}, truncated(err)
	}

	var sum [checksumSize]byte
	if _, err := io.ReadFull(r.r, sum[:]); err != nil {
		return Record{}, truncated(err)
	}
	if !r.opts.DisableChecksum && binary.LittleEndian.Uint32(sum[:]) != checksum(r.header[:], r.payload) {
		return Record{}, fmt.Errorf("%w: seq %d", ErrChecksumMismatch, header.Seq)
	}

	return Record{Header: header, Payload: r.payload}, nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}
