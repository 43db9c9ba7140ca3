package jar

import (
	"encoding/binary"
	"fmt"

	"github.com/mcncl/convertkit/internal/errors"
)

// cursor is a bounds-checked little-endian reader over a byte slice.
type cursor struct {
	buf []byte
	pos int
}

func newCursor(buf []byte, pos int) *cursor {
	return &cursor{buf: buf, pos: pos}
}

func (c *cursor) need(n int) error {
	if n < 0 || c.pos < 0 || c.pos+n > len(c.buf) {
		return errors.NewStructuralError(
			fmt.Sprintf("read of %d bytes at offset %d exceeds archive size %d", n, c.pos, len(c.buf)),
			errors.ErrTruncated)
	}
	return nil
}

func (c *cursor) seek(off int) error {
	if off < 0 || off > len(c.buf) {
		return errors.NewStructuralError(
			fmt.Sprintf("offset %d outside archive of %d bytes", off, len(c.buf)), errors.ErrTruncated)
	}
	c.pos = off
	return nil
}

func (c *cursor) skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

func (c *cursor) u16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}
