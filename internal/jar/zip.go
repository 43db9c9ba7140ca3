package jar

import (
	"encoding/binary"
	"fmt"

	"github.com/mcncl/convertkit/internal/errors"
)

const (
	sigLocalHeader   = 0x04034b50
	sigCentralHeader = 0x02014b50
	sigEOCD          = 0x06054b50

	eocdSize          = 22
	centralHeaderSize = 46
	localHeaderSize   = 30
	maxCommentSize    = 0xFFFF

	methodStored = 0
)

// zipEntry is one central directory record.
type zipEntry struct {
	name           string
	method         uint16
	compressedSize uint32
	size           uint32
	localOffset    uint32
}

// directory is what the end of central directory record points at.
type directory struct {
	eocdOffset int
	offset     int
	size       int
	entries    int
}

// findEOCD scans backward from the last possible record position. The
// record can be followed by a comment of up to 64KB.
func findEOCD(buf []byte) (directory, error) {
	if len(buf) < eocdSize {
		return directory{}, errors.NewStructuralError(
			fmt.Sprintf("archive of %d bytes is smaller than an end of central directory record", len(buf)),
			errors.ErrEOCDNotFound)
	}

	floor := max(0, len(buf)-eocdSize-maxCommentSize)
	for i := len(buf) - eocdSize; i >= floor; i-- {
		if binary.LittleEndian.Uint32(buf[i:]) != sigEOCD {
			continue
		}
		c := newCursor(buf, i+10)
		total, _ := c.u16()
		size, _ := c.u32()
		offset, _ := c.u32()
		if offset == 0xFFFFFFFF || total == 0xFFFF {
			return directory{}, errors.NewStructuralError("ZIP64 archives are not supported", nil)
		}
		return directory{eocdOffset: i, offset: int(offset), size: int(size), entries: int(total)}, nil
	}
	return directory{}, errors.NewStructuralError("no end of central directory record", errors.ErrEOCDNotFound)
}

// readCentralDirectory walks central directory records for as long as the
// record signature matches. The entry count in the end record is only a
// hint: a directory that does not start with a record is an error when the
// count promises entries.
func readCentralDirectory(buf []byte, dir directory) ([]zipEntry, error) {
	c := newCursor(buf, 0)
	if err := c.seek(dir.offset); err != nil {
		return nil, err
	}

	entries := make([]zipEntry, 0, dir.entries)
	for {
		start := c.pos
		sig, err := c.u32()
		if err != nil || sig != sigCentralHeader {
			if len(entries) == 0 && dir.entries > 0 {
				return nil, errors.NewStructuralError(
					fmt.Sprintf("central directory at offset %d has signature 0x%08x", start, sig), errors.ErrBadSignature)
			}
			return entries, nil
		}

		// version made by, version needed, flags
		if err := c.skip(6); err != nil {
			return nil, err
		}
		method, err := c.u16()
		if err != nil {
			return nil, err
		}
		// time, date, crc32
		if err := c.skip(8); err != nil {
			return nil, err
		}
		compressed, err := c.u32()
		if err != nil {
			return nil, err
		}
		size, err := c.u32()
		if err != nil {
			return nil, err
		}
		nameLen, err := c.u16()
		if err != nil {
			return nil, err
		}
		extraLen, err := c.u16()
		if err != nil {
			return nil, err
		}
		commentLen, err := c.u16()
		if err != nil {
			return nil, err
		}
		// disk start, internal and external attributes
		if err := c.skip(8); err != nil {
			return nil, err
		}
		local, err := c.u32()
		if err != nil {
			return nil, err
		}
		name, err := c.bytes(int(nameLen))
		if err != nil {
			return nil, err
		}
		if err := c.skip(int(extraLen) + int(commentLen)); err != nil {
			return nil, err
		}

		entries = append(entries, zipEntry{
			name:           string(name),
			method:         method,
			compressedSize: compressed,
			size:           size,
			localOffset:    local,
		})
	}
}

// storedContent returns the payload of an uncompressed entry by way of its
// local header. Compressed payloads are not inflated.
func storedContent(buf []byte, e zipEntry) ([]byte, bool) {
	if e.method != methodStored {
		return nil, false
	}
	c := newCursor(buf, 0)
	if err := c.seek(int(e.localOffset)); err != nil {
		return nil, false
	}
	if sig, err := c.u32(); err != nil || sig != sigLocalHeader {
		return nil, false
	}
	if err := c.skip(localHeaderSize - 8); err != nil {
		return nil, false
	}
	nameLen, err := c.u16()
	if err != nil {
		return nil, false
	}
	extraLen, err := c.u16()
	if err != nil {
		return nil, false
	}
	if err := c.skip(int(nameLen) + int(extraLen)); err != nil {
		return nil, false
	}
	data, err := c.bytes(int(e.compressedSize))
	if err != nil {
		return nil, false
	}
	return data, true
}
