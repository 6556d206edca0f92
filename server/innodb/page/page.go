// Package page implements the L0 layer of the storage engine: a fixed
// 16 KiB framed byte container (spec.md §3 Page) and the table-space
// file abstraction that addresses pages on disk (spec.md §4.1).
package page

import (
	"encoding/binary"
	"hash/crc32"
)

// Field offsets within the 38-byte header, grounded on the teacher's
// basic.FHeader* layout (server/innodb/basic/page_header.go).
const (
	fHeaderChecksum = 0  // 4 bytes
	fHeaderPageNo   = 4  // 4 bytes
	fHeaderPrevPage = 8  // 4 bytes, int32, -1 = none
	fHeaderNextPage = 12 // 4 bytes, int32, -1 = none
	fHeaderLSN      = 16 // 8 bytes
	fHeaderPageType = 24 // 2 bytes
	fHeaderFlushLSN = 26 // 8 bytes
	fHeaderSpaceID  = 34 // 4 bytes

	HeaderSize  = 38
	TrailerSize = 8
	Size        = 16384
	DataSize    = Size - HeaderSize - TrailerSize // 16338

	fTrailerChecksum = 0 // 4 bytes
	fTrailerLSNLow   = 4 // 4 bytes
)

// Type tags the contents of a page, per spec.md §3 "Page types".
type Type uint16

const (
	TypeFree Type = iota
	TypeIndex
	TypeUndoLog
	TypeSystem
	TypeFSPHeader
)

// Header mirrors the 38-byte on-disk file header.
type Header struct {
	Checksum      uint32
	PageNo        uint32
	Prev          int32 // -1 = none
	Next          int32 // -1 = none
	LSN           uint64
	PageType      Type
	FileFlushLSN  uint64
	SpaceID       uint32
}

// Trailer mirrors the 8-byte on-disk file trailer.
type Trailer struct {
	Checksum uint32
	LSNLow   uint32
}

// Page is a fixed 16384-byte addressable unit identified by
// (space_id, page_no). Data is exactly DataSize bytes of user payload;
// callers address it with byte offsets via Write/Read.
type Page struct {
	Header  Header
	Data    [DataSize]byte
	Trailer Trailer

	dirty bool
}

// New creates a zeroed page of the given type, addressed by the given
// space/page identity. The header LSN starts at zero; the first write
// to disk must go through UpdateChecksumAndLSN.
func New(spaceID, pageNo uint32, typ Type) *Page {
	return &Page{
		Header: Header{
			PageNo:   pageNo,
			Prev:     -1,
			Next:     -1,
			PageType: typ,
			SpaceID:  spaceID,
		},
	}
}

// Write copies bytes into Data at offset, marking the page dirty.
func (p *Page) Write(offset int, b []byte) error {
	if offset < 0 || offset+len(b) > DataSize {
		return ErrOutOfBounds
	}
	copy(p.Data[offset:], b)
	p.dirty = true
	return nil
}

// Read returns a copy of length bytes from Data at offset.
func (p *Page) Read(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > DataSize {
		return nil, ErrOutOfBounds
	}
	out := make([]byte, length)
	copy(out, p.Data[offset:offset+length])
	return out, nil
}

// IsDirty reports whether the page has been written to since it was
// created, deserialized or had its checksum recomputed (or since
// SetDirty(false)). Serialize leaves the flag unchanged.
func (p *Page) IsDirty() bool { return p.dirty }

// SetDirty lets the buffer pool mark a page dirty on behalf of a
// caller that mutated it through a pinned handle (e.g. via Write).
func (p *Page) SetDirty(dirty bool) { p.dirty = dirty }

// UpdateChecksumAndLSN sets the header LSN, recomputes the CRC32 over
// the header (with its checksum field zeroed) plus the data, and
// writes that checksum into both header and trailer along with the
// trailer's low-32-bits-of-LSN field. Spec.md §4.1.
func (p *Page) UpdateChecksumAndLSN(lsn uint64) {
	p.Header.LSN = lsn
	sum := p.computeChecksum()
	p.Header.Checksum = sum
	p.Trailer.Checksum = sum
	p.Trailer.LSNLow = uint32(lsn)
	p.dirty = false
}

func (p *Page) computeChecksum() uint32 {
	var buf [HeaderSize]byte
	encodeHeader(&buf, p.Header)
	// zero the checksum field before hashing, as specified.
	buf[fHeaderChecksum] = 0
	buf[fHeaderChecksum+1] = 0
	buf[fHeaderChecksum+2] = 0
	buf[fHeaderChecksum+3] = 0

	crc := crc32.NewIEEE()
	crc.Write(buf[:])
	crc.Write(p.Data[:])
	return crc.Sum32()
}

// Verify reports whether the page's header/trailer checksums agree,
// the trailer's low-32 LSN bits match the header LSN, and the
// recomputed CRC32 matches the stored checksum. Spec.md §3 invariant.
func (p *Page) Verify() bool {
	if p.Header.Checksum != p.Trailer.Checksum {
		return false
	}
	if uint32(p.Header.LSN) != p.Trailer.LSNLow {
		return false
	}
	return p.computeChecksum() == p.Header.Checksum
}

// Serialize produces the exact 16384-byte on-disk image.
func (p *Page) Serialize() []byte {
	out := make([]byte, Size)
	var hdr [HeaderSize]byte
	encodeHeader(&hdr, p.Header)
	copy(out[0:HeaderSize], hdr[:])
	copy(out[HeaderSize:HeaderSize+DataSize], p.Data[:])

	var trl [TrailerSize]byte
	binary.BigEndian.PutUint32(trl[fTrailerChecksum:], p.Trailer.Checksum)
	binary.BigEndian.PutUint32(trl[fTrailerLSNLow:], p.Trailer.LSNLow)
	copy(out[HeaderSize+DataSize:], trl[:])
	return out
}

// Deserialize decodes a page from its exact 16384-byte on-disk image.
// It fails if the input is not exactly Size bytes.
func Deserialize(buf []byte) (*Page, error) {
	if len(buf) != Size {
		return nil, ErrBadPageLength
	}
	p := &Page{}
	p.Header = decodeHeader(buf[0:HeaderSize])
	copy(p.Data[:], buf[HeaderSize:HeaderSize+DataSize])
	trl := buf[HeaderSize+DataSize:]
	p.Trailer = Trailer{
		Checksum: binary.BigEndian.Uint32(trl[fTrailerChecksum:]),
		LSNLow:   binary.BigEndian.Uint32(trl[fTrailerLSNLow:]),
	}
	return p, nil
}

func encodeHeader(buf *[HeaderSize]byte, h Header) {
	binary.BigEndian.PutUint32(buf[fHeaderChecksum:], h.Checksum)
	binary.BigEndian.PutUint32(buf[fHeaderPageNo:], h.PageNo)
	binary.BigEndian.PutUint32(buf[fHeaderPrevPage:], uint32(h.Prev))
	binary.BigEndian.PutUint32(buf[fHeaderNextPage:], uint32(h.Next))
	binary.BigEndian.PutUint64(buf[fHeaderLSN:], h.LSN)
	binary.BigEndian.PutUint16(buf[fHeaderPageType:], uint16(h.PageType))
	binary.BigEndian.PutUint64(buf[fHeaderFlushLSN:], h.FileFlushLSN)
	binary.BigEndian.PutUint32(buf[fHeaderSpaceID:], h.SpaceID)
}

func decodeHeader(buf []byte) Header {
	return Header{
		Checksum:     binary.BigEndian.Uint32(buf[fHeaderChecksum:]),
		PageNo:       binary.BigEndian.Uint32(buf[fHeaderPageNo:]),
		Prev:         int32(binary.BigEndian.Uint32(buf[fHeaderPrevPage:])),
		Next:         int32(binary.BigEndian.Uint32(buf[fHeaderNextPage:])),
		LSN:          binary.BigEndian.Uint64(buf[fHeaderLSN:]),
		PageType:     Type(binary.BigEndian.Uint16(buf[fHeaderPageType:])),
		FileFlushLSN: binary.BigEndian.Uint64(buf[fHeaderFlushLSN:]),
		SpaceID:      binary.BigEndian.Uint32(buf[fHeaderSpaceID:]),
	}
}
