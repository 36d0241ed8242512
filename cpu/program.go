package cpu

import (
	"encoding/binary"
	"slices"
)

// Footer map layout.
const (
	FOOTER_SIZE    = 512               // Bytes in a footer map.
	FOOTER_ENTRIES = FOOTER_SIZE/4 - 1 // Usable entries, less the terminator.
	RANGE_LEN_MAX  = 0x3FFF            // Largest length a single entry holds.
	RANGE_LEN_MASK = uint16(0x3FFF)    // Length bits of an entry.
	RANGE_KIND_BIT = 14                // First kind bit of an entry.
)

// RangeKind is the type of a footer map entry.
type RangeKind int

//go:generate go tool stringer -linecomment -type=RangeKind
const (
	RANGE_BYTE  = RangeKind(0) // byte
	RANGE_WORD  = RangeKind(1) // word
	RANGE_ASCII = RangeKind(2) // ascii
	RANGE_CODE  = RangeKind(3) // code
)

// Directive returns the assembler directive for a data range kind.
func (kind RangeKind) Directive() string {
	switch kind {
	case RANGE_BYTE:
		return ".byte"
	case RANGE_WORD:
		return ".word"
	case RANGE_ASCII:
		return ".ascii"
	}
	return ".org"
}

// Range is a single footer map entry. A RANGE_CODE entry of zero length
// is an .org marker; otherwise it describes a packed chunk.
type Range struct {
	Start  uint16
	Length int
	Kind   RangeKind
}

// Marker returns true if the range is an .org marker.
func (r Range) Marker() bool {
	return r.Kind == RANGE_CODE && r.Length == 0
}

// End returns the address after the range.
func (r Range) End() int {
	return int(r.Start) + r.Length
}

// Chunk is a contiguous run of assembled bytes.
type Chunk struct {
	Start uint16
	Data  []byte
}

// End returns the address after the chunk.
func (c Chunk) End() int {
	return int(c.Start) + len(c.Data)
}

// Opcode is a single assembled instruction, for source level debugging.
type Opcode struct {
	LineNo int    // Source line number.
	Line   string // Source text.
	Addr   uint16 // Logical address.
	Code   Code   // Encoded instruction.
}

// Program is an assembled binary image.
type Program struct {
	Start   int      // Address of .start, or -1 if not set.
	Chunks  []Chunk  // Packed chunks, in source order.
	Markers []Range  // .org markers.
	Ranges  []Range  // Typed data ranges.
	Opcodes []Opcode // Assembled instructions.
}

// Debug is the source location of an address.
type Debug struct {
	*Opcode
	Index int // Byte offset of the address within the instruction.
}

// Debug returns the instruction at an address, if any.
func (prog *Program) Debug(addr uint16) (dbg Debug) {
	for n, op := range prog.Opcodes {
		if addr >= op.Addr && int(addr) < int(op.Addr)+op.Code.Len() {
			dbg = Debug{
				Opcode: &prog.Opcodes[n],
				Index:  int(addr - op.Addr),
			}
			break
		}
	}

	return
}

// Map returns the footer map entries in footer order: markers, chunks,
// then typed data ranges. Entries longer than RANGE_LEN_MAX are split.
func (prog *Program) Map() (entries []Range) {
	entries = slices.Clone(prog.Markers)
	for _, chunk := range prog.Chunks {
		entries = append(entries, splitRange(Range{
			Start:  chunk.Start,
			Length: len(chunk.Data),
			Kind:   RANGE_CODE,
		})...)
	}
	for _, r := range prog.Ranges {
		entries = append(entries, splitRange(r)...)
	}

	return
}

// splitRange divides a range into pieces that fit a footer entry.
func splitRange(r Range) (pieces []Range) {
	if r.Length == 0 {
		return []Range{r}
	}
	for r.Length > 0 {
		piece := r
		piece.Length = min(r.Length, RANGE_LEN_MAX)
		pieces = append(pieces, piece)
		r.Start += uint16(piece.Length)
		r.Length -= piece.Length
	}
	return
}

// Binary returns the packed image. The footer map is appended if the
// program has any map entries.
func (prog *Program) Binary() (bin []byte, err error) {
	for _, chunk := range prog.Chunks {
		bin = append(bin, chunk.Data...)
	}

	entries := prog.Map()
	if len(entries) == 0 {
		return
	}

	footer, err := EncodeFooter(entries)
	if err != nil {
		return
	}

	bin = append(bin, footer...)
	return
}

// EncodeFooter packs map entries into a footer.
func EncodeFooter(entries []Range) (footer []byte, err error) {
	if len(entries) > FOOTER_ENTRIES {
		err = ErrFooterOverflow
		return
	}

	footer = make([]byte, FOOTER_SIZE)
	for n, r := range entries {
		length := uint16(r.Length) & RANGE_LEN_MASK
		if r.Marker() {
			length = 0
		}
		binary.BigEndian.PutUint16(footer[n*4:], r.Start)
		binary.BigEndian.PutUint16(footer[n*4+2:], (uint16(r.Kind)<<RANGE_KIND_BIT)|length)
	}

	return
}

// DecodeFooter unpacks the footer at the end of an image. ok is false if
// the image has no well formed footer.
func DecodeFooter(image []byte) (entries []Range, ok bool) {
	if len(image) < FOOTER_SIZE {
		return
	}

	footer := image[len(image)-FOOTER_SIZE:]
	end := -1
	for n := 0; n < FOOTER_SIZE; n += 4 {
		start := binary.BigEndian.Uint16(footer[n:])
		field := binary.BigEndian.Uint16(footer[n+2:])
		if start == 0 && field == 0 {
			end = n
			break
		}
		entries = append(entries, Range{
			Start:  start,
			Length: int(field & RANGE_LEN_MASK),
			Kind:   RangeKind(field >> RANGE_KIND_BIT),
		})
	}

	if end < 0 || len(entries) == 0 {
		return nil, false
	}

	for _, b := range footer[end:] {
		if b != 0 {
			return nil, false
		}
	}

	return mergeRanges(entries), true
}

// mergeRanges joins the pieces of ranges split by splitRange.
func mergeRanges(entries []Range) (merged []Range) {
	for _, r := range entries {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if last.Kind == r.Kind && r.Length > 0 &&
				last.Length > 0 && last.Length%RANGE_LEN_MAX == 0 &&
				last.End() == int(r.Start) {
				last.Length += r.Length
				continue
			}
		}
		merged = append(merged, r)
	}

	return
}

// ParseImage rebuilds the chunks and map of a binary image. mapped is
// false if the image has no footer, in which case it is loaded as a single
// chunk at address 0.
func ParseImage(bin []byte) (prog *Program, mapped bool, err error) {
	prog = &Program{Start: -1}

	entries, mapped := DecodeFooter(bin)
	if !mapped {
		if len(bin) > 0x10000 {
			err = ErrImageTooLarge
			return
		}
		if len(bin) > 0 {
			prog.Chunks = []Chunk{{Start: 0, Data: slices.Clone(bin)}}
		}
		return
	}

	body := bin[:len(bin)-FOOTER_SIZE]
	offset := 0
	for _, r := range entries {
		switch {
		case r.Marker():
			prog.Markers = append(prog.Markers, r)
		case r.Kind == RANGE_CODE:
			if offset+r.Length > len(body) || r.End() > 0x10000 {
				err = ErrFooterOverrun
				return
			}
			prog.Chunks = append(prog.Chunks, Chunk{
				Start: r.Start,
				Data:  slices.Clone(body[offset : offset+r.Length]),
			})
			offset += r.Length
		case r.Length > 0:
			prog.Ranges = append(prog.Ranges, r)
		}
	}

	return
}

// Image returns the 64 KiB logical memory image of the program.
func (prog *Program) Image() (memory []byte) {
	memory = make([]byte, 0x10000)
	for _, chunk := range prog.Chunks {
		copy(memory[chunk.Start:], chunk.Data)
	}

	return
}
