package cpu

import (
	"fmt"
	"log"
	"slices"
	"strings"
)

// Disassembly layout columns.
const (
	DISASM_CODE_COLUMN    = 24
	DISASM_COMMENT_COLUMN = 56
	DISASM_VALUES_PER_ROW = 8
	LEGACY_ORG_THRESHOLD  = 8
)

// Disassembler converts binary images back into assembly source.
type Disassembler struct {
	Verbose bool // If set, verbosely logs the disassembler actions.

	// Linear disables replacing a leading run of at least
	// LEGACY_ORG_THRESHOLD zero bytes with an .org, for images without
	// a footer map.
	Linear bool
}

// itemKind is the type of a disassembled item.
type itemKind int

const (
	itemCode itemKind = iota
	itemData
	itemRawWord
	itemRawByte
)

// item is a single unit of disassembly output.
type item struct {
	Kind  itemKind
	Addr  uint16
	Len   int
	Code  Code
	Range Range
}

// image is a reconstructed 64 KiB logical image.
type image struct {
	memory  [0x10000]byte
	chunks  []Range
	markers []Range
	ranges  []Range
	labels  map[uint16]string
}

// rangeAt returns the typed data range starting at addr, if any.
func (img *image) rangeAt(addr int) (r Range, ok bool) {
	for _, r = range img.ranges {
		if int(r.Start) == addr {
			return r, true
		}
	}
	return
}

// rangeWithin returns true if a typed range starts in (from, to).
func (img *image) rangeWithin(from, to int) bool {
	for _, r := range img.ranges {
		if int(r.Start) > from && int(r.Start) < to {
			return true
		}
	}
	return false
}

// word returns the big-endian word at addr.
func (img *image) word(addr int) uint16 {
	return (uint16(img.memory[addr&0xFFFF]) << 8) | uint16(img.memory[(addr+1)&0xFFFF])
}

// layout divides a chunk into code, data and raw items.
func (img *image) layout(chunk Range) (items []item) {
	end := chunk.End()
	for a := int(chunk.Start); a < end; {
		if r, ok := img.rangeAt(a); ok && r.End() <= end {
			items = append(items, item{Kind: itemData, Addr: uint16(a), Len: r.Length, Range: r})
			a += r.Length
			continue
		}

		if end-a >= 2 {
			code := Code{Word: img.word(a)}
			length := 2 + 2*code.ImmediateNeed()
			if a+length <= end && !img.rangeWithin(a, a+length) {
				for n := 1; n <= code.ImmediateNeed(); n++ {
					code.Immediates = append(code.Immediates, img.word(a+2*n))
				}
				if code.Canonical() {
					items = append(items, item{Kind: itemCode, Addr: uint16(a), Len: length, Code: code})
					a += length
					continue
				}
			}
		}

		if _, ok := img.rangeAt(a + 1); ok || end-a == 1 {
			items = append(items, item{Kind: itemRawByte, Addr: uint16(a), Len: 1})
			a++
		} else {
			items = append(items, item{Kind: itemRawWord, Addr: uint16(a), Len: 2})
			a += 2
		}
	}

	return
}

// label returns the label defined at an address, if any.
func (img *image) label(addr uint16) (name string, ok bool) {
	name, ok = img.labels[addr]
	return
}

// assignLabels names branch targets and data ranges that start an item.
func (img *image) assignLabels(items []item) {
	starts := map[uint16]bool{}
	for _, it := range items {
		starts[it.Addr] = true
	}

	img.labels = map[uint16]string{}
	for _, it := range items {
		if it.Kind != itemCode {
			continue
		}
		var target Operand
		switch it.Code.Op() {
		case OP_JMP, OP_CALL:
			target = it.Code.Dst()
		case OP_JCOND:
			target = Abs(it.Code.Target())
		default:
			continue
		}
		if !target.Mode.NeedsImmediate() || !starts[target.Value] {
			continue
		}
		img.labels[target.Value] = fmt.Sprintf("L_%04X", target.Value)
	}

	for _, r := range img.ranges {
		if _, ok := img.labels[r.Start]; ok || !starts[r.Start] {
			continue
		}
		img.labels[r.Start] = fmt.Sprintf("D_%04X", r.Start)
	}
}

// writer accumulates formatted disassembly.
type writer struct {
	strings.Builder
}

// column pads the current line to a column.
func column(text string, col int) string {
	if len(text) >= col {
		return text + " "
	}
	return text + strings.Repeat(" ", col-len(text))
}

// line writes an indented statement, with an optional comment.
func (w *writer) line(text string, comment string) {
	text = strings.Repeat(" ", DISASM_CODE_COLUMN) + text
	if len(comment) > 0 {
		text = column(text, DISASM_COMMENT_COLUMN) + comment
	}
	w.WriteString(text + "\n")
}

// label writes a label definition.
func (w *writer) label(name string) {
	w.WriteString(name + ":\n")
}

// values writes an address comment, wrapping the values onto
// continuation lines.
func (w *writer) values(text string, addr uint16, values []string) {
	for n := 0; n == 0 || n < len(values); n += DISASM_VALUES_PER_ROW {
		row := values[n:min(n+DISASM_VALUES_PER_ROW, len(values))]
		prefix := fmt.Sprintf("; $%04X :", addr)
		if n > 0 {
			prefix = ";       :"
			text = ""
		}
		comment := prefix
		if len(row) > 0 {
			comment += " " + strings.Join(row, " ")
		}
		w.line(text, comment)
	}
}

// printable returns true if the bytes can be written verbatim in an
// .ascii directive.
func printable(data []byte) bool {
	return !slices.ContainsFunc(data, func(b byte) bool { return b == '\r' || b == '\n' })
}

// emitItem writes a single item.
func (img *image) emitItem(w *writer, it item) {
	if name, ok := img.labels[it.Addr]; ok {
		w.label(name)
	}

	data := img.memory[int(it.Addr) : int(it.Addr)+it.Len]

	var bytes, words []string
	for _, b := range data {
		bytes = append(bytes, fmt.Sprintf("0x%02X", b))
	}
	for n := 0; n+1 < len(data); n += 2 {
		words = append(words, fmt.Sprintf("0x%04X", img.word(int(it.Addr)+n)))
	}

	switch it.Kind {
	case itemCode:
		w.values(it.Code.Assembly(img.label), it.Addr, words)
	case itemRawWord:
		w.values(".word "+words[0], it.Addr, words)
	case itemRawByte:
		w.values(".byte "+bytes[0], it.Addr, bytes)
	case itemData:
		switch {
		case it.Range.Kind == RANGE_WORD && len(data)%2 == 0:
			w.values(".word "+strings.Join(words, ", "), it.Addr, words)
		case it.Range.Kind == RANGE_ASCII && printable(data):
			w.values(`.ascii "`+string(data)+`"`, it.Addr, bytes)
		default:
			w.values(".byte "+strings.Join(bytes, ", "), it.Addr, bytes)
		}
	}
}

// org writes an .org directive.
func (w *writer) org(addr uint16) {
	w.line(fmt.Sprintf(".org $%04X", addr), "")
}

// Disassemble converts a binary image into assembly source that
// reassembles to the same image.
func (dis *Disassembler) Disassemble(bin []byte) (text string, err error) {
	prog, mapped, err := ParseImage(bin)
	if err != nil {
		return
	}

	if !mapped && !dis.Linear && len(prog.Chunks) > 0 {
		first := slices.IndexFunc(bin, func(b byte) bool { return b != 0 })
		if first >= LEGACY_ORG_THRESHOLD {
			prog.Markers = []Range{{Start: uint16(first), Kind: RANGE_CODE}}
			prog.Chunks[0] = Chunk{Start: uint16(first), Data: bin[first:]}
		}
	}

	if dis.Verbose {
		log.Printf("disasm: %d chunks, %d markers, %d ranges (mapped %v)", len(prog.Chunks), len(prog.Markers), len(prog.Ranges), mapped)
	}

	img := &image{
		markers: prog.Markers,
		ranges:  prog.Ranges,
	}
	copy(img.memory[:], prog.Image())
	for _, chunk := range prog.Chunks {
		img.chunks = append(img.chunks, Range{Start: chunk.Start, Length: len(chunk.Data), Kind: RANGE_CODE})
	}

	var items [][]item
	var all []item
	for _, chunk := range img.chunks {
		chunkItems := img.layout(chunk)
		items = append(items, chunkItems)
		all = append(all, chunkItems...)
	}
	img.assignLabels(all)

	w := &writer{}
	cursor := 0
	pending := img.markers
	inData := false
	for n, chunk := range img.chunks {
		index := slices.IndexFunc(pending, func(r Range) bool { return r.Start == chunk.Start })
		switch {
		case index >= 0:
			for _, marker := range pending[:index+1] {
				w.org(marker.Start)
			}
			pending = pending[index+1:]
		case cursor != int(chunk.Start):
			w.org(chunk.Start)
		}

		for _, it := range items[n] {
			if it.Kind == itemData && !inData {
				w.line(".data", "")
				inData = true
			}
			img.emitItem(w, it)
		}

		cursor = chunk.End()
	}

	for _, marker := range pending {
		w.org(marker.Start)
	}

	w.line(".end", "")

	text = w.String()
	return
}
