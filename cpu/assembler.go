// Copyright 2024, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// Directives known to the assembler.
var directives = map[string]bool{
	".org":   true,
	".start": true,
	".data":  true,
	".end":   true,
	".byte":  true,
	".bytes": true,
	".ascii": true,
	".word":  true,
	".equ":   true,
}

var (
	reLabel    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
	reRegister = regexp.MustCompile(`^[Rr]([0-9]+)$`)
	reAddress  = regexp.MustCompile(`^\$[0-9A-Fa-f]{1,4}$`)
	reIdent    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	reExpr     = regexp.MustCompile(`\$?\$\([^\$]*\)`)
)

// Line is a single parsed line of assembly source.
type Line struct {
	LineNo    int      // Source line number.
	Text      string   // Source text, without comments.
	Addr      int      // Address of the first byte generated by the line.
	Label     string   // Label defined on the line, if any.
	Directive string   // Directive, lower case, if any.
	Mnemonic  string   // Instruction mnemonic, if any.
	Operands  []string // Directive or instruction operands.
	Size      int      // Bytes generated by the line.

	op       CodeOp
	byteSize bool
}

// Assembler is a two pass assembler for the fantasy16 system.
type Assembler struct {
	Verbose bool   // If set, verbosely logs the assembler actions.
	File    string // Source name, for error messages.

	Lines  []Line            // Parsed source lines.
	Label  map[string]int    // Map of lower case labels to addresses.
	Equate map[string]string // Map of equates.

	predefine map[string]string // Predefines
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// stripComment removes a ';' comment, ignoring any ';' inside the quoted
// text of an .ascii directive.
func stripComment(text string) string {
	first := strings.IndexByte(text, '"')
	if first < 0 {
		before, _, _ := strings.Cut(text, ";")
		return before
	}

	if semi := strings.IndexByte(text[:first], ';'); semi >= 0 {
		return text[:semi]
	}

	last := strings.LastIndexByte(text, '"')
	if semi := strings.IndexByte(text[last:], ';'); semi >= 0 {
		return text[:last+semi]
	}

	return text
}

// parseNumber parses an immediate: 0x hex, % binary, or decimal.
func parseNumber(word string) (value int64, err error) {
	var base int
	digits := word
	switch {
	case strings.HasPrefix(word, "0x"), strings.HasPrefix(word, "0X"):
		base = 16
		digits = word[2:]
	case strings.HasPrefix(word, "%"):
		base = 2
		digits = word[1:]
	default:
		base = 10
	}

	if len(digits) == 0 || strings.ContainsAny(digits, "+-_") {
		err = ErrParseNumber(word)
		return
	}

	value, err = strconv.ParseInt(digits, base, 64)
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	return
}

// isNumber returns true if the word looks like an immediate.
func isNumber(word string) bool {
	return len(word) > 0 && (word[0] == '%' || (word[0] >= '0' && word[0] <= '9'))
}

// parseAddress parses a $HEX address.
func parseAddress(word string) (addr uint16, err error) {
	if !reAddress.MatchString(word) {
		err = ErrAddressInvalid
		return
	}

	value, _ := strconv.ParseUint(word[1:], 16, 16)
	addr = uint16(value)
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value uint16, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		if !reIdent.MatchString(key) {
			continue
		}
		v64, _err := parseNumber(str)
		if _err != nil {
			// Ignore non-integer equates.
			continue
		}
		pred[key] = starlark.MakeInt64(v64)
	}
	for _, ln := range asm.Lines {
		if !reIdent.MatchString(ln.Label) {
			continue
		}
		addr := asm.Label[strings.ToLower(ln.Label)]
		pred[ln.Label] = starlark.MakeInt(addr)
		pred[strings.ToLower(ln.Label)] = starlark.MakeInt(addr)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok || st_int64 < -0x8000 || st_int64 > 0xFFFF {
		err = ErrParseExpression(expr)
		return
	}
	value = uint16(st_int64)
	return
}

// expand evaluates $(...) as an immediate and $$(...) as an address.
// Quoted text is left untouched.
func (asm *Assembler) expand(line string) (text string, err error) {
	head, tail := line, ""
	if quote := strings.IndexByte(line, '"'); quote >= 0 {
		head, tail = line[:quote], line[quote:]
	}

	head = reExpr.ReplaceAllStringFunc(head, func(str string) string {
		addr := strings.HasPrefix(str, "$$")
		expr := str[strings.IndexByte(str, '(')+1 : len(str)-1]
		value, _err := asm.parenEval(expr)
		if _err != nil {
			if err == nil {
				err = _err
			}
			return str
		}
		if addr {
			return fmt.Sprintf("$%04X", value)
		}
		return fmt.Sprintf("0x%04X", value)
	})

	text = head + tail
	return
}

// substitute replaces operands that name an equate.
func (asm *Assembler) substitute(words []string) {
	for n, word := range words {
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}
}

// splitOperands splits comma separated operands.
func splitOperands(text string) (ops []string, err error) {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return
	}

	for _, op := range strings.Split(text, ",") {
		op = strings.TrimSpace(op)
		if len(op) == 0 {
			err = ErrOperandInvalid
			return
		}
		ops = append(ops, op)
	}

	return
}

// operandSize returns the extension bytes an operand will need.
func operandSize(word string) int {
	if reRegister.MatchString(word) {
		return 0
	}
	if strings.HasPrefix(word, "[") && strings.HasSuffix(word, "]") {
		return 0
	}
	return 2
}

// parseState is the running state of the first pass.
type parseState struct {
	loc      int
	sawOrg   bool
	sawStart bool
	sawData  bool
	sawEnd   bool
	start    int
}

// addLabel records a label at the current location.
func (asm *Assembler) addLabel(name string, loc int) (err error) {
	if !reLabel.MatchString(name) || reRegister.MatchString(name) {
		err = ErrLabelInvalid
		return
	}

	if loc > 0xFFFF {
		err = ErrAddressOverflow
		return
	}

	key := strings.ToLower(name)
	if _, ok := asm.Label[key]; ok {
		err = ErrLabelDuplicate
		return
	}

	asm.Label[key] = loc
	return
}

// orgAddress resolves the operand of an .org directive.
func (asm *Assembler) orgAddress(word string) (addr int, err error) {
	if strings.HasPrefix(word, "$") {
		var value uint16
		value, err = parseAddress(word)
		addr = int(value)
		return
	}

	addr, ok := asm.Label[strings.ToLower(word)]
	if !ok {
		err = ErrAddressInvalid
	}
	return
}

// splitWord splits the first whitespace separated word from a line.
func splitWord(text string) (word string, rest string) {
	space := strings.IndexAny(text, " \t")
	if space < 0 {
		return text, ""
	}
	return text[:space], strings.TrimSpace(text[space+1:])
}

// parseDirective handles a directive during the first pass.
func (asm *Assembler) parseDirective(state *parseState, ln *Line, text string) (err error) {
	name, rest := splitWord(text)

	if strings.HasSuffix(name, ":") {
		err = ErrDirectiveColon
		return
	}

	name = strings.ToLower(name)
	if !directives[name] {
		err = ErrDirectiveInvalid
		return
	}

	ln.Directive = name
	ln.Addr = state.loc

	switch name {
	case ".equ":
		words := strings.Fields(rest)
		if len(words) != 2 {
			err = ErrEquateSyntax
			return
		}
		if _, ok := asm.Equate[words[0]]; ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[0]] = words[1]
		ln.Operands = words
		return
	case ".ascii":
		if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
			err = ErrDirectiveSyntax
			return
		}
		text := rest[1 : len(rest)-1]
		if strings.ContainsAny(text, "\r\n") {
			err = ErrAsciiInvalid
			return
		}
		ln.Operands = []string{text}
		ln.Size = len(text)
	default:
		ln.Operands, err = splitOperands(rest)
		if err != nil {
			return
		}
		asm.substitute(ln.Operands)
	}

	switch name {
	case ".org":
		if len(ln.Operands) != 1 {
			err = ErrDirectiveSyntax
			return
		}
		state.loc, err = asm.orgAddress(ln.Operands[0])
		if err != nil {
			return
		}
		ln.Addr = state.loc
		state.sawOrg = true
	case ".start":
		if len(ln.Operands) != 0 {
			err = ErrDirectiveSyntax
			return
		}
		if state.sawStart {
			err = ErrStartDuplicate
			return
		}
		if state.sawOrg {
			err = ErrStartAfterOrg
			return
		}
		if state.loc > 0xFFFF {
			err = ErrAddressOverflow
			return
		}
		state.sawStart = true
		state.start = state.loc
	case ".data":
		if len(ln.Operands) != 0 {
			err = ErrDirectiveSyntax
			return
		}
		if state.sawData {
			err = ErrDataDuplicate
			return
		}
		state.sawData = true
	case ".end":
		if len(ln.Operands) != 0 {
			err = ErrDirectiveSyntax
			return
		}
		state.sawEnd = true
	case ".byte", ".bytes":
		if len(ln.Operands) == 0 {
			err = ErrDirectiveSyntax
			return
		}
		ln.Size = len(ln.Operands)
	case ".word":
		if len(ln.Operands) == 0 {
			err = ErrDirectiveSyntax
			return
		}
		ln.Size = 2 * len(ln.Operands)
	}

	return
}

// parseInstruction handles an instruction during the first pass.
func (asm *Assembler) parseInstruction(state *parseState, ln *Line, text string) (err error) {
	mnemonic, rest := splitWord(text)

	ln.Addr = state.loc
	ln.Mnemonic = strings.ToUpper(mnemonic)

	base, suffix, _ := strings.Cut(ln.Mnemonic, ".")
	op, ok := LookupOpcode(base)
	if !ok {
		err = ErrOpcodeInvalid
		return
	}
	switch suffix {
	case "", "W":
	case "B":
		ln.byteSize = true
	default:
		err = ErrOpcodeInvalid
		return
	}
	ln.op = op

	if strings.Contains(rest, "#") {
		err = ErrImmediateSyntax
		return
	}

	ln.Operands, err = splitOperands(rest)
	if err != nil {
		return
	}
	asm.substitute(ln.Operands)

	ln.Size = 2
	if op == OP_JCOND {
		if len(ln.Operands) >= 2 {
			ln.Size += 2
		}
		return
	}
	for _, word := range ln.Operands {
		ln.Size += operandSize(word)
	}

	return
}

// parseLine parses a single line of source in the first pass.
func (asm *Assembler) parseLine(state *parseState, text string, lineno int) (err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	line := strings.TrimSpace(stripComment(text))
	if len(line) == 0 {
		return
	}

	if state.sawEnd {
		err = ErrContentAfterEnd
		return
	}

	line, err = asm.expand(line)
	if err != nil {
		return
	}

	ln := Line{LineNo: lineno, Text: line, Addr: state.loc}

	if !strings.HasPrefix(line, ".") {
		colon := strings.IndexByte(line, ':')
		quote := strings.IndexByte(line, '"')
		if colon >= 0 && (quote < 0 || colon < quote) {
			ln.Label = strings.TrimSpace(line[:colon])
			err = asm.addLabel(ln.Label, state.loc)
			if err != nil {
				return
			}
			line = strings.TrimSpace(line[colon+1:])
		}
	}

	switch {
	case len(line) == 0:
	case strings.HasPrefix(line, "."):
		err = asm.parseDirective(state, &ln, line)
	default:
		err = asm.parseInstruction(state, &ln, line)
	}
	if err != nil {
		return
	}

	state.loc = ln.Addr + ln.Size
	if state.loc > 0x10000 {
		err = ErrAddressOverflow
		return
	}

	asm.Lines = append(asm.Lines, ln)
	return
}

// Parse parses an input stream into an assembled Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	var text string
	var lineno int

	defer func() {
		if err == nil {
			return
		}
		if _, ok := err.(*ErrSyntax); !ok {
			err = &ErrSyntax{File: asm.File, LineNo: lineno, Addr: -1, Line: strings.TrimSpace(text), Err: err}
		}
	}()

	asm.Lines = asm.Lines[:0]
	asm.Label = make(map[string]int, 16)
	asm.Equate = maps.Clone(sysEquate)
	maps.Copy(asm.Equate, _cpu_defines)
	maps.Copy(asm.Equate, asm.predefine)

	state := &parseState{start: -1}

	for scanner.Scan() {
		text = scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		err = asm.parseLine(state, text, lineno)
		if err != nil {
			return
		}
	}

	err = scanner.Err()
	if err != nil {
		return
	}

	if !state.sawEnd {
		text = ""
		err = ErrEndMissing
		return
	}

	prog, err = asm.encode(state.start)
	return
}

// emitter accumulates chunks and footer ranges in the second pass.
type emitter struct {
	prog   *Program
	inData bool
}

// rangeAt returns true if a marker or data range starts at addr.
func (em *emitter) rangeAt(addr int) bool {
	for _, r := range em.prog.Markers {
		if int(r.Start) == addr {
			return true
		}
	}
	for _, r := range em.prog.Ranges {
		if int(r.Start) == addr {
			return true
		}
	}
	return false
}

// emit places bytes at addr, extending the last chunk when contiguous.
// An instruction opening a new chunk records an implicit .org marker.
func (em *emitter) emit(addr int, data []byte, instruction bool) (err error) {
	if len(data) == 0 {
		return
	}

	end := addr + len(data)
	if end > 0x10000 {
		err = ErrAddressOverflow
		return
	}

	chunks := em.prog.Chunks
	extend := len(chunks) > 0 && chunks[len(chunks)-1].End() == addr

	for n, chunk := range chunks {
		if extend && n == len(chunks)-1 {
			continue
		}
		if addr < chunk.End() && end > int(chunk.Start) {
			err = ErrChunkOverlap
			return
		}
	}

	if extend {
		last := &em.prog.Chunks[len(chunks)-1]
		last.Data = append(last.Data, data...)
		return
	}

	if instruction && (len(chunks) > 0 || addr != 0) && !em.rangeAt(addr) {
		em.prog.Markers = append(em.prog.Markers, Range{Start: uint16(addr), Kind: RANGE_CODE})
	}

	em.prog.Chunks = append(em.prog.Chunks, Chunk{Start: uint16(addr), Data: slices.Clone(data)})
	return
}

// wordValue resolves a .word or .byte operand: a number, an address, or
// a label.
func (asm *Assembler) wordValue(word string) (value uint16, err error) {
	switch {
	case reRegister.MatchString(word):
		err = ErrOperandInvalid
	case strings.HasPrefix(word, "$"):
		value, err = parseAddress(word)
	case isNumber(word):
		var v64 int64
		v64, err = parseNumber(word)
		if err == nil && v64 > 0xFFFF {
			err = ErrValueRange
		}
		value = uint16(v64)
	case reLabel.MatchString(word):
		addr, ok := asm.Label[strings.ToLower(word)]
		if !ok {
			err = ErrLabelMissing(word)
			return
		}
		value = uint16(addr)
	default:
		err = ErrOperandInvalid
	}
	return
}

// directiveData returns the bytes generated by a data directive.
func (asm *Assembler) directiveData(ln *Line) (data []byte, kind RangeKind, err error) {
	switch ln.Directive {
	case ".byte", ".bytes":
		kind = RANGE_BYTE
		for _, word := range ln.Operands {
			var value uint16
			value, err = asm.wordValue(word)
			if err != nil {
				return
			}
			if value > 0xFF {
				err = ErrValueRange
				return
			}
			data = append(data, byte(value))
		}
	case ".word":
		kind = RANGE_WORD
		for _, word := range ln.Operands {
			var value uint16
			value, err = asm.wordValue(word)
			if err != nil {
				return
			}
			data = append(data, byte(value>>8), byte(value))
		}
	case ".ascii":
		kind = RANGE_ASCII
		data = []byte(ln.Operands[0])
	}

	return
}

// operand resolves an instruction operand.
func (asm *Assembler) operand(word string) (op Operand, err error) {
	if match := reRegister.FindStringSubmatch(word); match != nil {
		reg, _ := strconv.Atoi(match[1])
		if reg > 7 {
			err = ErrRegisterInvalid
			return
		}
		op = Reg(reg)
		return
	}

	if strings.HasPrefix(word, "[") && strings.HasSuffix(word, "]") {
		inner := strings.TrimSpace(word[1 : len(word)-1])
		match := reRegister.FindStringSubmatch(inner)
		if match == nil {
			err = ErrOperandInvalid
			return
		}
		reg, _ := strconv.Atoi(match[1])
		if reg > 7 {
			err = ErrRegisterInvalid
			return
		}
		op = Ind(reg)
		return
	}

	if strings.HasPrefix(word, "$") {
		var addr uint16
		addr, err = parseAddress(word)
		op = Abs(addr)
		return
	}

	if isNumber(word) {
		var v64 int64
		v64, err = parseNumber(word)
		if err != nil {
			return
		}
		if v64 > 0xFFFF {
			err = ErrValueRange
			return
		}
		op = Imm(uint16(v64))
		return
	}

	if reLabel.MatchString(word) {
		addr, ok := asm.Label[strings.ToLower(word)]
		if !ok {
			err = ErrLabelMissing(word)
			return
		}
		op = Abs(uint16(addr))
		return
	}

	err = ErrOperandInvalid
	return
}

// instruction encodes an instruction line.
func (asm *Assembler) instruction(ln *Line) (code Code, err error) {
	op := ln.op
	if len(ln.Operands) != op.Operands() {
		err = ErrOperandCount
		return
	}

	if op == OP_JCOND {
		cond, ok := LookupCond(ln.Operands[0])
		if !ok {
			err = ErrConditionInvalid
			return
		}
		var target Operand
		target, err = asm.operand(ln.Operands[1])
		if err != nil {
			return
		}
		if !target.Mode.NeedsImmediate() {
			err = ErrTargetInvalid
			return
		}
		code = MakeCodeJcond(cond, target.Value)
		return
	}

	var ops []Operand
	for _, word := range ln.Operands {
		var operand Operand
		operand, err = asm.operand(word)
		if err != nil {
			return
		}
		ops = append(ops, operand)
	}

	byteSize := ln.byteSize && op.Sizeful()
	if byteSize {
		for _, operand := range ops {
			if operand.Mode == MODE_IMM && operand.Value > 0xFF {
				err = ErrImmediateRange
				return
			}
		}
	}

	var src, dst Operand
	switch {
	case len(ops) == 2:
		src, dst = ops[0], ops[1]
	case op == OP_PUSH:
		src = ops[0]
	case len(ops) == 1:
		dst = ops[0]
		if (op == OP_JMP || op == OP_CALL) && dst.Mode == MODE_IMM {
			err = ErrTargetInvalid
			return
		}
	}

	code = MakeCode(op, byteSize, src, dst)
	return
}

// encode runs the second pass over the parsed lines.
func (asm *Assembler) encode(start int) (prog *Program, err error) {
	em := &emitter{prog: &Program{Start: start}}

	for n := range asm.Lines {
		ln := &asm.Lines[n]

		switch ln.Directive {
		case "":
			if len(ln.Mnemonic) == 0 {
				continue
			}
			var code Code
			code, err = asm.instruction(ln)
			if err == nil {
				data := make([]byte, 0, code.Len())
				for _, word := range code.Words() {
					data = append(data, byte(word>>8), byte(word))
				}
				err = em.emit(ln.Addr, data, true)
			}
			if err == nil {
				em.prog.Opcodes = append(em.prog.Opcodes, Opcode{
					LineNo: ln.LineNo,
					Line:   ln.Text,
					Addr:   uint16(ln.Addr),
					Code:   code,
				})
			}
		case ".org":
			em.prog.Markers = append(em.prog.Markers, Range{Start: uint16(ln.Addr), Kind: RANGE_CODE})
		case ".data":
			em.inData = true
		case ".byte", ".bytes", ".word", ".ascii":
			var data []byte
			var kind RangeKind
			data, kind, err = asm.directiveData(ln)
			if err == nil {
				err = em.emit(ln.Addr, data, false)
			}
			if err == nil && em.inData && len(data) > 0 {
				em.prog.Ranges = append(em.prog.Ranges, Range{Start: uint16(ln.Addr), Length: len(data), Kind: kind})
			}
		}

		if err != nil {
			err = &ErrSyntax{File: asm.File, LineNo: ln.LineNo, Addr: ln.Addr, Line: ln.Text, Err: err}
			return
		}
	}

	if entries := em.prog.Map(); len(entries) > 0 {
		_, err = EncodeFooter(entries)
		if err != nil {
			err = &ErrSyntax{File: asm.File, LineNo: asm.Lines[len(asm.Lines)-1].LineNo, Addr: -1, Line: ".end", Err: err}
			return
		}
	}

	prog = em.prog
	return
}

// DebugParse writes the parsed labels and lines.
func (asm *Assembler) DebugParse(w io.Writer) (err error) {
	labels := slices.Collect(maps.Keys(asm.Label))
	sort.Strings(labels)

	_, err = fmt.Fprintf(w, "; labels\n")
	if err != nil {
		return
	}
	for _, label := range labels {
		_, err = fmt.Fprintf(w, ";   %-24s $%04X\n", label, asm.Label[label])
		if err != nil {
			return
		}
	}

	_, err = fmt.Fprintf(w, "; lines\n")
	if err != nil {
		return
	}
	for _, ln := range asm.Lines {
		_, err = fmt.Fprintf(w, "; %5d $%04X %2d  %v\n", ln.LineNo, ln.Addr, ln.Size, ln.Text)
		if err != nil {
			return
		}
	}

	return
}
