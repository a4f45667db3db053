package mir

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/vmjump/bjo/pkg/ir"
)

// ParseFile reads and parses a module from a path on disk.
func ParseFile(path string) (*ir.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// ParseString parses a module from its textual listing.
func ParseString(s string) (*ir.Module, error) {
	return Parse(strings.NewReader(s))
}

// Parse reads the textual listing format produced by Print/Sprint back into
// an *ir.Module.
func Parse(r io.Reader) (*ir.Module, error) {
	p := &parser{scanner: bufio.NewScanner(r)}
	return p.parseModule()
}

type parser struct {
	scanner *bufio.Scanner
	line    string
	lineNum int
}

func (p *parser) next() bool {
	for p.scanner.Scan() {
		p.lineNum++
		line := strings.TrimSpace(p.scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		p.line = line
		return true
	}
	return false
}

func (p *parser) errf(format string, args ...interface{}) error {
	return fmt.Errorf("mir: line %d: %s", p.lineNum, fmt.Sprintf(format, args...))
}

func (p *parser) parseModule() (*ir.Module, error) {
	var m *ir.Module

	for p.next() {
		switch {
		case strings.HasPrefix(p.line, "module "):
			name := strings.TrimSuffix(strings.TrimPrefix(p.line, "module "), ".")
			m = ir.NewModule(strings.TrimSpace(name))

		case strings.HasPrefix(p.line, "export "):
			if m == nil {
				return nil, p.errf("export before module declaration")
			}
			spec := strings.TrimSuffix(strings.TrimPrefix(p.line, "export "), ".")
			fn, arity, err := parseNameArity(strings.TrimSpace(spec))
			if err != nil {
				return nil, p.errf("%v", err)
			}
			m.Exports = append(m.Exports, ir.Export{Function: fn, Arity: arity})

		case strings.HasPrefix(p.line, "attribute "):
			if m == nil {
				return nil, p.errf("attribute before module declaration")
			}
			rest := strings.TrimSuffix(strings.TrimPrefix(p.line, "attribute "), ".")
			fields := strings.SplitN(strings.TrimSpace(rest), " ", 2)
			if len(fields) != 2 {
				return nil, p.errf("malformed attribute: %q", p.line)
			}
			m.Attributes = append(m.Attributes, ir.Attribute{Key: fields[0], Value: fields[1]})

		case strings.HasPrefix(p.line, "literals "):
			if m == nil {
				return nil, p.errf("literals before module declaration")
			}
			count := strings.TrimSuffix(strings.TrimPrefix(p.line, "literals "), ".")
			n, err := strconv.Atoi(strings.TrimSpace(count))
			if err != nil {
				return nil, p.errf("invalid literal count: %v", err)
			}
			m.LiteralCount = n

		case strings.HasPrefix(p.line, "function "):
			if m == nil {
				return nil, p.errf("function before module declaration")
			}
			fn, err := p.parseFunction()
			if err != nil {
				return nil, err
			}
			m.AddFunction(fn)

		default:
			return nil, p.errf("unrecognized top-level construct: %q", p.line)
		}
	}
	if err := p.scanner.Err(); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("mir: empty input, no module declaration found")
	}
	return m, nil
}

// parseFunction parses "function name/arity caller LN" followed by
// numbered instruction lines, terminated by "end".
func (p *parser) parseFunction() (*ir.Function, error) {
	header := strings.TrimPrefix(p.line, "function ")
	fields := strings.Fields(header)
	if len(fields) != 3 || fields[1] != "caller" {
		return nil, p.errf("malformed function header: %q", p.line)
	}
	name, arity, err := parseNameArity(fields[0])
	if err != nil {
		return nil, p.errf("%v", err)
	}
	callerLabel, err := parseLabelRef(fields[2])
	if err != nil {
		return nil, p.errf("invalid caller label: %v", err)
	}

	fn := &ir.Function{Name: name, Arity: arity, CallerLabel: int(callerLabel)}

	for p.next() {
		if p.line == "end" {
			return fn, nil
		}
		colon := strings.Index(p.line, ":")
		if colon == -1 {
			return nil, p.errf("malformed instruction line: %q", p.line)
		}
		text := strings.TrimSpace(p.line[colon+1:])
		inst, err := parseInstruction(text)
		if err != nil {
			return nil, p.errf("%v", err)
		}
		fn.Body = append(fn.Body, inst)
	}
	return nil, p.errf("unterminated function body (missing \"end\")")
}

func parseNameArity(s string) (string, int, error) {
	idx := strings.LastIndex(s, "/")
	if idx == -1 {
		return "", 0, fmt.Errorf("expected name/arity, got %q", s)
	}
	arity, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid arity in %q: %w", s, err)
	}
	return s[:idx], arity, nil
}

// splitMnemonicArgs splits "name(args)" into ("name", "args"). An
// instruction with no parentheses (return, if_end) yields an empty args
// string.
func splitMnemonicArgs(s string) (string, string, error) {
	i := strings.IndexByte(s, '(')
	if i == -1 {
		return s, "", nil
	}
	depth := 0
	for j := i; j < len(s); j++ {
		switch s[j] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[:i], s[i+1 : j], nil
			}
		}
	}
	return "", "", fmt.Errorf("unbalanced parentheses in %q", s)
}

// splitTopLevel splits s on commas that are not nested inside () or [].
func splitTopLevel(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}

func stripBrackets(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		return s[1 : len(s)-1]
	}
	return s
}

func parseOperandList(s string) ([]ir.Operand, error) {
	parts := splitTopLevel(stripBrackets(s))
	ops := make([]ir.Operand, 0, len(parts))
	for _, part := range parts {
		op, err := parseOperand(part)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func parseOperand(tok string) (ir.Operand, error) {
	tok = strings.TrimSpace(tok)
	switch {
	case tok == "nil":
		return ir.Nil(), nil
	case strings.HasPrefix(tok, "x"):
		n, err := strconv.Atoi(tok[1:])
		if err == nil {
			return ir.RegX(n), nil
		}
	case strings.HasPrefix(tok, "y"):
		n, err := strconv.Atoi(tok[1:])
		if err == nil {
			return ir.RegY(n), nil
		}
	case strings.HasPrefix(tok, "fr"):
		n, err := strconv.Atoi(tok[2:])
		if err == nil {
			return ir.RegFR(n), nil
		}
	}
	if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return ir.Integer(n), nil
	}
	if tok == "" {
		return ir.Operand{}, fmt.Errorf("empty operand")
	}
	return ir.Atom(tok), nil
}

func parseLabelRef(tok string) (ir.LabelRef, error) {
	tok = strings.TrimSpace(tok)
	if tok == "-" {
		return ir.NoLabel, nil
	}
	if !strings.HasPrefix(tok, "L") {
		return 0, fmt.Errorf("expected label reference (L<n> or -), got %q", tok)
	}
	n, err := strconv.Atoi(tok[1:])
	if err != nil {
		return 0, fmt.Errorf("invalid label reference %q: %w", tok, err)
	}
	return ir.LabelRef(n), nil
}

func parseMFA(tok string) (ir.MFA, error) {
	tok = strings.TrimSpace(tok)
	colon := strings.Index(tok, ":")
	slash := strings.LastIndex(tok, "/")
	if colon == -1 || slash == -1 || slash < colon {
		return ir.MFA{}, fmt.Errorf("expected module:function/arity, got %q", tok)
	}
	arity, err := strconv.Atoi(tok[slash+1:])
	if err != nil {
		return ir.MFA{}, fmt.Errorf("invalid arity in %q: %w", tok, err)
	}
	return ir.MFA{Module: tok[:colon], Function: tok[colon+1 : slash], Arity: arity}, nil
}

func parseCases(s string) ([]ir.Case, error) {
	parts := splitTopLevel(stripBrackets(s))
	cases := make([]ir.Case, 0, len(parts))
	for _, part := range parts {
		arrow := strings.Index(part, "->")
		if arrow == -1 {
			return nil, fmt.Errorf("malformed case %q, expected value->label", part)
		}
		val, err := parseOperand(part[:arrow])
		if err != nil {
			return nil, err
		}
		target, err := parseLabelRef(part[arrow+2:])
		if err != nil {
			return nil, err
		}
		cases = append(cases, ir.Case{Value: val, Target: target})
	}
	return cases, nil
}

// parseInstruction parses the textual rendering produced by
// ir.Instruction.String back into an ir.Instruction.
func parseInstruction(text string) (ir.Instruction, error) {
	name, args, err := splitMnemonicArgs(text)
	if err != nil {
		return ir.Instruction{}, err
	}
	parts := splitTopLevel(args)

	switch name {
	case "func_info":
		mfa, err := parseMFA(args)
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.FuncInfo(mfa), nil

	case "label":
		n, err := strconv.Atoi(strings.TrimSpace(args))
		if err != nil {
			return ir.Instruction{}, fmt.Errorf("invalid label definition %q: %w", text, err)
		}
		return ir.Label(n), nil

	case "jump":
		target, err := parseLabelRef(args)
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.Jump(target), nil

	case "test":
		if len(parts) == 3 {
			fail, err := parseLabelRef(parts[1])
			if err != nil {
				return ir.Instruction{}, err
			}
			ops, err := parseOperandList(parts[2])
			if err != nil {
				return ir.Instruction{}, err
			}
			return ir.Test(parts[0], fail, ops...), nil
		}
		if len(parts) == 5 {
			fail, err := parseLabelRef(parts[1])
			if err != nil {
				return ir.Instruction{}, err
			}
			live, err := parseOperandList(parts[2])
			if err != nil {
				return ir.Instruction{}, err
			}
			ops, err := parseOperandList(parts[3])
			if err != nil {
				return ir.Instruction{}, err
			}
			dst, err := parseOperand(parts[4])
			if err != nil {
				return ir.Instruction{}, err
			}
			return ir.TestWithDst(parts[0], fail, live, ops, dst), nil
		}
		return ir.Instruction{}, fmt.Errorf("malformed test instruction %q", text)

	case "select_val", "select_tuple_arity":
		if len(parts) != 3 {
			return ir.Instruction{}, fmt.Errorf("malformed %s instruction %q", name, text)
		}
		reg, err := parseOperand(parts[0])
		if err != nil {
			return ir.Instruction{}, err
		}
		fail, err := parseLabelRef(parts[1])
		if err != nil {
			return ir.Instruction{}, err
		}
		cases, err := parseCases(parts[2])
		if err != nil {
			return ir.Instruction{}, err
		}
		if name == "select_val" {
			return ir.SelectVal(reg, fail, cases...), nil
		}
		return ir.SelectTupleArity(reg, fail, cases...), nil

	case "call", "call_last", "call_only":
		if len(parts) != 2 {
			return ir.Instruction{}, fmt.Errorf("malformed %s instruction %q", name, text)
		}
		arity, err := strconv.Atoi(parts[0])
		if err != nil {
			return ir.Instruction{}, err
		}
		target, err := parseLabelRef(parts[1])
		if err != nil {
			return ir.Instruction{}, err
		}
		switch name {
		case "call":
			return ir.Call(arity, target), nil
		case "call_last":
			return ir.CallLast(arity, target), nil
		default:
			return ir.CallOnly(arity, target), nil
		}

	case "call_ext", "call_ext_last", "call_ext_only":
		if len(parts) != 2 {
			return ir.Instruction{}, fmt.Errorf("malformed %s instruction %q", name, text)
		}
		mfa, err := parseMFA(parts[1])
		if err != nil {
			return ir.Instruction{}, err
		}
		switch name {
		case "call_ext":
			return ir.CallExt(mfa), nil
		case "call_ext_last":
			return ir.CallExtLast(mfa), nil
		default:
			return ir.CallExtOnly(mfa), nil
		}

	case "apply_last":
		arity, err := strconv.Atoi(strings.TrimSpace(args))
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.ApplyLast(arity), nil

	case "return":
		return ir.Return(), nil

	case "wait":
		target, err := parseLabelRef(args)
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.Wait(target), nil

	case "wait_timeout":
		if len(parts) != 2 {
			return ir.Instruction{}, fmt.Errorf("malformed wait_timeout instruction %q", text)
		}
		timeout, err := parseOperand(parts[0])
		if err != nil {
			return ir.Instruction{}, err
		}
		fail, err := parseLabelRef(parts[1])
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.WaitTimeout(timeout, fail), nil

	case "loop_rec":
		if len(parts) != 2 {
			return ir.Instruction{}, fmt.Errorf("malformed loop_rec instruction %q", text)
		}
		fail, err := parseLabelRef(parts[0])
		if err != nil {
			return ir.Instruction{}, err
		}
		dst, err := parseOperand(parts[1])
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.LoopRec(fail, dst), nil

	case "loop_rec_end":
		target, err := parseLabelRef(args)
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.LoopRecEnd(target), nil

	case "try":
		if len(parts) != 2 {
			return ir.Instruction{}, fmt.Errorf("malformed try instruction %q", text)
		}
		dst, err := parseOperand(parts[0])
		if err != nil {
			return ir.Instruction{}, err
		}
		handler, err := parseLabelRef(parts[1])
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.Try(dst, handler), nil

	case "catch":
		if len(parts) != 2 {
			return ir.Instruction{}, fmt.Errorf("malformed catch instruction %q", text)
		}
		dst, err := parseOperand(parts[0])
		if err != nil {
			return ir.Instruction{}, err
		}
		handler, err := parseLabelRef(parts[1])
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.Catch(dst, handler), nil

	case "kill":
		dst, err := parseOperand(args)
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.Kill(dst), nil

	case "deallocate":
		n, err := strconv.Atoi(strings.TrimSpace(args))
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.Deallocate(n), nil

	case "block":
		innerText := stripBrackets(args)
		innerParts := splitTopLevel(innerText)
		inner := make([]ir.Instruction, 0, len(innerParts))
		for _, part := range innerParts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			in, err := parseInstruction(part)
			if err != nil {
				return ir.Instruction{}, err
			}
			inner = append(inner, in)
		}
		return ir.Block(inner...), nil

	case "bs_context_to_binary":
		dst, err := parseOperand(args)
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.BSContextToBinary(dst), nil

	case "bs_init2", "bs_init_bits", "bs_put_integer", "bs_put_float",
		"bs_put_binary", "bs_put_utf8", "bs_put_utf16", "bs_put_utf32",
		"bs_add", "bs_append", "bs_utf8_size", "bs_utf16_size":
		if len(parts) < 1 {
			return ir.Instruction{}, fmt.Errorf("malformed %s instruction %q", name, text)
		}
		fail, err := parseLabelRef(parts[0])
		if err != nil {
			return ir.Instruction{}, err
		}
		bsArgs := make([]ir.Operand, 0, len(parts)-1)
		for _, p := range parts[1:] {
			op, err := parseOperand(p)
			if err != nil {
				return ir.Instruction{}, err
			}
			bsArgs = append(bsArgs, op)
		}
		return bsConstructByName(name, fail, bsArgs), nil

	case "case_end":
		dst, err := parseOperand(args)
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.CaseEnd(dst), nil

	case "if_end":
		return ir.IfEnd(), nil

	case "try_case_end":
		dst, err := parseOperand(args)
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.TryCaseEnd(dst), nil

	case "badmatch":
		dst, err := parseOperand(args)
		if err != nil {
			return ir.Instruction{}, err
		}
		return ir.Badmatch(dst), nil

	case "bif", "gc_bif":
		if len(parts) != 4 {
			return ir.Instruction{}, fmt.Errorf("malformed %s instruction %q", name, text)
		}
		fail, err := parseLabelRef(parts[1])
		if err != nil {
			return ir.Instruction{}, err
		}
		bifArgs, err := parseOperandList(parts[2])
		if err != nil {
			return ir.Instruction{}, err
		}
		dst, err := parseOperand(parts[3])
		if err != nil {
			return ir.Instruction{}, err
		}
		if name == "bif" {
			return ir.Bif(parts[0], fail, bifArgs, dst), nil
		}
		return ir.GCBif(parts[0], fail, bifArgs, dst), nil

	default:
		// Anything unrecognized is an opaque straight-line instruction:
		// the mnemonic is its own name, not one of the tagged ops above.
		opArgs := make([]ir.Operand, 0, len(parts))
		for _, p := range parts {
			if strings.TrimSpace(p) == "" {
				continue
			}
			op, err := parseOperand(p)
			if err != nil {
				return ir.Instruction{}, err
			}
			opArgs = append(opArgs, op)
		}
		return ir.Opaque(name, opArgs...), nil
	}
}

func bsConstructByName(name string, fail ir.LabelRef, args []ir.Operand) ir.Instruction {
	switch name {
	case "bs_init2":
		return ir.BSInit2(fail, args...)
	case "bs_init_bits":
		return ir.BSInitBits(fail, args...)
	case "bs_put_integer":
		return ir.BSPutInteger(fail, args...)
	case "bs_put_float":
		return ir.BSPutFloat(fail, args...)
	case "bs_put_binary":
		return ir.BSPutBinary(fail, args...)
	case "bs_put_utf8":
		return ir.BSPutUTF8(fail, args...)
	case "bs_put_utf16":
		return ir.BSPutUTF16(fail, args...)
	case "bs_put_utf32":
		return ir.BSPutUTF32(fail, args...)
	case "bs_add":
		return ir.BSAdd(fail, args...)
	case "bs_append":
		return ir.BSAppend(fail, args...)
	case "bs_utf8_size":
		return ir.BSUTF8Size(fail, args...)
	default:
		return ir.BSUTF16Size(fail, args...)
	}
}
