package syntax

import "unicode/utf8"

// parseCharClass parses a "[...]" bracket expression starting at the '['.
// It supports negation, ranges, embedded \d \w \s (and negations), \p{...},
// escapes, and POSIX classes like [:alpha:].
func (p *Parser) parseCharClass() (NodeID, error) {
	openPos := p.pos
	p.pos++ // consume '['

	negated := false
	if !p.eof() && p.peekByte() == '^' {
		negated = true
		p.pos++
	}

	var ranges []RuneRange
	first := true

	for {
		if p.eof() {
			return InvalidNode, p.errAt(ErrMissingBracket, openPos)
		}
		if p.peekByte() == ']' && !first {
			p.pos++
			break
		}
		first = false

		// Literal ']' as the first class member, e.g. []abc] or [^]abc].
		if p.peekByte() == ']' {
			ranges = append(ranges, RuneRange{']', ']'})
			p.pos++
			continue
		}

		if p.peekByte() == '[' && p.pos+1 < len(p.pattern) && p.pattern[p.pos+1] == ':' {
			r, ok, err := p.tryParsePOSIXClass()
			if err != nil {
				return InvalidNode, err
			}
			if ok {
				ranges = append(ranges, r...)
				continue
			}
		}

		if p.peekByte() == '\\' {
			classRanges, isClass, lit, err := p.parseClassEscape()
			if err != nil {
				return InvalidNode, err
			}
			if isClass {
				ranges = append(ranges, classRanges...)
				continue
			}
			r, err := p.maybeRange(lit)
			if err != nil {
				return InvalidNode, err
			}
			ranges = append(ranges, r...)
			continue
		}

		lo := p.decodeRune()
		r, err := p.maybeRange(lo)
		if err != nil {
			return InvalidNode, err
		}
		ranges = append(ranges, r...)
	}

	ranges = sortAndMergeRanges(ranges)
	if p.flags&FlagCaseInsensitive != 0 {
		ranges = foldRanges(ranges)
	}
	if negated {
		ranges = negateRanges(ranges)
	}

	return p.node(Node{Op: OpCharClass, Ranges: ranges})
}

// maybeRange checks for a trailing "-hi" after a rune atom lo, consuming it
// and returning a two-endpoint range if present; otherwise a single-rune
// range. A trailing '-' immediately before ']' is a literal hyphen, not a
// range operator (e.g. "[a-]"). A range whose high endpoint precedes its low
// endpoint (e.g. "[z-a]") is a syntax error, not a silent reordering.
func (p *Parser) maybeRange(lo rune) ([]RuneRange, error) {
	if p.eof() || p.peekByte() != '-' {
		return []RuneRange{{lo, lo}}, nil
	}
	if p.pos+1 < len(p.pattern) && p.pattern[p.pos+1] == ']' {
		return []RuneRange{{lo, lo}}, nil
	}
	dashPos := p.pos
	p.pos++ // consume '-'

	var hi rune
	if !p.eof() && p.peekByte() == '\\' {
		_, isClass, lit, err := p.parseClassEscape()
		if err != nil {
			return nil, err
		}
		if isClass {
			// A perl-class/\p{...} can't be a range endpoint: [a-\d] is an
			// error, not a literal hyphen.
			return nil, p.errAt(ErrInvalidCharClass, dashPos)
		}
		hi = lit
	} else if !p.eof() {
		hi = p.decodeRune()
	} else {
		return nil, p.errAt(ErrMissingBracket, dashPos)
	}

	if hi < lo {
		return nil, p.errAt(ErrInvalidCharClass, dashPos)
	}
	return []RuneRange{{lo, hi}}, nil
}

// parseClassEscape parses one escape sequence inside "[...]". isClass is
// true when the escape expands to a set of ranges (\d, \p{...}, ...) rather
// than a single literal rune.
func (p *Parser) parseClassEscape() (ranges []RuneRange, isClass bool, lit rune, err error) {
	startPos := p.pos
	p.pos++ // consume '\\'
	if p.eof() {
		return nil, false, 0, p.errAt(ErrTrailingBackslash, startPos)
	}

	b := p.peekByte()
	switch b {
	case 'n':
		p.pos++
		return nil, false, '\n', nil
	case 't':
		p.pos++
		return nil, false, '\t', nil
	case 'r':
		p.pos++
		return nil, false, '\r', nil
	case 'f':
		p.pos++
		return nil, false, '\f', nil
	case 'v':
		p.pos++
		return nil, false, '\v', nil
	case '0':
		p.pos++
		return nil, false, 0, nil
	case 'd', 'D', 'w', 'W', 's', 'S':
		p.pos++
		r, _ := perlClass(b)
		return r, true, 0, nil
	case 'p', 'P':
		negate := b == 'P'
		p.pos++
		var name string
		if !p.eof() && p.peekByte() == '{' {
			p.pos++
			nameStart := p.pos
			for !p.eof() && p.peekByte() != '}' {
				p.pos++
			}
			if p.eof() {
				return nil, false, 0, p.errAt(ErrBadEscape, startPos)
			}
			name = p.pattern[nameStart:p.pos]
			p.pos++
		} else if !p.eof() {
			name = string(p.peekByte())
			p.pos++
		} else {
			return nil, false, 0, p.errAt(ErrBadEscape, startPos)
		}
		r, ok := unicodeClassRanges(name)
		if !ok {
			return nil, false, 0, p.errAt(ErrInvalidCharClass, startPos)
		}
		if negate {
			r = negateRanges(r)
		}
		return r, true, 0, nil
	case 'x':
		node, err := p.parseHexEscapeValue(startPos)
		if err != nil {
			return nil, false, 0, err
		}
		return nil, false, node, nil
	default:
		if isASCIIAlnum(b) {
			return nil, false, 0, p.errAt(ErrBadEscape, startPos)
		}
		r, size := utf8.DecodeRuneInString(p.pattern[p.pos:])
		p.pos += size
		return nil, false, r, nil
	}
}

// parseHexEscapeValue parses \xHH or \x{HHHH} and returns the rune value,
// without constructing an AST node (used inside character classes).
func (p *Parser) parseHexEscapeValue(startPos int) (rune, error) {
	p.pos++ // consume 'x'
	var v rune
	if !p.eof() && p.peekByte() == '{' {
		p.pos++
		start := p.pos
		for !p.eof() && p.peekByte() != '}' {
			d, ok := hexDigit(p.peekByte())
			if !ok {
				return 0, p.errAt(ErrBadEscape, startPos)
			}
			v = v*16 + rune(d)
			p.pos++
		}
		if p.eof() || p.pos == start {
			return 0, p.errAt(ErrBadEscape, startPos)
		}
		p.pos++
		return v, nil
	}
	for i := 0; i < 2; i++ {
		if p.eof() {
			return 0, p.errAt(ErrBadEscape, startPos)
		}
		d, ok := hexDigit(p.peekByte())
		if !ok {
			return 0, p.errAt(ErrBadEscape, startPos)
		}
		v = v*16 + rune(d)
		p.pos++
	}
	return v, nil
}

// tryParsePOSIXClass parses a "[:name:]" token at p.pos (which must point at
// the inner '['). ok is false if pattern[p.pos:] doesn't form a complete,
// recognized POSIX class token, in which case nothing is consumed.
func (p *Parser) tryParsePOSIXClass() ([]RuneRange, bool, error) {
	start := p.pos
	s := p.pattern
	i := p.pos + 2 // skip "[:"
	negate := false
	if i < len(s) && s[i] == '^' {
		negate = true
		i++
	}
	nameStart := i
	for i < len(s) && s[i] != ':' {
		i++
	}
	if i+1 >= len(s) || s[i] != ':' || s[i+1] != ']' {
		return nil, false, nil
	}
	name := s[nameStart:i]
	ranges, ok := posixClass(name)
	if !ok {
		return nil, false, p.errAt(ErrInvalidCharClass, start)
	}
	if negate {
		ranges = negateRanges(ranges)
	}
	p.pos = i + 2
	return ranges, true, nil
}

func posixClass(name string) ([]RuneRange, bool) {
	switch name {
	case "alpha":
		return sortAndMergeRanges([]RuneRange{{'A', 'Z'}, {'a', 'z'}}), true
	case "digit":
		return []RuneRange{{'0', '9'}}, true
	case "alnum":
		return sortAndMergeRanges([]RuneRange{{'0', '9'}, {'A', 'Z'}, {'a', 'z'}}), true
	case "upper":
		return []RuneRange{{'A', 'Z'}}, true
	case "lower":
		return []RuneRange{{'a', 'z'}}, true
	case "space":
		return spaceRanges, true
	case "word":
		return wordRanges, true
	case "punct":
		return sortAndMergeRanges([]RuneRange{{'!', '/'}, {':', '@'}, {'[', '`'}, {'{', '~'}}), true
	case "xdigit":
		return sortAndMergeRanges([]RuneRange{{'0', '9'}, {'A', 'F'}, {'a', 'f'}}), true
	case "cntrl":
		return sortAndMergeRanges([]RuneRange{{0, 0x1f}, {0x7f, 0x7f}}), true
	case "print":
		return []RuneRange{{0x20, 0x7e}}, true
	case "graph":
		return []RuneRange{{0x21, 0x7e}}, true
	case "ascii":
		return []RuneRange{{0, 0x7f}}, true
	default:
		return nil, false
	}
}
