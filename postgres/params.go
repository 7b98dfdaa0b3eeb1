package postgres

import (
	"fmt"

	"github.com/oriys/pgcore/postgres/codec"
)

// Params holds the encoded arguments of one statement execution. The three
// slices are parallel; entry i binds placeholder $i+1.
type Params struct {
	Values  [][]byte
	OIDs    []uint32
	Formats []int16
}

// Bind encodes args in order. Every argument must be a type the codec
// supports; nil binds SQL NULL.
func Bind(args ...any) (*Params, error) {
	p := &Params{
		Values:  make([][]byte, 0, len(args)),
		OIDs:    make([]uint32, 0, len(args)),
		Formats: make([]int16, 0, len(args)),
	}
	for i, arg := range args {
		if err := p.Append(arg); err != nil {
			return nil, fmt.Errorf("bind $%d: %w", i+1, err)
		}
	}
	return p, nil
}

// Append encodes v as the next parameter.
func (p *Params) Append(v any) error {
	typ, buf, err := codec.Encode(v)
	if err != nil {
		return err
	}
	p.Values = append(p.Values, buf)
	p.OIDs = append(p.OIDs, uint32(typ))
	p.Formats = append(p.Formats, codec.BinaryFormat)
	return nil
}

// Len returns the number of bound parameters.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Values)
}

// bindArgs accepts either a single prepared *Params or plain values.
func bindArgs(args []any) (*Params, error) {
	if len(args) == 1 {
		if p, ok := args[0].(*Params); ok {
			return p, nil
		}
	}
	return Bind(args...)
}

func checkArity(sql string, p *Params) error {
	if want := maxPlaceholder(sql); want != p.Len() {
		return misuse("execute", "statement expects %d parameters, %d given", want, p.Len())
	}
	return nil
}

// maxPlaceholder returns the highest $n referenced by sql. String literals,
// quoted identifiers, dollar-quoted bodies and comments are skipped.
func maxPlaceholder(sql string) int {
	highest := 0
	n := len(sql)
	for i := 0; i < n; {
		c := sql[i]
		switch {
		case c == '\'':
			escapes := i > 0 && (sql[i-1] == 'E' || sql[i-1] == 'e') && (i == 1 || !isIdentChar(sql[i-2]))
			i = skipQuoted(sql, i+1, '\'', escapes)
		case c == '"':
			i = skipQuoted(sql, i+1, '"', false)
		case c == '-' && i+1 < n && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && sql[i+1] == '*':
			i = skipBlockComment(sql, i+2)
		case c == '$':
			if i > 0 && isIdentChar(sql[i-1]) {
				i++
				continue
			}
			j := i + 1
			if j < n && isDigit(sql[j]) {
				v := 0
				for j < n && isDigit(sql[j]) {
					v = v*10 + int(sql[j]-'0')
					j++
				}
				if v > highest {
					highest = v
				}
				i = j
				continue
			}
			for j < n && isIdentChar(sql[j]) && sql[j] != '$' {
				j++
			}
			if j < n && sql[j] == '$' {
				tag := sql[i : j+1]
				i = skipDollarQuoted(sql, j+1, tag)
				continue
			}
			i++
		default:
			i++
		}
	}
	return highest
}

func skipQuoted(sql string, i int, quote byte, backslash bool) int {
	for i < len(sql) {
		switch c := sql[i]; {
		case backslash && c == '\\':
			i += 2
		case c == quote:
			if i+1 < len(sql) && sql[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		default:
			i++
		}
	}
	return len(sql)
}

func skipBlockComment(sql string, i int) int {
	depth := 1
	for i < len(sql) && depth > 0 {
		switch {
		case sql[i] == '/' && i+1 < len(sql) && sql[i+1] == '*':
			depth++
			i += 2
		case sql[i] == '*' && i+1 < len(sql) && sql[i+1] == '/':
			depth--
			i += 2
		default:
			i++
		}
	}
	return i
}

func skipDollarQuoted(sql string, i int, tag string) int {
	for j := i; j+len(tag) <= len(sql); j++ {
		if sql[j:j+len(tag)] == tag {
			return j + len(tag)
		}
	}
	return len(sql)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}
