package main

import (
	"encoding/hex"
	"fmt"
)

var simpleEscapes = map[byte]byte{
	'a':  '\a',
	'b':  '\b',
	'f':  '\f',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	's':  ' ',
	'\\': '\\',
	'0':  0,
}

// decodeEscapes turns the -i argument into bytes. \xHH gives an arbitrary
// byte; an unknown escape stands for the character itself.
func decodeEscapes(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i == len(s) {
			return nil, fmt.Errorf("trailing backslash")
		}
		e := s[i]
		if b, ok := simpleEscapes[e]; ok {
			out = append(out, b)
			continue
		}
		if e != 'x' {
			out = append(out, e)
			continue
		}
		if i+3 > len(s) {
			return nil, fmt.Errorf("short \\x escape at offset %d", i-1)
		}
		b, err := hex.DecodeString(s[i+1 : i+3])
		if err != nil {
			return nil, fmt.Errorf("bad \\x escape at offset %d: %w", i-1, err)
		}
		out = append(out, b[0])
		i += 2
	}
	return out, nil
}
