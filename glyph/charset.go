package glyph

import (
	"fmt"
	"sort"
)

// DefaultCharset is used when no charset is configured.
const DefaultCharset = "detailed"

var charsets = map[string]string{
	"detailed": " .`-_:;^~+iIl1tfrjJYCLUXVTwqpdbmgKO0QNBMAESZ23456789%&#@",
	"simple":   " .:-=+*#%@",
	"block":    " ░▒▓█",
	"binary":   " #",
}

// Charset resolves a charset name to its glyphs, darkest-appearing first.
func Charset(name string) ([]rune, error) {
	s, ok := charsets[name]
	if !ok {
		return nil, fmt.Errorf("unknown charset %q (have %v)", name, CharsetNames())
	}
	return []rune(s), nil
}

// CharsetNames lists the known charset names in sorted order.
func CharsetNames() []string {
	names := make([]string, 0, len(charsets))
	for name := range charsets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
