package parser

import (
	"fmt"
	"strings"
)

// HexDumpWidth is the number of bytes rendered per dump row
const HexDumpWidth = 16

// HexDump renders data as rows of width bytes: hex values joined by sep, then sep,
// then the same bytes with anything that is not a letter or digit shown as '.'.
// The last row is padded with NUL bytes.
func HexDump(data []byte, sep string, width int) []string {
	if width <= 0 {
		width = HexDumpWidth
	}

	var rows []string
	for start := 0; start < len(data); start += width {
		row := make([]byte, width)
		copy(row, data[start:min(start+width, len(data))])

		hex := make([]string, width)
		var printable strings.Builder
		for i, b := range row {
			hex[i] = fmt.Sprintf("%02x", b)
			if isAlnum(b) {
				printable.WriteByte(b)
			} else {
				printable.WriteByte('.')
			}
		}
		rows = append(rows, strings.Join(hex, sep)+sep+printable.String())
	}
	return rows
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
