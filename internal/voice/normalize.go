// Package voice turns speech transcripts into digit strings.
package voice

import "strings"

var numerals = map[rune]byte{
	'零': '0', '〇': '0', '一': '1', '二': '2', '兩': '2', '三': '3', '四': '4',
	'五': '5', '六': '6', '七': '7', '八': '8', '九': '9',
	'０': '0', '１': '1', '２': '2', '３': '3', '４': '4',
	'５': '5', '６': '6', '７': '7', '８': '8', '９': '9',
}

// NormalizeDigits keeps the digits of a Mandarin transcript, mapping numeral
// characters and full-width digits to ASCII and dropping everything else
func NormalizeDigits(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			if d, ok := numerals[r]; ok {
				b.WriteByte(d)
			}
		}
	}
	return b.String()
}
