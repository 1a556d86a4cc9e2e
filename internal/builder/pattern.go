package builder

import "strings"

// patternKey is the ordered stop-id sequence plus published route id
// that distinguishes one RAPTOR route from another (GLOSSARY: "Pattern
// key"). Bidirectional GTFS routes therefore produce at least two
// patterns, one per direction, since their stop sequences differ.
type patternKey string

func makePatternKey(routeID string, stopSeq []uint32) patternKey {
	var b strings.Builder
	b.WriteString(routeID)
	b.WriteByte('|')
	for i, s := range stopSeq {
		if i > 0 {
			b.WriteByte(',')
		}
		writeUint32(&b, s)
	}
	return patternKey(b.String())
}

func writeUint32(b *strings.Builder, v uint32) {
	if v == 0 {
		b.WriteByte('0')
		return
	}
	var digits [10]byte
	n := 0
	for v > 0 {
		digits[n] = byte('0' + v%10)
		v /= 10
		n++
	}
	for i := n - 1; i >= 0; i-- {
		b.WriteByte(digits[i])
	}
}
