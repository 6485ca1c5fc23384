package embedding

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf16"
)

// HashEmbed maps text onto a dims-dimensional unit vector without any
// network access. Every token longer than one code unit is hashed into a
// bucket and votes +1 or -1 by the sign of its hash, after which the vector
// is L2-normalized. Text without such tokens yields the zero vector.
//
// The output is a pure function of (text, dims) and is stable across
// processes and platforms.
func HashEmbed(text string, dims int) []float64 {
	if dims <= 0 {
		dims = OfflineDimensions
	}
	vec := make([]float64, dims)
	for _, tok := range tokenize(text) {
		h := hashToken(tok)
		idx := abs64(int64(h)) % int64(dims)
		if h >= 0 {
			vec[idx]++
		} else {
			vec[idx]--
		}
	}
	normalize(vec)
	return vec
}

// tokenize lowercases text, drops everything except letters, digits and
// whitespace, and keeps tokens longer than one UTF-16 code unit.
func tokenize(text string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	fields := strings.Fields(b.String())
	out := fields[:0]
	for _, f := range fields {
		if len(utf16.Encode([]rune(f))) > 1 {
			out = append(out, f)
		}
	}
	return out
}

// hashToken is the 31-multiplier string hash over UTF-16 code units with
// 32-bit wraparound.
func hashToken(tok string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(tok)) {
		h = h*31 + int32(u)
	}
	return h
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}
