package docenc

import (
	"math"
	"strconv"
)

// appendFloat renders val as a JSON number, falling back to a quoted
// sentinel for values JSON numbers cannot represent. Ported from the
// escaping/formatting behavior of jsonenc.AppendFloat64 (same cutoffs and
// exponent cleanup), kept in-package so the encoder has no external
// dependency on its crash-reachable path; see DESIGN.md.
func appendFloat(dst []byte, val float64) []byte {
	switch {
	case math.IsNaN(val):
		return append(dst, `"NaN"`...)
	case math.IsInf(val, 1):
		return append(dst, `"Infinity"`...)
	case math.IsInf(val, -1):
		return append(dst, `"-Infinity"`...)
	}
	fmtByte := byte('f')
	if abs := math.Abs(val); abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		fmtByte = 'e'
	}
	dst = strconv.AppendFloat(dst, val, fmtByte, -1, 64)
	if fmtByte == 'e' {
		n := len(dst)
		if n >= 4 && dst[n-4] == 'e' && dst[n-3] == '-' && dst[n-2] == '0' {
			dst[n-2] = dst[n-1]
			dst = dst[:n-1]
		}
	}
	return dst
}
