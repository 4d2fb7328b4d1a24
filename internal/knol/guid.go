package knol

import "math/rand"

// base91 is every printable ASCII character except quotes, backslash and
// space.
const base91 = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789" +
	"!#$%&()*+,-./:;<=>?@[]^_`{|}~"

// Base91 encodes n positionally, most significant digit first. Zero encodes
// to the empty string.
func Base91(n uint64) string {
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = base91[n%uint64(len(base91))]
		n /= uint64(len(base91))
	}
	return string(buf[i:])
}

// GUID returns a new globally unique note id.
func GUID() string {
	return Base91(rand.Uint64())
}
