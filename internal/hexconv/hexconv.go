package hexconv

// Halfbyte maps a hex digit to its value, and any other character to 0xFF.
var Halfbyte = halfbyteLUT()

func halfbyteLUT() (lut [256]byte) {
	for i := range lut {
		lut[i] = 0xFF
	}

	for c := '0'; c <= '9'; c++ {
		lut[c] = byte(c - '0')
	}

	for c := 'a'; c <= 'f'; c++ {
		lut[c] = byte(c - 'a' + 10)
	}

	for c := 'A'; c <= 'F'; c++ {
		lut[c] = byte(c - 'A' + 10)
	}

	return lut
}
