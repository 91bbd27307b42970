package facedet

// divUp divides two positive integers rounding the result up.
func divUp(x, y int) int {
	return (x + y - 1) / y
}

// divRound divides two positive integers rounding to the nearest integer.
func divRound(x, y int) int {
	return (x + y/2) / y
}

// roundDown8 rounds x down to a multiple of 8.
func roundDown8(x int) int {
	return x &^ 7
}

// roundUp8 rounds x up to a multiple of 8.
func roundUp8(x int) int {
	return (x + 7) &^ 7
}

// roundTo8 rounds x to the nearest multiple of 8.
func roundTo8(x int) int {
	return (x + 4) &^ 7
}
