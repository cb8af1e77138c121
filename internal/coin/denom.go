package coin

import (
	"errors"
	"fmt"
)

const (
	minDenomLength = 3
	maxDenomLength = 128
)

var (
	ErrDenomLength      = errors.New("denom length out of range")
	ErrDenomFirstChar   = errors.New("first character of denom must be an ASCII letter")
	ErrDenomInvalidChar = errors.New("denom contains an invalid character")
)

// ValidateDenom checks a native denom: 3 to 128 characters, a leading ASCII
// letter, then letters, digits or one of "/:._-".
func ValidateDenom(denom string) error {
	if len(denom) < minDenomLength || len(denom) > maxDenomLength {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrDenomLength, len(denom), minDenomLength, maxDenomLength)
	}
	if !isASCIILetter(denom[0]) {
		return ErrDenomFirstChar
	}
	for i := 1; i < len(denom); i++ {
		c := denom[i]
		if isASCIILetter(c) || isASCIIDigit(c) {
			continue
		}
		switch c {
		case '/', ':', '.', '_', '-':
			continue
		}
		return fmt.Errorf("%w: %q", ErrDenomInvalidChar, c)
	}
	return nil
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isASCIIDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
