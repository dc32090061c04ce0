package service

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strconv"
)

// CodeSpace is an inclusive range of numeric pickup codes.
type CodeSpace struct {
	Min int
	Max int
}

var (
	// UploadCodes are handed out for new uploads.
	UploadCodes = CodeSpace{Min: 1000, Max: 9999}
	// RotationCodes replace a code once it has been redeemed.
	RotationCodes = CodeSpace{Min: 10000, Max: 99999}
)

// maxCodeAttempts bounds random draws before falling back to a linear probe.
const maxCodeAttempts = 64

// Size returns the number of codes in the space.
func (s CodeSpace) Size() int {
	return s.Max - s.Min + 1
}

// Contains reports whether code is the canonical form of a number in the space.
func (s CodeSpace) Contains(code string) bool {
	n, err := strconv.Atoi(code)
	if err != nil || strconv.Itoa(n) != code {
		return false
	}
	return n >= s.Min && n <= s.Max
}

// IssueCode draws a uniformly random code from space that is not in existing.
// It returns ErrCodeSpaceExhausted only when every code of the space is taken.
func IssueCode(rnd io.Reader, space CodeSpace, existing map[string]bool) (string, error) {
	taken := 0
	for code := range existing {
		if space.Contains(code) {
			taken++
		}
	}
	if taken >= space.Size() {
		return "", ErrCodeSpaceExhausted
	}

	for i := 0; i < maxCodeAttempts; i++ {
		offset, err := randomOffset(rnd, space.Size())
		if err != nil {
			return "", err
		}
		code := strconv.Itoa(space.Min + offset)
		if !existing[code] {
			return code, nil
		}
	}

	// Nearly full space: walk from a random start until a gap turns up.
	start, err := randomOffset(rnd, space.Size())
	if err != nil {
		return "", err
	}
	for i := 0; i < space.Size(); i++ {
		code := strconv.Itoa(space.Min + (start+i)%space.Size())
		if !existing[code] {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

func randomOffset(rnd io.Reader, n int) (int, error) {
	v, err := rand.Int(rnd, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("crypto/rand failure: %w", err)
	}
	return int(v.Int64()), nil
}
