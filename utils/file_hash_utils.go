package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"regexp"
	"strings"
)

// HashReader returns the hex SHA-256 of everything read from r
func HashReader(r io.Reader) (string, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

var underscores = regexp.MustCompile(`_+`)

// CleanStringForFilename cleans a string for safe use in filenames
func CleanStringForFilename(input string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ' || r == '-':
			return '_'
		case r == '.':
			return '.'
		default:
			return -1
		}
	}, input)

	clean = underscores.ReplaceAllString(clean, "_")
	clean = strings.Trim(clean, "_")

	if clean == "" {
		clean = "file"
	}
	if len(clean) > 100 {
		clean = clean[:100]
	}
	return clean
}
