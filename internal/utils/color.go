package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// GenerateColor returns a random color in the format #rrggbb
func GenerateColor() (string, error) {
	bytes := make([]byte, 3)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return "#" + hex.EncodeToString(bytes), nil
}

// IsHexColor reports whether s is a #rrggbb color.
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}
