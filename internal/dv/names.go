package dv

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// MaxNameLength bounds container names and item filenames in bytes.
const MaxNameLength = 255

// ValidateName checks a container name or item filename. Names become a
// single path component on disk, so separators and dot names are refused.
func ValidateName(kind, name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: %s name is empty", ErrValidation, kind)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: %s name is longer than %d bytes", ErrValidation, kind, MaxNameLength)
	case !utf8.ValidString(name):
		return fmt.Errorf("%w: %s name is not valid UTF-8", ErrValidation, kind)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %s name %q is reserved", ErrValidation, kind, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %s name %q contains a path separator or NUL", ErrValidation, kind, name)
	case strings.TrimSpace(name) != name:
		return fmt.Errorf("%w: %s name %q has leading or trailing whitespace", ErrValidation, kind, name)
	}
	return nil
}

const maxTagLength = 64

var tagPattern = regexp.MustCompile(`^[\p{L}\p{N}._-]+$`)

// NormalizeTag lowercases and trims a tag and joins inner whitespace
// with dashes.
func NormalizeTag(raw string) (string, error) {
	tag := strings.Join(strings.Fields(strings.ToLower(raw)), "-")
	if tag == "" {
		return "", fmt.Errorf("%w: empty tag", ErrValidation)
	}
	if utf8.RuneCountInString(tag) > maxTagLength {
		return "", fmt.Errorf("%w: tag %q is longer than %d characters", ErrValidation, tag, maxTagLength)
	}
	if !tagPattern.MatchString(tag) {
		return "", fmt.Errorf("%w: tag %q may only contain letters, digits, '.', '_' and '-'", ErrValidation, tag)
	}
	return tag, nil
}

// NormalizeTags normalizes every tag and returns the sorted set.
func NormalizeTags(raw []string) ([]string, error) {
	tags := make([]string, 0, len(raw))
	for _, r := range raw {
		tag, err := NormalizeTag(r)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return slices.Compact(tags), nil
}
