package store

import "encoding/base64"

// mask is XORed into every byte of a stored answer.
//
// This is NOT encryption and not a security boundary. Anyone with access to
// the storage can reverse it; it only keeps answers from being readable at a
// glance when the storage is inspected.
const mask = 47

// Encode masks s and returns it as base64.
func Encode(s string) string {
	if s == "" {
		return ""
	}
	b := []byte(s)
	for i := range b {
		b[i] ^= mask
	}
	return base64.StdEncoding.EncodeToString(b)
}

// Decode reverses Encode. Malformed input decodes to "".
func Decode(s string) string {
	if s == "" {
		return ""
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return ""
	}
	for i := range b {
		b[i] ^= mask
	}
	return string(b)
}
