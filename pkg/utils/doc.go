// Package utils provides small helpers shared across the credential engine:
// cryptographically secure random strings for tokens and codes, email
// masking for logs and user-facing confirmation text, and privacy-preserving
// email hashing.
//
// MaskEmail keeps only the first and last character of the local part:
//
//	MaskEmail("john.doe@example.com") // "j***e@example.com"
//	MaskEmail("ab@example.com")       // "a*b@example.com"
//
// HashEmail lowercases and trims its input first, so two spellings of the
// same address hash identically.
package utils
