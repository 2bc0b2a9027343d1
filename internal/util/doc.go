// Package util provides common utility functions used across the oauth-engine library.
//
// Key utilities:
//   - SafeTruncate: Safely truncates strings for logging sensitive data
//   - ConstantTimeEqual: Timing-safe string comparison for secrets and verifiers
package util
