package security

import "time"

const (
	// DefaultClockSkewGracePeriod is the default grace period for expiry checks.
	// A grant or token is only treated as expired once it has been expired for
	// longer than this.
	DefaultClockSkewGracePeriod = 5 * time.Second
)

// IsExpired checks expiry at now with the default clock skew grace period
func IsExpired(expiresAt, now time.Time) bool {
	return IsExpiredWithGracePeriod(expiresAt, now, DefaultClockSkewGracePeriod)
}

// IsExpiredWithGracePeriod checks expiry at now with a custom grace period.
// A zero expiresAt never expires.
func IsExpiredWithGracePeriod(expiresAt, now time.Time, gracePeriod time.Duration) bool {
	if expiresAt.IsZero() {
		return false
	}
	return now.After(expiresAt.Add(gracePeriod))
}
