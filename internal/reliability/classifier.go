package reliability

import "time"

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryableSocketClose classifies websocket close codes after which a
// streaming connection is worth re-dialing. 1000 (normal) and 1008 (policy,
// usually bad credentials) are deliberate and excluded.
func IsRetryableSocketClose(code int) bool {
	switch code {
	case 1001, 1006, 1011, 1012, 1013:
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
