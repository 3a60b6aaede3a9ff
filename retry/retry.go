// Package retry runs operations a bounded number of times with a fixed
// delay between attempts.
package retry

import "time"

// Policy says how many times to attempt an operation and how long to
// wait between attempts. The zero value attempts once without waiting.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Do runs fn until it returns nil or the policy is exhausted, sleeping
// Backoff between attempts. Returns the error from the last attempt.
func Do(p Policy, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(p.Backoff)
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}
