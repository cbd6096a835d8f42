package testutil

import (
	"github.com/stretchr/testify/assert"
)

// ErrorIsAndContains matches errors that wrap target and mention every one of parts.
func ErrorIsAndContains(target error, parts ...string) assert.ErrorAssertionFunc {
	return func(t assert.TestingT, err error, msgAndArgs ...interface{}) bool {
		if !assert.ErrorIs(t, err, target, msgAndArgs...) {
			return false
		}
		ok := true
		for _, part := range parts {
			ok = assert.ErrorContains(t, err, part, msgAndArgs...) && ok
		}
		return ok
	}
}
