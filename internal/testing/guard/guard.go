// Package guard switches the process into test mode on import so binaries
// under test return before dialing Postgres or Redis.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CXP_TEST_MODE") == "" {
			_ = os.Setenv("CXP_TEST_MODE", "1")
		}
	})
}
