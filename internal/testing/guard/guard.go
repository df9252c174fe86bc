// Package guard switches the application into test mode when imported by a test binary.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SPENDBOARD_TEST_MODE") == "" {
			_ = os.Setenv("SPENDBOARD_TEST_MODE", "1")
		}
	})
}
