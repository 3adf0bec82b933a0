// Package guard switches the binaries into test mode when imported by a
// test, so calling main does not reach for Postgres or Redis.
package guard

import (
	"os"
	"sync"
)

const testModeEnv = "STOREKEEP_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}
