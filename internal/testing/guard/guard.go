// Package guard puts the process in test mode as soon as it is imported, so
// app.InTestMode holds before any init code asks.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("ESTOQUE_TEST_MODE") == "" {
			_ = os.Setenv("ESTOQUE_TEST_MODE", "1")
		}
	})
}
