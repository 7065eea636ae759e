// Package testing switches the service into test mode when imported by test
// packages. The runtime entrypoint checks the flag and skips startup.
package testing

import (
	"os"
	"sync"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ESTOQUE_TEST_MODE", "1")
		if os.Getenv("N8N_WEBHOOK") == "" {
			_ = os.Setenv("N8N_WEBHOOK", "http://127.0.0.1:0/webhook/test")
		}
	})
}

func init() {
	ensureTestMode()
}
