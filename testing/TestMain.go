// Package testing switches the settlement service into test mode when
// blank-imported by a test package.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("SETTLE_TEST_MODE", "1")
		for _, key := range []string{"FX_PROVIDER_A_URL", "FX_PROVIDER_B_URL", "FX_PROVIDER_C_URL", "SUBMIT_URL"} {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, "http://127.0.0.1:0")
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
