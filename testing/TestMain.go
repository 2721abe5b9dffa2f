// Package testing switches the binaries into test mode when imported by a
// test, so calling main never dials Postgres, Redis or the rendering service.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("BUILDSIGHT_TEST_MODE", "1")
		for key, value := range map[string]string{
			"RENDERER_URL":  "http://127.0.0.1:0",
			"GOTENBERG_URL": "http://127.0.0.1:0",
		} {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
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
