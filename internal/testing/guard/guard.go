package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("MOBILLING_TEST_MODE") == "" {
			_ = os.Setenv("MOBILLING_TEST_MODE", "1")
		}
	})
}
