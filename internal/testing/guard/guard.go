package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("BUGTRAP_TEST_MODE") == "" {
			_ = os.Setenv("BUGTRAP_TEST_MODE", "1")
		}
	})
}
