package testing

import (
	"os"
	stdtesting "testing"

	_ "github.com/bugtrap/bugtrap/internal/testing/guard"
)

func init() {
	if os.Getenv("JWT_SECRET") == "" {
		_ = os.Setenv("JWT_SECRET", "test-secret-test-secret-test-secret")
	}
}

func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
