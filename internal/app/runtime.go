package app

import (
	"os"
	"sync"
	"sync/atomic"
)

const testModeEnv = "INVOICER_TEST_MODE"

var (
	testMode     atomic.Bool
	testModeOnce sync.Once
)

// InTestMode reports whether external side effects (brokers, mail, PDF
// rendering services) should be skipped.
func InTestMode() bool {
	testModeOnce.Do(RefreshTestMode)
	return testMode.Load()
}

// RefreshTestMode re-reads INVOICER_TEST_MODE after the environment changed.
func RefreshTestMode() {
	testMode.Store(os.Getenv(testModeEnv) == "1")
}
