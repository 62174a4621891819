package app

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/specialistvlad/sweepgridgo/internal/hcl"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest creates an App backed by the HCL loader with debug logging
// captured in the returned buffer. Set SWEEPGRID_TEST_LOGS=true to dump the
// logs after the test.
func SetupAppTest(t *testing.T, appConfig *Config, opts ...Option) (*App, *SafeBuffer) {
	t.Helper()

	logBuffer := &SafeBuffer{}
	appConfig.LogLevel = "debug"
	if appConfig.LogFormat == "" {
		appConfig.LogFormat = "text"
	}
	if appConfig.Workers == 0 {
		appConfig.Workers = 1
	}
	testApp := NewApp(logBuffer, appConfig, hcl.NewLoader(), opts...)

	t.Cleanup(func() {
		if os.Getenv("SWEEPGRID_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
