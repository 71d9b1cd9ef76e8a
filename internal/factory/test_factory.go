package factory

import (
	"time"

	"github.com/mcoot/rps-ledger/internal/dependencies/mocks"
	"github.com/mcoot/rps-ledger/internal/services/chain"
	"github.com/mcoot/rps-ledger/internal/storage/memory"
	"github.com/mcoot/rps-ledger/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithConfig(chain.DefaultConfig())
}

// NewTestAppWithConfig creates a test App with custom deployment defaults
func NewTestAppWithConfig(chainCfg chain.Config) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(store, mockClock, mockRandom, chainCfg, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
