package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_Creation(t *testing.T) {
	Configure("test")
	defer Configure("")

	enabledLog := New("test")
	disabledLog := New("other")

	assert.True(t, enabledLog.Enabled(), "Logger for enabled topic should be enabled")
	assert.False(t, disabledLog.Enabled(), "Logger for disabled topic should be disabled")
}

func TestLogger_AllTopics(t *testing.T) {
	Configure("all")
	defer Configure("")

	assert.True(t, New("anything").Enabled(), "All topics should be enabled with wildcard")
	assert.True(t, New("whatever").Enabled(), "All topics should be enabled with wildcard")
}

func TestLogger_NoTopics(t *testing.T) {
	Configure("")

	assert.False(t, New("anything").Enabled(), "Logger should be disabled when no topics enabled")
	assert.Empty(t, Topics())
}

func TestLogger_ReconfigureAfterCreation(t *testing.T) {
	Configure("")
	log := New("backtest")
	assert.False(t, log.Enabled())

	Configure(" parser , backtest ")
	defer Configure("")
	assert.True(t, log.Enabled(), "Existing loggers should follow reconfiguration")
	assert.ElementsMatch(t, []string{"parser", "backtest"}, Topics())
}

func BenchmarkLogger_Disabled(b *testing.B) {
	Configure("")
	log := New("benchmark")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.Debug("test message", "key", "value", "number", 42)
	}
}

func BenchmarkLogger_Enabled(b *testing.B) {
	Configure("benchmark")
	defer Configure("")
	log := New("benchmark")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.Debug("test message", "key", "value", "number", 42)
	}
}
