package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinygb/dmgcore/jeebie/addr"
)

func TestTimerOverflowReloadsFromTMA(t *testing.T) {
	timer := NewTimer()
	timer.WriteRegister(addr.TMA, 0x50)
	timer.WriteRegister(addr.TAC, 0x05) // enabled, fastest select
	timer.WriteRegister(addr.TIMA, 0xFF)

	fired := timer.Tick(16)
	assert.False(t, fired, "the reload has not yet reached the next M-cycle")

	fired = timer.Tick(4)
	assert.True(t, fired, "TIMA overflow reloads from TMA one M-cycle later and raises the timer IRQ")
	assert.Equal(t, uint8(0x50), timer.ReadRegister(addr.TIMA))
}

func TestTimerTMAWriteDuringReloadWindowTakesEffectImmediately(t *testing.T) {
	timer := NewTimer()
	timer.WriteRegister(addr.TMA, 0x50)
	timer.WriteRegister(addr.TAC, 0x05) // enabled, fastest select
	timer.WriteRegister(addr.TIMA, 0xFF)

	fired := timer.Tick(16)
	assert.False(t, fired, "the overflow arms the reload but it has not yet landed")
	assert.Equal(t, uint8(0x00), timer.ReadRegister(addr.TIMA), "TIMA reads as 0 for the one M-cycle before the reload lands")

	timer.WriteRegister(addr.TMA, 0x99)
	assert.Equal(t, uint8(0x99), timer.ReadRegister(addr.TIMA), "a TMA write during the reload window takes effect on TIMA immediately")

	fired = timer.Tick(4)
	assert.True(t, fired, "the armed reload still completes and raises its IRQ on the next M-cycle")
	assert.Equal(t, uint8(0x99), timer.ReadRegister(addr.TIMA))
}

func TestTimerDisabledNeverIncrements(t *testing.T) {
	timer := NewTimer()
	timer.WriteRegister(addr.TAC, 0x00) // disabled

	timer.Tick(4 * 1000)
	assert.Equal(t, uint8(0x00), timer.ReadRegister(addr.TIMA))
}

func TestTimerWriteResetsDIVAndCounter(t *testing.T) {
	timer := NewTimer()
	timer.Tick(4 * 100)
	assert.NotEqual(t, uint8(0x00), timer.ReadRegister(addr.DIV))

	timer.WriteRegister(addr.DIV, 0xFF)
	assert.Equal(t, uint8(0x00), timer.ReadRegister(addr.DIV))
}

func TestTimerSerializeRoundTrip(t *testing.T) {
	timer := NewTimer()
	timer.WriteRegister(addr.TMA, 0x20)
	timer.WriteRegister(addr.TAC, 0x05)
	timer.WriteRegister(addr.TIMA, 0x10)
	timer.Tick(4 * 7)

	data := timer.Serialize()
	assert.Len(t, data, timerStateSize)

	restored, err := DeserializeTimer(data)
	assert.NoError(t, err)
	assert.Equal(t, timer.ReadRegister(addr.TIMA), restored.ReadRegister(addr.TIMA))
	assert.Equal(t, timer.ReadRegister(addr.TMA), restored.ReadRegister(addr.TMA))
	assert.Equal(t, timer.ReadRegister(addr.TAC), restored.ReadRegister(addr.TAC))
	assert.Equal(t, timer.ReadRegister(addr.DIV), restored.ReadRegister(addr.DIV))
}

func TestTimerDeserializeRejectsShortBuffer(t *testing.T) {
	_, err := DeserializeTimer(make([]byte, 3))
	assert.Error(t, err)
	var invalid *InvalidStateBuffer
	assert.ErrorAs(t, err, &invalid)
}

func TestTimerResetIdempotent(t *testing.T) {
	timer := NewTimer()
	timer.WriteRegister(addr.TAC, 0x05)
	timer.Tick(4 * 50)

	timer.Reset()
	first := timer.Serialize()
	timer.Reset()
	second := timer.Serialize()

	assert.Equal(t, first, second)
}
