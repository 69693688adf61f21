package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmedRecoveryFullProtocol(t *testing.T) {
	m := NewConfirmedRecovery(15, 30, false)

	in := input(9, 10, 11, 9)
	sig := m.Buy(in)
	require.Equal(t, Hold, sig.Action)
	require.NotNil(t, sig.Recovery)
	assert.Equal(t, AwaitingFirstConfirmation, sig.Recovery.Phase)
	assert.Equal(t, 9.0, sig.Recovery.AnchorPrice)
	assert.Equal(t, t0.Add(15*time.Second), sig.Recovery.CheckAt)

	// early tick: no state change
	in.Recovery = *sig.Recovery
	in.Now = t0.Add(5 * time.Second)
	early := m.Buy(in)
	assert.Equal(t, Hold, early.Action)
	assert.Nil(t, early.Recovery)

	// first check still down
	in.Now = t0.Add(15 * time.Second)
	in.Price = 8.9
	sig = m.Buy(in)
	require.NotNil(t, sig.Recovery)
	assert.Equal(t, AwaitingSecondConfirmation, sig.Recovery.Phase)
	assert.Equal(t, 8.9, sig.Recovery.AnchorPrice)

	// second check up
	in.Recovery = *sig.Recovery
	in.Now = t0.Add(45 * time.Second)
	in.Price = 9.2
	sig = m.Buy(in)
	assert.Equal(t, Buy, sig.Action)
	require.NotNil(t, sig.Recovery)
	assert.Equal(t, RecoveryConfirmed, sig.Recovery.Phase)
}

func TestConfirmedRecoveryRejectedAtFirstCheck(t *testing.T) {
	m := NewConfirmedRecovery(15, 30, false)
	in := input(9.5, 10, 11, 9)
	in.Recovery = RecoveryState{Phase: AwaitingFirstConfirmation, AnchorPrice: 9, CheckAt: t0}

	sig := m.Buy(in)
	assert.Equal(t, Hold, sig.Action)
	require.NotNil(t, sig.Recovery)
	assert.Equal(t, RecoveryRejected, sig.Recovery.Phase)
}

func TestConfirmedRecoveryRejectedAtSecondCheck(t *testing.T) {
	m := NewConfirmedRecovery(15, 30, false)
	in := input(8.8, 10, 11, 9)
	in.Recovery = RecoveryState{Phase: AwaitingSecondConfirmation, AnchorPrice: 8.9, CheckAt: t0}

	sig := m.Buy(in)
	assert.Equal(t, Hold, sig.Action)
	require.NotNil(t, sig.Recovery)
	assert.Equal(t, RecoveryRejected, sig.Recovery.Phase)
}

func TestConfirmedRecoveryNeedsDownwardInterval(t *testing.T) {
	sig := NewConfirmedRecovery(0, 0, false).Buy(input(12, 10, 11, 12))
	assert.Equal(t, Hold, sig.Action)
	assert.Nil(t, sig.Recovery)
}

func TestConfirmedRecoverySimulationIsDeterministic(t *testing.T) {
	m := NewConfirmedRecovery(0, 0, true)
	in := input(9, 10, 11, 9)
	in.BotID = "bot-1"

	first := m.Buy(in)
	second := m.Buy(in)
	assert.Equal(t, first, second)
	require.NotNil(t, first.Recovery)
	assert.False(t, first.Recovery.Pending())
}

func TestConfirmedRecoverySellDelegatesToTrendReversal(t *testing.T) {
	m := NewConfirmedRecovery(0, 0, false)
	assert.Equal(t, Sell, m.Sell(input(11, 10, 12, 11)).Action)
}
