package strategy

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"time"
)

const (
	DefaultFirstDelay  = 15 * time.Second
	DefaultSecondDelay = 30 * time.Second

	// simulatedJitter bounds each simulated check to +/-0.5% of the prior price.
	simulatedJitter = 0.005
)

type RecoveryPhase string

const (
	RecoveryIdle               RecoveryPhase = "idle"
	AwaitingFirstConfirmation  RecoveryPhase = "awaiting_first_confirmation"
	AwaitingSecondConfirmation RecoveryPhase = "awaiting_second_confirmation"
	RecoveryConfirmed          RecoveryPhase = "confirmed"
	RecoveryRejected           RecoveryPhase = "rejected"
)

// RecoveryState tracks a confirmed-recovery check in flight. AnchorPrice is
// the price the next check is compared against; CheckAt is when it is due.
type RecoveryState struct {
	Phase       RecoveryPhase `json:"phase"`
	AnchorPrice float64       `json:"anchorPrice,omitempty"`
	CheckAt     time.Time     `json:"checkAt,omitempty"`
}

// Pending reports whether a confirmation is still awaited.
func (r RecoveryState) Pending() bool {
	return r.Phase == AwaitingFirstConfirmation || r.Phase == AwaitingSecondConfirmation
}

// ConfirmedRecovery buys after a downward interval only when a first delayed
// check is still not up and a second delayed check is up. The checks are
// driven by the caller re-evaluating at CheckAt; nothing here sleeps.
type ConfirmedRecovery struct {
	FirstDelay  time.Duration
	SecondDelay time.Duration
	// Simulate resolves both checks in one tick from seeded jitter around
	// the last price. Meant for simulation and tests only.
	Simulate bool
}

func NewConfirmedRecovery(firstSeconds, secondSeconds int, simulate bool) ConfirmedRecovery {
	m := ConfirmedRecovery{
		FirstDelay:  time.Duration(firstSeconds) * time.Second,
		SecondDelay: time.Duration(secondSeconds) * time.Second,
		Simulate:    simulate,
	}
	if m.FirstDelay <= 0 {
		m.FirstDelay = DefaultFirstDelay
	}
	if m.SecondDelay <= 0 {
		m.SecondDelay = DefaultSecondDelay
	}
	return m
}

func (ConfirmedRecovery) Tag() MethodTag { return TagConfirmedRecovery }

func (m ConfirmedRecovery) Sell(in Input) Signal {
	return trendReversalSell(in)
}

func (m ConfirmedRecovery) Buy(in Input) Signal {
	switch in.Recovery.Phase {
	case AwaitingFirstConfirmation:
		return m.firstCheck(in)
	case AwaitingSecondConfirmation:
		return m.secondCheck(in)
	}

	if len(in.Series) < 3 {
		return insufficient(3, len(in.Series))
	}
	if !PriceFell(in.Series) {
		cur, prev := lastTwo(in.Series)
		return hold("Last interval not downward: %.2f >= %.2f", cur, prev)
	}
	if m.Simulate {
		return m.simulate(in)
	}
	next := RecoveryState{
		Phase:       AwaitingFirstConfirmation,
		AnchorPrice: in.Price,
		CheckAt:     in.Now.Add(m.FirstDelay),
	}
	sig := hold("Downward interval at %.2f, first confirmation due in %s", in.Price, m.FirstDelay)
	sig.Recovery = &next
	return sig
}

func (m ConfirmedRecovery) firstCheck(in Input) Signal {
	state := in.Recovery
	if in.Now.Before(state.CheckAt) {
		return hold("Awaiting first confirmation (anchor %.2f) in %s", state.AnchorPrice, state.CheckAt.Sub(in.Now))
	}
	if in.Price > state.AnchorPrice {
		sig := hold("Recovery rejected: first check %.2f moved up from %.2f", in.Price, state.AnchorPrice)
		sig.Recovery = &RecoveryState{Phase: RecoveryRejected}
		return sig
	}
	next := RecoveryState{
		Phase:       AwaitingSecondConfirmation,
		AnchorPrice: in.Price,
		CheckAt:     in.Now.Add(m.SecondDelay),
	}
	sig := hold("First check %.2f still down from %.2f, second confirmation due in %s", in.Price, state.AnchorPrice, m.SecondDelay)
	sig.Recovery = &next
	return sig
}

func (m ConfirmedRecovery) secondCheck(in Input) Signal {
	state := in.Recovery
	if in.Now.Before(state.CheckAt) {
		return hold("Awaiting second confirmation (anchor %.2f) in %s", state.AnchorPrice, state.CheckAt.Sub(in.Now))
	}
	if in.Price > state.AnchorPrice {
		return Signal{
			Action:   Buy,
			Reason:   fmt.Sprintf("Confirmed recovery: second check %.2f up from %.2f", in.Price, state.AnchorPrice),
			Recovery: &RecoveryState{Phase: RecoveryConfirmed},
		}
	}
	sig := hold("Recovery rejected: second check %.2f not up from %.2f", in.Price, state.AnchorPrice)
	sig.Recovery = &RecoveryState{Phase: RecoveryRejected}
	return sig
}

// simulate stands in for the two timed observations. The seed depends only on
// the bot and the newest sample so repeated calls agree.
func (m ConfirmedRecovery) simulate(in Input) Signal {
	last := in.Series[len(in.Series)-1]
	rng := rand.New(rand.NewSource(simulationSeed(in.BotID, last.Timestamp)))
	first := last.Price * (1 + (rng.Float64()*2-1)*simulatedJitter)
	if first > last.Price {
		sig := hold("Simulated recovery rejected: first check %.2f moved up from %.2f", first, last.Price)
		sig.Recovery = &RecoveryState{Phase: RecoveryRejected}
		return sig
	}
	second := first * (1 + (rng.Float64()*2-1)*simulatedJitter)
	if second > first {
		return Signal{
			Action:   Buy,
			Reason:   fmt.Sprintf("Simulated confirmed recovery: %.2f -> %.2f -> %.2f", last.Price, first, second),
			Recovery: &RecoveryState{Phase: RecoveryConfirmed},
		}
	}
	sig := hold("Simulated recovery rejected: second check %.2f not up from %.2f", second, first)
	sig.Recovery = &RecoveryState{Phase: RecoveryRejected}
	return sig
}

func simulationSeed(botID string, ts int64) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(botID))
	return int64(h.Sum64()) ^ ts
}
