package power

import (
	"context"
	"testing"
	"time"

	"github.com/gr-butler/envmon/irq"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	depth Depth
	d     time.Duration
}

type result struct {
	wake  Wake
	slept time.Duration
	raise irq.Source
}

// scriptedSleeper replays results in order, then answers WakeAlarm.
type scriptedSleeper struct {
	flags   *irq.Flags
	calls   []call
	results []result
}

func (s *scriptedSleeper) Sleep(_ context.Context, depth Depth, d time.Duration) (Wake, time.Duration) {
	s.calls = append(s.calls, call{depth, d})
	if len(s.results) == 0 {
		return WakeAlarm, d
	}
	r := s.results[0]
	s.results = s.results[1:]
	if r.raise != 0 {
		s.flags.Raise(r.raise)
	}
	return r.wake, r.slept
}

func newDispatcher(cfg Config, results ...result) (*Dispatcher, *scriptedSleeper, *irq.Flags, *int) {
	flags := irq.NewFlags()
	s := &scriptedSleeper{flags: flags, results: results}
	notified := 0
	d := NewDispatcher(cfg, s, flags, func() { notified++ })
	return d, s, flags, &notified
}

func TestPendingIRQSkipsSleep(t *testing.T) {
	d, s, flags, _ := newDispatcher(DefaultConfig())
	flags.Raise(irq.Button)
	d.Hibernate(context.Background(), time.Hour, true)
	assert.Empty(t, s.calls)
	assert.True(t, flags.Pending())
}

func TestShortWaitStaysLight(t *testing.T) {
	d, s, _, _ := newDispatcher(DefaultConfig())
	d.Hibernate(context.Background(), 6*time.Second, true)
	assert.Equal(t, []call{{Light, 6 * time.Second}}, s.calls)
}

func TestLightPreludeBeforeDeep(t *testing.T) {
	d, s, _, _ := newDispatcher(DefaultConfig())
	d.Hibernate(context.Background(), time.Hour, true)
	assert.Equal(t, []call{
		{Light, 5 * time.Second},
		{Deep, time.Hour - 5*time.Second},
	}, s.calls)
}

func TestNoSerialWakeGoesStraightToDeep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SerialWake = false
	d, s, _, _ := newDispatcher(cfg)
	d.Hibernate(context.Background(), time.Hour, true)
	assert.Equal(t, []call{{Deep, time.Hour}}, s.calls)
}

func TestLongWaitIsSliced(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SerialWake = false
	cfg.MaxDeepSleep = 10 * time.Minute
	d, s, _, _ := newDispatcher(cfg)
	d.Hibernate(context.Background(), 25*time.Minute, true)
	assert.Equal(t, []call{
		{Deep, 10 * time.Minute},
		{Deep, 10 * time.Minute},
		{Deep, 5 * time.Minute},
	}, s.calls)
}

func TestInterruptEndsInterruptibleWait(t *testing.T) {
	d, s, flags, notified := newDispatcher(DefaultConfig(),
		result{wake: WakeAlarm, slept: 5 * time.Second},
		result{wake: WakeInterrupt, slept: time.Minute, raise: irq.Button},
	)
	d.Hibernate(context.Background(), time.Hour, true)
	assert.Len(t, s.calls, 2)
	assert.Equal(t, irq.Button, flags.Snapshot())
	assert.Zero(t, *notified)
}

func TestSerialDuringPreludeSkipsDeep(t *testing.T) {
	d, s, flags, _ := newDispatcher(DefaultConfig(),
		result{wake: WakeInterrupt, slept: 2 * time.Second, raise: irq.Serial},
	)
	d.Hibernate(context.Background(), time.Hour, true)
	assert.Equal(t, []call{{Light, 5 * time.Second}}, s.calls)
	assert.Equal(t, irq.Serial, flags.Snapshot())
}

func TestSpuriousWakeIsRetried(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SerialWake = false
	d, s, flags, notified := newDispatcher(cfg,
		result{wake: WakeInterrupt, slept: 20 * time.Second, raise: irq.Button},
	)
	d.Hibernate(context.Background(), time.Minute, false)
	require.Len(t, s.calls, 2)
	// re-armed with what was left
	assert.Equal(t, call{Deep, 40 * time.Second}, s.calls[1])
	assert.Equal(t, 1, *notified)
	// the flag survives for the loop
	assert.Equal(t, irq.Button, flags.Snapshot())
}

func TestStaleNudgeIsNotAnInterrupt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SerialWake = false
	d, s, _, notified := newDispatcher(cfg,
		result{wake: WakeInterrupt, slept: 10 * time.Second},
	)
	d.Hibernate(context.Background(), time.Minute, true)
	require.Len(t, s.calls, 2)
	assert.Equal(t, call{Deep, 50 * time.Second}, s.calls[1])
	assert.Zero(t, *notified)
}

func TestSpuriousRetriesAreBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SerialWake = false
	cfg.SpuriousRetries = 2
	var results []result
	for i := 0; i < 10; i++ {
		results = append(results, result{wake: WakeInterrupt, slept: time.Second})
	}
	d, s, _, notified := newDispatcher(cfg, results...)
	d.Hibernate(context.Background(), time.Hour, false)
	assert.Len(t, s.calls, 3)
	assert.Equal(t, 2, *notified)
}

func TestCancelledSleepReturns(t *testing.T) {
	d, s, _, _ := newDispatcher(DefaultConfig(),
		result{wake: WakeCancelled, slept: time.Second},
	)
	d.Hibernate(context.Background(), time.Hour, true)
	assert.Len(t, s.calls, 1)
}

func TestHostSleeperAlarm(t *testing.T) {
	flags := irq.NewFlags()
	h := NewHostSleeper(clockwork.NewRealClock(), flags)
	wake, slept := h.Sleep(context.Background(), Light, 5*time.Millisecond)
	assert.Equal(t, WakeAlarm, wake)
	assert.Equal(t, 5*time.Millisecond, slept)
}

func TestHostSleeperInterrupt(t *testing.T) {
	flags := irq.NewFlags()
	h := NewHostSleeper(clockwork.NewRealClock(), flags)
	flags.Raise(irq.Button)
	wake, _ := h.Sleep(context.Background(), Deep, time.Hour)
	assert.Equal(t, WakeInterrupt, wake)
}

func TestHostSleeperDeepIgnoresSerial(t *testing.T) {
	flags := irq.NewFlags()
	h := NewHostSleeper(clockwork.NewRealClock(), flags)
	flags.Raise(irq.Serial)
	wake, _ := h.Sleep(context.Background(), Deep, 20*time.Millisecond)
	assert.Equal(t, WakeAlarm, wake)
	assert.True(t, flags.Pending())

	flags.Raise(irq.Serial)
	wake, _ = h.Sleep(context.Background(), Light, time.Hour)
	assert.Equal(t, WakeInterrupt, wake)
}

func TestHostSleeperCancelled(t *testing.T) {
	h := NewHostSleeper(clockwork.NewRealClock(), irq.NewFlags())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	wake, _ := h.Sleep(ctx, Light, time.Hour)
	assert.Equal(t, WakeCancelled, wake)
}
