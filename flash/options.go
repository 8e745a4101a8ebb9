package flash

import "time"

// Opts carries the tunables of a Controller. Poll attempts and interval
// bound the completion busy-wait; Sleep is injectable so tests can
// simulate elapsed time deterministically.
type Opts struct {
	RegisterBase uint32
	PollAttempts int
	PollInterval time.Duration
	Sleep        func(time.Duration)
	Burst        HalfPageProgrammer
}

type Opt func(*Opts)

func WithRegisterBase(base uint32) Opt {
	return func(o *Opts) {
		o.RegisterBase = base
	}
}

func WithPollAttempts(attempts int) Opt {
	return func(o *Opts) {
		o.PollAttempts = attempts
	}
}

func WithPollInterval(interval time.Duration) Opt {
	return func(o *Opts) {
		o.PollInterval = interval
	}
}

func WithSleep(sleep func(time.Duration)) Opt {
	return func(o *Opts) {
		o.Sleep = sleep
	}
}

// WithBurst replaces the default half-page programmer, e.g. with a
// routine placed in RAM by the linker on a real target.
func WithBurst(burst HalfPageProgrammer) Opt {
	return func(o *Opts) {
		o.Burst = burst
	}
}
