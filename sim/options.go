package sim

// Opts configures a simulated controller.
type Opts struct {
	RegisterBase uint32
	// BusyCycles is how many status reads report busy after an accepted
	// operation before the end-of-operation flag shows.
	BusyCycles int
	// StuckBusy keeps the busy flag raised forever, modelling a fault
	// that interrupted the write cycle.
	StuckBusy      bool
	ProtectedPages []uint32
}

type Opt func(*Opts)

func WithRegisterBase(base uint32) Opt {
	return func(o *Opts) {
		o.RegisterBase = base
	}
}

func WithBusyCycles(cycles int) Opt {
	return func(o *Opts) {
		o.BusyCycles = cycles
	}
}

func WithStuckBusy() Opt {
	return func(o *Opts) {
		o.StuckBusy = true
	}
}

// WithProtectedPage marks the page containing addr as write protected:
// erase and program attempts raise the write-protect flag.
func WithProtectedPage(addr uint32) Opt {
	return func(o *Opts) {
		o.ProtectedPages = append(o.ProtectedPages, addr)
	}
}
