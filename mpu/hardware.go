package mpu

// Hardware programs region configurations into a protection unit.
type Hardware interface {
	// Regions is the number of regions the unit implements.
	Regions() int
	// Configure makes cfg the active configuration. Must be called with
	// interrupts masked.
	Configure(cfg *Config)
}

// Simulated is a protection unit held in memory. It skips reprogramming
// when asked to install the configuration it already holds, unchanged.
type Simulated struct {
	Unit       Unit
	Active     []Region // Regions currently programmed.
	Programmed int      // Number of times regions were written.

	current *Config
}

var _ Hardware = (*Simulated)(nil)

// NewSimulated creates a simulated unit for the model.
func NewSimulated(unit Unit) *Simulated {
	return &Simulated{
		Unit:   unit,
		Active: make([]Region, unit.Regions),
	}
}

func (sim *Simulated) Regions() int {
	return sim.Unit.Regions
}

func (sim *Simulated) Configure(cfg *Config) {
	if sim.current == cfg && !cfg.Dirty {
		return
	}

	clear(sim.Active)
	copy(sim.Active, cfg.Regions)
	cfg.Dirty = false
	sim.current = cfg
	sim.Programmed++
}

// Allows reports whether an unprivileged access of perm over
// [addr, addr+length) would be permitted.
func (sim *Simulated) Allows(addr uint32, length uint32, perm Permission) bool {
	for _, region := range sim.Active {
		if region.Contains(addr, length) && region.Permission.Covers(perm) {
			return true
		}
	}
	return false
}
