package mpu

const (
	APP_REGION   = 0 // Region index holding the process's app memory.
	FLASH_REGION = 1 // Region index holding the process's flash image.
)

// Config is the region set of one process. It is computed in kernel memory
// whenever a break moves and programmed into the hardware only when the
// process is next scheduled.
type Config struct {
	Regions []Region
	Dirty   bool // Set when Regions changed since last programmed.
}

// NewConfig creates an empty configuration for a unit with count regions.
func NewConfig(count int) *Config {
	return &Config{
		Regions: make([]Region, count),
		Dirty:   true,
	}
}

// Region returns the region at index, or an unused region.
func (cfg *Config) Region(index int) (region Region) {
	if index < 0 || index >= len(cfg.Regions) {
		return
	}
	return cfg.Regions[index]
}

// Set installs region at index.
func (cfg *Config) Set(index int, region Region) {
	if cfg.Regions[index] != region {
		cfg.Regions[index] = region
		cfg.Dirty = true
	}
}

// Clear marks the region at index unused.
func (cfg *Config) Clear(index int) {
	cfg.Set(index, Region{})
}

// Allocate fits a new region into [start, start+size) and installs it at
// index, which must be unused. The range must not overlap any region already
// in the configuration.
func (cfg *Config) Allocate(ft *Fitter, index int, start uint32, size uint32, minimumSize uint32, perm Permission) (region Region, err error) {
	if index < 0 || index >= len(cfg.Regions) || !cfg.Regions[index].Empty() {
		err = ErrHardwareLimit
		return
	}

	for _, other := range cfg.Regions {
		if other.Overlaps(start, size) {
			err = ErrRegionOverlap
			return
		}
	}

	region, ok := ft.Fit(start, size, minimumSize, perm)
	if !ok {
		err = ErrHardwareLimit
		return
	}

	cfg.Set(index, region)
	return
}
