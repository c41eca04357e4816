// Package config reads board descriptions.
//
// A board file is TOML:
//
//	name = "nrf52840dk"
//	mpu = "cortex-m"
//	flash_start = 0x40000
//	ram_start = 0x20000000
//	ram_size = "128 * KiB"
//	max_processes = 4
//	upcall_queue = 10
//	fault_policy = "restart"
//	restart_threshold = 3
//	stack_size = "2 * KiB"
//
// Every address and size may be an integer expression.
package config

import (
	"io"
	"os"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/ezrec/uproc/kernel"
	"github.com/ezrec/uproc/mpu"
	"github.com/ezrec/uproc/process"
)

// Fault policy names.
const (
	POLICY_PANIC   = "panic"
	POLICY_STOP    = "stop"
	POLICY_RESTART = "restart"
)

// Board is the description of one board.
type Board struct {
	Name             string `toml:"name" yaml:"name"`
	MPU              string `toml:"mpu" yaml:"mpu"`
	Regions          int    `toml:"regions" yaml:"regions"` // Zero for all of the model's regions.
	FlashStart       Expr   `toml:"flash_start" yaml:"flash_start"`
	RAMStart         Expr   `toml:"ram_start" yaml:"ram_start"`
	RAMSize          Expr   `toml:"ram_size" yaml:"ram_size"`
	MaxProcesses     int    `toml:"max_processes" yaml:"max_processes"`
	UpcallQueue      int    `toml:"upcall_queue" yaml:"upcall_queue"`
	FaultPolicy      string `toml:"fault_policy" yaml:"fault_policy"`
	RestartThreshold int    `toml:"restart_threshold" yaml:"restart_threshold"`
	StackSize        Expr   `toml:"stack_size" yaml:"stack_size"`
}

// Default is a board with a Cortex-M protection unit and the kernel's
// usual limits. Board files override what they set.
func Default() Board {
	return Board{
		Name:             "default",
		MPU:              "cortex-m",
		FlashStart:       0x40000,
		RAMStart:         0x20000000,
		RAMSize:          64 << 10,
		MaxProcesses:     4,
		UpcallQueue:      10,
		FaultPolicy:      POLICY_PANIC,
		RestartThreshold: 3,
		StackSize:        2 << 10,
	}
}

// Decode reads a board file from r over the defaults.
func Decode(r io.Reader) (board Board, err error) {
	board = Default()
	md, err := toml.NewDecoder(r).Decode(&board)
	if err != nil {
		return
	}

	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		slices.Sort(keys)
		err = ErrUnknownKey(keys)
		return
	}

	err = board.Validate()
	return
}

// Load reads the board file at path.
func Load(path string) (board Board, err error) {
	inf, err := os.Open(path)
	if err != nil {
		return
	}
	defer inf.Close()

	return Decode(inf)
}

// Validate checks the board for consistency.
func (board *Board) Validate() (err error) {
	_, err = board.Unit()
	if err != nil {
		return
	}

	_, err = board.Policy()
	if err != nil {
		return
	}

	if board.RAMSize == 0 || uint64(board.RAMStart)+uint64(board.RAMSize) > 1<<32 {
		err = ErrRAM
		return
	}

	if board.MaxProcesses < 1 || board.UpcallQueue < 1 {
		err = ErrLimits
		return
	}

	return
}

// Unit is the board's protection unit model, limited to Regions.
func (board *Board) Unit() (unit mpu.Unit, err error) {
	unit, err = mpu.LookupUnit(board.MPU)
	if err != nil {
		return
	}

	if board.Regions != 0 {
		if board.Regions < 0 || board.Regions > unit.Regions {
			err = ErrRegions
			return
		}
		unit.Regions = board.Regions
	}

	return
}

// Policy is the fault policy named by the board.
func (board *Board) Policy() (policy process.FaultPolicy, err error) {
	switch board.FaultPolicy {
	case POLICY_PANIC:
		policy = process.PanicPolicy{}
	case POLICY_STOP:
		policy = process.StopPolicy{}
	case POLICY_RESTART:
		policy = process.RestartPolicy{Threshold: board.RestartThreshold}
	default:
		err = ErrFaultPolicy(board.FaultPolicy)
	}
	return
}

// Kernel is the kernel configuration of the board.
func (board *Board) Kernel() (params kernel.Params, err error) {
	unit, err := board.Unit()
	if err != nil {
		return
	}

	policy, err := board.Policy()
	if err != nil {
		return
	}

	params = kernel.Params{
		Unit:          unit,
		RAMStart:      uint32(board.RAMStart),
		RAMSize:       uint32(board.RAMSize),
		MaxProcesses:  board.MaxProcesses,
		QueueCapacity: board.UpcallQueue,
		StackSize:     uint32(board.StackSize),
		Policy:        policy,
	}
	return
}
