package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ezrec/uproc/capsule"
	"github.com/ezrec/uproc/config"
	"github.com/ezrec/uproc/kernel"
	"github.com/ezrec/uproc/mpu"
	"github.com/ezrec/uproc/process"
	"github.com/ezrec/uproc/syscall"
)

type processReport struct {
	Name        string        `yaml:"name"`
	State       process.State `yaml:"state"`
	FlashStart  config.Expr   `yaml:"flash_start"`
	FlashEnd    config.Expr   `yaml:"flash_end"`
	RAMStart    config.Expr   `yaml:"ram_start"`
	AppBreak    config.Expr   `yaml:"app_break"`
	KernelBreak config.Expr   `yaml:"kernel_break"`
	RAMEnd      config.Expr   `yaml:"ram_end"`
	BlockSize   config.Expr   `yaml:"block_size"`
	AppRegion   string        `yaml:"app_region"`
	Grants      int           `yaml:"grant_slots"`
	Upcalls     int           `yaml:"upcall_queue"`
	Regions     []string      `yaml:"regions"`
}

type layoutReport struct {
	Board     config.Board    `yaml:"board"`
	Processes []processReport `yaml:"processes"`
}

// Layout implements subcommands.Command for the "layout" command.
type Layout struct {
	board string
}

func (*Layout) Name() string {
	return "layout"
}

func (*Layout) Synopsis() string {
	return "load images on a board and print the process memory map"
}

func (*Layout) Usage() string {
	return "layout [-board file.toml] <image>...\n"
}

func (lay *Layout) SetFlags(f *flag.FlagSet) {
	f.StringVar(&lay.board, "board", "", "board description (TOML)")
}

func (lay *Layout) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	board := config.Default()
	if len(lay.board) != 0 {
		var err error
		board, err = config.Load(lay.board)
		if err != nil {
			logrus.Errorf("%v: %v", lay.board, err)
			return subcommands.ExitFailure
		}
	}

	report, err := loadLayout(board, f.Args())
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}

	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	err = enc.Encode(report)
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}

// loadLayout loads the images at the board's flash start without running
// them.
func loadLayout(board config.Board, paths []string) (report layoutReport, err error) {
	params, err := board.Kernel()
	if err != nil {
		return
	}

	flash, err := readFlash(paths)
	if err != nil {
		return
	}

	dis := syscall.NewDispatcher()
	err = dis.Register(capsule.CONSOLE_DRIVER, &capsule.Console{})
	if err != nil {
		return
	}

	k := kernel.New(params, dis, nil, mpu.NewSimulated(params.Unit), logrus.StandardLogger())
	_, err = k.LoadApps(uint32(board.FlashStart), flash)
	if err != nil {
		return
	}

	report.Board = board
	for _, proc := range k.Processes.All() {
		layout := proc.Memory
		entry := processReport{
			Name:        proc.Name,
			State:       proc.State,
			FlashStart:  config.Expr(proc.FlashStart()),
			FlashEnd:    config.Expr(proc.FlashEnd()),
			RAMStart:    config.Expr(layout.RAMStart()),
			AppBreak:    config.Expr(layout.AppBreak()),
			KernelBreak: config.Expr(layout.KernelBreak()),
			RAMEnd:      config.Expr(layout.RAMEnd()),
			BlockSize:   config.Expr(layout.Block().Size),
			AppRegion:   layout.Region().String(),
			Grants:      proc.Grants.Len(),
			Upcalls:     proc.Upcalls.Capacity,
		}
		for _, region := range layout.Config().Regions {
			if !region.Empty() {
				entry.Regions = append(entry.Regions, region.String())
			}
		}
		report.Processes = append(report.Processes, entry)
	}

	return
}
