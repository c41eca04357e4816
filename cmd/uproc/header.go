package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ezrec/uproc/config"
	"github.com/ezrec/uproc/tbf"
)

type imageReport struct {
	Address config.Expr `yaml:"address"`
	Name    string      `yaml:"name"`
	Enabled bool        `yaml:"enabled"`
	Header  tbf.Header  `yaml:"header"`
}

// Header implements subcommands.Command for the "header" command.
type Header struct {
	address uint64
}

func (*Header) Name() string {
	return "header"
}

func (*Header) Synopsis() string {
	return "print the headers of application images"
}

func (*Header) Usage() string {
	return "header [-address addr] <image>...\n"
}

func (hdr *Header) SetFlags(f *flag.FlagSet) {
	f.Uint64Var(&hdr.address, "address", 0, "flash address of the first image")
}

func (hdr *Header) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	flash, err := readFlash(f.Args())
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}

	var reports []imageReport
	for img, err := range tbf.Walk(uint32(hdr.address), flash) {
		if err != nil {
			logrus.Warn(err)
			continue
		}
		reports = append(reports, imageReport{
			Address: config.Expr(img.Address),
			Name:    img.Name(),
			Enabled: img.Header.Enabled(),
			Header:  img.Header,
		})
	}

	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	err = enc.Encode(reports)
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}

	return subcommands.ExitSuccess
}
