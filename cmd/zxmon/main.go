package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zxspectrum/toolkit/pkg/debugger"
	"github.com/zxspectrum/toolkit/pkg/machine"
)

func main() {
	var (
		machineName = flag.String("m", "48k", "machine profile (48k, 128k, plus2a, pentagon1024, scorpion)")
		diskFile    = flag.String("disk", "", "mount a .dsk image at startup")
		romFile     = flag.String("rom", "", "load ROM bank 0 from a file at startup")
		help        = flag.Bool("h", false, "show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "zxmon - offline memory/disk monitor\n\n")
		fmt.Fprintf(os.Stderr, "Usage: zxmon [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  zxmon -m 128k -disk game.dsk    # inspect a 128K disk's directory\n")
		fmt.Fprintf(os.Stderr, "  zxmon -rom 48.rom               # load a ROM dump and peek/disasm it\n")
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	profile := machine.Lookup(*machineName)
	mon := debugger.New(profile, nil)

	if *romFile != "" {
		data, err := os.ReadFile(*romFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		mon.Mem.LoadROM(0, data)
	}

	if *diskFile != "" {
		data, err := os.ReadFile(*diskFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := mon.MountDisk(data); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if err := mon.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
