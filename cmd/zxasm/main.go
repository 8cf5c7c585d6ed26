package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zxspectrum/toolkit/pkg/assembler"
	"github.com/zxspectrum/toolkit/pkg/machine"
	"github.com/zxspectrum/toolkit/pkg/version"
	"github.com/zxspectrum/toolkit/pkg/vfs"
)

var (
	outputFile  string
	listingFile string
	symbolFile  string
	machineName string
	maxPasses   int
	defineFlags []string
	showVersion bool
	listMachines bool
)

var rootCmd = &cobra.Command{
	Use:   "zxasm [source file]",
	Short: "ZX Spectrum Z80 macro assembler " + version.GetVersion(),
	Long: `zxasm - sjasmplus-compatible multi-pass Z80 assembler
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
Assembles Z80 source (labels, macros, structs, REPT/DUP,
conditional assembly, PHASE/DISP) to a raw binary plus optional
listing and symbol files, or directly to .sna/.tap/.trd images
via SAVESNA/SAVETAP/SAVETRD directives in the source itself.

MACHINES:
  48k            - 48K Spectrum, flat memory (default)
  128k           - 128K Spectrum, 8x16K RAM banks
  plus2a         - +2A/+3, paged ROM plus 8x16K RAM banks
  pentagon1024   - Pentagon 1024, 64x16K RAM banks
  scorpion       - Scorpion ZS-256, 16x16K RAM banks

EXAMPLES:
  zxasm game.asm                       # assemble to game.bin
  zxasm -o game.rom game.asm           # explicit output path
  zxasm -l game.lst -s game.sym game.asm
  zxasm -m 128k -D DEBUG=1 game.asm    # 128K target, command-line define
  zxasm --list-machines                # list known machine profiles

For the symbol/directive language and directive reference, see
the sjasmplus manual this assembler tracks.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersion())
			return
		}

		if listMachines {
			fmt.Println("Available machines:")
			for _, name := range machine.Names() {
				fmt.Printf("  - %s\n", name)
			}
			return
		}

		if len(args) == 0 {
			cmd.Help()
			os.Exit(0)
		}

		if err := assemble(args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output binary file (default: input.bin)")
	rootCmd.Flags().StringVarP(&listingFile, "listing", "l", "", "generate listing file")
	rootCmd.Flags().StringVarP(&symbolFile, "symbols", "s", "", "generate symbol file")
	rootCmd.Flags().StringVarP(&machineName, "machine", "m", "48k", "target machine profile")
	rootCmd.Flags().IntVar(&maxPasses, "max-passes", 0, "override the assembler's pass cap (0 = default)")
	rootCmd.Flags().StringArrayVarP(&defineFlags, "define", "D", nil, "define a symbol as NAME=VALUE (repeatable)")
	rootCmd.Flags().BoolVar(&listMachines, "list-machines", false, "list available machine profiles")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func assemble(sourceFile string) error {
	profile := machine.Lookup(machineName)

	defines, err := parseDefines(defineFlags)
	if err != nil {
		return err
	}

	fs := vfs.OSFS{}
	a := assembler.New(fs, profile)
	if maxPasses > 0 {
		a.MaxPasses = maxPasses
	}

	result, err := a.AssembleFile(sourceFile, defines)
	if err != nil {
		return err
	}

	for _, e := range result.Errors {
		if e.Warning {
			fmt.Fprintf(os.Stderr, "warning: %v\n", e)
		} else {
			fmt.Fprintf(os.Stderr, "%v\n", e)
		}
	}
	if hasFatal(result.Errors) {
		return fmt.Errorf("assembly failed with errors")
	}

	if outputFile == "" {
		ext := filepath.Ext(sourceFile)
		outputFile = strings.TrimSuffix(sourceFile, ext) + ".bin"
	}
	if err := os.WriteFile(outputFile, result.Binary, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outputFile, err)
	}

	if err := assembler.WriteSaves(fs, result); err != nil {
		return fmt.Errorf("writing save outputs: %w", err)
	}

	if listingFile != "" {
		if err := writeListingFile(listingFile, sourceFile, result); err != nil {
			return fmt.Errorf("writing listing %s: %w", listingFile, err)
		}
	}

	if symbolFile != "" {
		if err := writeSymbolFile(symbolFile, result); err != nil {
			return fmt.Errorf("writing symbols %s: %w", symbolFile, err)
		}
	}

	fmt.Printf("Origin: $%04X  Size: %d bytes ($%04X)  Symbols: %d\n",
		result.Origin, len(result.Binary), len(result.Binary), len(result.Symbols))
	if result.HasEntry {
		fmt.Printf("Entry:  $%04X\n", result.EntryAddress)
	}
	for _, s := range result.Saves {
		fmt.Printf("Saved:  %s (%d bytes)\n", s.Path, len(s.Data))
	}
	if len(result.UnusedLabels) > 0 {
		fmt.Printf("Unused labels: %s\n", strings.Join(result.UnusedLabels, ", "))
	}

	return nil
}

func hasFatal(errs []assembler.Error) bool {
	for _, e := range errs {
		if e.Fatal {
			return true
		}
	}
	return false
}

func parseDefines(flags []string) (map[string]int32, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	defines := make(map[string]int32, len(flags))
	for _, f := range flags {
		name, valText, hasVal := strings.Cut(f, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, fmt.Errorf("invalid -D %q: missing symbol name", f)
		}
		var value int64 = 1
		if hasVal && valText != "" {
			var err error
			value, err = strconv.ParseInt(strings.TrimSpace(valText), 0, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid -D %q: %w", f, err)
			}
		}
		defines[name] = int32(value)
	}
	return defines, nil
}

func writeListingFile(path, sourceFile string, result *assembler.Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "zxasm listing for %s\n", sourceFile)
	fmt.Fprintf(&b, "Origin: $%04X\n\n", result.Origin)
	for _, e := range result.Errors {
		fmt.Fprintf(&b, "; %v\n", e)
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

func writeSymbolFile(path string, result *assembler.Result) error {
	names := make([]string, 0, len(result.Symbols))
	for name := range result.Symbols {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%-32s = $%04X (%d)\n", name, uint16(result.Symbols[name]), result.Symbols[name])
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}
