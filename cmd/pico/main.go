// Picovm CLI - assembles, inspects and runs picovm programs
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"

	"github.com/chazu/picovm/asm"
	"github.com/chazu/picovm/vm"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output (debug-level execution traces)")
	disassemble := flag.Bool("d", false, "Print a disassembly instead of running")
	output := flag.String("o", "", "Assemble to a .pvm container instead of running")
	configPath := flag.String("config", "", "Machine configuration file (picovm.toml)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pico [options] program.(pasm|pvm)\n\n")
		fmt.Fprintf(os.Stderr, "Runs a picovm program. Text assembly (.pasm) is assembled on the fly;\n")
		fmt.Fprintf(os.Stderr, "anything else is read as a .pvm program container.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pico prog.pasm             # Assemble and run\n")
		fmt.Fprintf(os.Stderr, "  pico -d prog.pvm           # Disassemble a container\n")
		fmt.Fprintf(os.Stderr, "  pico -o prog.pvm prog.pasm # Assemble to a container\n")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	path := flag.Arg(0)

	verbosity := 0
	if *verbose {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	cfg := vm.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = vm.LoadConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	program, err := loadProgram(path, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch {
	case *disassemble:
		fmt.Print(vm.Disassemble(program))

	case *output != "":
		if err := vm.WriteProgramFile(*output, program); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if *verbose {
			fmt.Printf("Wrote %s\n", *output)
		}

	default:
		machine, err := vm.NewMachine(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := machine.Execute(program); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// loadProgram assembles or decodes the program at path. Either way the
// result has been validated against cfg.
func loadProgram(path string, cfg vm.Config) (*vm.Program, error) {
	if filepath.Ext(path) == ".pasm" {
		program, err := asm.AssembleFile(path)
		if err != nil {
			return nil, err
		}
		if err := program.Validate(cfg); err != nil {
			return nil, err
		}
		return program, nil
	}
	return vm.ReadProgramFile(path, cfg)
}
