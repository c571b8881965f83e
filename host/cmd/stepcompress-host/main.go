package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"stepcompress/config"
	"stepcompress/host/mcu"
	"stepcompress/host/transport"
	"stepcompress/stepcompress"
)

var (
	device     = flag.String("device", "/dev/ttyACM0", "Serial device path")
	configPath = flag.String("config", "", "Path to a machine description JSON file")
)

func main() {
	flag.Parse()

	fmt.Println("stepcompress-host - step compression and synchronization demo")
	fmt.Println("==============================================================")
	fmt.Println()

	cfg, err := loadMachineConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.SerialDevice != "" {
		*device = cfg.SerialDevice
	}

	mcuConn := mcu.NewMCU()
	fmt.Printf("Connecting to MCU on %s...\n", *device)
	if err := mcuConn.Connect(*device); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer mcuConn.Close()

	if err := mcuConn.RetrieveDictionary(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to retrieve dictionary: %v\n", err)
		os.Exit(1)
	}
	mcuConn.PrintDictionary()

	steppers, sync, err := buildSynchronizer(mcuConn, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to build steppers: %v\n", err)
		os.Exit(1)
	}
	sync.SetTime(0, cfg.MCUFreq)

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd := strings.Fields(line)[0]

		switch cmd {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "dict":
			mcuConn.PrintDictionary()

		case "simulate":
			if len(steppers) == 0 {
				fmt.Println("No steppers configured")
				continue
			}
			runSimulation(steppers[0], sync)

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println()
	fmt.Println("Available commands:")
	fmt.Println("  help           - Show this help message")
	fmt.Println("  dict           - Print MCU dictionary summary")
	fmt.Println("  simulate       - Run a synthetic uniform-cadence move on the first stepper")
	fmt.Println("  quit/exit/q    - Exit the program")
	fmt.Println()
}

func loadMachineConfig(path string) (*config.MachineConfig, error) {
	if path == "" {
		return &config.MachineConfig{
			Steppers: []config.StepperConfig{{OID: 0}},
		}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return config.LoadConfig(data)
}

func buildSynchronizer(mcuConn *mcu.MCU, cfg *config.MachineConfig) ([]*stepcompress.StepCompress, *stepcompress.SteppersSync, error) {
	steppers := make([]*stepcompress.StepCompress, 0, len(cfg.Steppers))
	for _, sCfg := range cfg.Steppers {
		sc := stepcompress.NewStepCompress(sCfg.OID)
		if err := mcuConn.FillStepper(sc, sCfg.MaxError, sCfg.QueueStepCmd, sCfg.SetNextStepDirCmd); err != nil {
			return nil, nil, fmt.Errorf("stepper oid=%d: %w", sCfg.OID, err)
		}
		sc.SetInvertSDir(sCfg.InvertSDir)
		steppers = append(steppers, sc)
	}

	adapter := transport.New(mcuConn.Transport())
	sync := stepcompress.NewSteppersSync(adapter, steppers, cfg.MoveQueueDepth)
	return steppers, sync, nil
}

func runSimulation(sc *stepcompress.StepCompress, sync *stepcompress.SteppersSync) {
	// 50 steps, 100us apart, in the positive direction.
	for k := 0; k < 50; k++ {
		if err := sc.Append(true, 0, float64(k)*1e-4); err != nil {
			fmt.Fprintf(os.Stderr, "append error: %v\n", err)
			return
		}
	}
	if err := sc.Commit(); err != nil {
		fmt.Fprintf(os.Stderr, "commit error: %v\n", err)
		return
	}
	if err := sync.Flush(^uint64(0)); err != nil {
		fmt.Fprintf(os.Stderr, "flush error: %v\n", err)
		return
	}
	fmt.Println("Simulation flushed successfully")
}
