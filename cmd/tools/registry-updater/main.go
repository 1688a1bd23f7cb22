// cmd/tools/registry-updater/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bus-finder/internal/common/logger"
	lrc "bus-finder/internal/workers/catalog/load-route-catalog"
	"bus-finder/pkg/registry"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{addCmd, updateCmd, validateCmd} {
		fs.StringVar(&registryPath, "path", "configs/states.yaml", "Path to state manifest")
	}

	// Add command flags
	stateAdd := addCmd.String("state", "", "State name (e.g., Kerala)")
	fileAdd := addCmd.String("file", "", "Route CSV file name (e.g., df_k3.csv)")

	// Update command flags
	stateUpdate := updateCmd.String("state", "", "State to update")
	fileUpdate := updateCmd.String("file", "", "New route CSV file name")

	// Validate command flags
	dataDir := validateCmd.String("data", "", "Also load every route file from this directory")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *stateAdd == "" || *fileAdd == "" {
			fmt.Println("Error: state and file are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		if err := addState(*stateAdd, *fileAdd); err != nil {
			fmt.Printf("Error adding state: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added state: %s\n", *stateAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *stateUpdate == "" || *fileUpdate == "" {
			fmt.Println("Error: state and file are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		if err := updateState(*stateUpdate, *fileUpdate); err != nil {
			fmt.Printf("Error updating state: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated state %s to file %s\n", *stateUpdate, *fileUpdate)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := validateManifest(*dataDir); err != nil {
			fmt.Printf("Manifest validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Manifest validation passed.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func addState(state, file string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		// A missing manifest starts from the built-in table
		if os.IsNotExist(err) {
			reg = registry.Default()
		} else {
			return fmt.Errorf("failed to load manifest: %w", err)
		}
	}

	if reg.Find(state) >= 0 {
		return fmt.Errorf("state %s already exists", state)
	}

	reg.States = append(reg.States, registry.StateFile{State: state, File: file})
	return reg.Save(registryPath)
}

func updateState(state, file string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	i := reg.Find(state)
	if i < 0 {
		return fmt.Errorf("state %s not found", state)
	}
	reg.States[i].File = file
	return reg.Save(registryPath)
}

func validateManifest(dataDir string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}
	fmt.Printf("Manifest lists %d states.\n", len(reg.States))

	if dataDir == "" {
		return nil
	}

	loader := lrc.NewLoader(&lrc.Config{DataDir: dataDir}, reg, nil, logger.NewStructured("warn", "console", "stdout"))
	cat, err := loader.Load(context.Background())
	if err != nil {
		return err
	}

	for _, state := range cat.States() {
		routes, _ := cat.Routes(state)
		fmt.Printf("  %-16s %d routes\n", state, len(routes))
	}
	if failures := cat.Failures(); len(failures) > 0 {
		return fmt.Errorf("%d state files could not be loaded", len(failures))
	}
	return nil
}

func help() {
	fmt.Print(`
Usage: registry-updater <command> [flags]

Commands:
  add      Add a state and its route file to the manifest
  update   Point an existing state at a different route file
  validate Validate the manifest, optionally loading every route file
  help     Show this help message

Examples:
  registry-updater add -state Goa -file df_g11.csv
  registry-updater update -state Kerala -file df_k3_2024.csv
  registry-updater validate -path configs/states.yaml -data data

Use 'registry-updater <command> -h' for more information about a command.
` + "\n")
}
