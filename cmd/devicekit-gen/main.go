// Command devicekit-gen generates Go name-constant bindings from a
// capability model so device code can reference interfaces and members
// without string literals.
//
// Usage:
//
//	devicekit-gen -model <path> [-package <name>] [-output <path>]
//
// With no -output the generated source is written to stdout.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/tools/imports"

	"github.com/latticeiot/devicekit-go/pkg/capability"
)

func main() {
	modelPath := flag.String("model", "", "Path to the capability model (JSON or YAML)")
	pkgName := flag.String("package", "bindings", "Package name for the generated file")
	output := flag.String("output", "", "Output file path (stdout if empty)")
	flag.Parse()

	if *modelPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: devicekit-gen -model <path> [-package <name>] [-output <path>]")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(*modelPath, *pkgName, *output); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(modelPath, pkgName, output string) error {
	model, err := capability.NewParser().ParseFile(modelPath)
	if err != nil {
		return fmt.Errorf("loading model: %w", err)
	}

	code, err := GenerateBindings(model, pkgName)
	if err != nil {
		return fmt.Errorf("generating bindings: %w", err)
	}

	if output == "" {
		formatted, err := imports.Process("bindings.go", []byte(code), nil)
		if err != nil {
			return fmt.Errorf("goimports: %w", err)
		}
		_, err = os.Stdout.Write(formatted)
		return err
	}

	return writeFormatted(output, code)
}

// writeFormatted formats Go source code with goimports and writes it to a
// file.
func writeFormatted(path string, code string) error {
	formatted, err := imports.Process(path, []byte(code), nil)
	if err != nil {
		// Write unformatted so you can debug the generator output
		_ = os.WriteFile(path+".broken", []byte(code), 0o644)
		return fmt.Errorf("goimports %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, formatted, 0o644)
}
