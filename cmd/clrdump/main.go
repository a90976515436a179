// clrdump is a CLI tool for extracting information from .NET assemblies.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/opcode9/clrmeta/pkg/clrmeta"
)

func main() {
	showInfo := flag.Bool("info", false, "Show assembly information")
	showModules := flag.Bool("modules", false, "List all modules")
	showTypes := flag.Bool("types", false, "List all types")
	showMethods := flag.Bool("methods", false, "List all methods")
	showRefs := flag.Bool("refs", false, "List all assembly references")
	showAll := flag.Bool("all", false, "Show all information")
	prettyPrint := flag.Bool("pretty", false, "Pretty-print JSON output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <assembly-file>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -info HelloWorld.dll\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -types -pretty HelloWorld.dll\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -all HelloWorld.dll\n", os.Args[0])
	}

	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	path := flag.Arg(0)

	asm, err := clrmeta.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening assembly: %v\n", err)
		os.Exit(1)
	}

	outputJSON := func(v interface{}) {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetEscapeHTML(false)
		if *prettyPrint {
			encoder.SetIndent("", "  ")
		}
		if err := encoder.Encode(v); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
			os.Exit(1)
		}
	}

	if !*showInfo && !*showModules && !*showTypes && !*showMethods && !*showRefs && !*showAll {
		*showInfo = true
	}

	result := make(map[string]interface{})

	if *showInfo || *showAll {
		result["info"] = asm.Info()
	}
	if *showModules || *showAll {
		result["modules"] = asm.Modules()
	}
	if *showTypes || *showAll {
		result["types"] = asm.Types()
	}
	if *showMethods || *showAll {
		result["methods"] = asm.Methods()
	}
	if *showRefs || *showAll {
		result["assembly_references"] = asm.AssemblyReferences()
	}

	outputJSON(result)
}
