// Command cssplay serves the CSSX playground and transpiles CSSX sources
// from the command line.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/livetemplate/cssplay"
	"github.com/livetemplate/cssplay/cmd/cssplay/commands"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "serve":
		err = commands.ServeCommand(args)
	case "transpile":
		err = commands.TranspileCommand(args, os.Stdin, os.Stdout, os.Stderr)
	case "init":
		err = commands.InitCommand(args)
	case "version":
		fmt.Printf("cssplay version %s\n", cssplay.Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		// The failing stage was already reported.
		if !errors.Is(err, commands.ErrStageFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("cssplay - live CSSX transpile playground")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  cssplay serve [options]            Start the playground server")
	fmt.Println("  cssplay transpile [options] [file] Transpile a CSSX source (stdin when omitted or -)")
	fmt.Println("  cssplay init [directory]           Write a starter config and source")
	fmt.Println("  cssplay version                    Show version")
	fmt.Println("  cssplay help                       Show this help")
	fmt.Println()
	fmt.Println("Serve options:")
	fmt.Println("  -c, --config <file>   Config file (default: ./cssplay.yaml)")
	fmt.Println("  -p, --port <n>        Listen port")
	fmt.Println("      --host <host>     Listen host")
	fmt.Println("  -w, --watch <file>    Use <file> as the default source and push its changes live")
	fmt.Println("      --storage <name>  none, memory, sqlite, postgres or redis")
	fmt.Println("      --debug           Verbose logging")
	fmt.Println()
	fmt.Println("Transpile options:")
	fmt.Println("  --view css|ast|js     Artifact to print (default: css)")
	fmt.Println("  --minify              Minify the generated code and CSS")
	fmt.Println("  --timeout <d>         Execution time limit (default: 2s)")
	fmt.Println("  --stats               Print artifact sizes to stderr")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  cssplay serve                        # http://localhost:8080")
	fmt.Println("  cssplay serve --watch styles.cssx    # Live-edit a file from your editor")
	fmt.Println("  cssplay transpile styles.cssx        # Print the generated CSS")
	fmt.Println("  cssplay transpile --view js - < a.cssx")
}
