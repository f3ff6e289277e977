// Command rbinspect decodes handles and drives extension manifests against
// the simulated runtime or a real libruby.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/rubyext"
	"github.com/wippyai/rubyext/sim"
)

func main() {
	var (
		manifestFile = flag.String("manifest", "", "Extension manifest (YAML) to apply")
		lib          = flag.String("lib", "", "Path to libruby (empty uses the simulated runtime)")
		wasmHeap     = flag.Bool("wasm-heap", false, "Lay the simulated heap out in wasm linear memory")
		decode       = flag.String("decode", "", "Handles to decode (comma-separated, 0x hex or decimal)")
		call         = flag.String("call", "", "Method to call: Path.name on the namespace, Path#name on a new instance")
		args         = flag.String("args", "", "Call arguments (comma-separated: nil,true,false,:sym,integers,0x handles)")
		list         = flag.Bool("list", false, "List defined namespaces and methods and exit")
		verbose      = flag.Bool("v", false, "Verbose logging")
		interactive  = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *manifestFile == "" && *decode == "" {
		fmt.Fprintln(os.Stderr, "Usage: rbinspect -decode 0x8,0x15,... [-lib libruby.so]")
		fmt.Fprintln(os.Stderr, "       rbinspect -manifest ext.yaml -list")
		fmt.Fprintln(os.Stderr, "       rbinspect -manifest ext.yaml -call Hello.hello [-args 1,:sym]")
		fmt.Fprintln(os.Stderr, "       rbinspect -manifest ext.yaml -i  (interactive mode)")
		os.Exit(1)
	}

	log := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		log = l
	}
	defer func() { _ = log.Sync() }()
	rubyext.SetLogger(log)
	sim.SetLogger(log)

	s, err := openSession(*lib, *wasmHeap, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = s.close() }()

	if *interactive {
		if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(s, *manifestFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(s, *manifestFile, *decode, *call, *args, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(s *session, manifestFile, decodeList, target, argList string, listOnly bool) error {
	fmt.Printf("Runtime: %s\n", s.source)

	if decodeList != "" {
		fmt.Printf("\nHandles:\n")
		for _, raw := range strings.Split(decodeList, ",") {
			h, err := parseHandle(raw)
			if err != nil {
				return err
			}
			fmt.Printf("  %s\n", s.describe(h))
		}
	}

	if manifestFile == "" {
		return nil
	}
	if err := s.apply(manifestFile); err != nil {
		return fmt.Errorf("apply %s: %w", manifestFile, err)
	}

	fmt.Printf("\nNamespaces:\n")
	for _, p := range s.res.Paths() {
		ns, _ := s.res.Namespace(p)
		fmt.Printf("  %s (%s)\n", p, ns.Type())
	}
	fmt.Printf("\nMethods:\n")
	for _, m := range s.methods() {
		fmt.Printf("  %s/%d\n", m.target, m.arity)
	}

	if listOnly || target == "" {
		return nil
	}

	args, err := s.parseArgs(argList)
	if err != nil {
		return err
	}
	fmt.Printf("\nCalling %s(%s)...\n", target, argList)
	result, err := s.call(target, args)
	if err != nil {
		return fmt.Errorf("call %s: %w", target, err)
	}
	fmt.Printf("Result: %s\n", s.describe(result))
	return nil
}
