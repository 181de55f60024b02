// Command fer is the driver for the Fer scripting language: a REPL, a
// file runner, and compile/disassemble subcommands.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kristofer/fer/cmd/fer/internal/replio"
	"github.com/kristofer/fer/internal/chunk"
	"github.com/kristofer/fer/internal/compiler"
	"github.com/kristofer/fer/internal/disasm"
	"github.com/kristofer/fer/internal/ferc"
	"github.com/kristofer/fer/internal/gc"
	"github.com/kristofer/fer/internal/natives"
	"github.com/kristofer/fer/internal/object"
	"github.com/kristofer/fer/internal/vm"
)

const version = "0.1.0"

// Driver exit codes.
const (
	exitOK           = 0
	exitUsage        = 64
	exitCompileError = 65
	exitRuntimeError = 70
	exitIOError      = 74
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("fer", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	trace := fs.Bool("trace", false, "print each instruction before executing it")
	stressGC := fs.Bool("stress-gc", false, "force a collection after every instruction")
	gcLog := fs.Bool("gc-log", false, "log each collection's freed bytes and new threshold")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	rest := fs.Args()

	opts := runOpts{trace: *trace, stressGC: *stressGC, gcLog: *gcLog}

	if len(rest) == 0 {
		runREPL(opts)
		return exitOK
	}

	switch rest[0] {
	case "version", "-v", "--version":
		fmt.Printf("fer version %s\n", version)
		return exitOK
	case "help", "-h", "--help":
		printUsage()
		return exitOK
	case "repl":
		runREPL(opts)
		return exitOK
	case "run":
		if len(rest) < 2 {
			fmt.Fprintln(os.Stderr, "fer run: no file specified")
			printUsage()
			return exitUsage
		}
		return runFile(rest[1], opts)
	case "compile":
		if len(rest) < 2 {
			fmt.Fprintln(os.Stderr, "fer compile: no file specified")
			fmt.Fprintln(os.Stderr, "\nUsage: fer compile <input.fer> [output.ferc]")
			return exitUsage
		}
		out := ""
		if len(rest) >= 3 {
			out = rest[2]
		}
		return compileFile(rest[1], out)
	case "disassemble", "disasm":
		if len(rest) < 2 {
			fmt.Fprintln(os.Stderr, "fer disassemble: no file specified")
			fmt.Fprintln(os.Stderr, "\nUsage: fer disassemble <file>")
			return exitUsage
		}
		return disassembleFile(rest[1])
	default:
		return runFile(rest[0], opts)
	}
}

func printUsage() {
	fmt.Println("fer - a small dynamically-typed scripting language")
	fmt.Println("\nUsage:")
	fmt.Println("  fer                          Start interactive REPL")
	fmt.Println("  fer [file]                   Run a .fer or .ferc file")
	fmt.Println("  fer run [file]               Run a .fer or .ferc file")
	fmt.Println("  fer compile <in> [out]       Compile .fer source to .ferc bytecode")
	fmt.Println("  fer disassemble <file>       Disassemble a .fer or .ferc file")
	fmt.Println("  fer repl                     Start interactive REPL")
	fmt.Println("  fer version                  Show version")
	fmt.Println("  fer help                     Show this help")
	fmt.Println("\nFlags:")
	fmt.Println("  -trace                       Print each instruction before executing it")
	fmt.Println("  -stress-gc                    Force a collection after every instruction")
	fmt.Println("  -gc-log                      Log each collection's freed bytes and threshold")
	fmt.Println("\nFile extensions:")
	fmt.Println("  .fer    Source code files (text)")
	fmt.Println("  .ferc   Compiled bytecode files (binary)")
}

type runOpts struct {
	trace    bool
	stressGC bool
	gcLog    bool
}

func newVM(opts runOpts) *vm.VM {
	v := vm.New()
	natives.Register(v)
	v.StressGC = opts.stressGC
	if opts.trace {
		v.Trace = func(c *chunk.Chunk, offset int) {
			var b strings.Builder
			disasm.Instruction(&b, c, offset)
			fmt.Fprint(os.Stdout, b.String())
		}
	}
	if opts.gcLog {
		v.SetGCLogFn(func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		})
	}
	return v
}

func resultToExitCode(result vm.InterpretResult) int {
	switch result {
	case vm.InterpretOK:
		return exitOK
	case vm.InterpretCompileError:
		return exitCompileError
	case vm.InterpretRuntimeError:
		return exitRuntimeError
	default:
		return exitOK
	}
}

// runFile runs a .fer source file or a .ferc compiled-chunk file,
// dispatching on extension.
func runFile(filename string, opts runOpts) int {
	v := newVM(opts)

	if filepath.Ext(filename) == ".ferc" {
		f, err := os.Open(filename)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading file: %v\n", err)
			return exitIOError
		}
		defer f.Close()
		fn, err := ferc.Decode(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading compiled chunk: %v\n", err)
			return exitIOError
		}
		return resultToExitCode(v.InterpretFunction(fn))
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading file: %v\n", err)
		return exitIOError
	}
	return resultToExitCode(v.Interpret(string(data)))
}

// compileFile compiles a .fer source file to a .ferc compiled-chunk file.
func compileFile(inputFile, outputFile string) int {
	if outputFile == "" {
		if filepath.Ext(inputFile) == ".fer" {
			outputFile = strings.TrimSuffix(inputFile, ".fer") + ".ferc"
		} else {
			outputFile = inputFile + ".ferc"
		}
	}

	data, err := os.ReadFile(inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading file: %v\n", err)
		return exitIOError
	}

	pool := object.NewPool()
	collector := gc.New(pool)
	fn, errs := compiler.Compile(string(data), pool, collector)
	if errs != nil {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return exitCompileError
	}

	out, err := os.Create(outputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating output file: %v\n", err)
		return exitIOError
	}
	defer out.Close()

	if err := ferc.Encode(fn, out); err != nil {
		fmt.Fprintf(os.Stderr, "error writing compiled chunk: %v\n", err)
		return exitIOError
	}

	fmt.Printf("compiled %s -> %s\n", inputFile, outputFile)
	return exitOK
}

// disassembleFile prints a human-readable listing of a .fer source file
// (compiled fresh) or a .ferc compiled-chunk file.
func disassembleFile(filename string) int {
	var fn *object.Function

	if filepath.Ext(filename) == ".ferc" {
		f, err := os.Open(filename)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading file: %v\n", err)
			return exitIOError
		}
		defer f.Close()
		decoded, err := ferc.Decode(f)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading compiled chunk: %v\n", err)
			return exitIOError
		}
		fn = decoded
	} else {
		data, err := os.ReadFile(filename)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading file: %v\n", err)
			return exitIOError
		}
		pool := object.NewPool()
		collector := gc.New(pool)
		compiled, errs := compiler.Compile(string(data), pool, collector)
		if errs != nil {
			for _, e := range errs {
				fmt.Fprintln(os.Stderr, e)
			}
			return exitCompileError
		}
		fn = compiled
	}

	fmt.Print(disasm.Function(fn, filename))
	return exitOK
}

// runREPL starts an interactive session with a persistent VM: globals and
// permanent globals declared in one input remain visible to the next.
// Input is buffered until parens/brackets/braces balance, rather than
// submitted line by line.
func runREPL(opts runOpts) {
	out := replio.NewWriter(os.Stdout)
	out.Printf("fer %s\n", version)
	out.Print("Type ':help' for help, ':quit' or ':exit' to exit\n\n")

	v := newVM(opts)
	scanner := bufio.NewScanner(os.Stdin)

	var buf strings.Builder
	depth := 0

	for {
		if buf.Len() == 0 {
			out.Print("fer> ")
		} else {
			out.Print("...> ")
		}

		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if buf.Len() == 0 {
			switch strings.TrimSpace(line) {
			case ":quit", ":exit":
				out.Print("Goodbye!\n")
				return
			case ":help":
				printREPLHelp(out)
				continue
			case "":
				continue
			}
		}

		buf.WriteString(line)
		buf.WriteString("\n")
		depth = replio.BraceBalance(line, depth)

		if depth > 0 {
			continue
		}

		input := strings.TrimSpace(buf.String())
		if input != "" {
			v.Interpret(input)
		}
		buf.Reset()
		depth = 0
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
	}
}

func printREPLHelp(out *replio.Writer) {
	out.Print("Fer REPL commands:\n")
	out.Print("  :help          Show this help\n")
	out.Print("  :quit, :exit   Exit the REPL\n")
	out.Print("\nEnter any Fer statement; input is submitted once parens,\n")
	out.Print("brackets, and braces balance.\n")
}
