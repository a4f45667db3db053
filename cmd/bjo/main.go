// Command bjo runs the jump and unreachable-code optimizer over a textual
// module listing: optimize applies the full four-pass pipeline, clean runs
// only label cleanup, and verify runs optimize followed by clean and checks
// that the round trip leaves the result untouched.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmjump/bjo/pkg/ir"
	"github.com/vmjump/bjo/pkg/mir"
	"github.com/vmjump/bjo/pkg/oracle"
	"github.com/vmjump/bjo/pkg/optimizer"
	"github.com/vmjump/bjo/pkg/version"
)

var (
	outputFile   string
	debug        bool
	trace        bool
	parallel     bool
	oracleScript string
	showVersion  bool
	versionFull  bool
)

var rootCmd = &cobra.Command{
	Use:   "bjo [command] module.mir",
	Short: "Jump and unreachable-code optimizer " + version.GetVersion(),
	Long: `bjo - a jump and unreachable-code optimizer for a small bytecode IR

COMMANDS:
  optimize   run the full pass pipeline (share, sink, peephole+prune, cleanup)
  clean      run label cleanup only, no rewriting
  verify     optimize, label-clean, and check the round trip is a no-op
  version    print build version information (--full for the pass pipeline)

Input and output are the textual module listing produced by mir.Print.`,
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersion())
			return
		}
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug tracing to stderr")
	rootCmd.PersistentFlags().BoolVar(&trace, "trace", false, "with --debug, also print the full instruction list after each pass")
	rootCmd.PersistentFlags().BoolVar(&parallel, "parallel", false, "optimize the module's functions concurrently")
	rootCmd.PersistentFlags().StringVar(&oracleScript, "oracle-script", "", "Lua script defining always_raises(module, function, arity); default is a built-in oracle for erlang:error/exit/throw")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version")

	versionCmd.Flags().BoolVar(&versionFull, "full", false, "include the build number, commit, date, and pass pipeline")
	rootCmd.AddCommand(optimizeCmd, cleanCmd, verifyCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize module.mir",
	Short: "run the full four-pass pipeline over a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args[0], optimizer.OptimizeModule)
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean module.mir",
	Short: "run label cleanup only",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(args[0], optimizer.LabelCleanModule)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify module.mir",
	Short: "optimize, label-clean, and report any round-trip or label invariant violation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return verify(args[0])
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print build version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if versionFull {
			fmt.Println(version.GetFullVersion())
			return
		}
		fmt.Println(version.GetBuildInfo())
	},
}

func buildOracle() (ir.Oracle, func(), error) {
	if oracleScript == "" {
		return oracle.NewStaticOracle(), func() {}, nil
	}
	script, err := os.ReadFile(oracleScript)
	if err != nil {
		return nil, nil, fmt.Errorf("reading oracle script: %w", err)
	}
	lo, err := oracle.NewLuaOracle(string(script))
	if err != nil {
		return nil, nil, err
	}
	return lo, lo.Close, nil
}

func run(path string, step func(*ir.Module, optimizer.Options) (*ir.Module, error)) error {
	m, err := mir.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	o, closeOracle, err := buildOracle()
	if err != nil {
		return err
	}
	defer closeOracle()

	opts := optimizer.Options{Debug: debug, Trace: trace, Parallel: parallel, Oracle: o}
	if debug {
		fmt.Fprintf(os.Stderr, "bjo: %s, %d function(s)\n", path, len(m.Functions))
	}

	out, err := step(m, opts)
	if err != nil {
		return err
	}

	w := os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outputFile, err)
		}
		defer f.Close()
		return mir.Print(f, out)
	}
	return mir.Print(w, out)
}

// verify optimizes a module, then runs LabelClean over the result, and
// checks the round-trip invariant the pipeline promises: LabelClean after
// Optimize must not change a single instruction, and both the caller label
// and the function-class label must still resolve to a defined label in
// the optimized body. It does not run the reference interpreter, since that
// requires an Environment supplying test and select answers that a module
// file alone doesn't carry.
func verify(path string) error {
	m, err := mir.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	o, closeOracle, err := buildOracle()
	if err != nil {
		return err
	}
	defer closeOracle()

	opts := optimizer.Options{Debug: debug, Trace: trace, Parallel: parallel, Oracle: o}
	optimized, err := optimizer.OptimizeModule(m, opts)
	if err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	cleaned, err := optimizer.LabelCleanModule(optimized, opts)
	if err != nil {
		return fmt.Errorf("label-clean: %w", err)
	}

	bad := 0
	for i, fn := range optimized.Functions {
		defined := make(map[int]bool, len(fn.Body))
		for _, inst := range fn.Body {
			if inst.Op == ir.OpLabel {
				defined[inst.Def] = true
			}
		}
		if !defined[fn.CallerLabel] {
			fmt.Fprintf(os.Stderr, "%s/%d: caller label L%d is no longer defined\n", fn.Name, fn.Arity, fn.CallerLabel)
			bad++
		}
		if !defined[fn.FuncClassLabel()] {
			fmt.Fprintf(os.Stderr, "%s/%d: function-class label L%d is no longer defined\n", fn.Name, fn.Arity, fn.FuncClassLabel())
			bad++
		}
		if !ir.SequenceEqual(fn.Body, cleaned.Functions[i].Body) {
			fmt.Fprintf(os.Stderr, "%s/%d: label-clean changed an already-optimized body\n", fn.Name, fn.Arity)
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d check(s) failed verification", bad)
	}
	fmt.Fprintf(os.Stdout, "%s: %d function(s) verified\n", path, len(optimized.Functions))
	return nil
}
