// Command zkwasm is a native front end to the zkwasm bindings: account
// generation, program execution and proof verification.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/zkwasm/zkwasm-go/pkg/zkwasm"
	"github.com/zkwasm/zkwasm-go/pkg/zkwasm/logging"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#87CEEB")).Width(12).Align(lipgloss.Right)
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
)

const usage = `Usage:
  zkwasm new [-seed N]
  zkwasm execute -key zkpriv1... -program FILE|ID -function NAME [-inputs a,b] [-cache]
  zkwasm verify -execution FILE [-verifying-key HEX]
  zkwasm version

Global flags (before the command):
  -config FILE   YAML configuration
  -v             debug logging to stderr (overrides log_level)
`

func main() {
	global := flag.NewFlagSet("zkwasm", flag.ExitOnError)
	configPath := global.String("config", "", "YAML configuration file")
	verbose := global.Bool("v", false, "debug logging to stderr")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := global.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	cmd, args := global.Arg(0), global.Args()[1:]
	if cmd == "version" {
		fmt.Printf("zkwasm %s (%s)\n", zkwasm.WrapperVersion(), zkwasm.EngineVersion())
		return
	}

	if err := run(cmd, args, *configPath, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		var zerr *zkwasm.Error
		if errors.As(err, &zerr) && zerr.Kind == zkwasm.KindInvalidInput {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	if verbose {
		level = "debug"
	}
	l, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if l >= logging.LevelOff {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(logging.ZapLevel(l))
	return cfg.Build()
}

func run(cmd string, args []string, configPath string, verbose bool) error {
	cfg := zkwasm.Defaults()
	if configPath != "" {
		var err error
		if cfg, err = zkwasm.LoadConfig(configPath); err != nil {
			return err
		}
	}
	zl, err := newLogger(cfg.LogLevel, verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	b, err := zkwasm.Load(cfg, zkwasm.WithLogger(logging.NewZap(zl)))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			log.Printf("close error: %v", cerr)
		}
	}()

	ctx := context.Background()
	switch cmd {
	case "new":
		return newAccount(ctx, b, args)
	case "execute":
		return execute(ctx, b, args)
	case "verify":
		return verify(ctx, b, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newAccount(ctx context.Context, b *zkwasm.Bindings, args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	seed := fs.Uint64("seed", 0, "derive the key deterministically from this seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var seedPtr *uint64
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			seedPtr = seed
		}
	})

	acct, err := b.NewAccount(ctx, seedPtr)
	if err != nil {
		return err
	}
	printFields(os.Stdout, [][2]string{
		{"Private Key", acct.PrivateKey},
		{"View Key", acct.ViewKey},
		{"Address", acct.Address},
	})
	return nil
}

func execute(ctx context.Context, b *zkwasm.Bindings, args []string) error {
	fs := flag.NewFlagSet("execute", flag.ContinueOnError)
	key := fs.String("key", os.Getenv("ZKWASM_PRIVATE_KEY"), "private key (default $ZKWASM_PRIVATE_KEY)")
	prog := fs.String("program", "", "program source file or program ID")
	function := fs.String("function", "main", "function to execute")
	inputs := fs.String("inputs", "", "comma-separated input literals")
	cache := fs.Bool("cache", false, "keep the program and its keys")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src, err := programSource(*prog)
	if err != nil {
		return err
	}
	params := zkwasm.ExecuteParams{
		PrivateKey: *key,
		Program:    src,
		Function:   *function,
		Cache:      *cache,
	}
	if *inputs != "" {
		params.Inputs = strings.Split(*inputs, ",")
	}
	res, err := b.ExecuteProgram(ctx, params)
	if err != nil {
		return err
	}

	if isTerminal(os.Stderr) {
		rows := make([][2]string, 0, len(res.Outputs)+1)
		for i, out := range res.Outputs {
			rows = append(rows, [2]string{fmt.Sprintf("Output %d", i), out})
		}
		rows = append(rows, [2]string{"Execution", res.Execution.ID})
		printFields(os.Stderr, rows)
	}
	return json.NewEncoder(os.Stdout).Encode(res)
}

func verify(ctx context.Context, b *zkwasm.Bindings, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	path := fs.String("execution", "", "JSON file holding an execution")
	vk := fs.String("verifying-key", "", "hex verifying key trusted for uncached programs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	raw, err := os.ReadFile(*path)
	if err != nil {
		return fmt.Errorf("read execution: %w", err)
	}
	var exec zkwasm.Execution
	if err := json.Unmarshal(raw, &exec); err != nil {
		return fmt.Errorf("decode execution: %w", err)
	}
	if _, err := b.VerifyProof(ctx, &exec, *vk); err != nil {
		return err
	}
	printFields(os.Stdout, [][2]string{{"Verified", exec.ID}})
	return nil
}

// programSource reads a source file, or passes a program ID through.
func programSource(arg string) (string, error) {
	if arg == "" {
		return "", errors.New("-program is required")
	}
	raw, err := os.ReadFile(arg)
	if err == nil {
		return string(raw), nil
	}
	if strings.HasSuffix(arg, ".zk") && !strings.ContainsRune(arg, os.PathSeparator) {
		return arg, nil
	}
	return "", fmt.Errorf("read program: %w", err)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func printFields(w *os.File, rows [][2]string) {
	styled := isTerminal(w)
	fmt.Fprintln(w)
	for _, row := range rows {
		label := fmt.Sprintf("%12s", row[0])
		if styled {
			label = labelStyle.Render(row[0])
		}
		fmt.Fprintf(w, " %s  %s\n", label, row[1])
	}
	fmt.Fprintln(w)
}
