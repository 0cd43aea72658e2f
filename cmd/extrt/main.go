package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/sunholo/extrt/internal/config"
	"github.com/sunholo/extrt/internal/repl"
	"github.com/sunholo/extrt/internal/runtime"
)

var (
	// Version info, set by ldflags during build.
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"

	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func main() {
	var (
		versionFlag = flag.Bool("version", false, "Print version information")
		helpFlag    = flag.Bool("help", false, "Show help")
		configPath  = flag.String("config", "", "Path to a YAML config file")
		tickFlag    = flag.Duration("tick", time.Second, "Update interval for the run loop")
	)
	flag.Parse()

	if *versionFlag {
		printVersion()
		return
	}
	if *helpFlag || flag.NArg() == 0 {
		printHelp()
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", red("error"), err)
			os.Exit(1)
		}
		cfg = loaded
	}

	switch command := flag.Arg(0); command {
	case "run":
		if flag.NArg() < 2 {
			fmt.Fprintf(os.Stderr, "%s: missing root directory argument\n", red("error"))
			fmt.Println("Usage: extrt run <root>")
			os.Exit(1)
		}
		runExtensions(cfg, flag.Arg(1), *tickFlag)

	case "shell":
		if flag.NArg() < 2 {
			fmt.Fprintf(os.Stderr, "%s: missing root directory argument\n", red("error"))
			fmt.Println("Usage: extrt shell <root>")
			os.Exit(1)
		}
		runShell(cfg, flag.Arg(1))

	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", red("error"), command)
		printHelp()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("extrt %s\n", bold(Version))
	if Commit != "unknown" {
		fmt.Printf("Commit: %s\n", Commit)
	}
	if BuildTime != "unknown" {
		fmt.Printf("Built:  %s\n", BuildTime)
	}
}

func printHelp() {
	fmt.Println(bold("extrt - extension runtime"))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  extrt <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Printf("  %s <root>     Discover, resolve, load, and run every extension under root\n", cyan("run"))
	fmt.Printf("  %s <root>   Bootstrap extensions, then open the read-only inspection shell\n", cyan("shell"))
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --config <file>   Load runtime configuration from YAML")
	fmt.Println("  --tick <duration> Update interval for the run loop (default 1s)")
	fmt.Println("  --version         Print version information")
	fmt.Println("  --help            Show this help message")
}

// runExtensions implements SPEC_FULL §C.2's wizard-style bootstrap: bring
// every discovered extension up, then drive Update on a tick until an
// interrupt signal requests an orderly Shutdown.
func runExtensions(cfg config.Config, root string, tick time.Duration) {
	rt := runtime.New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Bootstrap(ctx, root); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("error"), err)
		printReportSummary(rt)
		os.Exit(1)
	}
	printReportSummary(rt)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	last := time.Now()

	fmt.Println(green("running — press Ctrl+C to stop"))
	for {
		select {
		case <-sig:
			fmt.Println(cyan("\nshutting down"))
			rt.Shutdown()
			return
		case now := <-ticker.C:
			rt.Update(now.Sub(last))
			last = now
		}
	}
}

func runShell(cfg config.Config, root string) {
	rt := runtime.New(cfg)
	ctx := context.Background()
	if err := rt.Bootstrap(ctx, root); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", red("error"), err)
	}
	printReportSummary(rt)
	repl.New(rt).Start(os.Stdout)
	rt.Shutdown()
}

func printReportSummary(rt *runtime.Runtime) {
	rep := rt.Report()
	for _, stage := range rep.Stages {
		fmt.Printf("%-12s in=%-4d out=%-4d ok=%-4d fail=%-4d\n",
			stage.Name, stage.ItemsIn, stage.ItemsOut, stage.Succeeded, stage.Failed)
	}
}
