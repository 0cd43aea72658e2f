// Package repl implements the interactive inspection shell (SPEC_FULL
// §C.4): a read-only prompt over an already-bootstrapped runtime.Runtime,
// built the same way the teacher's internal/repl wraps peterh/liner for
// history/completion and github.com/fatih/color for status output.
package repl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/peterh/liner"

	"github.com/sunholo/extrt/internal/extension"
	"github.com/sunholo/extrt/internal/runtime"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
)

var commands = []string{":status", ":graph", ":report", ":extension", ":help", ":quit"}

// Shell is the read-only inspection prompt over a bootstrapped Runtime.
type Shell struct {
	rt      *runtime.Runtime
	history []string
}

// New wraps an already-bootstrapped runtime for interactive inspection.
func New(rt *runtime.Runtime) *Shell {
	return &Shell{rt: rt}
}

// Start runs the read-eval-print loop until :quit or EOF.
func (s *Shell) Start(out io.Writer) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetMultiLineMode(false)

	historyFile := filepath.Join(os.TempDir(), ".extrt_shell_history")
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	line.SetCompleter(func(input string) (c []string) {
		if strings.HasPrefix(input, ":") {
			for _, cmd := range commands {
				if strings.HasPrefix(cmd, input) {
					c = append(c, cmd)
				}
			}
		}
		return
	})

	fmt.Fprintf(out, "%s\n", bold("extrt shell"))
	fmt.Fprintln(out, dim("Type :help for commands, :quit to exit"))
	fmt.Fprintln(out)

	for {
		input, err := line.Prompt("extrt> ")
		if err == io.EOF {
			fmt.Fprintln(out, green("\nGoodbye!"))
			return
		}
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", red("error"), err)
			continue
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		s.history = append(s.history, input)

		if input == ":quit" || input == ":q" || input == ":exit" {
			fmt.Fprintln(out, green("Goodbye!"))
			return
		}
		s.dispatch(input, out)
	}
}

func (s *Shell) dispatch(input string, out io.Writer) {
	fields := strings.Fields(input)
	switch fields[0] {
	case ":help":
		s.help(out)
	case ":status":
		s.status(out)
	case ":graph":
		s.graph(out)
	case ":report":
		s.report(out)
	case ":extension":
		if len(fields) < 2 {
			fmt.Fprintln(out, red("usage: :extension <name>"))
			return
		}
		s.extension(fields[1], out)
	default:
		fmt.Fprintf(out, "%s: unknown command %q (try :help)\n", yellow("warn"), fields[0])
	}
}

func (s *Shell) help(out io.Writer) {
	fmt.Fprintln(out, cyan(":status")+"           summary counts per lifecycle state")
	fmt.Fprintln(out, cyan(":graph")+"            dependency graph, one line per extension")
	fmt.Fprintln(out, cyan(":report")+"           last pipeline run's per-stage statistics")
	fmt.Fprintln(out, cyan(":extension <name>")+" detail view for one extension")
	fmt.Fprintln(out, cyan(":quit")+"             exit the shell")
}

func (s *Shell) status(out io.Writer) {
	counts := map[extension.State]int{}
	for _, e := range s.rt.Extensions() {
		counts[e.State()]++
	}
	var states []extension.State
	for st := range counts {
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	for _, st := range states {
		label := st.String()
		if st.IsTerminalError() {
			label = red(label)
		} else if st == extension.Running {
			label = green(label)
		}
		fmt.Fprintf(out, "%-16s %d\n", label, counts[st])
	}
}

func (s *Shell) graph(out io.Writer) {
	for _, e := range s.rt.Extensions() {
		if e.Manifest == nil {
			fmt.Fprintf(out, "%s (%s)\n", e.ID, dim("unparsed"))
			continue
		}
		fmt.Fprintf(out, "%s [%s]\n", bold(e.Manifest.Name), e.State())
		for _, dep := range e.Manifest.Dependencies {
			optional := ""
			if dep.Optional {
				optional = dim(" (optional)")
			}
			fmt.Fprintf(out, "  -> %s%s\n", dep.Name, optional)
		}
	}
}

func (s *Shell) report(out io.Writer) {
	rep := s.rt.Report()
	for _, stage := range rep.Stages {
		fmt.Fprintf(out, "%-12s in=%-4d out=%-4d ok=%-4d fail=%-4d elapsed=%s\n",
			stage.Name, stage.ItemsIn, stage.ItemsOut, stage.Succeeded, stage.Failed, stage.Elapsed)
		for _, itemErr := range stage.Errors {
			fmt.Fprintf(out, "  %s %s: %s\n", red("x"), itemErr.ItemName, itemErr.Message)
		}
	}
	if rep.Stopped {
		fmt.Fprintf(out, "%s halted at %q\n", yellow("pipeline"), rep.StoppedAt)
	}
}

func (s *Shell) extension(name string, out io.Writer) {
	ext, ok := s.rt.ByName(name)
	if !ok {
		fmt.Fprintf(out, "%s: no extension named %q\n", red("error"), name)
		return
	}
	fmt.Fprintf(out, "%s\n", bold(name))
	fmt.Fprintf(out, "  id:       %s\n", ext.ID)
	fmt.Fprintf(out, "  type:     %s\n", ext.Type)
	fmt.Fprintf(out, "  state:    %s\n", ext.State())
	fmt.Fprintf(out, "  location: %s\n", ext.Location)
	if ext.Manifest != nil {
		fmt.Fprintf(out, "  version:  %s\n", ext.Manifest.Version)
		fmt.Fprintf(out, "  language: %s\n", ext.Manifest.Language)
	}
	for _, errMsg := range ext.Errors {
		fmt.Fprintf(out, "  %s %s\n", red("error:"), errMsg)
	}
	for _, warn := range ext.Warnings {
		fmt.Fprintf(out, "  %s %s\n", yellow("warn:"), warn)
	}
	fmt.Fprintf(out, "  total time: %s\n", ext.TotalDuration())
}
