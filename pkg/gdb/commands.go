package gdb

import (
	"fmt"
	"strings"
)

// Literal commands issued by the engine.
const (
	ExecRun         = "-exec-run"
	ExecStep        = "-exec-step"
	ExecNext        = "-exec-next"
	StackListFrames = "-stack-list-frames"
	GdbExit         = "-gdb-exit"
)

// ValueMode selects how much of each variable -stack-list-variables reports.
type ValueMode string

const (
	// AllValues reports the value of every variable.
	AllValues ValueMode = "--all-values"
	// SimpleValues reports types, and values only for non-aggregates.
	SimpleValues ValueMode = "--simple-values"
)

// FileExecAndSymbols loads an executable and its symbols.
func FileExecAndSymbols(object string) string {
	return "-file-exec-and-symbols " + object
}

// EnvironmentCd sets the debugger working directory.
func EnvironmentCd(dir string) string {
	return "-environment-cd " + quote(dir)
}

// ExecArguments sets the inferior's command line.
func ExecArguments(args ...string) string {
	return strings.TrimSpace("-exec-arguments " + strings.Join(args, " "))
}

// RedirectStdout is the inferior argument that redirects its standard output to file.
func RedirectStdout(file string) string {
	return ">" + file
}

// SkipFile tells gdb never to step into functions from files matching pattern.
func SkipFile(pattern string) string {
	return "skip -gfi " + pattern
}

// SkipFunctionRegex tells gdb never to step into functions matching regex.
func SkipFunctionRegex(regex string) string {
	return "skip -rfu " + regex
}

// BreakInsert sets a breakpoint at location.
func BreakInsert(location string) string {
	return "-break-insert " + location
}

// StackListVariables lists the locals and arguments of one frame.
func StackListVariables(thread, level int, mode ValueMode) string {
	return fmt.Sprintf("-stack-list-variables --thread %d --frame %d %s", thread, level, mode)
}

// EvaluateExpression evaluates expr in the context of one frame.
func EvaluateExpression(thread, level int, expr string) string {
	return fmt.Sprintf("-data-evaluate-expression --thread %d --frame %d %s", thread, level, expr)
}

// AddressOf evaluates the address of the named variable.
func AddressOf(thread, level int, name string) string {
	return EvaluateExpression(thread, level, "&"+name)
}

// SizeOf evaluates the size in bytes of the named variable.
func SizeOf(thread, level int, name string) string {
	return EvaluateExpression(thread, level, "sizeof("+name+")")
}

func quote(s string) string {
	if !strings.ContainsAny(s, " \t\"\\") {
		return s
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
