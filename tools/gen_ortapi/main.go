// Command gen_ortapi prints the OrtApi function table declared in
// onnxruntime_c_api.h as a Go struct, truncated after the last entry the ort
// package calls.
//
// Parsing is line-based and regex-driven. It matches the layout of the ONNX
// Runtime 1.2x headers.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// keyPositions are 1-based table slots the ort package depends on.
var keyPositions = map[string]int{
	"CreateEnv":                      4,
	"EnableTelemetryEvents":          6,
	"CreateSessionFromArray":         9,
	"CreateTensorWithDataAsOrtValue": 50,
	"CreateMemoryInfo":               69,
	"ReleaseEnv":                     93,
	"AddSessionConfigEntry":          131,
}

var (
	ortAPIStart      = regexp.MustCompile(`^struct OrtApi \{`)
	api2Status       = regexp.MustCompile(`ORT_API2_STATUS\((\w+),`)
	funcPtr          = regexp.MustCompile(`^\s+(OrtStatus|OrtErrorCode|const char|void)\s*\(\s*ORT_API_CALL\s*\*\s*(\w+)\)`)
	funcPtrPtrReturn = regexp.MustCompile(`^\s+(OrtStatus|OrtErrorCode|const char)\s*\*\s*\(\s*ORT_API_CALL\s*\*\s*(\w+)\)`)
	classRelease     = regexp.MustCompile(`ORT_CLASS_RELEASE\((\w+)\)`)
	structEnd        = regexp.MustCompile(`^\s*\};`)
)

type entry struct {
	Name string
	Line int
}

type table struct {
	StartLine int
	Entries   []entry
}

func main() {
	until := pflag.String("until", "AddSessionConfigEntry", "Last entry to emit (empty emits the full table)")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [--until NAME] <path-to-onnxruntime_c_api.h>\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()
	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(1)
	}

	headerPath := pflag.Arg(0)
	file, err := os.Open(headerPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open header: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	tbl, err := parseHeader(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse header: %v\n", err)
		os.Exit(1)
	}
	if err := tbl.check(keyPositions); err != nil {
		fmt.Fprintf(os.Stderr, "%v; the parser may be broken\n", err)
		os.Exit(1)
	}
	if *until != "" {
		if tbl, err = tbl.truncate(*until); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	writeStruct(os.Stdout, tbl, headerPath, time.Now())
}

func parseHeader(r io.Reader) (table, error) {
	var tbl table
	scanner := bufio.NewScanner(r)
	inStruct := false
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if !inStruct {
			if ortAPIStart.MatchString(line) {
				inStruct = true
				tbl.StartLine = lineNum
			}
			continue
		}
		if structEnd.MatchString(line) {
			break
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*") {
			continue
		}
		if name := entryName(line); name != "" {
			tbl.Entries = append(tbl.Entries, entry{Name: name, Line: lineNum})
		}
	}
	if err := scanner.Err(); err != nil {
		return table{}, err
	}
	if !inStruct {
		return table{}, fmt.Errorf("no struct OrtApi found")
	}

	seen := make(map[string]bool, len(tbl.Entries))
	for _, e := range tbl.Entries {
		if seen[e.Name] {
			return table{}, fmt.Errorf("duplicate entry %s at line %d", e.Name, e.Line)
		}
		seen[e.Name] = true
	}
	return tbl, nil
}

func entryName(line string) string {
	if m := api2Status.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	if m := funcPtr.FindStringSubmatch(line); m != nil {
		return m[2]
	}
	if m := funcPtrPtrReturn.FindStringSubmatch(line); m != nil {
		return m[2]
	}
	if m := classRelease.FindStringSubmatch(line); m != nil {
		return "Release" + m[1]
	}
	return ""
}

func (t table) position(name string) int {
	for i, e := range t.Entries {
		if e.Name == name {
			return i + 1
		}
	}
	return 0
}

// check verifies that every name in want sits at its expected slot.
func (t table) check(want map[string]int) error {
	for name, pos := range want {
		got := t.position(name)
		if got == 0 {
			return fmt.Errorf("entry %s not found", name)
		}
		if got != pos {
			return fmt.Errorf("entry %s at position %d, want %d", name, got, pos)
		}
	}
	return nil
}

func (t table) truncate(last string) (table, error) {
	pos := t.position(last)
	if pos == 0 {
		return table{}, fmt.Errorf("entry %s not found", last)
	}
	t.Entries = t.Entries[:pos]
	return t, nil
}

func writeStruct(w io.Writer, t table, headerPath string, now time.Time) {
	fmt.Fprintln(w, "package ort")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "// Generated by tools/gen_ortapi from %s on %s.\n", headerPath, now.Format(time.RFC3339))
	fmt.Fprintf(w, "// struct OrtApi starts at line %d; %d entries emitted.\n", t.StartLine, len(t.Entries))
	fmt.Fprintln(w, "type OrtApi struct {")
	for i, e := range t.Entries {
		fmt.Fprintf(w, "\t%-50s uintptr // Function %d\n", e.Name, i+1)
	}
	fmt.Fprintln(w, "}")
}
