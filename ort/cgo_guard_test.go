package ort

import (
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// TestNoCgoImportInModule enforces the module's no-CGO contract: every
// package talks to ONNX Runtime through purego.
func TestNoCgoImportInModule(t *testing.T) {
	root, err := resolveModuleRoot()
	if err != nil {
		t.Fatal(err)
	}

	fset := token.NewFileSet()
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}

		file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			t.Errorf("failed to parse %s: %v", path, err)
			return nil
		}
		for _, imp := range file.Imports {
			if imp.Path != nil && imp.Path.Value == `"C"` {
				rel, _ := filepath.Rel(root, path)
				t.Errorf("CGO import detected in %s: import \"C\" is forbidden", rel)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to walk module: %v", err)
	}
}

func resolveModuleRoot() (string, error) {
	var candidates []string
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, wd)
	}
	if _, thisFile, _, ok := runtime.Caller(0); ok {
		candidates = append(candidates, filepath.Dir(thisFile))
	}

	for _, dir := range candidates {
		for d := dir; ; d = filepath.Dir(d) {
			if _, err := os.Stat(filepath.Join(d, "go.mod")); err == nil {
				return d, nil
			}
			if filepath.Dir(d) == d {
				break
			}
		}
	}
	return "", os.ErrNotExist
}
