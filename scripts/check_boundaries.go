package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "tribunal"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule lists the service-relative packages a layer may import besides
// the standard library.
type layerRule struct {
	allowed []string
}

var layerRules = map[string]layerRule{
	"domain":      {allowed: []string{"/domain"}},
	"ports":       {allowed: []string{"/domain", "/ports"}},
	"application": {allowed: []string{"/application", "/domain", "/ports"}},
}

func main() {
	violations := collectViolations("contexts")
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File == violations[j].File {
			if violations[i].Line == violations[j].Line {
				return violations[i].Import < violations[j].Import
			}
			return violations[i].Line < violations[j].Line
		}
		return violations[i].File < violations[j].File
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		normalized := filepath.ToSlash(path)
		parts := strings.Split(normalized, "/")
		if len(parts) < 4 || parts[0] != "contexts" {
			return nil
		}
		servicePrefix := fmt.Sprintf("%s/contexts/%s/%s", modulePath, parts[1], parts[2])

		imports, err := parseImports(path)
		if err != nil {
			violations = append(violations, violation{File: normalized, Line: 1, Rule: "file must parse"})
			return nil
		}
		for _, imp := range imports {
			violations = append(violations, checkImport(normalized, parts[3], servicePrefix, imp.path, imp.line)...)
		}
		return nil
	})

	return violations
}

type importRef struct {
	path string
	line int
}

func parseImports(path string) ([]importRef, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return nil, err
	}
	refs := make([]importRef, 0, len(file.Imports))
	for _, imp := range file.Imports {
		refs = append(refs, importRef{
			path: strings.Trim(imp.Path.Value, "\""),
			line: fset.Position(imp.Pos()).Line,
		})
	}
	return refs, nil
}

func checkImport(file string, layer string, servicePrefix string, importPath string, line int) []violation {
	var violations []violation
	add := func(rule string) {
		violations = append(violations, violation{File: file, Line: line, Import: importPath, Rule: rule})
	}

	if hasPrefix(importPath, modulePath+"/contexts") && !hasPrefix(importPath, servicePrefix) {
		add("cross-module imports are forbidden")
	}

	rule, ok := layerRules[layer]
	if !ok {
		return violations
	}
	if strings.Contains(importPath, "/adapters/") {
		add(layer + " must not import adapters")
	}
	if hasPrefix(importPath, modulePath+"/internal") {
		add(layer + " must not import runtime infrastructure")
	}
	if isStdlib(importPath) {
		return violations
	}
	for _, suffix := range rule.allowed {
		if hasPrefix(importPath, servicePrefix+suffix) {
			return violations
		}
	}
	add(layer + " import is outside explicit allowlist")
	return violations
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first := importPath
	if idx := strings.Index(first, "/"); idx != -1 {
		first = first[:idx]
	}
	return !strings.Contains(first, ".")
}
