package interp

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/scanner"
	"go/token"
	"path"
	"strconv"
	"strings"
)

// entryFunc replaces a cell's func main. yaegi runs a declared main on every
// later evaluation, so the cell never keeps that name.
const entryFunc = "cellMain"

// importSpec is one import a cell asks for.
type importSpec struct {
	name string // local name, "" for the package's own
	path string
}

func (im importSpec) localName() string {
	if im.name != "" {
		return im.name
	}
	return path.Base(im.path)
}

func (im importSpec) decl() string {
	if im.name != "" {
		return fmt.Sprintf("import %s %q", im.name, im.path)
	}
	return fmt.Sprintf("import %q", im.path)
}

// cell is code rewritten into the form the REPL accepts.
type cell struct {
	imports []importSpec
	body    string
	// entry is set when body declares entryFunc, which must then be called.
	entry bool
}

// parseCell rewrites whole-file answers so they run in the session:
//
//	package main            → dropped
//	import "fmt"            → evaluated on its own, skipped if already imported
//	func main() { ... }     → renamed to cellMain and called after the body
//
// Plain statement cells, the usual case, pass through untouched. Cells the
// Go parser rejects are also passed through so the interpreter reports the
// error.
func parseCell(code string) cell {
	src := code
	hasPackage := startsWithPackage(code)
	if !hasPackage {
		src = "package main\n" + code
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", src, parser.ImportsOnly)
	if err != nil {
		return cell{body: code}
	}
	if !hasPackage && len(f.Imports) == 0 {
		body, entry := renameMain(code)
		return cell{body: body, entry: entry}
	}

	c := cell{}
	for _, spec := range f.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			return cell{body: code}
		}
		im := importSpec{path: p}
		if spec.Name != nil {
			im.name = spec.Name.Name
		}
		c.imports = append(c.imports, im)
	}

	end := f.Name.End()
	if n := len(f.Decls); n > 0 {
		end = f.Decls[n-1].End()
	}
	rest := strings.TrimLeft(src[fset.Position(end).Offset:], " \t\r\n;")
	c.body, c.entry = renameMain(rest)
	return c
}

// startsWithPackage reports whether the first token of code is "package".
func startsWithPackage(code string) bool {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(code))
	var s scanner.Scanner
	s.Init(file, []byte(code), nil, 0)
	_, tok, _ := s.Scan()
	return tok == token.PACKAGE
}

// renameMain renames a top-level func main in a declarations-only body.
func renameMain(body string) (string, bool) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", "package main\n"+body, parser.ParseComments)
	if err != nil {
		return body, false
	}

	found := false
	for _, d := range f.Decls {
		fn, ok := d.(*ast.FuncDecl)
		if ok && fn.Recv == nil && fn.Name.Name == "main" {
			fn.Name.Name = entryFunc
			found = true
		}
	}
	if !found {
		return body, false
	}

	var buf bytes.Buffer
	if err := format.Node(&buf, fset, f); err != nil {
		return body, false
	}
	return buf.String(), true
}
