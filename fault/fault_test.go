// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault_test

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bitmark-inc/offlined/fault"
)

var (
	ErrExistsOne     = fault.ExistsError("exists one ")
	ErrInvalidOne    = fault.InvalidError("invalid one")
	ErrNotFoundOne   = fault.NotFoundError("not found one")
	ErrProcessOne    = fault.ProcessError("process one")
	ErrTransportOne  = fault.TransportError("transport one")
	ErrSettlementOne = fault.SettlementError("settlement one")
)

// test that the various errors can be classified
func TestClasses(t *testing.T) {
	errorList := []struct {
		err        error
		exists     bool
		invalid    bool
		notFound   bool
		process    bool
		transport  bool
		settlement bool
		retryable  bool
	}{
		{ErrExistsOne, true, false, false, false, false, false, false},
		{ErrInvalidOne, false, true, false, false, false, false, false},
		{ErrNotFoundOne, false, false, true, false, false, false, false},
		{ErrProcessOne, false, false, false, true, false, false, false},
		{ErrTransportOne, false, false, false, false, true, false, true},
		{ErrSettlementOne, false, false, false, false, false, true, true},
		{fmt.Errorf("wrapped: %w", ErrTransportOne), false, false, false, false, true, false, true},
		{fmt.Errorf("wrapped: %w", fault.ErrDoubleSpendDetected), false, true, false, false, false, false, false},
	}

	for i, e := range errorList {
		err := e.err
		if fault.IsErrExists(err) != e.exists {
			t.Errorf("%d: expected 'exists' == %v for err = %v", i, e.exists, err)
		}
		if fault.IsErrInvalid(err) != e.invalid {
			t.Errorf("%d: expected 'invalid' == %v for err = %v", i, e.invalid, err)
		}
		if fault.IsErrNotFound(err) != e.notFound {
			t.Errorf("%d: expected 'not found' == %v for err = %v", i, e.notFound, err)
		}
		if fault.IsErrProcess(err) != e.process {
			t.Errorf("%d: expected 'process' == %v for err = %v", i, e.process, err)
		}
		if fault.IsErrTransport(err) != e.transport {
			t.Errorf("%d: expected 'transport' == %v for err = %v", i, e.transport, err)
		}
		if fault.IsErrSettlement(err) != e.settlement {
			t.Errorf("%d: expected 'settlement' == %v for err = %v", i, e.settlement, err)
		}
		if fault.IsRetryable(err) != e.retryable {
			t.Errorf("%d: expected 'retryable' == %v for err = %v", i, e.retryable, err)
		}
	}
}

func TestNilIsNotRetryable(t *testing.T) {
	if fault.IsRetryable(nil) {
		t.Error("nil error must not be retryable")
	}
}

// every declared error is returned or checked somewhere outside this
// package
func TestErrorsReferenced(t *testing.T) {
	fset := token.NewFileSet()
	declared, err := parser.ParseFile(fset, "fault.go", nil, 0)
	if nil != err {
		t.Fatalf("parse fault.go: %s", err)
	}

	names := make(map[string]bool)
	for _, decl := range declared.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || token.VAR != gen.Tok {
			continue
		}
		for _, spec := range gen.Specs {
			for _, name := range spec.(*ast.ValueSpec).Names {
				names[name.Name] = false
			}
		}
	}

	err = filepath.Walk("..", func(path string, info os.FileInfo, err error) error {
		if nil != err {
			return err
		}
		base := info.Name()
		if info.IsDir() {
			if ".." != path && (strings.HasPrefix(base, "_") || strings.HasPrefix(base, ".") || "fault" == base || "testdata" == base) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(base, ".go") || strings.HasSuffix(base, "_test.go") {
			return nil
		}
		f, err := parser.ParseFile(fset, path, nil, 0)
		if nil != err {
			return err
		}
		ast.Inspect(f, func(n ast.Node) bool {
			if sel, ok := n.(*ast.SelectorExpr); ok {
				if pkg, ok := sel.X.(*ast.Ident); ok && "fault" == pkg.Name {
					if _, ok := names[sel.Sel.Name]; ok {
						names[sel.Sel.Name] = true
					}
				}
			}
			return true
		})
		return nil
	})
	if nil != err {
		t.Fatalf("walk: %s", err)
	}

	for name, used := range names {
		if !used {
			t.Errorf("fault.%s is never used", name)
		}
	}
}
