package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/opsync/internal/transition"
)

// CompileTableFile loads a CUE document from disk and compiles its
// top-level `table` field into a transition table.
func CompileTableFile(path string) (*transition.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	tv := v.LookupPath(cue.ParsePath("table"))
	if !tv.Exists() {
		return nil, &CompileError{Field: "table", Message: "missing top-level table field"}
	}
	return CompileTable(tv)
}
