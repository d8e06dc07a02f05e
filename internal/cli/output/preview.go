package output

import (
	"fmt"
	"io"
)

// PreviewList writes up to limit items, one per line with a two-space
// indent, then a trailer counting the rest. Long sweeps touch hundreds of
// thousands of paths; dumping them all would bury the summary.
//
//	  /store/ab12cd-tool-1.0
//	  /store/ef34gh-lib-2.1
//	  ... and 412 more
//
// A limit <= 0 disables the cap and prints everything.
func PreviewList(w io.Writer, items []string, limit int) {
	shown := len(items)
	if limit > 0 && shown > limit {
		shown = limit
	}

	for _, item := range items[:shown] {
		_, _ = fmt.Fprintf(w, "  %s\n", item)
	}

	if rest := len(items) - shown; rest > 0 {
		_, _ = fmt.Fprintf(w, "  ... and %d more\n", rest)
	}
}
