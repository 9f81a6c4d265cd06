package emit

import (
	"fmt"

	"tagsmith/internal/tags"
)

// Default xref column layouts. The extended layout adds the kind
// column.
const (
	xfmtTraditional = "%-16N %4n %-16F %C"
	xfmtExtended    = "%-16N %-10K %4n %-16F %C"
)

// writeXrefEntry writes one aligned cross-reference line.
func (en *Engine) writeXrefEntry(e *tags.Entry) (int, error) {
	var x *Xfmt
	var err error

	switch {
	case en.opts.CustomXfmt != "":
		if en.xfmtCustom == nil {
			en.xfmtCustom, err = ParseXfmt(en.opts.CustomXfmt)
			if err != nil {
				return 0, fmt.Errorf("invalid xref format: %w", err)
			}
		}
		x = en.xfmtCustom
	case en.opts.TagFileFormat == 1:
		if e.IsFileEntry {
			return 0, nil
		}
		if en.xfmt1 == nil {
			en.xfmt1, _ = ParseXfmt(xfmtTraditional)
		}
		x = en.xfmt1
	default:
		if e.IsFileEntry {
			return 0, nil
		}
		if en.xfmt2 == nil {
			en.xfmt2, _ = ParseXfmt(xfmtExtended)
		}
		x = en.xfmt2
	}

	return en.file.write(x.Print(en, e) + "\n")
}
