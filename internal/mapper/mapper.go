// Package mapper splits search areas into H3 cells for chunked re-queries.
package mapper

import (
	"github.com/mohammed-shakir/geodata-search/internal/core/model"
)

type Interface interface {
	// CoverBBox returns cells whose union covers bb.
	CoverBBox(bb model.BBox, res int) ([]string, error)
	CellBounds(cell string) (model.BBox, error)
	ToChildren(cell string, childRes int) ([]string, error)
}
