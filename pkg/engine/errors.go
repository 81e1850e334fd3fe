package engine

import (
	"errors"
	"fmt"
)

// ErrNotLoaded indicates a calculation was requested before any
// workbook was loaded.
var ErrNotLoaded = errors.New("no workbook loaded")

// ErrCellNotFound indicates a referenced output cell does not exist in
// the loaded workbook.
var ErrCellNotFound = errors.New("cell not found")

// LoadError represents an error while loading workbook data.
type LoadError struct {
	SheetName string
	Cell      string
	Err       error
}

func (e *LoadError) Error() string {
	if e.Cell != "" {
		return fmt.Sprintf("load error in sheet %q at %s: %v", e.SheetName, e.Cell, e.Err)
	}
	return fmt.Sprintf("load error in sheet %q: %v", e.SheetName, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a new LoadError.
func NewLoadError(sheetName, cellAddr string, err error) *LoadError {
	return &LoadError{
		SheetName: sheetName,
		Cell:      cellAddr,
		Err:       err,
	}
}
