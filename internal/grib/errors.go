package grib

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat marks structural problems: bad magic, truncated
	// sections, or length mismatches.
	ErrInvalidFormat = errors.New("invalid GRIB2 format")

	// ErrUnsupportedEdition is returned for any edition other than 2.
	ErrUnsupportedEdition = errors.New("unsupported GRIB edition")
)

// MissingSectionError reports that a required section was not found.
type MissingSectionError struct {
	Section int
}

func (e *MissingSectionError) Error() string {
	return fmt.Sprintf("missing GRIB2 section %d", e.Section)
}

// UnsupportedGridTemplateError reports a grid definition template outside
// the supported set {0, 30}.
type UnsupportedGridTemplateError struct {
	Template uint16
}

func (e *UnsupportedGridTemplateError) Error() string {
	return fmt.Sprintf("unsupported grid definition template %d", e.Template)
}

// UnsupportedPackingError reports a data representation template outside
// the supported set {0, 40, 41, 200}.
type UnsupportedPackingError struct {
	Template uint16
}

func (e *UnsupportedPackingError) Error() string {
	return fmt.Sprintf("unsupported data representation template %d", e.Template)
}
