package models

import "fmt"

// MaterialType identifies one of the five tracked filament materials.
// The set is closed and ordered; every stock and log row must carry one
// of these values.
type MaterialType string

const (
	MaterialPP   MaterialType = "PP"
	MaterialTPU  MaterialType = "TPU"
	MaterialPLA  MaterialType = "PLA"
	MaterialABS  MaterialType = "ABS"
	MaterialPETG MaterialType = "PETG"
)

// Materials lists all tracked materials in display order.
var Materials = []MaterialType{
	MaterialPP,
	MaterialTPU,
	MaterialPLA,
	MaterialABS,
	MaterialPETG,
}

// ParseMaterial converts a string into a MaterialType or fails
func ParseMaterial(s string) (MaterialType, error) {
	m := MaterialType(s)
	for _, known := range Materials {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown material %q", s)
}

func (m MaterialType) String() string {
	return string(m)
}

// StockReason classifies an adjustment. Closed set so log rows stay
// queryable; free text goes in the note.
type StockReason string

const (
	ReasonStockIn StockReason = "stock-in"
	ReasonPrint   StockReason = "print"
	ReasonFire    StockReason = "fire"
	ReasonReturn  StockReason = "return"
	ReasonOther   StockReason = "other"
)

// Reasons lists the accepted adjustment reasons.
var Reasons = []StockReason{
	ReasonStockIn,
	ReasonPrint,
	ReasonFire,
	ReasonReturn,
	ReasonOther,
}

// ParseReason converts a string into a StockReason or fails
func ParseReason(s string) (StockReason, error) {
	r := StockReason(s)
	for _, known := range Reasons {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown reason %q", s)
}

func (r StockReason) String() string {
	return string(r)
}
