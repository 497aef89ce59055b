// Package units converts declared quantities into the base unit of their
// dimension (grams, millilitres, units).
package units

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownUnit       = errors.New("unknown unit")
	ErrDimensionMismatch = errors.New("units measure different dimensions")
)

type Dimension string

const (
	Mass   Dimension = "mass"
	Volume Dimension = "volume"
	Count  Dimension = "count"
)

const (
	Gram       = "g"
	Milliliter = "ml"
	Unit       = "unidad"
)

type unitDef struct {
	dimension  Dimension
	baseFactor decimal.Decimal
}

var table = map[string]unitDef{
	"mg":     {Mass, decimal.RequireFromString("0.001")},
	"g":      {Mass, decimal.NewFromInt(1)},
	"kg":     {Mass, decimal.NewFromInt(1000)},
	"qq":     {Mass, decimal.RequireFromString("45359.237")},
	"t":      {Mass, decimal.NewFromInt(1000000)},
	"lb":     {Mass, decimal.RequireFromString("453.59237")},
	"oz":     {Mass, decimal.RequireFromString("28.349523125")},
	"ml":     {Volume, decimal.NewFromInt(1)},
	"cc":     {Volume, decimal.NewFromInt(1)},
	"l":      {Volume, decimal.NewFromInt(1000)},
	"gal":    {Volume, decimal.RequireFromString("3785.411784")},
	"unidad": {Count, decimal.NewFromInt(1)},
	"par":    {Count, decimal.NewFromInt(2)},
	"docena": {Count, decimal.NewFromInt(12)},
	"ciento": {Count, decimal.NewFromInt(100)},
}

var aliases = map[string]string{
	"gr":          "g",
	"gramo":       "g",
	"gramos":      "g",
	"kilo":        "kg",
	"kilos":       "kg",
	"kilogramo":   "kg",
	"kilogramos":  "kg",
	"quintal":     "qq",
	"quintales":   "qq",
	"litro":       "l",
	"litros":      "l",
	"lt":          "l",
	"mililitro":   "ml",
	"mililitros":  "ml",
	"galon":       "gal",
	"galones":     "gal",
	"u":           "unidad",
	"und":         "unidad",
	"unidades":    "unidad",
	"docenas":     "docena",
	"tonelada":    "t",
	"toneladas":   "t",
	"libra":       "lb",
	"libras":      "lb",
	"onza":        "oz",
	"onzas":       "oz",
	"centimetros": "cc",
}

// Normalize returns the canonical symbol for unit.
func Normalize(unit string) (string, error) {
	u := strings.ToLower(strings.TrimSpace(unit))
	if alias, ok := aliases[u]; ok {
		u = alias
	}
	if _, ok := table[u]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}
	return u, nil
}

func lookup(unit string) (string, unitDef, error) {
	u, err := Normalize(unit)
	if err != nil {
		return "", unitDef{}, err
	}
	return u, table[u], nil
}

// DimensionOf reports the physical dimension a unit measures.
func DimensionOf(unit string) (Dimension, error) {
	_, def, err := lookup(unit)
	if err != nil {
		return "", err
	}
	return def.dimension, nil
}

// BaseUnit returns the base unit of the dimension unit belongs to.
func BaseUnit(unit string) (string, error) {
	d, err := DimensionOf(unit)
	if err != nil {
		return "", err
	}
	switch d {
	case Mass:
		return Gram, nil
	case Volume:
		return Milliliter, nil
	default:
		return Unit, nil
	}
}

// Factor returns the multiplier that turns a quantity expressed in from
// into the same quantity expressed in to. Unknown units and conversions
// across dimensions fail; there is no fallback factor.
func Factor(from, to string) (decimal.Decimal, error) {
	fromSym, fromDef, err := lookup(from)
	if err != nil {
		return decimal.Zero, err
	}
	toSym, toDef, err := lookup(to)
	if err != nil {
		return decimal.Zero, err
	}
	if fromSym == toSym {
		return decimal.NewFromInt(1), nil
	}
	if fromDef.dimension != toDef.dimension {
		return decimal.Zero, fmt.Errorf("%w: %s (%s) -> %s (%s)", ErrDimensionMismatch, fromSym, fromDef.dimension, toSym, toDef.dimension)
	}
	return fromDef.baseFactor.Div(toDef.baseFactor), nil
}

// Convert expresses quantity (declared in from) in to, returning the
// converted value and the factor used.
func Convert(quantity decimal.Decimal, from, to string) (decimal.Decimal, decimal.Decimal, error) {
	factor, err := Factor(from, to)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return quantity.Mul(factor), factor, nil
}

// Known lists the canonical unit symbols, sorted.
func Known() []string {
	out := make([]string, 0, len(table))
	for u := range table {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
