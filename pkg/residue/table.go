// Package residue provides the per-symbol mass lookup used while walking the index.
package residue

import (
	"fmt"
	"os"

	"github.com/bastiangx/massfind/internal/utils"
	"github.com/charmbracelet/log"
)

// Table maps a residue symbol to its monoisotopic mass. Unknown symbols weigh 0.
type Table [256]float64

// MassOf returns the mass of symbol b.
func (t *Table) MassOf(b byte) float64 { return t[b] }

// Set assigns the mass of symbol b.
func (t *Table) Set(b byte, mass float64) { t[b] = mass }

// Mass sums the masses of seq.
func (t *Table) Mass(seq []byte) float64 {
	var m float64
	for _, b := range seq {
		m += t[b]
	}
	return m
}

// standard monoisotopic residue masses
var monoisotopic = map[byte]float64{
	'G': 57.02146372,
	'A': 71.03711379,
	'S': 87.03202841,
	'P': 97.05276385,
	'V': 99.06841391,
	'T': 101.04767847,
	'C': 103.00918478,
	'L': 113.08406398,
	'I': 113.08406398,
	'N': 114.04292744,
	'D': 115.02694303,
	'Q': 128.05857751,
	'K': 128.09496302,
	'E': 129.04259309,
	'M': 131.04048491,
	'H': 137.05891186,
	'F': 147.06841391,
	'U': 150.95363559,
	'R': 156.10111103,
	'Y': 163.06332853,
	'W': 186.07931295,
	'O': 237.14772677,
}

// Default returns the standard amino acid table.
func Default() *Table {
	t := &Table{}
	for b, m := range monoisotopic {
		t[b] = m
	}
	return t
}

// FromMap builds a table from single-character keys, starting from base
// when it is non-nil.
func FromMap(base *Table, masses map[string]float64) (*Table, error) {
	t := &Table{}
	if base != nil {
		*t = *base
	}
	for sym, m := range masses {
		if len(sym) != 1 {
			return nil, fmt.Errorf("residue symbol %q must be a single character", sym)
		}
		if m < 0 {
			return nil, fmt.Errorf("residue %q has negative mass %v", sym, m)
		}
		t[sym[0]] = m
	}
	return t, nil
}

// File is the TOML layout accepted by LoadFile.
//
//	[masses]
//	A = 71.03711
//	C = 160.03065
type File struct {
	Masses map[string]float64 `toml:"masses"`
}

// LoadFile reads a TOML residue file, overriding the default table.
func LoadFile(path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	var f File
	if err := utils.LoadTOMLFile(path, &f); err != nil {
		return nil, err
	}
	log.Debugf("Loaded %d residue masses from %s", len(f.Masses), path)
	return FromMap(Default(), f.Masses)
}
