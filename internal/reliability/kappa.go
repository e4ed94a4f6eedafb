// Package reliability measures agreement between two codes over segmented
// transcript units using Cohen's Kappa.
package reliability

// Table is the 2x2 contingency table of unit classifications.
type Table struct {
	Both    int `json:"a11"` // units coded with A and B
	OnlyA   int `json:"a10"`
	OnlyB   int `json:"a01"`
	Neither int `json:"a00"`
}

// Add classifies one unit.
func (t *Table) Add(hasA, hasB bool) {
	switch {
	case hasA && hasB:
		t.Both++
	case hasA:
		t.OnlyA++
	case hasB:
		t.OnlyB++
	default:
		t.Neither++
	}
}

// Plus returns the cell-wise sum of t and o.
func (t Table) Plus(o Table) Table {
	return Table{
		Both:    t.Both + o.Both,
		OnlyA:   t.OnlyA + o.OnlyA,
		OnlyB:   t.OnlyB + o.OnlyB,
		Neither: t.Neither + o.Neither,
	}
}

// Swap exchanges the roles of A and B.
func (t Table) Swap() Table {
	return Table{Both: t.Both, OnlyA: t.OnlyB, OnlyB: t.OnlyA, Neither: t.Neither}
}

// N returns the number of classified units.
func (t Table) N() int {
	return t.Both + t.OnlyA + t.OnlyB + t.Neither
}

// Agreement is the result of a kappa computation.
type Agreement struct {
	Kappa float64 `json:"kappa"`
	Po    float64 `json:"po"` // observed agreement
	Pe    float64 `json:"pe"` // agreement expected by chance
	N     int     `json:"n"`
	Band  Band    `json:"band"`
}

// PercentAgreement returns the observed agreement as a percentage.
func (a Agreement) PercentAgreement() float64 {
	return 100 * a.Po
}

// Kappa computes Cohen's Kappa for t. An empty table yields a zero result;
// a table where chance agreement is certain yields kappa 1.
func Kappa(t Table) Agreement {
	n := t.N()
	if n == 0 {
		return Agreement{Band: Interpret(0)}
	}
	fn := float64(n)
	po := float64(t.Both+t.Neither) / fn
	pA := float64(t.Both+t.OnlyA) / fn
	pB := float64(t.Both+t.OnlyB) / fn
	pe := pA*pB + (1-pA)*(1-pB)

	k := 1.0
	if pe != 1 {
		k = (po - pe) / (1 - pe)
	}
	return Agreement{Kappa: k, Po: po, Pe: pe, N: n, Band: Interpret(k)}
}

// ComputeKappa is Kappa over explicit cell counts.
func ComputeKappa(a11, a10, a01, a00 int) Agreement {
	return Kappa(Table{Both: a11, OnlyA: a10, OnlyB: a01, Neither: a00})
}

// Band is the conventional interpretation of a kappa value.
type Band string

const (
	Poor          Band = "Poor"
	Slight        Band = "Slight"
	Fair          Band = "Fair"
	Moderate      Band = "Moderate"
	Substantial   Band = "Substantial"
	AlmostPerfect Band = "Almost Perfect"
)

// BandLimit is an inclusive upper bound of a band.
type BandLimit struct {
	Band  Band    `json:"band"`
	Upper float64 `json:"upper"`
}

// Bands lists the interpretation bands above Poor in ascending order.
var Bands = []BandLimit{
	{Slight, 0.20},
	{Fair, 0.40},
	{Moderate, 0.60},
	{Substantial, 0.80},
	{AlmostPerfect, 1.00},
}

// Interpret maps kappa to its band. Negative values are Poor.
func Interpret(kappa float64) Band {
	if kappa < 0 {
		return Poor
	}
	for _, b := range Bands {
		if kappa <= b.Upper {
			return b.Band
		}
	}
	return AlmostPerfect
}
