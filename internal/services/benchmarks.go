package services

import (
	"strings"

	"cuentas/internal/core"
)

type (
	// BenchmarkRange is a min/avg/max band in currency units per month.
	BenchmarkRange struct {
		Min float64 `json:"min"`
		Avg float64 `json:"avg"`
		Max float64 `json:"max"`
	}

	// Benchmark holds family-size-bucketed spending bands for one canonical
	// category, plus an optional percent-of-income target.
	Benchmark struct {
		ByFamilySize    map[int]BenchmarkRange
		PercentOfIncome *BenchmarkRange
	}
)

// Spending benchmarks for Spanish households, bucketed by family size 1-4.
var spendingBenchmarks = map[string]Benchmark{
	"Alimentación > Supermercado": {
		ByFamilySize: map[int]BenchmarkRange{
			1: {200, 300, 400},
			2: {350, 450, 600},
			3: {450, 600, 800},
			4: {600, 800, 1000},
		},
		PercentOfIncome: &BenchmarkRange{10, 15, 20},
	},
	"Alimentación > Restaurante": {
		ByFamilySize: map[int]BenchmarkRange{
			1: {80, 150, 250},
			2: {120, 200, 350},
			3: {150, 250, 450},
			4: {180, 300, 500},
		},
		PercentOfIncome: &BenchmarkRange{5, 8, 12},
	},
	"Vivienda > Hipoteca": {
		PercentOfIncome: &BenchmarkRange{25, 30, 35},
	},
	"Vivienda > Alquiler y compra": {
		PercentOfIncome: &BenchmarkRange{25, 30, 35},
	},
	"Transporte > Gasolina": {
		ByFamilySize: map[int]BenchmarkRange{
			1: {60, 100, 150},
			2: {80, 120, 180},
			3: {100, 150, 220},
			4: {120, 180, 250},
		},
	},
	"Transporte > Transportes": {
		ByFamilySize: map[int]BenchmarkRange{
			1: {40, 80, 120},
			2: {60, 100, 150},
			3: {80, 120, 180},
			4: {100, 150, 200},
		},
	},
	"Compras > Compras": {
		ByFamilySize: map[int]BenchmarkRange{
			1: {100, 200, 350},
			2: {150, 300, 500},
			3: {200, 400, 650},
			4: {250, 500, 800},
		},
		PercentOfIncome: &BenchmarkRange{5, 10, 15},
	},
	"Finanzas > Préstamos": {
		PercentOfIncome: &BenchmarkRange{10, 15, 20},
	},
	"Servicios > Servicios y productos online": {
		ByFamilySize: map[int]BenchmarkRange{
			1: {20, 40, 80},
			2: {30, 60, 100},
			3: {40, 80, 130},
			4: {50, 100, 160},
		},
	},
	"Servicios > Internet": {
		ByFamilySize: map[int]BenchmarkRange{
			1: {30, 40, 50},
			2: {30, 40, 50},
			3: {30, 40, 50},
			4: {30, 40, 50},
		},
	},
	"Servicios > Móvil": {
		ByFamilySize: map[int]BenchmarkRange{
			1: {20, 30, 40},
			2: {40, 60, 80},
			3: {60, 90, 120},
			4: {80, 120, 160},
		},
	},
	"Salud > Médico": {
		ByFamilySize: map[int]BenchmarkRange{
			1: {50, 100, 200},
			2: {100, 200, 400},
			3: {150, 300, 600},
			4: {200, 400, 800},
		},
	},
	"Ocio > Entretenimiento": {
		ByFamilySize: map[int]BenchmarkRange{
			1: {50, 100, 200},
			2: {80, 150, 300},
			3: {100, 200, 400},
			4: {120, 250, 500},
		},
	},
	"Ocio > Vacaciones": {
		ByFamilySize: map[int]BenchmarkRange{
			1: {0, 100, 300},
			2: {0, 150, 400},
			3: {0, 200, 500},
			4: {0, 250, 600},
		},
	},
}

// benchmarkAliases map description keywords to benchmark categories for
// labels the table doesn't carry verbatim.
var benchmarkAliases = []struct {
	keyword  string
	category string
}{
	{"supermercado", "Alimentación > Supermercado"},
	{"alimentación", "Alimentación > Supermercado"},
	{"alimentacion", "Alimentación > Supermercado"},
	{"restaurante", "Alimentación > Restaurante"},
	{"gasolina", "Transporte > Gasolina"},
	{"transporte", "Transporte > Transportes"},
	{"hipoteca", "Vivienda > Hipoteca"},
	{"alquiler", "Vivienda > Alquiler y compra"},
	{"ropa", "Compras > Compras"},
	{"compras", "Compras > Compras"},
	{"internet", "Servicios > Internet"},
	{"móvil", "Servicios > Móvil"},
	{"movil", "Servicios > Móvil"},
	{"teléfono", "Servicios > Móvil"},
	{"telefono", "Servicios > Móvil"},
	{"médico", "Salud > Médico"},
	{"medico", "Salud > Médico"},
	{"salud", "Salud > Médico"},
	{"farmacia", "Salud > Médico"},
	{"entretenimiento", "Ocio > Entretenimiento"},
	{"ocio", "Ocio > Entretenimiento"},
	{"vacaciones", "Ocio > Vacaciones"},
	{"préstamo", "Finanzas > Préstamos"},
	{"prestamo", "Finanzas > Préstamos"},
}

// genericBenchmark is the last resort when no table entry or alias matches.
var genericBenchmark = BenchmarkRange{Min: 50, Avg: 100, Max: 200}

// maxBenchmarkFamilySize: larger households use the size-4 bucket.
const maxBenchmarkFamilySize = 4

// ResolveBenchmark looks up the spending band for a category, walking the
// fallback chain: exact canonical name, the group's generic variant
// ("Compras > Ropa" falls back to "Compras > Compras"), keyword aliases,
// and finally the generic default.
func ResolveBenchmark(cat core.Category, familySize int) (BenchmarkRange, *BenchmarkRange) {
	if familySize < 1 {
		familySize = 1
	}
	if familySize > maxBenchmarkFamilySize {
		familySize = maxBenchmarkFamilySize
	}

	if b, ok := spendingBenchmarks[cat.String()]; ok {
		return rangeFor(b, familySize), b.PercentOfIncome
	}
	if cat.IsHierarchical() {
		generic := cat.Group + " > " + cat.Group
		if b, ok := spendingBenchmarks[generic]; ok {
			return rangeFor(b, familySize), b.PercentOfIncome
		}
	}
	lower := strings.ToLower(cat.String())
	for _, alias := range benchmarkAliases {
		if strings.Contains(lower, alias.keyword) {
			if b, ok := spendingBenchmarks[alias.category]; ok {
				return rangeFor(b, familySize), b.PercentOfIncome
			}
		}
	}
	return genericBenchmark, nil
}

// rangeFor picks the family bucket. Categories with only a
// percent-of-income target return a zero band; the caller works off the
// percentage instead.
func rangeFor(b Benchmark, familySize int) BenchmarkRange {
	if r, ok := b.ByFamilySize[familySize]; ok {
		return r
	}
	return BenchmarkRange{}
}
