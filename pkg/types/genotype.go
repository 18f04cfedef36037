package types

import (
	"sort"
	"strings"
)

// UnknownGenotype is the sentinel stored for missing or uncallable genotypes.
const UnknownGenotype = "NA"

// Zygosity classifies a genotype relative to a row's reference and variant alleles.
type Zygosity int

const (
	ZygUnknown Zygosity = iota
	ZygHomRef
	ZygHet
	ZygHomVar
	ZygHemRef
	ZygHemVar
)

// String returns a short name for the zygosity.
func (z Zygosity) String() string {
	switch z {
	case ZygHomRef:
		return "homRef"
	case ZygHet:
		return "het"
	case ZygHomVar:
		return "homVar"
	case ZygHemRef:
		return "hemRef"
	case ZygHemVar:
		return "hemVar"
	default:
		return "unknown"
	}
}

// CarriesVariant reports whether the genotype contains a non-reference allele.
func (z Zygosity) CarriesVariant() bool {
	return z == ZygHet || z == ZygHomVar || z == ZygHemVar
}

// IsHomozygous reports homozygous or hemizygous variant genotypes.
func (z Zygosity) IsHomozygous() bool {
	return z == ZygHomVar || z == ZygHemVar
}

// FormatGenotype renders alleles as a genotype string. Alleles are sorted;
// single-base alleles are concatenated ("AG"), anything longer is joined
// with ':' ("A:ATT"). A single allele is a hemizygous call.
func FormatGenotype(alleles ...string) string {
	if len(alleles) == 0 {
		return UnknownGenotype
	}
	sorted := append([]string(nil), alleles...)
	sort.Strings(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	for _, a := range sorted {
		if len(a) != 1 {
			return strings.Join(sorted, ":")
		}
	}
	return strings.Join(sorted, "")
}

// SplitGenotype is the inverse of FormatGenotype. It returns nil for the
// unknown sentinel. Two-character strings without a separator are read as
// two single-base alleles.
func SplitGenotype(g string) []string {
	if g == "" || g == UnknownGenotype {
		return nil
	}
	if strings.ContainsAny(g, ":/|") {
		return strings.FieldsFunc(g, func(r rune) bool {
			return r == ':' || r == '/' || r == '|'
		})
	}
	if len(g) == 2 {
		return []string{g[:1], g[1:]}
	}
	return []string{g}
}

// ClassifyGenotype determines the zygosity of g against ref and variant.
// The canonical forms produced by FormatGenotype are checked first so that
// multi-base hemizygous alleles are not mistaken for two single bases.
func ClassifyGenotype(g, ref, variant string) Zygosity {
	if g == "" || g == UnknownGenotype {
		return ZygUnknown
	}
	switch g {
	case FormatGenotype(ref, ref):
		return ZygHomRef
	case FormatGenotype(variant, variant):
		return ZygHomVar
	case FormatGenotype(ref, variant):
		if ref != variant {
			return ZygHet
		}
	case ref:
		return ZygHemRef
	case variant:
		return ZygHemVar
	}

	alleles := SplitGenotype(g)
	switch len(alleles) {
	case 0:
		return ZygUnknown
	case 1:
		if alleles[0] == ref {
			return ZygHemRef
		}
		return ZygHemVar
	default:
		if alleles[0] != alleles[1] {
			return ZygHet
		}
		if alleles[0] == ref {
			return ZygHomRef
		}
		return ZygHomVar
	}
}
