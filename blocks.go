// Copyright (C) The Strainscope Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package diversity

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Codon-degeneracy variant classes. 4D sites are synonymous, 1D
// nonsynonymous.
const (
	Variant1D = "1D"
	Variant2D = "2D"
	Variant3D = "3D"
	Variant4D = "4D"
)

// ErrNoData is returned when a requested aggregation matches zero
// gene/variant-type blocks, as distinct from matching blocks whose
// statistics are all zero.
var ErrNoData = errors.New("no gene/variant-type blocks to aggregate")

// SiteLocation identifies a genomic site.
type SiteLocation struct {
	Contig   string
	Position int
}

// GeneAlleles holds the observed allele counts for one gene and one
// variant type. Counts may be nil/empty when the gene had no sites
// with observed variation; Locations, when present, parallels the
// site axis of Counts.
type GeneAlleles struct {
	Counts    *AlleleCounts
	Locations []SiteLocation
}

// AlleleCountsMap maps gene name → variant type → allele counts.
type AlleleCountsMap map[string]map[string]*GeneAlleles

// PassedSitesMap maps gene name → variant type → sample×sample
// passed-site matrix. The matrix diagonal holds per-sample
// passed-site totals; off-diagonal entries count joint coverage.
//
// Wherever an aggregation consults both maps, every (gene, variant
// type) key present in the PassedSitesMap must also be present in the
// AlleleCountsMap; a missing key is a caller contract violation and
// returns an error rather than being skipped.
type PassedSitesMap map[string]map[string]*mat.Dense

// BlockFilter restricts an aggregation to a subset of genes and/or
// variant types. A nil filter, or a nil field, matches everything
// present.
type BlockFilter struct {
	Genes        map[string]bool
	VariantTypes map[string]bool
}

func (f *BlockFilter) matchGene(name string) bool {
	return f == nil || f.Genes == nil || f.Genes[name]
}

func (f *BlockFilter) matchVariantType(vt string) bool {
	return f == nil || f.VariantTypes == nil || f.VariantTypes[vt]
}

// lookupAlleles fetches the allele block matching a passed-sites key.
func lookupAlleles(ac AlleleCountsMap, gene, vt string) (*GeneAlleles, error) {
	vtm, ok := ac[gene]
	if !ok {
		return nil, fmt.Errorf("allele counts missing for gene %q", gene)
	}
	ga, ok := vtm[vt]
	if !ok {
		return nil, fmt.Errorf("allele counts missing for gene %q variant type %q", gene, vt)
	}
	return ga, nil
}

// sortedGenes returns the gene names of ps in lexical order, so that
// aggregations that build ordered outputs are deterministic.
func sortedGenes(ps PassedSitesMap) []string {
	genes := make([]string, 0, len(ps))
	for gene := range ps {
		genes = append(genes, gene)
	}
	sort.Strings(genes)
	return genes
}

func sortedVariantTypes(vtm map[string]*mat.Dense) []string {
	vts := make([]string, 0, len(vtm))
	for vt := range vtm {
		vts = append(vts, vt)
	}
	sort.Strings(vts)
	return vts
}

// sampleCount returns the sample-axis size shared by every block in
// ps, or ErrNoData when ps is empty.
func sampleCount(ps PassedSitesMap) (int, error) {
	for _, vtm := range ps {
		for _, sites := range vtm {
			n, _ := sites.Dims()
			return n, nil
		}
	}
	return 0, ErrNoData
}

// checkBlockShape verifies that a block's passed-sites matrix is
// n×n and that its allele tensor, when non-empty, has a matching
// sample axis.
func checkBlockShape(gene, vt string, ga *GeneAlleles, sites *mat.Dense, n int) error {
	r, c := sites.Dims()
	if r != n || c != n {
		return fmt.Errorf("gene %q variant type %q: passed-sites matrix is %dx%d, want %dx%d", gene, vt, r, c, n, n)
	}
	if !ga.Counts.Empty() && ga.Counts.Samples != n {
		return fmt.Errorf("gene %q variant type %q: allele tensor has %d samples, want %d", gene, vt, ga.Counts.Samples, n)
	}
	return nil
}
