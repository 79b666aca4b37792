// Copyright (C) The Strainscope Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package diversity

import (
	"encoding/json"
	"io"
)

// MapStats summarizes an allele-counts / passed-sites map pair:
// how much data there is, and where.
type MapStats struct {
	Genes            int
	Blocks           int
	Samples          int
	Sites            map[string]int // variant type → total sites with observed alleles
	PolymorphicSites map[string]int // variant type → sites passing the polymorphism test
}

// CollectMapStats walks every block of ps (validating the allele-map
// contract on the way) and tallies per-variant-type site and
// polymorphic-site totals.
func CollectMapStats(ac AlleleCountsMap, ps PassedSitesMap) (*MapStats, error) {
	n, err := sampleCount(ps)
	if err != nil {
		return nil, err
	}
	stats := &MapStats{
		Genes:            len(ps),
		Samples:          n,
		Sites:            map[string]int{},
		PolymorphicSites: map[string]int{},
	}
	for _, gene := range sortedGenes(ps) {
		for _, vt := range sortedVariantTypes(ps[gene]) {
			ga, err := lookupAlleles(ac, gene, vt)
			if err != nil {
				return nil, err
			}
			if err := checkBlockShape(gene, vt, ga, ps[gene][vt], n); err != nil {
				return nil, err
			}
			stats.Blocks++
			if ga.Counts.Empty() {
				continue
			}
			stats.Sites[vt] += ga.Counts.Sites
			if genotypes, _ := ConsensusGenotypes(ga.Counts); genotypes != nil {
				rows, _ := genotypes.Dims()
				stats.PolymorphicSites[vt] += rows
			}
		}
	}
	return stats, nil
}

// WriteMapStats writes CollectMapStats output as JSON.
func WriteMapStats(w io.Writer, ac AlleleCountsMap, ps PassedSitesMap) error {
	stats, err := CollectMapStats(ac, ps)
	if err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(stats)
}
