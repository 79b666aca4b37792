// Copyright (C) The Strainscope Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package diversity

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// forEachBlock walks the (gene, variant type) blocks of ps selected
// by filter, in deterministic order, and runs fn on each with bounded
// concurrency. Blocks whose allele counts are missing from ac, or
// whose sample axis disagrees with n, fail the whole walk. Matching
// zero blocks returns ErrNoData.
//
// fn receives an immutable view of one block and must do its own
// locking when adding into shared accumulators.
func forEachBlock(ac AlleleCountsMap, ps PassedSitesMap, filter *BlockFilter, n int, fn func(gene, vt string, ga *GeneAlleles, sites *mat.Dense) error) error {
	tr := throttle{Max: runtime.GOMAXPROCS(0)}
	matched := 0
	for _, gene := range sortedGenes(ps) {
		if !filter.matchGene(gene) {
			continue
		}
		vtm := ps[gene]
		for _, vt := range sortedVariantTypes(vtm) {
			if !filter.matchVariantType(vt) {
				continue
			}
			ga, err := lookupAlleles(ac, gene, vt)
			if err != nil {
				tr.Report(err)
				continue
			}
			sites := vtm[vt]
			if err := checkBlockShape(gene, vt, ga, sites, n); err != nil {
				tr.Report(err)
				continue
			}
			matched++
			gene, vt, ga, sites := gene, vt, ga, sites
			tr.Go(func() error { return fn(gene, vt, ga, sites) })
		}
	}
	if err := tr.Wait(); err != nil {
		return err
	}
	if matched == 0 {
		return ErrNoData
	}
	return nil
}

// PiMatrix accumulates nucleotide diversity across the selected
// blocks. Off-diagonal entries of pi sum, per site where both
// samples pass, one minus the probability that reads drawn from each
// sample carry the same allele. Diagonal entries (and all of avgPi)
// use the leave-one-out within-sample estimator, which removes one
// observed allele copy before computing the second frequency so that
// self-comparison is unbiased, symmetrically averaged over both
// orderings.
//
// Returned matrices are raw accumulated sums along with the
// passed-site totals; normalization is the caller's job, because
// per-pair and genome-wide analyses divide by different denominators.
func PiMatrix(ac AlleleCountsMap, ps PassedSitesMap, filter *BlockFilter) (pi, avgPi, passed *mat.Dense, err error) {
	n, err := sampleCount(ps)
	if err != nil {
		return nil, nil, nil, err
	}
	pi = mat.NewDense(n, n, nil)
	avgPi = mat.NewDense(n, n, nil)
	passed = mat.NewDense(n, n, nil)
	var mtx sync.Mutex
	err = forEachBlock(ac, ps, filter, n, func(gene, vt string, ga *GeneAlleles, sites *mat.Dense) error {
		blockPi, blockAvg := piContribution(ga.Counts)
		mtx.Lock()
		defer mtx.Unlock()
		passed.Add(passed, sites)
		if blockPi != nil {
			pi.Add(pi, blockPi)
			avgPi.Add(avgPi, blockAvg)
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return pi, avgPi, passed, nil
}

func piContribution(counts *AlleleCounts) (pi, avgPi *mat.Dense) {
	if counts.Empty() {
		return nil, nil
	}
	n := counts.Samples
	pi = mat.NewDense(n, n, nil)
	avgPi = mat.NewDense(n, n, nil)
	covered := make([]float64, n)
	freqs := make([][numAlleles]float64, n)
	selfPi := make([]float64, n)
	for site := 0; site < counts.Sites; site++ {
		for i := 0; i < n; i++ {
			depth := counts.Depth(site, i)
			cov := 0.0
			if depth > 0 {
				cov = 1
			}
			// Leave-one-out denominator; depth ≤ 1 gets +2 so the
			// zero-coverage case stays an exact 0 via the zeroed
			// frequencies.
			selfDen := depth - 1
			if depth < 1.1 {
				selfDen += 2
			}
			sp := cov
			for k := 0; k < numAlleles; k++ {
				f := safeRatio(counts.At(site, i, k), depth)
				freqs[i][k] = f
				sp -= f * (counts.At(site, i, k) - 1) / selfDen
			}
			covered[i] = cov
			selfPi[i] = sp
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				avg := (selfPi[i]*covered[j] + covered[i]*selfPi[j]) / 2
				avgPi.Set(i, j, avgPi.At(i, j)+avg)
				if i == j {
					pi.Set(i, j, pi.At(i, j)+avg)
					continue
				}
				cross := freqs[i][alleleAlt]*freqs[j][alleleAlt] + freqs[i][alleleRef]*freqs[j][alleleRef]
				pi.Set(i, j, pi.At(i, j)+covered[i]*covered[j]-cross)
			}
		}
	}
	return pi, avgPi
}

// FixationMatrix counts, per sample pair, the sites where both
// samples pass and the alternate-allele frequencies differ by at
// least minChange, after clamping each frequency to 0 below minFreq
// and to 1 at or above 1−minFreq.
func FixationMatrix(ac AlleleCountsMap, ps PassedSitesMap, filter *BlockFilter, minFreq, minChange float64) (fixations, passed *mat.Dense, err error) {
	return countingMatrix(ac, ps, filter, func(counts *AlleleCounts, site, i, j int) bool {
		di := clampFreq(counts.AltFreq(site, i), minFreq)
		dj := clampFreq(counts.AltFreq(site, j), minFreq)
		return math.Abs(di-dj) >= minChange
	})
}

// NewSNPMatrix counts, per sample pair, the sites where a
// polymorphism is rare in one sample (minor-allele frequency below
// minFreq) and common in the other (above maxFreq), in either
// direction, among jointly covered sites. These are polymorphisms
// effectively new to one of the two samples.
func NewSNPMatrix(ac AlleleCountsMap, ps PassedSitesMap, filter *BlockFilter, minFreq, maxFreq float64) (newSNPs, passed *mat.Dense, err error) {
	return countingMatrix(ac, ps, filter, func(counts *AlleleCounts, site, i, j int) bool {
		mi := foldFreq(counts.AltFreq(site, i))
		mj := foldFreq(counts.AltFreq(site, j))
		return (mi < minFreq && mj > maxFreq) || (mi > maxFreq && mj < minFreq)
	})
}

// countingMatrix is the shared accumulator for per-sample-pair site
// counting statistics: it adds every block's passed-site matrix into
// passed (even when the block has no observed alleles), and for
// non-empty blocks adds 1 to [i,j] for every site where both samples
// are covered and test reports true.
func countingMatrix(ac AlleleCountsMap, ps PassedSitesMap, filter *BlockFilter, test func(counts *AlleleCounts, site, i, j int) bool) (result, passed *mat.Dense, err error) {
	n, err := sampleCount(ps)
	if err != nil {
		return nil, nil, err
	}
	result = mat.NewDense(n, n, nil)
	passed = mat.NewDense(n, n, nil)
	var mtx sync.Mutex
	err = forEachBlock(ac, ps, filter, n, func(gene, vt string, ga *GeneAlleles, sites *mat.Dense) error {
		var block *mat.Dense
		if !ga.Counts.Empty() {
			block = mat.NewDense(n, n, nil)
			counts := ga.Counts
			for site := 0; site < counts.Sites; site++ {
				for i := 0; i < n; i++ {
					if !counts.Covered(site, i) {
						continue
					}
					for j := 0; j < n; j++ {
						if counts.Covered(site, j) && test(counts, site, i, j) {
							block.Set(i, j, block.At(i, j)+1)
						}
					}
				}
			}
		} else {
			log.Debugf("%s %s: no observed alleles, accumulating passed sites only", gene, vt)
		}
		mtx.Lock()
		defer mtx.Unlock()
		passed.Add(passed, sites)
		if block != nil {
			result.Add(result, block)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, passed, nil
}

func clampFreq(f, minFreq float64) float64 {
	if f < minFreq {
		return 0
	}
	if f >= 1-minFreq {
		return 1
	}
	return f
}

// foldFreq maps an alternate-allele frequency to a minor-allele
// frequency.
func foldFreq(f float64) float64 {
	return math.Min(f, 1-f)
}

// PooledFrequencies returns, for every site of the selected blocks in
// deterministic (gene, variant type, site) order, the alternate-allele
// frequency averaged across covered samples only. Blocks with no
// observed alleles contribute no sites.
func PooledFrequencies(ac AlleleCountsMap, ps PassedSitesMap, filter *BlockFilter) ([]float64, error) {
	n, err := sampleCount(ps)
	if err != nil {
		return nil, err
	}
	var pooled []float64
	matched := 0
	for _, gene := range sortedGenes(ps) {
		if !filter.matchGene(gene) {
			continue
		}
		for _, vt := range sortedVariantTypes(ps[gene]) {
			if !filter.matchVariantType(vt) {
				continue
			}
			ga, err := lookupAlleles(ac, gene, vt)
			if err != nil {
				return nil, err
			}
			if err := checkBlockShape(gene, vt, ga, ps[gene][vt], n); err != nil {
				return nil, err
			}
			matched++
			counts := ga.Counts
			if counts.Empty() {
				continue
			}
			for site := 0; site < counts.Sites; site++ {
				sum, ncov := 0.0, 0.0
				for i := 0; i < n; i++ {
					sum += counts.AltFreq(site, i)
					if counts.Covered(site, i) {
						ncov++
					}
				}
				pooled = append(pooled, safeRatio(sum, ncov))
			}
		}
	}
	if matched == 0 {
		return nil, ErrNoData
	}
	return pooled, nil
}

// SampleFrequencies collects, per sample, the nonzero allele
// frequencies observed across the selected blocks (folded to
// minor-allele frequencies when fold is set), together with each
// sample's accumulated passed-site total. Blocks with no observed
// alleles contribute neither frequencies nor passed sites here.
func SampleFrequencies(ac AlleleCountsMap, ps PassedSitesMap, filter *BlockFilter, fold bool) (freqs [][]float64, passed []float64, err error) {
	n, err := sampleCount(ps)
	if err != nil {
		return nil, nil, err
	}
	freqs = make([][]float64, n)
	passed = make([]float64, n)
	matched := 0
	for _, gene := range sortedGenes(ps) {
		if !filter.matchGene(gene) {
			continue
		}
		for _, vt := range sortedVariantTypes(ps[gene]) {
			if !filter.matchVariantType(vt) {
				continue
			}
			ga, err := lookupAlleles(ac, gene, vt)
			if err != nil {
				return nil, nil, err
			}
			sites := ps[gene][vt]
			if err := checkBlockShape(gene, vt, ga, sites, n); err != nil {
				return nil, nil, err
			}
			matched++
			counts := ga.Counts
			if counts.Empty() {
				continue
			}
			for i := 0; i < n; i++ {
				passed[i] += sites.At(i, i)
			}
			for site := 0; site < counts.Sites; site++ {
				for i := 0; i < n; i++ {
					f := counts.AltFreq(site, i)
					if fold {
						f = foldFreq(f)
					}
					if f > 0 {
						freqs[i] = append(freqs[i], f)
					}
				}
			}
		}
	}
	if matched == 0 {
		return nil, nil, ErrNoData
	}
	return freqs, passed, nil
}

// SNPDifference records one site where the (clamped) alternate-allele
// frequency changed by at least the caller's threshold between two
// samples.
type SNPDifference struct {
	Gene     string
	Location SiteLocation
	AltA     float64
	DepthA   float64
	AltB     float64
	DepthB   float64
}

// SNPDifferences lists the polarized per-site changes between samples
// a and b that pass the same clamping and threshold rules as
// FixationMatrix, in deterministic (gene, variant type, site) order.
func SNPDifferences(ac AlleleCountsMap, ps PassedSitesMap, filter *BlockFilter, a, b int, minFreq, minChange float64) ([]SNPDifference, error) {
	n, err := sampleCount(ps)
	if err != nil {
		return nil, err
	}
	if a < 0 || a >= n || b < 0 || b >= n {
		return nil, fmt.Errorf("sample indexes %d,%d out of range for %d samples", a, b, n)
	}
	var diffs []SNPDifference
	matched := 0
	for _, gene := range sortedGenes(ps) {
		if !filter.matchGene(gene) {
			continue
		}
		for _, vt := range sortedVariantTypes(ps[gene]) {
			if !filter.matchVariantType(vt) {
				continue
			}
			ga, err := lookupAlleles(ac, gene, vt)
			if err != nil {
				return nil, err
			}
			if err := checkBlockShape(gene, vt, ga, ps[gene][vt], n); err != nil {
				return nil, err
			}
			matched++
			counts := ga.Counts
			if counts.Empty() {
				continue
			}
			for site := 0; site < counts.Sites; site++ {
				if !counts.Covered(site, a) || !counts.Covered(site, b) {
					continue
				}
				fa := clampFreq(counts.AltFreq(site, a), minFreq)
				fb := clampFreq(counts.AltFreq(site, b), minFreq)
				if math.Abs(fb-fa) < minChange {
					continue
				}
				diff := SNPDifference{
					Gene:   gene,
					AltA:   counts.At(site, a, alleleAlt),
					DepthA: counts.Depth(site, a),
					AltB:   counts.At(site, b, alleleAlt),
					DepthB: counts.Depth(site, b),
				}
				if site < len(ga.Locations) {
					diff.Location = ga.Locations[site]
				}
				diffs = append(diffs, diff)
			}
		}
	}
	if matched == 0 {
		return nil, ErrNoData
	}
	return diffs, nil
}
