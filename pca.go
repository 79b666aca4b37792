// Copyright (C) The Strainscope Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package diversity

import (
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// PCACoordinates projects samples onto the top two principal
// components of a consensus genotype matrix, using the covariance
// normalization of McVean (PLoS Genet, 2009) with one twist required
// by incomplete coverage: each covariance entry M[i,j] is divided by
// the number of sites where BOTH samples passed, not by a single
// global site count, since different sample pairs overlap at
// different site sets.
//
// genotypes and passed are [site × sample] as returned by
// ConsensusGenotypes. The returned coords[k][i] is sample i's
// coordinate on component k, scaled by sqrt(eigenvalue); variance[k]
// is that eigenvalue's share of the total eigenvalue sum.
func PCACoordinates(genotypes, passed mat.Matrix) (coords [2][]float64, variance [2]float64, err error) {
	if genotypes == nil || passed == nil {
		return coords, variance, ErrNoData
	}
	sites, samples := genotypes.Dims()
	pr, pc := passed.Dims()
	if pr != sites || pc != samples {
		return coords, variance, fmt.Errorf("genotype matrix is %dx%d but passed matrix is %dx%d", sites, samples, pr, pc)
	}

	// Per-site mean over passed samples, then mask-and-center.
	centered := mat.NewDense(sites, samples, nil)
	for l := 0; l < sites; l++ {
		sum, n := 0.0, 0.0
		for i := 0; i < samples; i++ {
			sum += genotypes.At(l, i) * passed.At(l, i)
			n += passed.At(l, i)
		}
		zl := safeRatio(sum, n)
		for i := 0; i < samples; i++ {
			centered.Set(l, i, (genotypes.At(l, i)-zl)*passed.At(l, i))
		}
	}

	cov := mat.NewSymDense(samples, nil)
	for i := 0; i < samples; i++ {
		for j := i; j < samples; j++ {
			num, den := 0.0, 0.0
			for l := 0; l < sites; l++ {
				num += centered.At(l, i) * centered.At(l, j)
				den += passed.At(l, i) * passed.At(l, j)
			}
			cov.SetSym(i, j, safeRatio(num, den))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return coords, variance, errors.New("eigendecomposition of covariance matrix failed")
	}
	evals := eig.Values(nil)
	var evecs mat.Dense
	eig.VectorsTo(&evecs)

	// EigenSym returns eigenvalues in ascending order; the leading
	// two components are the last two columns.
	first, second := samples-1, samples-2
	if second < 0 || evals[second] <= 0 {
		return coords, variance, errors.New("fewer than 2 positive eigenvalues: second component is not meaningful")
	}
	total := 0.0
	for _, v := range evals {
		total += v
	}
	log.Debugf("pca: leading eigenvalues %g %g of total %g", evals[first], evals[second], total)

	for k, col := range []int{first, second} {
		coords[k] = make([]float64, samples)
		for i := 0; i < samples; i++ {
			coords[k][i] = math.Sqrt(evals[col]) * evecs.At(i, col)
		}
		variance[k] = safeRatio(evals[col], total)
	}
	return coords, variance, nil
}
