// Copyright (C) The Strainscope Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package diversity

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/pgzip"
	"gonum.org/v1/gonum/mat"
)

// Haplotype annotation codes, one per (site, sample) call. This is a
// stable on-disk contract consumed by downstream reporting tools.
const (
	annoReference     = "0" // no difference from reference
	annoFixedSyn      = "1" // fixed synonymous difference
	annoFixedNonsyn   = "2" // fixed nonsynonymous difference
	annoPolySyn       = "3" // polymorphic synonymous within sample
	annoPolyNonsyn    = "4" // polymorphic nonsynonymous within sample
)

// HaplotypeSite addresses one exported site: its genomic position,
// which variant type's tensor it lives in, and its row there.
type HaplotypeSite struct {
	Position    int
	VariantType string
	Index       int
}

// WriteHaplotypes writes two delimited records per site, in position
// order: "position,allele,allele,…" with the consensus genotype per
// sample, and "position,annotation,…" with the annotation code per
// sample. Synonymous codes apply to 4D sites, nonsynonymous codes to
// everything else.
func WriteHaplotypes(consensus, annotation io.Writer, counts map[string]*AlleleCounts, sites []HaplotypeSite) error {
	ordered := make([]HaplotypeSite, len(sites))
	copy(ordered, sites)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	for _, site := range ordered {
		c, ok := counts[site.VariantType]
		if !ok {
			return fmt.Errorf("no allele counts for variant type %q", site.VariantType)
		}
		if c.Empty() || site.Index >= c.Sites {
			return fmt.Errorf("site index %d out of range for variant type %q", site.Index, site.VariantType)
		}
		synonymous := site.VariantType == Variant4D
		alleles := make([]string, c.Samples)
		annos := make([]string, c.Samples)
		for sample := range alleles {
			freq := c.AltFreq(site.Index, sample)
			alleles[sample] = strconv.Itoa(int(math.RoundToEven(freq)))
			switch {
			case freq == 0:
				annos[sample] = annoReference
			case freq == 1:
				if synonymous {
					annos[sample] = annoFixedSyn
				} else {
					annos[sample] = annoFixedNonsyn
				}
			default:
				if synonymous {
					annos[sample] = annoPolySyn
				} else {
					annos[sample] = annoPolyNonsyn
				}
			}
		}
		pos := strconv.Itoa(site.Position)
		if _, err := io.WriteString(consensus, pos+","+strings.Join(alleles, ",")+"\n"); err != nil {
			return err
		}
		if _, err := io.WriteString(annotation, pos+","+strings.Join(annos, ",")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// WriteHaplotypeFiles is WriteHaplotypes with file targets. Paths
// ending in ".gz" are gzip-compressed.
func WriteHaplotypeFiles(consensusPath, annotationPath string, counts map[string]*AlleleCounts, sites []HaplotypeSite) error {
	consensus, closeConsensus, err := createOutFile(consensusPath)
	if err != nil {
		return err
	}
	annotation, closeAnnotation, err := createOutFile(annotationPath)
	if err != nil {
		closeConsensus()
		return err
	}
	err = WriteHaplotypes(consensus, annotation, counts, sites)
	if cerr := closeConsensus(); err == nil {
		err = cerr
	}
	if cerr := closeAnnotation(); err == nil {
		err = cerr
	}
	return err
}

func createOutFile(path string) (io.Writer, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0666)
	if err != nil {
		return nil, nil, err
	}
	bufw := bufio.NewWriter(f)
	var w io.Writer = bufw
	var gzw *pgzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gzw = pgzip.NewWriter(bufw)
		w = gzw
	}
	return w, func() error {
		var err error
		if gzw != nil {
			err = gzw.Close()
		}
		if e := bufw.Flush(); err == nil {
			err = e
		}
		if e := f.Close(); err == nil {
			err = e
		}
		return err
	}, nil
}

// PhylipDistanceMatrix renders a distance matrix as a PHYLIP text
// block: the sample count on the first line, then one line per sample
// with its name and tab-separated distances at 6 significant digits.
func PhylipDistanceMatrix(dist mat.Matrix, samples []string) (string, error) {
	r, c := dist.Dims()
	if r != len(samples) || c != len(samples) {
		return "", fmt.Errorf("distance matrix is %dx%d but there are %d sample names", r, c, len(samples))
	}
	lines := []string{strconv.Itoa(len(samples))}
	for i, name := range samples {
		fields := []string{name}
		for j := 0; j < c; j++ {
			fields = append(fields, fmt.Sprintf("%.6g", dist.At(i, j)))
		}
		lines = append(lines, strings.Join(fields, "\t"))
	}
	return strings.Join(lines, "\n"), nil
}
