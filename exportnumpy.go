// Copyright (C) The Strainscope Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package diversity

import (
	"io"

	"github.com/kshedden/gonpy"
	"gonum.org/v1/gonum/mat"
)

// WriteMatrixNumpy writes any matrix (π, fixation, distance, PCA
// coordinates packed as rows, …) as a 2-D float64 numpy array, the
// interchange format the downstream plotting collaborators consume.
func WriteMatrixNumpy(w io.Writer, m mat.Matrix) error {
	rows, cols := m.Dims()
	npw, err := gonpy.NewWriter(nopCloser{w})
	if err != nil {
		return err
	}
	npw.Shape = []int{rows, cols}
	out := make([]float64, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[i*cols+j] = m.At(i, j)
		}
	}
	return npw.WriteFloat64(out)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
