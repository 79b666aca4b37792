// Copyright (C) The Strainscope Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package diversity

// freqFloor is the threshold below which a derived frequency is
// treated as floating-point leakage and zeroed before it can
// contribute a spurious nonzero term to a variance or fixation
// product.
const freqFloor = 1e-10

// safeRatio returns num/den where den>0, and 0 elsewhere. Every
// frequency computed from a depth or passed-site denominator goes
// through here: a zero denominator always pairs with a zero
// numerator, so the result is an exact 0, never NaN or Inf.
func safeRatio(num, den float64) float64 {
	if den > 0 {
		return num / den
	}
	return 0
}

// zeroFloor clamps values below freqFloor to exactly 0.
func zeroFloor(x float64) float64 {
	if x < freqFloor {
		return 0
	}
	return x
}
