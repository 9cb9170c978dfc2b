package main

import (
	"math"

	"github.com/pkg/errors"
)

// lZero is the floor for log p-values, matching the emitter's cap of 99 on
// the phred scale.
const lZero = -99.0

const (
	gammaEps     = 3.0e-14
	gammaMaxIter = 1000
	gammaFPMin   = 1.0e-300
)

// gammaSeriesLog evaluates log P(a,x), the regularized lower incomplete
// gamma, by series expansion. Accurate for x < a+1, where P may underflow a
// plain float.
func gammaSeriesLog(a, x float64) (float64, error) {
	if x <= 0 {
		return math.Inf(-1), nil
	}
	ap := a
	del := 1.0 / a
	sum := del
	for i := 0; i < gammaMaxIter; i++ {
		ap++
		del *= x / ap
		sum += del
		if math.Abs(del) < math.Abs(sum)*gammaEps {
			lg, _ := math.Lgamma(a)
			return -x + a*math.Log(x) - lg + math.Log(sum), nil
		}
	}
	return 0, errors.Errorf("incomplete gamma series did not converge: a=%g x=%g", a, x)
}

// gammaContFracLog evaluates log Q(a,x), the regularized upper incomplete
// gamma, by continued fraction. Accurate for x >= a+1.
func gammaContFracLog(a, x float64) (float64, error) {
	b := x + 1 - a
	c := 1.0 / gammaFPMin
	d := 1.0 / b
	h := d
	for i := 1; i <= gammaMaxIter; i++ {
		an := -float64(i) * (float64(i) - a)
		b += 2
		d = an*d + b
		if math.Abs(d) < gammaFPMin {
			d = gammaFPMin
		}
		c = b + an/c
		if math.Abs(c) < gammaFPMin {
			c = gammaFPMin
		}
		d = 1.0 / d
		del := d * c
		h *= del
		if math.Abs(del-1.0) < gammaEps {
			lg, _ := math.Lgamma(a)
			return -x + a*math.Log(x) - lg + math.Log(h), nil
		}
	}
	return 0, errors.Errorf("incomplete gamma continued fraction did not converge: a=%g x=%g", a, x)
}

// logPoissonUpperTail returns log P[X >= k] for X ~ Poisson(lambda), the
// inclusive upper tail. P[X >= k] equals the regularized lower incomplete
// gamma P(k, lambda).
func logPoissonUpperTail(lambda float64, k int) float64 {
	if k <= 0 {
		return 0
	}
	a := float64(k)
	if lambda < a+1 {
		lp, err := gammaSeriesLog(a, lambda)
		if err != nil {
			return lZero
		}
		return lp
	}
	lq, err := gammaContFracLog(a, lambda)
	if err != nil {
		return lZero
	}
	q := math.Exp(lq)
	if q >= 1 {
		return lZero
	}
	return math.Log1p(-q)
}

// chiSquaredUpperTail returns P[X > x] for X ~ chi-squared with df degrees
// of freedom.
func chiSquaredUpperTail(df int, x float64) (float64, error) {
	if df <= 0 || x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, errors.Errorf("chi squared tail undefined: df=%d x=%g", df, x)
	}
	a := float64(df) / 2
	half := x / 2
	if half == 0 {
		return 1, nil
	}
	if half < a+1 {
		lp, err := gammaSeriesLog(a, half)
		if err != nil {
			return 0, err
		}
		return 1 - math.Exp(lp), nil
	}
	lq, err := gammaContFracLog(a, half)
	if err != nil {
		return 0, err
	}
	return math.Exp(lq), nil
}

// computeProbScore combines the per-library Poisson tails for the dominant
// flag over the candidate span. Log p-values sum with Kahan compensation;
// with fisher enabled the sum is recalibrated through a chi-squared with
// 2k degrees of freedom.
func computeProbScore(totalRegionSize int, libReadCount map[int]int, flag PairFlag, fisher bool, libs *LibraryInfo) float64 {
	tails := make([]float64, 0, len(libReadCount))
	for _, libIndex := range sortedIntKeys(libReadCount) {
		readCount := libReadCount[libIndex]
		countForFlag := libs.FlagCount(libIndex, flag)
		lambda := float64(totalRegionSize) * float64(countForFlag) / float64(libs.CoveredLength())
		lambda = math.Max(1.0e-10, lambda)
		tails = append(tails, logPoissonUpperTail(lambda, readCount))
	}
	logPvalue := kahanSum(tails)

	if fisher && logPvalue < 0 {
		// Fisher's Method
		fisherP, cerr := chiSquaredUpperTail(2*len(libReadCount), -2*logPvalue)
		if cerr != nil {
			logger.Printf("chi squared problem: N=%d, log(p)=%g, -2*log(p)=%g",
				2*len(libReadCount), logPvalue, -2*logPvalue)
		} else if fisherP > math.Exp(lZero) {
			logPvalue = math.Log(fisherP)
		} else {
			logPvalue = lZero
		}
	}
	return logPvalue
}

// kahanSum adds compensated, so hundreds of tiny per-library terms do not
// lose precision.
func kahanSum(values []float64) float64 {
	sum := 0.0
	err := 0.0
	for _, v := range values {
		a := v - err
		b := sum + a
		err = (b - sum) - a
		sum = b
	}
	return sum
}

// phredScale converts a log p-value to a phred quality, capped at 99.
func phredScale(logPvalue float64) int {
	q := -10 * logPvalue / math.Ln10
	if q > 99 {
		return 99
	}
	return int(q + 0.5)
}
