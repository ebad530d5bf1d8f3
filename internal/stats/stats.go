// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.


package stats

import (
	"fmt"
	"math"
	"github.com/mlnoga/burststack/internal/qsort"
	"github.com/valyala/fastrand"
)

// Enumerated type for location and scale estimator modes
type LSEstimatorMode int
const (
	LSEMeanStdDev LSEstimatorMode = iota
	LSEMedianMAD
	LSESCMedianQn
	LSEHistogram
)

// Number of samples for the randomized location and scale estimators
const numLSSamples=128*1024

// Statistics on a data array, with lazily computed location and scale estimates.
// Not safe for concurrent use
type Stats struct {
	data  []float32 // the underlying data array
	width int32     // line width of the underlying data array

	min, mean, max  float32
	haveMMM         bool

	stdDev          float32
	haveStdDev      bool

	location, scale float32
	haveLocScale    bool
}

// Creates statistics for the given data array. All values are computed on demand
func NewStats(data []float32, width int32) *Stats {
	return &Stats{data: data, width: width}
}

// Creates statistics for the given data array from known minimum, maximum and mean,
// e.g. gathered while decoding. Location and scale are computed on demand
func NewStatsWithMMM(data []float32, width int32, min, max, mean float32) *Stats {
	return &Stats{data: data, width: width, min: min, mean: mean, max: max, haveMMM: true}
}

// Creates statistics for one channel of a planar multi-channel data array
func NewStatsForChannel(data []float32, width int32, ch, numCh int) *Stats {
	l:=len(data)/numCh
	return NewStats(data[ch*l:(ch+1)*l], width)
}

// Minimum of the data
func (s *Stats) Min() float32 {
	if !s.haveMMM { s.calcMinMeanMax() }
	return s.min
}

// Maximum of the data
func (s *Stats) Max() float32 {
	if !s.haveMMM { s.calcMinMeanMax() }
	return s.max
}

// Mean (average) of the data
func (s *Stats) Mean() float32 {
	if !s.haveMMM { s.calcMinMeanMax() }
	return s.mean
}

// Standard deviation of the data
func (s *Stats) StdDev() float32 {
	if !s.haveStdDev {
		variance:=calcVariance(s.data, s.Mean())
		s.stdDev=float32(math.Sqrt(variance))
		s.haveStdDev=true
	}
	return s.stdDev
}

// Location estimate of the data, with the default estimator
func (s *Stats) Location() float32 {
	loc, _:=s.LocationScale(LSESCMedianQn)
	return loc
}

// Scale estimate of the data, with the default estimator
func (s *Stats) Scale() float32 {
	_, scale:=s.LocationScale(LSESCMedianQn)
	return scale
}

// Returns location and scale estimates of the data, computed with the given mode.
// Modes outside the enumeration use the sigma-clipped default estimator.
// The first computed result is cached; later calls with another mode return the cached values
func (s *Stats) LocationScale(mode LSEstimatorMode) (location, scale float32) {
	if s.haveLocScale { return s.location, s.scale }
	if len(s.data)<2 || s.Min()==s.Max() {
		s.location, s.scale = s.Min(), 0
		s.haveLocScale=true
		return s.location, s.scale
	}

	switch mode {
	case LSEMeanStdDev:
		s.location, s.scale = s.Mean(), s.StdDev()
	case LSEMedianMAD:
		samples:=make([]float32, numLSSamples)
		s.location=FastApproxMedian(s.data, samples)
		s.scale   =FastApproxMAD   (s.data, s.location, samples)
	case LSEHistogram:
		bins:=make([]int32, 4096)
		Histogram(s.data, s.Min(), s.Max(), bins)
		loc, sc, err:=GetModeStdDevFromHistogram(bins, s.Min(), s.Max())
		if err!=nil {
			loc, sc=s.Mean(), s.StdDev() // fit did not converge
		}
		s.location, s.scale=loc, sc
	default: // LSESCMedianQn, also the fallback for unknown modes
		s.location, s.scale=FastApproxSigmaClippedMedianAndQn(s.data, 2, 2, (s.Max()-s.Min())/65535.0, numLSSamples)
	}
	s.haveLocScale=true
	return s.location, s.scale
}

// Pretty print statistics to string
func (s *Stats) String() string {
	return fmt.Sprintf("Min %.6g Max %.6g Mean %.6g Location %.6g Scale %.6g",
		s.Min(), s.Max(), s.Mean(), s.Location(), s.Scale())
}

// Calculate minimum, mean and maximum of the data in a single pass
func (s *Stats) calcMinMeanMax() {
	if len(s.data)==0 {
		s.haveMMM=true
		return
	}
	mmin, mmean, mmax:=s.data[0], float64(0), s.data[0]
	for _,v := range s.data {
		if v<mmin {
			mmin=v
		}
		if v>mmax {
			mmax=v
		}
		mmean+=float64(v)
	}
	s.min, s.mean, s.max=mmin, float32(mmean/float64(len(s.data))), mmax
	s.haveMMM=true
}

// Calculate variance of given data from provided mean
func calcVariance(data []float32, mean float32) (result float64) {
	variance:=float64(0)
	for _,v :=range data {
		diff:=float64(v-mean)
		variance+=diff*diff
	}
	return variance/float64(len(data))
}

// Calculate mean and standard deviation of the given data
func MeanStdDev(xs []float32) (mean, stdDev float32) {
	xmean:=float32(0)
	for _,x:=range(xs) { xmean+=x }
	xmean/=float32(len(xs))
	xvar:=float32(0)
	for _,x:=range(xs) { diff:=x-xmean; xvar+=diff*diff }
	xvar/=float32(len(xs))
	xstddev:=float32(math.Sqrt(float64(xvar)))
	return xmean, xstddev
}

// Calculates fast approximate median of the (presumably large) data by subsampling the given number of values and taking the median of that.
// Uses provided samples array as scratchpad
func FastApproxMedian(data []float32, samples []float32) float32 {
	max:=uint32(len(data))
	rng:=fastrand.RNG{}
	for i,_:=range samples {
		index:=rng.Uint32n(max)
		samples[i]=data[index]
	}
	median:=qsort.QSelectMedianFloat32(samples)
	return median
}

// Calculates fast approximate median of the (presumably large) data within given bounds by subsampling the given number of values and taking the median of that.
// Uses provided samples array as scratchpad
func FastApproxBoundedMedian(data []float32, lowBound, highBound float32, samples []float32) float32 {
	max:=uint32(len(data))
	rng:=fastrand.RNG{}
	for i,_:=range samples {
		var d float32
		for {
			d=data[rng.Uint32n(max)]
			if d>=lowBound && d<=highBound { break }
		}
		samples[i]=d
	}
	median:=qsort.QSelectMedianFloat32(samples)
	return median
}

// Calculates fast approximate median of absolute differences of the (presumably large) data by subsampling the given number of values and taking the MAD of that.
// Uses provided samples array as scratchpad
func FastApproxMAD(data []float32, location float32, samples []float32) float32 {
	max:=uint32(len(data))
	rng:=fastrand.RNG{}
	for i,_:=range samples {
		index:=rng.Uint32n(max)
		samples[i]=float32(math.Abs(float64(data[index]-location)))
	}
	mad:=qsort.QSelectMedianFloat32(samples)*1.4826  // normalize to Gaussian std dev.
	return mad
}

// Calculates fast approximate Qn scale estimate of the (presumably large) data by subsampling the given number of pairs and taking the first quartile of that.
// Original paper http://web.ipac.caltech.edu/staff/fmasci/home/astro_refs/BetterThanMAD.pdf
// Original n*log n implementation technical report https://www.researchgate.net/profile/Christophe_Croux/publication/228595593_Time-Efficient_Algorithms_for_Two_Highly_Robust_Estimators_of_Scale/links/09e4150f52c2fcabb0000000/Time-Efficient-Algorithms-for-Two-Highly-Robust-Estimators-of-Scale.pdf
func FastApproxQn(data []float32, samples []float32) float32 {
	max:=uint32(len(data))
	rng:=fastrand.RNG{}
	for i,_:=range samples {
		index1:=1+rng.Uint32n(max-1)
		index2:=rng.Uint32n(index1)
		samples[i]=float32(math.Abs(float64(data[index1]-data[index2])))
	}
	qn:=qsort.QSelectFirstQuartileFloat32(samples)*2.21914  // normalize to Gaussian std dev, for large numSamples >>1000.
	// Original paper had wrong constant, source for constant https://rdrr.io/cran/robustbase/man/Qn.html
	return qn
}

// Calculates fast approximate Qn scale estimate of the (presumably large) data within given bounds by subsampling the given number of pairs and taking the first quartile of that.
func FastApproxBoundedQn(data []float32, lowBound, highBound float32, samples []float32) float32 {
	max:=uint32(len(data))
	rng:=fastrand.RNG{}
	for i,_:=range samples {
		var d1, d2 float32
		for {
			index1:=1+rng.Uint32n(max-1)
			d1=data[index1]
			if d1< lowBound || d1> highBound { continue }
			d2=data[rng.Uint32n(index1)]
			if d2>=lowBound && d2<=highBound { break    }
		}
		samples[i]=float32(math.Abs(float64(d1-d2)))
	}
	qn:=qsort.QSelectFirstQuartileFloat32(samples)*2.21914  // normalize to Gaussian std dev, for large numSamples >>1000
	return qn
}

// Returns a rapid robust estimation of location and scale. Uses a fast approximate median based on randomized sampling,
// iteratively sigma clipped with a fast approximate Qn based on random sampling. Exits once the absolute change in
// location and scale is below epsilon.
func FastApproxSigmaClippedMedianAndQn(data []float32, sigmaLow, sigmaHigh float32, epsilon float32, numSamples int) (location, scale float32) {
	samples:=make([]float32, numSamples)
	location=FastApproxMedian(data, samples) // sampling
	scale   =FastApproxQn    (data, samples) // sampling

	for i:=0; ; i++ {
		if scale<=0 { return location, 0 } // fully converged, and keeps the bounded samplers from spinning on empty bounds
		lowBound :=location - sigmaLow*scale
		highBound:=location + sigmaLow*scale

		newLocation:=FastApproxBoundedMedian(data, lowBound, highBound, samples) // sampling
		newScale   :=FastApproxBoundedQn    (data, lowBound, highBound, samples) // sampling
		newScale   *=1.134                                    // adjust for subsequent clipping

		// once converged, return results
		if float32(math.Abs(float64(newLocation-location))+math.Abs(float64(newScale-scale)))<=epsilon || i>=10 {
			scale=FastApproxQn(data, samples) // sampling
			samples=nil
			return location, scale
		}

		location, scale = newLocation, newScale
	}
}
