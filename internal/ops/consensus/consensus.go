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


package consensus

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"github.com/mlnoga/burststack/internal/img"
	"github.com/mlnoga/burststack/internal/median"
	"github.com/mlnoga/burststack/internal/ops"
)

// Estimates a robust consensus over an aligned burst. Takes n inputs and produces
// two outputs: a robust mean which down-weights outlier samples, and an outlier
// image which up-weights them. Even channel counts treat the last channel as a
// validity mask, with zero marking an invalid sample; masked samples are excluded
// from the estimate entirely. Outputs carry no mask
type OpConsensus struct {
	ops.OpBase
	Exponent     int32        `json:"exponent"`     // deviation exponent, positive and even
	Scale        float32      `json:"scale"`        // deviation scale in sample units
	Softener     float32      `json:"softener"`     // outlier weight softening, zero sharpens fully
	BindColors   bool         `json:"bindColors"`   // one outlier judgment across the color channels of a pixel
	Reference    string       `json:"reference"`    // optional reference image file, replaces the per-pixel median
	SaveMean    *ops.OpSave   `json:"saveMean"`     // writes the robust mean once both outputs exist
	SaveOutliers *ops.OpSave  `json:"saveOutliers"` // writes the outlier image once both outputs exist
	mutex        sync.Mutex   `json:"-"`
	materialized []*img.Image `json:"-"`
	err          error        `json:"-"`
}

func init() { ops.SetOperatorFactory(func() ops.Operator { return NewOpConsensusDefault() })} // register the operator for JSON decoding

func NewOpConsensusDefault() *OpConsensus { return NewOpConsensus(4, 32.0, 0.5, true, "") }

func NewOpConsensus(exponent int32, scale, softener float32, bindColors bool, reference string) *OpConsensus {
	return &OpConsensus{
		OpBase       : ops.OpBase{Type: "consensus", Active: true},
		Exponent     : exponent,
		Scale        : scale,
		Softener     : softener,
		BindColors   : bindColors,
		Reference    : reference,
		SaveMean     : ops.NewOpSaveDefault(),
		SaveOutliers : ops.NewOpSaveDefault(),
	}
}

// Unmarshal the type from JSON with default values for missing entries
func (op *OpConsensus) UnmarshalJSON(data []byte) error {
	type defaults OpConsensus
	def:=defaults( *NewOpConsensusDefault() )
	err:=json.Unmarshal(data, &def)
	if err!=nil { return err }
	*op=OpConsensus(def)
	return nil
}

// Creates two output promises, the robust mean and the outlier image.
// The first of them to acquire the mutex materializes all inputs and computes both
func (op *OpConsensus) MakePromises(ins []ops.Promise, c *ops.Context) (outs []ops.Promise, err error) {
	if len(ins)==0 { return nil, errors.New(fmt.Sprintf("%s operator needs inputs", op.Type)) }
	return []ops.Promise{op.applySingle(0, ins, c), op.applySingle(1, ins, c)}, nil
}

func (op *OpConsensus) applySingle(i int, ins []ops.Promise, c *ops.Context) ops.Promise {
	return func() (f *img.Image, err error) {
		op.mutex.Lock()
		if op.err!=nil {               // estimation failed in a prior thread
			op.mutex.Unlock()
			return nil, op.err
		}
		if op.materialized!=nil {      // estimation already happened, hand out this slot
			mat:=op.materialized[i]
			op.materialized[i]=nil     // remove reference to free memory
			op.mutex.Unlock()
			return mat, nil
		}
		defer op.mutex.Unlock()        // else release lock later when both outputs exist

		frames, err:=ops.MaterializeAll(ins, c.MaxThreads, false)
		if err!=nil { op.err=err; return nil, err }

		if err=op.loadReference(c); err!=nil { op.err=err; return nil, err }

		rmean, routliers, err:=op.Apply(frames, c)
		if err!=nil { op.err=err; return nil, err }

		if op.SaveMean!=nil {
			if _, err=op.SaveMean.Apply(rmean, c); err!=nil { op.err=err; return nil, err }
		}
		if op.SaveOutliers!=nil {
			if _, err=op.SaveOutliers.Apply(routliers, c); err!=nil { op.err=err; return nil, err }
		}

		op.materialized=[]*img.Image{rmean, routliers}
		mat:=op.materialized[i]
		op.materialized[i]=nil
		return mat, nil
	}
}

// Loads the configured reference image file into the context, unless one is already present
func (op *OpConsensus) loadReference(c *ops.Context) error {
	if op.Reference=="" || c.RefFrame!=nil { return nil }
	promises, err:=ops.NewOpLoad(-1, op.Reference).MakePromises(nil, c)
	if err!=nil { return err }
	if len(promises)!=1 { return errors.New("load operator did not create exactly one promise") }
	c.RefFrame, err=promises[0]()
	return err
}

// Computes the robust mean and outlier images over the stack.
// Rows are distributed over a bounded worker pool, each worker owning its rows
func (op *OpConsensus) Apply(frames []*img.Image, c *ops.Context) (rmean, routliers *img.Image, err error) {
	if op.Exponent<2 || op.Exponent%2!=0 {
		return nil, nil, errors.New(fmt.Sprintf("consensus exponent %d must be positive and even", op.Exponent))
	}
	if op.Scale<=0 {
		return nil, nil, errors.New(fmt.Sprintf("consensus scale %g must be positive", op.Scale))
	}
	for _,f:=range frames[1:] {
		if !img.EqualInt32Slice(f.Naxisn, frames[0].Naxisn) {
			return nil, nil, errors.New(fmt.Sprintf("%d: dimensions %s differ from %s of frame %d, cannot estimate consensus",
				                                    f.ID, f.DimensionsToString(), frames[0].DimensionsToString(), frames[0].ID))
		}
	}

	width, height:=frames[0].Width(), frames[0].Height()
	colorCh:=frames[0].ColorChannels()
	ref:=c.RefFrame
	if ref!=nil {
		if ref.Width()!=width || ref.Height()!=height || ref.ColorChannels()!=colorCh {
			return nil, nil, errors.New(fmt.Sprintf("reference dimensions %s do not match stack %s",
				                                    ref.DimensionsToString(), frames[0].DimensionsToString()))
		}
	}

	fmt.Fprintf(c.Log, "Consensus of %d frames with exponent %d scale %g softener %g bindColors %v:\n",
	            len(frames), op.Exponent, op.Scale, op.Softener, op.BindColors)

	naxisn:=[]int32{width, height}
	if colorCh>1 { naxisn=append(naxisn, colorCh) }
	rmean    =img.NewImageFromNaxisn(naxisn, nil)
	routliers=img.NewImageFromNaxisn(naxisn, nil)
	routliers.ID=1

	// split rows into work packages of about 8 MB, no fewer than 8*NumCPU(), capped at one row
	numBatches:=4*len(frames)*int(width)*int(height)*int(frames[0].Channels())/(8192*1024)
	if numBatches<8*runtime.NumCPU() { numBatches=8*runtime.NumCPU() }
	if numBatches>int(height) { numBatches=int(height) }
	rowsPerBatch:=(int(height)+numBatches-1)/numBatches

	// bound workers so concurrent row slabs stay within the stacking memory limit
	maxWorkers:=runtime.NumCPU()
	slabMB:=len(frames)*int(width)*int(frames[0].Channels())*4/(1024*1024)+1
	if maxWorkers*slabMB>c.StackMemoryMB && c.StackMemoryMB>0 {
		maxWorkers=c.StackMemoryMB/slabMB
		if maxWorkers<1 { maxWorkers=1 }
	}
	sem:=make(chan bool, maxWorkers)

	countersLock:=sync.Mutex{}
	numNoValid, numZeroWeight, numClippedLow, numClippedHigh:=int32(0), int32(0), int32(0), int32(0)
	progressLock, progress:=sync.Mutex{}, float32(0)
	for lower:=0; lower<int(height); lower+=rowsPerBatch {
		upper:=lower+rowsPerBatch
		if upper>int(height) { upper=int(height) }

		sem <- true
		go func(lower, upper int) {
			defer func() { <-sem }()

			noValid, zeroWeight, clipLow, clipHigh:=op.consensusRows(frames, ref, lower, upper, rmean.Data, routliers.Data)

			if noValid>0 || zeroWeight>0 || clipLow>0 || clipHigh>0 {
				countersLock.Lock()
				numNoValid+=noValid
				numZeroWeight+=zeroWeight
				numClippedLow+=clipLow
				numClippedHigh+=clipHigh
				countersLock.Unlock()
			}

			progressLock.Lock()
			progress+=float32(upper-lower)/float32(height)
			fmt.Fprintf(c.Log, "\r%d%%", int(progress*100))
			progressLock.Unlock()
		}(lower, upper)
	}
	for i:=0; i<cap(sem); i++ {  // wait for goroutines to finish
		sem <- true
	}
	fmt.Fprintf(c.Log, "\r")

	numPixels:=float32(int(width)*int(height))
	fmt.Fprintf(c.Log, "All-masked %d (%.2f%%), zero-weight fallbacks %d, clipped low %d high %d\n",
	            numNoValid, float32(numNoValid)*100.0/numPixels, numZeroWeight, numClippedLow, numClippedHigh)

	exposureSum:=float32(0)
	for _,f:=range frames { exposureSum+=f.Exposure }
	rmean.Exposure, routliers.Exposure = exposureSum, exposureSum
	return rmean, routliers, nil
}

// Estimates the consensus for the rows [yLo, yHi). Returns counts of all-masked
// pixels, zero-weight fallbacks to the reference, and clamped output samples
func (op *OpConsensus) consensusRows(frames []*img.Image, ref *img.Image, yLo, yHi int, rmeanData, routliersData []float32) (noValid, zeroWeight, clipLow, clipHigh int32) {
	width   :=int(frames[0].Width())
	size    :=int(frames[0].Width()*frames[0].Height())
	channels:=int(frames[0].Channels())
	colorCh :=int(frames[0].ColorChannels())
	hasAlpha:=frames[0].HasAlpha()

	gathered:=make([]float32, len(frames))
	valid   :=make([]bool,    len(frames))
	zexp    :=make([]float32, len(frames)*colorCh)
	cos     :=make([]float32, colorCh)
	scaleInv:=1.0/op.Scale
	softenerSq:=float64(op.Softener)*float64(op.Softener)

	for y:=yLo; y<yHi; y++ {
		for x:=0; x<width; x++ {
			i:=y*width+x

			// a sample is valid unless the mask plane is zero
			numValid:=0
			for li,f:=range frames {
				v:=!hasAlpha || f.Data[(channels-1)*size+i]!=0
				valid[li]=v
				if v { numValid++ }
			}
			if numValid==0 {
				// no consensus exists where every sample is masked, fall back to zero
				for ch:=0; ch<colorCh; ch++ {
					rmeanData[ch*size+i], routliersData[ch*size+i]=0, 0
				}
				noValid++
				continue
			}

			// per-channel reference: masked median across the stack, or the supplied image
			for ch:=0; ch<colorCh; ch++ {
				if ref!=nil {
					cos[ch]=ref.Data[ch*size+i]
				} else {
					n:=0
					for li,f:=range frames {
						if valid[li] {
							gathered[n]=f.Data[ch*size+i]
							n++
						}
					}
					cos[ch]=median.MedianFloat32(gathered[:n])
				}
			}

			// even powers of the scaled deviation per frame and channel
			for li,f:=range frames {
				if !valid[li] { continue }
				for ch:=0; ch<colorCh; ch++ {
					z:=(f.Data[ch*size+i]-cos[ch])*scaleInv
					z2:=z*z
					ze:=z2
					for e:=int32(4); e<=op.Exponent; e+=2 { ze*=z2 }
					zexp[li*colorCh+ch]=ze
				}
			}

			// bound colors share one deviation judgment, preventing color fringing
			if op.BindColors && colorCh>1 {
				for li:=range frames {
					if !valid[li] { continue }
					sum:=float32(0)
					for ch:=0; ch<colorCh; ch++ { sum+=zexp[li*colorCh+ch] }
					mean:=sum/float32(colorCh)
					for ch:=0; ch<colorCh; ch++ { zexp[li*colorCh+ch]=mean }
				}
			}

			for ch:=0; ch<colorCh; ch++ {
				numMean, denMean, numOut, denOut:=float32(0), float32(0), float32(0), float32(0)
				for li,f:=range frames {
					if !valid[li] { continue }
					sample:=f.Data[ch*size+i]
					ze:=zexp[li*colorCh+ch]
					wm:=1.0/(1.0+ze)
					var wo float32
					if math.IsInf(float64(ze), 1) {
						wo=1.0  // asymptote of the weight for huge deviations
					} else {
						wo=float32(math.Sqrt(softenerSq+float64(ze)*float64(ze))/(1.0+float64(ze)))
					}
					numMean+=wm*sample
					denMean+=wm
					numOut +=wo*sample
					denOut +=wo
				}

				// a zero weight sum with valid samples present falls back to the reference,
				// which happens when the softener is zero and no sample deviates
				rm:=cos[ch]
				if denMean>0 { rm=numMean/denMean } else { zeroWeight++ }
				ro:=cos[ch]
				if denOut>0  { ro=numOut/denOut }  else { zeroWeight++ }

				rm=float32(math.Round(float64(rm)))
				ro=float32(math.Round(float64(ro)))
				if rm<0 { rm=0; clipLow++ }  else if rm>255 { rm=255; clipHigh++ }
				if ro<0 { ro=0; clipLow++ }  else if ro>255 { ro=255; clipHigh++ }
				rmeanData[ch*size+i], routliersData[ch*size+i]=rm, ro
			}
		}
	}
	return noValid, zeroWeight, clipLow, clipHigh
}
