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

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/debug"
	"strings"
	"time"
	"github.com/mlnoga/burststack/internal/meta"
	"github.com/mlnoga/burststack/internal/ops"
	"github.com/mlnoga/burststack/internal/ops/align"
	"github.com/mlnoga/burststack/internal/ops/consensus"
	"github.com/mlnoga/burststack/internal/rest"
	"github.com/mlnoga/burststack/internal/stats"
)

const version = "0.1.0"

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
var memprofile = flag.String("memprofile", "", "write memory profile to `file`")

var out      = flag.String("out", "out.png", "save result to `file`; %d expands to the frame number for align")
var outliers = flag.String("outliers", "%auto", "save outlier image to `file`. `%auto` appends _outliers to the out file name")
var logF     = flag.String("log", "%auto", "save log output to `file`. `%auto` replaces suffix of out file with .log")
var marked   = flag.String("marked", "", "save RGB frames with centroid marker rings with given filename pattern, e.g. `marked%03d.png`")

var doAlign   = flag.Int64("align", 1, "1=align frames on their bright feature, 0=skip for pre-aligned bursts")
var radius    = flag.Int64("radius", 2, "median smoothing radius in pixels for feature detection")
var threshold = flag.Float64("threshold", 32, "logistic threshold for feature detection, <=0: derive location plus four scales from image stats")

var scale    = flag.Float64("scale", 32, "deviation scale in sample units for consensus weights")
var exponent = flag.Int64("exponent", 4, "deviation exponent for consensus weights, positive and even")
var softener = flag.Float64("softener", 0.5, "softening for outlier weights, zero sharpens fully")
var bind     = flag.Int64("bind", 1, "1=bind color channels to one outlier judgment per pixel, 0=judge channels independently")
var ref      = flag.String("ref", "", "use given `file` as consensus reference instead of the per-pixel median")

var metaGlob = flag.String("meta", "", "read capture metadata from files matching `glob` instead of the inputs")
var sidecar  = flag.Int64("sidecar", 1, "1=write capture summary JSON next to the out file, 0=don't")

var gamma      = flag.Float64("gamma", 1, "apply output gamma, 1: keep linear data")
var jpgQuality = flag.Int64("jpgQuality", 95, "quality for JPEG output in [1,100]")

var memoryMB = flag.Int64("memory", 0, "total MiB of memory to use, 0=physical memory; stacking uses 0.7x of this")
var lsEst    = flag.Int64("lsEstimator", 2, "location and scale estimators 0=mean/stddev, 1=median/MAD, 2=iterative sigma-clipped sampled median and sampled Qn (standard), 3=histogram peak")

var port   = flag.Int64("port", 8080, "network port for the serve command")
var chroot = flag.String("chroot", "", "change filesystem root to `dir` for the serve command, requires root")
var setuid = flag.Int64("setuid", -1, "switch to user `id` for the serve command, -1=don't")

func main() {
	logWriter:=io.Writer(os.Stdout)
	debug.SetGCPercent(10)
	start:=time.Now()
	flag.Usage=func(){
 	    fmt.Fprintf(logWriter, `Burststack Copyright (c) 2020 Markus L. Noga
This program comes with ABSOLUTELY NO WARRANTY.
This is free software, and you are welcome to redistribute it under certain conditions.
Refer to https://www.gnu.org/licenses/gpl-3.0.en.html for details.

Usage: %s [-flag value] (align|median|consensus|serve|legal|version|help) (img0.png ... imgn.png)

Commands:
  align     Align frames on their common bright feature and save them
  median    Align frames and stack them with the per-pixel median
  consensus Align frames and compute robust mean and outlier images
  serve     Serve the processing API over HTTP
  legal     Show license and attribution information
  version   Show version information

Flags:
`, os.Args[0])
	    flag.PrintDefaults()
	}
	flag.Parse()

	// Initialize logging to file in addition to stdout, if selected
	if *logF=="%auto" {
		if *out!="" {
			*logF=strings.TrimSuffix(*out, filepath.Ext(*out))+".log"
		} else {
			*logF=""
		}
	}
	if *logF!="" {
		f, err:=os.OpenFile(*logF, os.O_CREATE | os.O_TRUNC | os.O_WRONLY, 0666)
		if err!=nil {
			fmt.Fprintf(os.Stderr, "Unable to open logfile '%s'\n", *logF)
			os.Exit(-1)
		}
		defer f.Close()
		logWriter=io.MultiWriter(os.Stdout, f)
	}

	// Also auto-select the outlier output target
	if *outliers=="%auto" {
		if *out!="" {
			ext:=filepath.Ext(*out)
			*outliers=strings.TrimSuffix(*out, ext)+"_outliers"+ext
		} else {
			*outliers=""
		}
	}

	// Enable CPU profiling if flagged
    if *cpuprofile != "" {
        f, err := os.Create(*cpuprofile)
        if err != nil {
            fmt.Fprintf(logWriter, "Could not create CPU profile: %s\n", err.Error())
            os.Exit(-1)
        }
        defer f.Close()
        if err := pprof.StartCPUProfile(f); err != nil {
            fmt.Fprintf(logWriter, "Could not start CPU profile: %s\n", err.Error())
            os.Exit(-1)
        }
        defer pprof.StopCPUProfile()
    }

    args:=flag.Args()
    if len(args)<1 {
    	flag.Usage()
    	return
    }
    if args[0]=="align" || args[0]=="median" || args[0]=="consensus" {
	    fmt.Fprintf(logWriter, "Using location and scale estimator %d\n", *lsEst)
	}

	c:=ops.NewContext(logWriter, stats.LSEstimatorMode(*lsEst))
	if *memoryMB>0 {
		c.MemoryMB=int(*memoryMB)
		c.StackMemoryMB=int(*memoryMB)*7/10
	}

	// run actions
	var err error
    switch args[0] {
    case "align":
    	err=cmdAlign(args[1:], c)

    case "median":
    	err=cmdMedian(args[1:], c)
    	if err==nil && *sidecar!=0 { writeSidecar(logWriter, args[1:]) }

    case "consensus":
    	err=cmdConsensus(args[1:], c)
    	if err==nil && *sidecar!=0 { writeSidecar(logWriter, args[1:]) }

    case "serve":
    	rest.MakeSandbox(*chroot, int(*setuid))
    	rest.Serve(int(*port))

    case "legal":
    	fmt.Fprintf(logWriter, "%s\n", legal)

    case "version":
    	fmt.Fprintf(logWriter, "Version %s\n", version)

    case "help", "?":
    	flag.Usage()

    default:
    	fmt.Fprintf(logWriter, "Unknown command '%s'\n\n", args[0])
    	flag.Usage()
    	return
    }

	now:=time.Now()
	elapsed:=now.Sub(start)
	fmt.Fprintf(logWriter, "\nDone after %v\n", elapsed)

	// Store memory profile if flagged
    if *memprofile != "" {
        f, err := os.Create(*memprofile)
        if err != nil {
            fmt.Fprintf(logWriter, "Could not create memory profile: %s\n", err.Error())
            os.Exit(-1)
        }
        defer f.Close()
        runtime.GC() // get up-to-date statistics
        if err := pprof.Lookup("allocs").WriteTo(f,0); err != nil {
            fmt.Fprintf(logWriter, "Could not write allocation profile: %s\n", err.Error())
            os.Exit(-1)
        }
    }

    if err!=nil {
		fmt.Fprintf(logWriter, "Error: %s\n", err.Error())
		os.Exit(-1)
	}
}

// Chains the operators over the globbed input files, skipping inactive
// operators, and materializes all results
func run(patterns []string, operators []ops.Operator, c *ops.Context) error {
	promises, err:=ops.NewOpLoadMany(patterns).MakePromises(nil, c)
	if err!=nil { return err }
	for _,op:=range operators {
		if !op.IsActive() { continue }
		promises, err=op.MakePromises(promises, c)
		if err!=nil { return err }
	}
	_, err=ops.MaterializeAll(promises, c.MaxThreads, true)
	return err
}

// Builds the alignment operator from the command line flags
func newOpAlignFromFlags() *align.OpAlign {
	op:=align.NewOpAlign(int32(*radius), float32(*threshold), ops.NewOpSave(*marked, float32(*gamma), int(*jpgQuality)))
	op.Active=*doAlign!=0
	return op
}

// Aligns the input frames and writes each to the output pattern
func cmdAlign(patterns []string, c *ops.Context) error {
	operators:=[]ops.Operator{
		newOpAlignFromFlags(),
		ops.NewOpForEach(ops.NewOpSave(*out, float32(*gamma), int(*jpgQuality))),
	}
	return run(patterns, operators, c)
}

// Aligns the input frames and stacks them with the per-pixel median
func cmdMedian(patterns []string, c *ops.Context) error {
	operators:=[]ops.Operator{
		newOpAlignFromFlags(),
		consensus.NewOpMedianStackDefault(),
		ops.NewOpForEach(ops.NewOpSave(*out, float32(*gamma), int(*jpgQuality))),
	}
	return run(patterns, operators, c)
}

// Aligns the input frames and estimates the robust consensus,
// writing the robust mean and the outlier image
func cmdConsensus(patterns []string, c *ops.Context) error {
	opCons:=consensus.NewOpConsensus(int32(*exponent), float32(*scale), float32(*softener), *bind!=0, *ref)
	opCons.SaveMean    =ops.NewOpSave(*out,      float32(*gamma), int(*jpgQuality))
	opCons.SaveOutliers=ops.NewOpSave(*outliers, float32(*gamma), int(*jpgQuality))
	operators:=[]ops.Operator{
		newOpAlignFromFlags(),
		opCons,
	}
	return run(patterns, operators, c)
}

// Writes a JSON capture summary next to the main output file. Metadata
// problems are reported as warnings, the pixel outputs remain valid
func writeSidecar(logWriter io.Writer, patterns []string) {
	if *metaGlob!="" { patterns=[]string{*metaGlob} }
	infos:=[]*meta.Info{}
	for _,pattern:=range patterns {
		in, err:=meta.LoadGlob(pattern)
		if err!=nil { continue }
		infos=append(infos, in...)
	}
	if len(infos)==0 {
		fmt.Fprintf(logWriter, "Warning: no capture metadata found, skipping summary\n")
		return
	}
	summary:=meta.Merge(infos)
	fileName:=strings.TrimSuffix(*out, filepath.Ext(*out))+".json"
	if err:=summary.WriteToFile(fileName); err!=nil {
		fmt.Fprintf(logWriter, "Warning: cannot write capture summary: %s\n", err.Error())
		return
	}
	fmt.Fprintf(logWriter, "Wrote capture summary of %d frames to %s\n", summary.Frames, fileName)
}
