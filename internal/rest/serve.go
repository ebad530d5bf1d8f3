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


package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"github.com/gin-gonic/gin"

	"github.com/mlnoga/burststack/internal/ops"
	"github.com/mlnoga/burststack/internal/ops/align"
	"github.com/mlnoga/burststack/internal/ops/consensus"
	"github.com/mlnoga/burststack/internal/stats"
	"github.com/mlnoga/burststack/web"
)


func Serve(port int) {
	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET ("/ping",      getPing)
			v1.POST("/align",     postAlign)
			v1.POST("/median",    postMedian)
			v1.POST("/consensus", postConsensus)
		}
	}
	r.GET("/", getIndex)
	r.Run(fmt.Sprintf(":%d", port))
}

func getPing(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "pong",
	})
}

func getIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m,err:=json.MarshalIndent(args, "", "  ")
	if err!=nil { return err }
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Globs the file patterns into load promises, chains the given operators
// and materializes all results, streaming progress into the log writer
func runPipeline(logWriter io.Writer, filePatterns []string, operators []ops.Operator) error {
	c:=ops.NewContext(logWriter, stats.LSESCMedianQn)
	promises, err:=ops.NewOpLoadMany(filePatterns).MakePromises(nil, c)
	if err!=nil { return err }
	for _,op:=range operators {
		promises, err=op.MakePromises(promises, c)
		if err!=nil { return err }
	}
	_, err=ops.MaterializeAll(promises, c.MaxThreads, true)
	return err
}

type postAlignArgs struct {
	FilePatterns []string        `json:"filePatterns"`
	Align         *align.OpAlign `json:"align"`
	Save          *ops.OpSave    `json:"save"`
}

func postAlign(c *gin.Context)  {
	logWriter := c.Writer
	var args postAlignArgs
	if err:=c.ShouldBind(&args); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}

	header := logWriter.Header()
	header.Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err:=printArgs(logWriter, "Arguments:\n", "\n", args); err!=nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	if args.Align==nil { args.Align=align.NewOpAlignDefault() }
	operators:=[]ops.Operator{args.Align}
	if args.Save!=nil {
		operators=append(operators, ops.NewOpForEach(args.Save))
	}

	if err:=runPipeline(logWriter, args.FilePatterns, operators); err!=nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	}
	logWriter.(http.Flusher).Flush()

	return
}


type postMedianArgs struct {
	FilePatterns []string                  `json:"filePatterns"`
	Align         *align.OpAlign           `json:"align"`
	Median        *consensus.OpMedianStack `json:"median"`
	Save          *ops.OpSave              `json:"save"`
}

func postMedian(c *gin.Context) {
	logWriter := c.Writer
	var args postMedianArgs
	if err:=c.ShouldBind(&args); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}

	header := logWriter.Header()
	header.Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err:=printArgs(logWriter, "Arguments:\n", "\n", args); err!=nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	operators:=[]ops.Operator{}
	if args.Align!=nil && args.Align.IsActive() {
		operators=append(operators, args.Align)
	}
	if args.Median==nil { args.Median=consensus.NewOpMedianStackDefault() }
	operators=append(operators, args.Median)
	if args.Save!=nil {
		operators=append(operators, ops.NewOpForEach(args.Save))
	}

	if err:=runPipeline(logWriter, args.FilePatterns, operators); err!=nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	}
	logWriter.(http.Flusher).Flush()

	return
}


type postConsensusArgs struct {
	FilePatterns []string                `json:"filePatterns"`
	Align         *align.OpAlign         `json:"align"`
	Consensus     *consensus.OpConsensus `json:"consensus"`
}

func postConsensus(c *gin.Context) {
	logWriter := c.Writer
	var args postConsensusArgs
	if err:=c.ShouldBind(&args); err!=nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error() } )
		return
	}

	header := logWriter.Header()
	header.Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)

	if err:=printArgs(logWriter, "Arguments:\n", "\n", args); err!=nil {
		fmt.Fprintf(logWriter, "Error printing arguments: %s\n", err.Error())
		return
	}

	operators:=[]ops.Operator{}
	if args.Align!=nil && args.Align.IsActive() {
		operators=append(operators, args.Align)
	}
	if args.Consensus==nil { args.Consensus=consensus.NewOpConsensusDefault() }
	operators=append(operators, args.Consensus)

	if err:=runPipeline(logWriter, args.FilePatterns, operators); err!=nil {
		fmt.Fprintf(logWriter, "error: %s\n", err.Error())
	}
	logWriter.(http.Flusher).Flush()

	return
}
