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

// Package meta reads camera metadata from burst source files and summarizes
// it into a sidecar for stacked results. Metadata is informational only,
// stacking proceeds without it.
package meta

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// Camera metadata for a single source frame. Zero values mean the
// corresponding tag was absent
type Info struct {
	FileName string  `json:"fileName"`
	Camera   string  `json:"camera,omitempty"`
	ISO      int64   `json:"iso,omitempty"`
	FNumber  float32 `json:"fNumber,omitempty"`
	Exposure float32 `json:"exposure,omitempty"` // in seconds
	TakenAt  string  `json:"takenAt,omitempty"`  // RFC3339
}

// Merged metadata for a stacked result
type Summary struct {
	Sources       []string `json:"sources"`
	Frames        int      `json:"frames"`
	Camera        string   `json:"camera,omitempty"`
	ISOMin        int64    `json:"isoMin,omitempty"`
	ISOMax        int64    `json:"isoMax,omitempty"`
	FNumberMin    float32  `json:"fNumberMin,omitempty"`
	FNumberMax    float32  `json:"fNumberMax,omitempty"`
	ExposureTotal float32  `json:"exposureTotal,omitempty"` // in seconds
	Start         string   `json:"start,omitempty"`         // RFC3339
	End           string   `json:"end,omitempty"`           // RFC3339
}

// Reads EXIF metadata from the given file. Individual missing tags are not
// an error, an unreadable file or one without any EXIF segment is
func Load(fileName string) (*Info, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	ex, err := exif.Decode(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: no usable metadata: %s", fileName, err.Error())
	}

	info := &Info{FileName: fileName}
	if tag, err := ex.Get(exif.Model); err == nil {
		if s, err := tag.StringVal(); err == nil {
			info.Camera = s
		}
	}
	if tag, err := ex.Get(exif.ISOSpeedRatings); err == nil {
		if v, err := tag.Int64(0); err == nil {
			info.ISO = v
		}
	}
	if tag, err := ex.Get(exif.FNumber); err == nil {
		if num, denom, err := tag.Rat2(0); err == nil && denom != 0 {
			info.FNumber = float32(num) / float32(denom)
		}
	}
	if tag, err := ex.Get(exif.ExposureTime); err == nil {
		if num, denom, err := tag.Rat2(0); err == nil && denom != 0 {
			info.Exposure = float32(num) / float32(denom)
		}
	}
	if t, err := ex.DateTime(); err == nil {
		info.TakenAt = t.Format(time.RFC3339)
	}
	return info, nil
}

// Reads EXIF metadata from all files matching the given glob pattern,
// in sorted order. Files without usable metadata are skipped
func LoadGlob(pattern string) ([]*Info, error) {
	fileNames, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(fileNames) == 0 {
		return nil, fmt.Errorf("no files match %s", pattern)
	}

	infos := []*Info{}
	for _, fileName := range fileNames {
		info, err := Load(fileName)
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Merges per-frame metadata into a summary for a stacked result.
// Frames counts all sources, ranges cover the frames which carried the tag
func Merge(infos []*Info) *Summary {
	s := &Summary{Sources: []string{}, Frames: len(infos)}
	for _, info := range infos {
		s.Sources = append(s.Sources, info.FileName)
		if s.Camera == "" {
			s.Camera = info.Camera
		}
		if info.ISO > 0 {
			if s.ISOMin == 0 || info.ISO < s.ISOMin {
				s.ISOMin = info.ISO
			}
			if info.ISO > s.ISOMax {
				s.ISOMax = info.ISO
			}
		}
		if info.FNumber > 0 {
			if s.FNumberMin == 0 || info.FNumber < s.FNumberMin {
				s.FNumberMin = info.FNumber
			}
			if info.FNumber > s.FNumberMax {
				s.FNumberMax = info.FNumber
			}
		}
		s.ExposureTotal += info.Exposure
		if info.TakenAt != "" {
			// RFC3339 in a single zone sorts chronologically
			if s.Start == "" || info.TakenAt < s.Start {
				s.Start = info.TakenAt
			}
			if info.TakenAt > s.End {
				s.End = info.TakenAt
			}
		}
	}
	return s
}

// Writes the summary as an indented JSON sidecar file
func (s *Summary) WriteToFile(fileName string) error {
	data, err := json.MarshalIndent(s, "", "\t")
	if err != nil {
		return err
	}
	return os.WriteFile(fileName, append(data, '\n'), 0644)
}
