// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stats

import (
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	blocksSheet = "blocks"
	histSheet   = "bytes"
)

// WriteXLSX writes the per-block summaries, the byte distribution and a
// z-score chart to the spreadsheet fname.
func (rep *Report) WriteXLSX(fname string) error {
	f := excelize.NewFile()
	defer f.Close()

	def := f.GetSheetName(0)
	for _, name := range []string{blocksSheet, histSheet} {
		_, err := f.NewSheet(name)
		if err != nil {
			return fmt.Errorf("stats: could not create sheet %q: %w", name, err)
		}
	}
	err := f.DeleteSheet(def)
	if err != nil {
		return fmt.Errorf("stats: could not delete default sheet: %w", err)
	}

	err = fillBlocks(f, blocksSheet, rep.Blocks)
	if err != nil {
		return err
	}
	err = fillBytes(f, histSheet, rep.counts[:])
	if err != nil {
		return err
	}

	if len(rep.Blocks) > 0 {
		end := len(rep.Blocks) + 1
		chart := &excelize.Chart{
			Type: excelize.Line,
			Series: []excelize.ChartSeries{
				{
					Name:       fmt.Sprintf("%s!$G$1", blocksSheet),
					Categories: fmt.Sprintf("%s!$A$2:$A$%d", blocksSheet, end),
					Values:     fmt.Sprintf("%s!$G$2:$G$%d", blocksSheet, end),
				},
			},
			Title:  []excelize.RichTextRun{{Text: filepath.Base(rep.Name)}},
			Legend: excelize.ChartLegend{Position: "none"},
			XAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "block"}}},
			YAxis: excelize.ChartAxis{
				Title:          []excelize.RichTextRun{{Text: fmt.Sprintf("z-score (%d bits per block)", 8*rep.BlockLen)}},
				MajorGridLines: true,
			},
		}
		err = f.AddChart(blocksSheet, "I2", chart)
		if err != nil {
			return fmt.Errorf("stats: could not add z-score chart: %w", err)
		}
	}

	err = f.SaveAs(fname)
	if err != nil {
		return fmt.Errorf("stats: could not save %q: %w", fname, err)
	}
	return nil
}

func fillBlocks(f *excelize.File, sheet string, blocks []Block) error {
	var err error
	set := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}
	for i, v := range []string{"block", "good", "max_bin", "max_byte", "max_run", "ones", "z_score"} {
		cell, e := excelize.CoordinatesToCellName(i+1, 1)
		set(e)
		set(f.SetCellStr(sheet, cell, v))
	}
	for i, blk := range blocks {
		row := i + 2
		set(f.SetCellInt(sheet, fmt.Sprintf("A%d", row), blk.Index))
		set(f.SetCellBool(sheet, fmt.Sprintf("B%d", row), blk.Good))
		set(f.SetCellInt(sheet, fmt.Sprintf("C%d", row), blk.Quality.MaxBin))
		set(f.SetCellInt(sheet, fmt.Sprintf("D%d", row), int(blk.Quality.MaxByte)))
		set(f.SetCellInt(sheet, fmt.Sprintf("E%d", row), blk.Quality.MaxRun))
		set(f.SetCellInt(sheet, fmt.Sprintf("F%d", row), blk.Ones))
		set(f.SetCellFloat(sheet, fmt.Sprintf("G%d", row), blk.ZScore, 6, 64))
		if err != nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("stats: could not fill sheet %q: %w", sheet, err)
	}
	return nil
}

func fillBytes(f *excelize.File, sheet string, counts []int64) error {
	var err error
	set := func(e error) {
		if err == nil && e != nil {
			err = e
		}
	}
	set(f.SetCellStr(sheet, "A1", "byte"))
	set(f.SetCellStr(sheet, "B1", "count"))
	for i, n := range counts {
		row := i + 2
		set(f.SetCellInt(sheet, fmt.Sprintf("A%d", row), i))
		set(f.SetCellInt(sheet, fmt.Sprintf("B%d", row), int(n)))
		if err != nil {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("stats: could not fill sheet %q: %w", sheet, err)
	}
	return nil
}
