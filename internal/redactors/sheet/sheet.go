// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package sheet rewrites Excel workbooks by applying a replacement map to
// every string cell across all sheets.
package sheet

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"anonymail/internal/replacement"
)

// Rewrite returns a copy of the workbook with the map applied to all cell
// values. Formulas and numeric cells whose rendered value contains a map
// key are rewritten to the replaced literal.
func Rewrite(raw []byte, m replacement.Map) ([]byte, error) {
	if len(m) == 0 {
		return raw, nil
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
		}
		for ri, row := range rows {
			for ci, value := range row {
				if value == "" {
					continue
				}
				rewritten := replacement.Apply(value, m)
				if rewritten == value {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(ci+1, ri+1)
				if err != nil {
					return nil, fmt.Errorf("addressing cell %d,%d: %w", ci+1, ri+1, err)
				}
				if err := f.SetCellStr(sheet, cell, rewritten); err != nil {
					return nil, fmt.Errorf("writing cell %s!%s: %w", sheet, cell, err)
				}
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serializing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ExtractText returns all cell text, one row per line with cells separated
// by tabs, sheets in workbook order.
func ExtractText(raw []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	var b bytes.Buffer
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("reading sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			line := ""
			for i, value := range row {
				if i > 0 {
					line += "\t"
				}
				line += value
			}
			if len(bytes.TrimSpace([]byte(line))) == 0 {
				continue
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}
