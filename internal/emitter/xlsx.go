package emitter

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/pkg/errors"
)

const (
	workbookFile    = "profile.xlsx"
	maxSheetNameLen = 31
)

// sheetName shortens a table name to a valid, unique sheet name.
func sheetName(name string, used map[string]bool) string {
	base := name
	if len(base) > maxSheetNameLen {
		base = base[len(base)-maxSheetNameLen:]
	}
	out := base
	for i := 2; used[out]; i++ {
		suffix := fmt.Sprintf("~%d", i)
		cut := base
		if len(cut)+len(suffix) > maxSheetNameLen {
			cut = cut[len(cut)+len(suffix)-maxSheetNameLen:]
		}
		out = cut + suffix
	}
	used[out] = true
	return out
}

// writeWorkbook stores every table as a sheet of one workbook. Numeric
// cells are written as numbers, blank cells are left empty.
func writeWorkbook(dir string, tables []Table) error {
	f := excelize.NewFile()
	used := make(map[string]bool)
	for i, t := range tables {
		sheet := sheetName(t.Name, used)
		if i == 0 {
			f.SetSheetName("Sheet1", sheet)
		} else {
			f.NewSheet(sheet)
		}
		for c, h := range t.Header {
			f.SetCellValue(sheet, excelize.ToAlphaString(c)+"1", h)
		}
		for r, row := range t.Rows {
			for c, cell := range row {
				if cell == "" {
					continue
				}
				axis := excelize.ToAlphaString(c) + strconv.Itoa(r+2)
				if v, err := strconv.ParseFloat(cell, 64); err == nil {
					f.SetCellValue(sheet, axis, v)
				} else {
					f.SetCellValue(sheet, axis, cell)
				}
			}
		}
	}
	path := filepath.Join(dir, workbookFile)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	raw, err := sortedZip(buf.Bytes())
	if err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// sortedZip rewrites an archive with its entries in name order and without
// modification times. excelize emits its parts in map order, so the same
// workbook would otherwise differ byte-wise from run to run.
func sortedZip(raw []byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, err
	}
	entries := append([]*zip.File(nil), zr.File...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.Name, Method: zip.Deflate})
		if err != nil {
			return nil, err
		}
		rc, err := e.Open()
		if err != nil {
			return nil, err
		}
		_, err = io.Copy(w, rc)
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "copy %s", e.Name)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
