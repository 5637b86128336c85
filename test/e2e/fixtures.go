package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WriteCorpusFiles writes every corpus series to dir, alternating between CSV
// and XLSX, under one subdirectory per family. It returns the path of each
// series by id.
func WriteCorpusFiles(dir string, c *Corpus) (map[string]string, error) {
	paths := make(map[string]string, len(c.Series))
	for i, s := range c.Series {
		sub := filepath.Join(dir, s.Family)
		if err := os.MkdirAll(sub, 0755); err != nil {
			return nil, err
		}
		var (
			path string
			err  error
		)
		if i%2 == 0 {
			path = filepath.Join(sub, s.ID+".csv")
			err = os.WriteFile(path, csvBytes(s.Values), 0644)
		} else {
			path = filepath.Join(sub, s.ID+".xlsx")
			err = writeXlsx(path, s.Values)
		}
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", s.ID, err)
		}
		paths[s.ID] = path
	}
	return paths, nil
}

func csvBytes(values []float64) []byte {
	var b strings.Builder
	b.WriteString("t,value\n")
	for i, v := range values {
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func writeXlsx(path string, values []float64) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	if err := f.SetCellValue(sheet, "A1", "value"); err != nil {
		return err
	}
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
