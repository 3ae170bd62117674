package utils

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/xuri/excelize/v2"
)

// GenerateExcel writes a slice of structs to a single-sheet workbook. Each header names a
// struct field; fields that do not exist are left blank.
func GenerateExcel(data interface{}, sheetName string, headers []string) (*bytes.Buffer, error) {
	dataSlice := reflect.ValueOf(data)
	if dataSlice.Kind() != reflect.Slice {
		return nil, fmt.Errorf("expected data to be a slice, got %v", dataSlice.Kind())
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return nil, fmt.Errorf("error setting header %s: %w", header, err)
		}
	}

	for row := 0; row < dataSlice.Len(); row++ {
		item := reflect.Indirect(dataSlice.Index(row))
		for col, header := range headers {
			field := item.FieldByName(header)
			if !field.IsValid() {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheetName, cell, cellValue(field)); err != nil {
				return nil, fmt.Errorf("error setting value for field %s (row %d): %w", header, row+2, err)
			}
		}
	}

	f.SetActiveSheet(index)
	if sheetName != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("error writing workbook: %w", err)
	}
	return buf, nil
}

// cellValue unwraps pointers and renders Stringers (decimal, uuid) as text
func cellValue(field reflect.Value) interface{} {
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return ""
		}
		field = field.Elem()
	}
	value := field.Interface()
	if s, ok := value.(fmt.Stringer); ok {
		return s.String()
	}
	return value
}
