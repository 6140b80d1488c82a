package etl

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
)

// ErrParseFailure means the uploaded payload could not be interpreted as
// tabular or text data at all. Surfaced to callers as a 400.
var ErrParseFailure = errors.New("uploaded payload could not be parsed")

// ParseUpload turns raw upload bytes into a Dataset. CSV and JSON payloads
// become structured datasets; binary documents are converted to plain text
// with docconv; everything else is treated as UTF-8 text. The second return
// reports whether the source was unstructured text.
func ParseUpload(filename, contentType string, data []byte) (*Dataset, bool, error) {
	if len(data) == 0 {
		return nil, false, fmt.Errorf("%w: empty file", ErrParseFailure)
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		ds, err := parseCSV(data)
		if err != nil {
			return nil, false, err
		}
		return ds, false, nil
	case ".json":
		ds, err := parseJSON(data)
		if err != nil {
			return nil, false, err
		}
		return ds, false, nil
	case ".pdf", ".docx", ".doc", ".rtf", ".odt", ".pages":
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = mime.TypeByExtension(ext)
		}
		res, err := docconv.Convert(bytes.NewReader(data), contentType, false)
		if err != nil || strings.TrimSpace(res.Body) == "" {
			return nil, false, fmt.Errorf("%w: document extraction failed: %v", ErrParseFailure, err)
		}
		return textDataset(res.Body), true, nil
	}

	if !utf8.Valid(data) {
		return nil, false, fmt.Errorf("%w: binary payload with unsupported type", ErrParseFailure)
	}
	return textDataset(string(data)), true, nil
}

func parseCSV(data []byte) (*Dataset, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // ragged rows handled by the normalizer's outer union
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid csv: %v", ErrParseFailure, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: csv has no rows", ErrParseFailure)
	}

	header := records[0]
	ds := &Dataset{Columns: header}
	for _, rec := range records[1:] {
		row := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = typeCell(rec[i])
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// parseJSON accepts either an array of objects or an object of equal-length
// arrays (column orientation), mirroring what a DataFrame constructor takes.
func parseJSON(data []byte) (*Dataset, error) {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err == nil {
		ds := &Dataset{}
		seen := map[string]bool{}
		for _, rec := range records {
			keys := make([]string, 0, len(rec))
			for k := range rec {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if !seen[k] {
					seen[k] = true
					ds.Columns = append(ds.Columns, k)
				}
			}
			ds.Rows = append(ds.Rows, rec)
		}
		if len(ds.Rows) == 0 {
			return nil, fmt.Errorf("%w: json array is empty", ErrParseFailure)
		}
		return ds, nil
	}

	var columns map[string][]any
	if err := json.Unmarshal(data, &columns); err == nil && len(columns) > 0 {
		names := make([]string, 0, len(columns))
		length := 0
		for k, vals := range columns {
			names = append(names, k)
			if len(vals) > length {
				length = len(vals)
			}
		}
		sort.Strings(names)
		ds := &Dataset{Columns: names}
		for i := 0; i < length; i++ {
			row := make(map[string]any, len(names))
			for _, k := range names {
				if i < len(columns[k]) {
					row[k] = columns[k][i]
				}
			}
			ds.Rows = append(ds.Rows, row)
		}
		return ds, nil
	}

	return nil, fmt.Errorf("%w: json is neither an array of objects nor column arrays", ErrParseFailure)
}

// textDataset wraps free text as a single-column dataset so unstructured
// uploads persist through the same report path.
func textDataset(text string) *Dataset {
	ds := &Dataset{Columns: []string{"content"}}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ds.Rows = append(ds.Rows, map[string]any{"content": line})
	}
	if len(ds.Rows) == 0 {
		ds.Rows = append(ds.Rows, map[string]any{"content": strings.TrimSpace(text)})
	}
	return ds
}

// typeCell gives CSV cells their natural type so the normalizer can classify
// columns without re-parsing.
func typeCell(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if f, ok := asFloat(s); ok {
		return f
	}
	return s
}
