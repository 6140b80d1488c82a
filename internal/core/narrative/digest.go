package narrative

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/saidurgaphani/CS2026/internal/core/etl"
)

const previewRows = 5

// Digest is the statistical summary handed to the narrative model: enough
// shape and numbers to write about, small enough to fit any prompt window.
type Digest struct {
	Title  string
	Domain string
	IsText bool
	Body   string
}

// BuildDigest renders a cleaned dataset into a textual digest: normalized
// schema, resolved roles, per-numeric-column summary statistics, and a small
// JSON preview of rows.
func BuildDigest(ds *etl.Dataset, roles map[string]string, title, domain string, isText bool) Digest {
	var b strings.Builder

	fmt.Fprintf(&b, "Dataset: %d rows, %d columns\n", len(ds.Rows), len(ds.Columns))
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(ds.Columns, ", "))

	if len(roles) > 0 {
		keys := make([]string, 0, len(roles))
		for k := range roles {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, fmt.Sprintf("%s=%s", k, roles[k]))
		}
		fmt.Fprintf(&b, "Resolved roles: %s\n", strings.Join(pairs, ", "))
	}

	for _, col := range ds.Columns {
		stats, ok := columnStats(ds, col)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "%s: count=%d sum=%.2f mean=%.2f min=%.2f max=%.2f\n",
			col, stats.count, stats.sum, stats.mean, stats.min, stats.max)
	}

	n := len(ds.Rows)
	if n > previewRows {
		n = previewRows
	}
	if preview, err := json.Marshal(ds.Rows[:n]); err == nil {
		fmt.Fprintf(&b, "Preview: %s\n", preview)
	}

	return Digest{Title: title, Domain: domain, IsText: isText, Body: b.String()}
}

type stats struct {
	count               int
	sum, mean, min, max float64
}

func columnStats(ds *etl.Dataset, col string) (stats, bool) {
	var s stats
	for _, row := range ds.Rows {
		f, ok := row[col].(float64)
		if !ok {
			continue
		}
		if s.count == 0 {
			s.min, s.max = f, f
		}
		if f < s.min {
			s.min = f
		}
		if f > s.max {
			s.max = f
		}
		s.sum += f
		s.count++
	}
	if s.count == 0 {
		return s, false
	}
	s.mean = s.sum / float64(s.count)
	return s, true
}
