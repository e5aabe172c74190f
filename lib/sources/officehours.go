package sources

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"edubag/lib/tabular"

	"github.com/PuerkitoBio/goquery"
)

const VisitCountColumn = "visit_count"

// OfficeHours is an office hours visit log. The queue software exports
// either an HTML page of mailto links (sometimes zipped) or a CSV.
type OfficeHours struct {
	TableSource
}

// ParseOfficeHoursHTML counts visits per student from the mailto anchors of
// an HTML log.
func ParseOfficeHoursHTML(r io.Reader) (*OfficeHours, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse office hours html: %w", err)
	}

	totalAnchors := 0
	counts := map[string]int{}
	doc.Find(`a[href^="mailto:"]`).Each(func(_ int, anchor *goquery.Selection) {
		email := strings.TrimPrefix(anchor.AttrOr("href", ""), "mailto:")
		email, _, _ = strings.Cut(email, "?")
		email = strings.TrimSpace(email)
		if email == "" {
			return
		}
		totalAnchors++
		local, _, found := strings.Cut(email, "@")
		if found {
			counts[local]++
		}
	})

	usernames := make([]string, 0, len(counts))
	for username := range counts {
		usernames = append(usernames, username)
	}
	// most frequent visitors first, ties in name order
	sort.Slice(usernames, func(i, j int) bool {
		if counts[usernames[i]] != counts[usernames[j]] {
			return counts[usernames[i]] > counts[usernames[j]]
		}
		return usernames[i] < usernames[j]
	})

	data := tabular.New(UsernameColumn, VisitCountColumn)
	for _, username := range usernames {
		data.AppendMap(map[string]string{
			UsernameColumn:   username,
			VisitCountColumn: strconv.Itoa(counts[username]),
		})
	}

	return &OfficeHours{TableSource{
		Data: data,
		Meta: map[string]string{
			"type":          "office_hours_html",
			"total_anchors": strconv.Itoa(totalAnchors),
		},
	}}, nil
}

// LoadOfficeHoursZip reads the first HTML file inside a zip archive.
func LoadOfficeHoursZip(path string) (*OfficeHours, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	for _, member := range archive.File {
		name := strings.ToLower(member.Name)
		if !strings.HasSuffix(name, ".html") && !strings.HasSuffix(name, ".htm") {
			continue
		}
		f, err := member.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		src, err := ParseOfficeHoursHTML(f)
		if err != nil {
			return nil, err
		}
		src.Meta["type"] = "office_hours_html_zip"
		src.Meta["source"] = path
		src.Meta["inner_file"] = member.Name
		return src, nil
	}
	return nil, fmt.Errorf("no html file found in zip: %s", path)
}

// LoadOfficeHoursCSV reads a CSV visit log with one row per visit.
func LoadOfficeHoursCSV(path string) (*OfficeHours, error) {
	data, err := tabular.ReadCSVFile(path)
	if err != nil {
		return nil, err
	}
	for i, c := range data.Columns {
		data.Columns[i] = strings.TrimSpace(c)
	}
	return &OfficeHours{TableSource{
		Data: data,
		Meta: map[string]string{"type": "office_hours", "source": path},
	}}, nil
}

// LoadOfficeHours dispatches on the file extension.
func LoadOfficeHours(path string) (*OfficeHours, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		return LoadOfficeHoursZip(path)
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		src, err := ParseOfficeHoursHTML(f)
		if err != nil {
			return nil, err
		}
		src.Meta["source"] = path
		return src, nil
	default:
		return LoadOfficeHoursCSV(path)
	}
}

// CountVisits collapses a per-visit log into one row per student. Logs
// parsed from HTML are already in this shape.
func (o *OfficeHours) CountVisits() (*tabular.Table, error) {
	if err := o.ResolveIdentity(); err != nil {
		return nil, err
	}
	if o.Data.HasColumn(VisitCountColumn) {
		return o.Data.Select(UsernameColumn, VisitCountColumn), nil
	}

	counts := map[string]int{}
	var order []string
	for i := 0; i < o.Data.NumRows(); i++ {
		username := o.Data.Get(i, UsernameColumn)
		if username == "" {
			continue
		}
		if _, seen := counts[username]; !seen {
			order = append(order, username)
		}
		counts[username]++
	}

	out := tabular.New(UsernameColumn, VisitCountColumn)
	for _, username := range order {
		out.AppendMap(map[string]string{
			UsernameColumn:   username,
			VisitCountColumn: strconv.Itoa(counts[username]),
		})
	}
	return out, nil
}
