package albert

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"edubag/lib/htmlutil"
	"edubag/lib/tabular"

	"github.com/PuerkitoBio/goquery"
)

// classDetailRe matches strings like "MATH-UA 122 (0)-001": subject code,
// catalog number, section.
var classDetailRe = regexp.MustCompile(`(.+?)\s+(\d+)\s*\(.*?\)-(.+)`)

// Roster is a class roster downloaded from Albert. The "Excel" export Albert
// produces is actually an HTML document with metadata in bold tags and the
// student list in the first table.
type Roster struct {
	// Course holds metadata key-value pairs, e.g. "Class Detail",
	// "Semester", "Subject Code".
	Course map[string]string
	// Students has one row per enrolled student.
	Students *tabular.Table
}

// ParseRoster parses the HTML document of an Albert roster export.
func ParseRoster(r io.Reader) (*Roster, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse roster html: %w", err)
	}

	metadata := map[string]string{}
	doc.Find("b").Each(func(_ int, tag *goquery.Selection) {
		key := strings.Trim(tag.Text(), ": ")
		parentText := tag.Parent().Text()
		value := strings.TrimSpace(strings.Replace(parentText, tag.Text(), "", 1))
		if key != "" && value != "" {
			metadata[key] = value
		}
	})

	if detail := metadata["Class Detail"]; detail != "" {
		if match := classDetailRe.FindStringSubmatch(detail); match != nil {
			metadata["Subject Code"] = match[1]
			metadata["Catalog Number"] = match[2]
			metadata["Section"] = match[3]
		}
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("roster html contains no table")
	}

	students := parseHtmlTable(table)
	if students.NumRows() == 0 && len(students.Columns) == 0 {
		return nil, fmt.Errorf("roster table is empty")
	}

	return &Roster{Course: metadata, Students: students}, nil
}

// ParseRosterFile reads and parses a roster export from disk.
func ParseRosterFile(path string) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseRoster(f)
}

func parseHtmlTable(table *goquery.Selection) *tabular.Table {
	var header []string
	var rows [][]string
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, htmlutil.NormalizeText(cell.Text()))
		})
		if i == 0 {
			header = cells
		} else {
			rows = append(rows, cells)
		}
	})
	out := tabular.New(header...)
	for _, row := range rows {
		for len(row) < len(header) {
			row = append(row, "")
		}
		out.Rows = append(out.Rows, row[:len(header)])
	}
	return out
}

// PathStem serializes the course metadata for use in file names, in the form
// SUBJECT_CATALOG_SECTION_TERMCODE.
func (r *Roster) PathStem() string {
	subject := r.Course["Subject Code"]
	if subject == "" {
		subject = "UNKNOWN"
	}
	catalog := r.Course["Catalog Number"]
	if catalog == "" {
		catalog = "000"
	}
	section := r.Course["Section"]
	if section == "" {
		section = "000"
	}
	semester := r.Course["Semester"]
	if semester == "" {
		semester = "Fall 2025"
	}
	term, err := ParseTerm(semester)
	if err != nil {
		term = Term{Year: 2025, Season: SeasonFall}
	}
	return fmt.Sprintf("%s_%s_%s_%d", subject, catalog, section, term.Code())
}

// WriteCSV saves the student table to CSV. Course metadata is not written,
// use PathStem to carry it in the file name instead.
func (r *Roster) WriteCSV(w io.Writer) error {
	return r.Students.WriteCSV(w)
}

// WriteCSVFile saves the student table to a CSV file.
func (r *Roster) WriteCSVFile(path string) error {
	return r.Students.WriteCSVFile(path)
}
