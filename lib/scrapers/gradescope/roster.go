package gradescope

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"edubag/lib/scrapers/albert"
	"edubag/lib/tabular"
)

// albertDetailRe splits an Albert "Class Detail" like "MATH-UA 122 (0)-001"
// into subject, catalog and section.
var albertDetailRe = regexp.MustCompile(`^([A-Z-]+)\s+(\d+)\s+\(\d+\)-(\d+)$`)

// Roster is a course roster in Gradescope's CSV format.
type Roster struct {
	Students *tabular.Table
}

func ParseRoster(r io.Reader) (*Roster, error) {
	students, err := tabular.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("parse roster csv: %w", err)
	}
	return &Roster{Students: students}, nil
}

func ParseRosterFile(path string) (*Roster, error) {
	students, err := tabular.ReadCSVFile(path)
	if err != nil {
		return nil, err
	}
	return &Roster{Students: students}, nil
}

func (r *Roster) WriteCSV(w io.Writer) error {
	return r.Students.WriteCSV(w)
}

func (r *Roster) WriteCSVFile(path string) error {
	return r.Students.WriteCSVFile(path)
}

// FromAlbert converts an Albert roster into the column layout Gradescope
// imports. When readSection is set the section number is taken from the
// Albert class detail and added as a Section column.
func FromAlbert(roster *albert.Roster, readSection bool) (*Roster, error) {
	mapping := [][2]string{
		{"First Name", "First Name"},
		{"Last Name", "Last Name"},
		{"Email", "Email Address"},
		{"SID", "Campus ID"},
	}

	columns := make([]string, len(mapping))
	for i, m := range mapping {
		columns[i] = m[0]
	}
	students := tabular.New(columns...)
	for i := 0; i < roster.Students.NumRows(); i++ {
		row := make([]string, len(mapping))
		for j, m := range mapping {
			row[j] = roster.Students.Get(i, m[1])
		}
		students.Rows = append(students.Rows, row)
	}

	if readSection {
		detail := roster.Course["Class Detail"]
		match := albertDetailRe.FindStringSubmatch(detail)
		if match == nil {
			return nil, fmt.Errorf("could not parse section from class detail: %q", detail)
		}
		students.AddColumn("Section", match[3])
	}
	return &Roster{Students: students}, nil
}

// Merge concatenates several rosters into one. Column layout follows the
// first roster.
func Merge(rosters []*Roster) (*Roster, error) {
	if len(rosters) == 0 {
		return nil, fmt.Errorf("no rosters to merge")
	}
	merged := tabular.New(rosters[0].Students.Columns...)
	for _, r := range rosters {
		for i := 0; i < r.Students.NumRows(); i++ {
			cells := map[string]string{}
			for _, c := range merged.Columns {
				cells[c] = r.Students.Get(i, c)
			}
			merged.AppendMap(cells)
		}
	}
	return &Roster{Students: merged}, nil
}

// ObscureEmails prefixes "hidden." to every email domain so the addresses
// stop being deliverable, e.g. "mpl123@example.com" becomes
// "mpl123@hidden.example.com".
func (r *Roster) ObscureEmails() {
	for i := 0; i < r.Students.NumRows(); i++ {
		email := r.Students.Get(i, "Email")
		local, domain, found := strings.Cut(email, "@")
		if !found {
			continue
		}
		r.Students.Set(i, "Email", fmt.Sprintf("%s@hidden.%s", local, domain))
	}
}

var sectionSuffixRe = regexp.MustCompile(`(\d{1,3})\s*$`)
var sectionWordRe = regexp.MustCompile(`Section\s*(\d+)`)

// UpdateSectionsFromGradebook fills the Section and Section 2 columns from
// a Brightspace gradebook table, matched on Email. The gradebook's section
// membership strings are comma-separated entries; up to two zero-padded
// section codes per student are kept, sorted.
func (r *Roster) UpdateSectionsFromGradebook(grades *tabular.Table) error {
	if !r.Students.HasColumn("Email") {
		return fmt.Errorf("roster must have an Email column")
	}
	if !grades.HasColumn("Email") {
		return fmt.Errorf("gradebook must have an Email column")
	}

	sectionsColumn := ""
	for _, candidate := range []string{"Sections", "Section Membership", "Section Memberships"} {
		if grades.HasColumn(candidate) {
			sectionsColumn = candidate
			break
		}
	}
	if sectionsColumn == "" {
		return fmt.Errorf("gradebook must have a Sections or Section Membership column")
	}

	byEmail := map[string]string{}
	for i := 0; i < grades.NumRows(); i++ {
		byEmail[grades.Get(i, "Email")] = grades.Get(i, sectionsColumn)
	}

	r.Students.AddColumn("Section", "")
	r.Students.AddColumn("Section 2", "")
	for i := 0; i < r.Students.NumRows(); i++ {
		codes := extractSectionCodes(byEmail[r.Students.Get(i, "Email")])
		if len(codes) > 0 {
			r.Students.Set(i, "Section", codes[0])
		}
		if len(codes) > 1 {
			r.Students.Set(i, "Section 2", codes[1])
		}
	}
	return nil
}

func extractSectionCodes(sections string) []string {
	var codes []string
	for _, entry := range strings.Split(sections, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if match := sectionSuffixRe.FindStringSubmatch(entry); match != nil {
			codes = append(codes, match[1])
			continue
		}
		if match := sectionWordRe.FindStringSubmatch(entry); match != nil {
			codes = append(codes, match[1])
		}
	}
	for i, code := range codes {
		for len(code) < 3 {
			code = "0" + code
		}
		codes[i] = code
	}
	sort.Strings(codes)
	if len(codes) > 2 {
		codes = codes[:2]
	}
	return codes
}
