// Package gmail generates Gmail filter XML feeds from class rosters, so a
// roster's senders can be auto-labeled in an instructor's inbox.
package gmail

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"edubag/lib/scrapers/albert"

	"github.com/google/uuid"
)

const appsNamespace = "http://schemas.google.com/apps/2006"

// MaxQueryLength caps each "from" query; Gmail rejects longer filter values.
const MaxQueryLength = 1500

// EmailQueryStrings joins addresses into " OR " query strings, each at most
// maxLength characters, preserving input order.
func EmailQueryStrings(emails []string, maxLength int) []string {
	var out []string
	current := ""
	for _, email := range emails {
		if current == "" {
			current = email
			continue
		}
		if len(current)+len(" OR ")+len(email) > maxLength {
			out = append(out, current)
			current = email
		} else {
			current += " OR " + email
		}
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

type property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type entry struct {
	Category struct {
		Term string `xml:"term,attr"`
	} `xml:"category"`
	Title      string     `xml:"title"`
	Id         string     `xml:"id"`
	Updated    string     `xml:"updated"`
	Content    string     `xml:"content"`
	Properties []property `xml:"apps:property"`
}

type feed struct {
	XMLName   xml.Name `xml:"feed"`
	Xmlns     string   `xml:"xmlns,attr"`
	XmlnsApps string   `xml:"xmlns:apps,attr"`
	Title     string   `xml:"title"`
	Id        string   `xml:"id"`
	Updated   string   `xml:"updated"`
	Entries   []entry  `xml:"entry"`
}

func filterId(kind string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("tag:mail.google.com,2008:%s:%s", kind, hex)
}

func rosterLabel(roster *albert.Roster) string {
	return roster.Course["Class Detail"] + ", " + roster.Course["Semester"]
}

// GenerateFilterXML builds a Gmail filter feed with one filter entry per
// address chunk per roster. When label is empty every roster gets a label
// derived from its course metadata.
func GenerateFilterXML(rosters []*albert.Roster, label string) ([]byte, error) {
	if len(rosters) == 0 {
		return nil, fmt.Errorf("at least one roster must be provided")
	}

	updated := time.Now().UTC().Format(time.RFC3339)
	out := feed{
		Xmlns:     "http://www.w3.org/2005/Atom",
		XmlnsApps: appsNamespace,
		Title:     "Mail Filters",
		Id:        filterId("filters"),
		Updated:   updated,
	}

	for _, roster := range rosters {
		entryLabel := label
		if entryLabel == "" {
			entryLabel = rosterLabel(roster)
		}

		if !roster.Students.HasColumn("Email Address") {
			return nil, fmt.Errorf("roster for %q has no Email Address column", entryLabel)
		}
		var addresses []string
		for i := 0; i < roster.Students.NumRows(); i++ {
			addresses = append(addresses, roster.Students.Get(i, "Email Address"))
		}

		for _, query := range EmailQueryStrings(addresses, MaxQueryLength) {
			e := entry{
				Title:   "Mail Filter",
				Id:      filterId("filter"),
				Updated: updated,
				Properties: []property{
					{Name: "from", Value: query},
					{Name: "label", Value: entryLabel},
				},
			}
			e.Category.Term = "filter"
			out.Entries = append(out.Entries, e)
		}
	}

	buff, err := xml.MarshalIndent(out, "", "    ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), buff...), nil
}

// WriteFilterFile writes the filter feed to output, deriving a name from the
// roster when output is empty, and returns the path written.
func WriteFilterFile(rosters []*albert.Roster, label, output string) (string, error) {
	buff, err := GenerateFilterXML(rosters, label)
	if err != nil {
		return "", err
	}

	if output == "" {
		if len(rosters) == 1 {
			output = fmt.Sprintf("mailFilters_%s.xml", rosters[0].PathStem())
		} else {
			output = "mailFilters_combined.xml"
		}
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", err
		}
	}
	if err := os.WriteFile(output, buff, 0644); err != nil {
		return "", err
	}

	slog.Info("wrote gmail filter feed", "path", output, "rosters", len(rosters))
	return output, nil
}
