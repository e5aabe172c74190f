package sources

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"edubag/lib/tabular"

	"github.com/stretchr/testify/require"
)

func TestResolveIdentityFromEmail(t *testing.T) {
	data := tabular.New("Email", "Posts")
	data.AppendMap(map[string]string{"Email": "al123@nyu.edu", "Posts": "3"})

	src := FromTable(data, "test")
	require.NoError(t, src.ResolveIdentity())
	require.Equal(t, "al123", src.Table().Get(0, "Username"))

	students := src.Students()
	_, ok := students["al123"]
	require.True(t, ok)
}

func TestResolveIdentityMissing(t *testing.T) {
	src := FromTable(tabular.New("Posts"), "test")
	require.Error(t, src.ResolveIdentity())
}

const edstemCsv = `Email,Role,Posts,Answers,Reactions
al123@nyu.edu,Student,3,1,n/a
staff@nyu.edu,Admin,99,99,99
cb456@nyu.edu,student,,2,5
`

func TestParseEdstem(t *testing.T) {
	src, err := ParseEdstem(strings.NewReader(edstemCsv))
	require.NoError(t, err)

	// the admin row is dropped, role matching is case-insensitive
	require.Equal(t, 2, src.Data.NumRows())
	require.Equal(t, "al123@nyu.edu", src.Data.Get(0, "Email"))

	// non-numeric metrics are coerced to zero
	require.Equal(t, "0", src.Data.Get(0, "Reactions"))
	require.Equal(t, "0", src.Data.Get(1, "Posts"))
	require.Equal(t, "2", src.Data.Get(1, "Answers"))

	require.NoError(t, src.ResolveIdentity())
	require.Equal(t, "cb456", src.Data.Get(1, "Username"))
}

const officeHoursHtml = `<html><body>
<p><a href="mailto:al123@nyu.edu">Ada</a></p>
<p><a href="mailto:al123@nyu.edu?subject=hi">Ada again</a></p>
<p><a href="mailto:cb456@nyu.edu">Charles</a></p>
<p><a href="https://example.com">not a mailto</a></p>
</body></html>`

func TestParseOfficeHoursHTML(t *testing.T) {
	src, err := ParseOfficeHoursHTML(strings.NewReader(officeHoursHtml))
	require.NoError(t, err)

	require.Equal(t, []string{"Username", "visit_count"}, src.Data.Columns)
	require.Equal(t, 2, src.Data.NumRows())
	require.Equal(t, "al123", src.Data.Get(0, "Username"))
	require.Equal(t, "2", src.Data.Get(0, "visit_count"))
	require.Equal(t, "1", src.Data.Get(1, "visit_count"))
	require.Equal(t, "3", src.Meta["total_anchors"])
}

func TestLoadOfficeHoursZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("export/visits.html")
	require.NoError(t, err)
	_, err = w.Write([]byte(officeHoursHtml))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	src, err := LoadOfficeHoursZip(path)
	require.NoError(t, err)
	require.Equal(t, 2, src.Data.NumRows())
	require.Equal(t, "export/visits.html", src.Meta["inner_file"])
}

func TestLoadOfficeHoursZipNoHtml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("readme.txt")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = LoadOfficeHoursZip(path)
	require.Error(t, err)
}

func TestCountVisitsFromCSVLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visits.csv")
	csv := "Email,Date\nal123@nyu.edu,2025-09-03\nal123@nyu.edu,2025-09-05\ncb456@nyu.edu,2025-09-05\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0644))

	src, err := LoadOfficeHours(path)
	require.NoError(t, err)

	visits, err := src.CountVisits()
	require.NoError(t, err)
	require.Equal(t, 2, visits.NumRows())
	require.Equal(t, "2", visits.Get(0, "visit_count"))
	require.Equal(t, "cb456", visits.Get(1, "Username"))
}
