package gradescope

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"edubag/lib/clients"
	"edubag/lib/scrapers/albert"
	"edubag/lib/tabular"
	"edubag/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func albertRoster(t *testing.T) *albert.Roster {
	students := tabular.New("First Name", "Last Name", "Email Address", "Campus ID")
	students.AppendMap(map[string]string{
		"First Name": "Ada", "Last Name": "Lovelace",
		"Email Address": "al123@nyu.edu", "Campus ID": "N10000001",
	})
	students.AppendMap(map[string]string{
		"First Name": "Charles", "Last Name": "Babbage",
		"Email Address": "cb456@nyu.edu", "Campus ID": "N10000002",
	})
	return &albert.Roster{
		Course:   map[string]string{"Class Detail": "MATH-UA 122 (0)-001"},
		Students: students,
	}
}

func TestFromAlbert(t *testing.T) {
	roster, err := FromAlbert(albertRoster(t), true)
	require.NoError(t, err)

	require.Equal(t, []string{"First Name", "Last Name", "Email", "SID", "Section"}, roster.Students.Columns)
	require.Equal(t, "al123@nyu.edu", roster.Students.Get(0, "Email"))
	require.Equal(t, "N10000002", roster.Students.Get(1, "SID"))
	require.Equal(t, "001", roster.Students.Get(0, "Section"))

	noSection, err := FromAlbert(albertRoster(t), false)
	require.NoError(t, err)
	require.False(t, noSection.Students.HasColumn("Section"))
}

func TestFromAlbertBadClassDetail(t *testing.T) {
	src := albertRoster(t)
	src.Course["Class Detail"] = "not a class detail"
	_, err := FromAlbert(src, true)
	require.Error(t, err)
}

func TestMergeAndObscure(t *testing.T) {
	first, err := FromAlbert(albertRoster(t), true)
	require.NoError(t, err)
	second, err := FromAlbert(albertRoster(t), true)
	require.NoError(t, err)

	merged, err := Merge([]*Roster{first, second})
	require.NoError(t, err)
	require.Equal(t, 4, merged.Students.NumRows())

	merged.ObscureEmails()
	require.Equal(t, "al123@hidden.nyu.edu", merged.Students.Get(0, "Email"))

	_, err = Merge(nil)
	require.Error(t, err)
}

func TestUpdateSectionsFromGradebook(t *testing.T) {
	roster, err := FromAlbert(albertRoster(t), false)
	require.NoError(t, err)

	grades := tabular.New("Email", "Section Membership")
	grades.AppendMap(map[string]string{
		"Email":              "al123@nyu.edu",
		"Section Membership": "MATH-UA 122 Section 6, MATH-UA 122 Section 2",
	})
	grades.AppendMap(map[string]string{
		"Email":              "cb456@nyu.edu",
		"Section Membership": "",
	})

	require.NoError(t, roster.UpdateSectionsFromGradebook(grades))
	require.Equal(t, "002", roster.Students.Get(0, "Section"))
	require.Equal(t, "006", roster.Students.Get(0, "Section 2"))
	require.Equal(t, "", roster.Students.Get(1, "Section"))
}

func TestExtractSectionCodes(t *testing.T) {
	require.Equal(t, []string{"003", "012"}, extractSectionCodes("Lecture 12, Section 3"))
	require.Empty(t, extractSectionCodes("no digits here"))
	require.Equal(t, []string{"001", "002"}, extractSectionCodes("Sec 1, Sec 2, Sec 3"))
}

func TestScoresheetName(t *testing.T) {
	require.Equal(t, "Homework 1", ScoresheetName("Homework_1_scores.csv"))
	require.Equal(t, "Quiz 2", ScoresheetName("/tmp/exports/Quiz_2.csv"))
	require.Equal(t, "Final", ScoresheetName("Final"))
}

const scoresheetCsv = `First Name,Last Name,Email,Total Score,Max Points,Status,Sections
Ada,Lovelace,al123@nyu.edu,9,10,Graded,001
Charles,Babbage,cb456@nyu.edu,,10,Missing,001
Grace,Hopper,gh789@nyu.edu,8,10,Graded,002
`

func TestParseScoresheet(t *testing.T) {
	sheet, err := ParseScoresheet(strings.NewReader(scoresheetCsv), "Homework_1_scores.csv", true)
	require.NoError(t, err)
	require.Equal(t, "Homework 1", sheet.Name)
	require.Equal(t, 2, sheet.Scores.NumRows())
	require.Equal(t, "gh789@nyu.edu", sheet.Scores.Get(1, "Email"))

	kept, err := ParseScoresheet(strings.NewReader(scoresheetCsv), "", false)
	require.NoError(t, err)
	require.Equal(t, "Scoresheet", kept.Name)
	require.Equal(t, 3, kept.Scores.NumRows())
}

func TestScoresheetBySection(t *testing.T) {
	sheet, err := ParseScoresheet(strings.NewReader(scoresheetCsv), "Homework_1_scores.csv", true)
	require.NoError(t, err)

	sections := sheet.BySection()
	require.Len(t, sections, 2)
	require.Equal(t, 1, sections["001"].Scores.NumRows())
	require.Equal(t, "Homework 1", sections["002"].Name)
}

const membershipsCsv = `First Name,Last Name,Email,Role
Ada,Lovelace,al123@nyu.edu,Student
Charles,Babbage,cb456@nyu.edu,Student
`

const courseListHtml = `<html><body><div class="courseList">
<div class="courseList--term">Fall 2025</div>
<div class="courseList--coursesForTerm">
	<a class="courseBox" href="/courses/1227665"><div class="courseBox--name">Calculus II</div></a>
</div>
<div class="courseList--term">Spring 2025</div>
<div class="courseList--coursesForTerm">
	<a class="courseBox" href="/courses/1100000"><div class="courseBox--name">Old Course</div></a>
</div>
</div></body></html>`

const coursePageHtml = `<html><body>
<h1 class="courseHeader--title">MATH-UA 122.006</h1>
<div class="courseHeader--courseID">Course ID: 1227665</div>
<div class="sidebar--subtitle">MATH-UA 122.006 Calculus II, Spring 2026</div>
<ul><li aria-label="Instructor: Emmy Noether">Emmy Noether</li></ul>
</body></html>`

// fakeGradescope serves a login form, a dashboard course list, one course
// with its edit page, and a memberships page with roster download, sync
// and import endpoints.
func fakeGradescope(t *testing.T, gotUpload *map[string]string) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form action="/login"><input name="authenticity_token" value="csrf123"></form></body></html>`)
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "csrf123", r.FormValue("authenticity_token"))
		if r.FormValue("session[password]") != "hunter2" {
			fmt.Fprint(w, `<html><body><div class="alert-error">Invalid email/password combination.</div></body></html>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "signed_token", Value: "tok", Path: "/"})
		fmt.Fprint(w, `<html><body>ok</body></html>`)
	})
	requireSession := func(w http.ResponseWriter, r *http.Request) bool {
		if _, err := r.Cookie("signed_token"); err != nil {
			fmt.Fprint(w, `<html><body><form action="/login"><input name="authenticity_token" value="csrf123"></form></body></html>`)
			return false
		}
		return true
	}
	mux.HandleFunc("GET /account", func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(w, r) {
			return
		}
		fmt.Fprint(w, courseListHtml)
	})
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(w, r) {
			return
		}
		fmt.Fprint(w, courseListHtml)
	})
	mux.HandleFunc("GET /courses/1227665", func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(w, r) {
			return
		}
		fmt.Fprint(w, coursePageHtml)
	})
	mux.HandleFunc("GET /courses/1227665/edit", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div class="lmsResource" data-lms-id="99887">Linked to: Calculus II Brightspace</div></body></html>`)
	})
	mux.HandleFunc("GET /courses/1227665/memberships", func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(w, r) {
			return
		}
		fmt.Fprint(w, `<html><body>
		<input name="authenticity_token" value="csrf456">
		<a href="/courses/1227665/memberships.csv">Download Roster</a>
		</body></html>`)
	})
	mux.HandleFunc("GET /courses/1227665/memberships.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="memberships.csv"`)
		fmt.Fprint(w, membershipsCsv)
	})
	mux.HandleFunc("POST /courses/1227665/memberships/sync", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "csrf456", r.FormValue("authenticity_token"))
		fmt.Fprint(w, `<html><body><div class="alert alert-flashMessage alert-success"><span>Roster synced: 2 users added.</span></div></body></html>`)
	})
	mux.HandleFunc("POST /courses/1227665/memberships/import", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		if gotUpload != nil {
			file, _, err := r.FormFile("csv_file")
			require.NoError(t, err)
			body, err := io.ReadAll(file)
			require.NoError(t, err)
			(*gotUpload)["csv"] = string(body)
			(*gotUpload)["role"] = r.FormValue("options[role]")
			(*gotUpload)["notify"] = r.FormValue("notify_by_email")
		}
		fmt.Fprint(w, `<html><body><div class="alert alert-flashMessage alert-success"><span>2 users imported.</span></div></body></html>`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	client, err := NewClient(ClientOptions{
		BaseUrl:       srv.URL,
		AuthStatePath: filepath.Join(t.TempDir(), "gradescope_auth.json"),
	})
	require.NoError(t, err)
	return client
}

func authenticated(t *testing.T, srv *httptest.Server) *Client {
	client := newTestClient(t, srv)
	creds := clients.Credentials{Username: "prof@nyu.edu", Password: "hunter2"}
	require.NoError(t, client.Authenticate(context.Background(), creds, clients.AuthOptions{Headless: true}))
	return client
}

func TestAssignmentUrl(t *testing.T) {
	a := Assignment{AssignmentId: "4455", Name: "Homework 1", CourseId: "1227665"}
	require.Equal(t, "https://www.gradescope.com/courses/1227665/assignments/4455", a.Url())
	require.Equal(t, "Assignment(id=4455, name=Homework 1)", a.String())
}

func TestSaveRoster(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/gradescope")
	defer cleanup()

	srv := fakeGradescope(t, nil)
	client := authenticated(t, srv)
	saveDir := t.TempDir()

	paths, err := client.SaveRoster(context.Background(), "1227665", saveDir, clients.DefaultExportOptions())
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(saveDir, "memberships.csv")}, paths)

	buff, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	require.Equal(t, membershipsCsv, string(buff))
}

func TestSaveRosterTwiceMatches(t *testing.T) {
	srv := fakeGradescope(t, nil)
	client := authenticated(t, srv)
	saveDir := t.TempDir()

	first, err := client.SaveRoster(context.Background(), "1227665", saveDir, clients.DefaultExportOptions())
	require.NoError(t, err)
	second, err := client.SaveRoster(context.Background(), "1227665", saveDir, clients.DefaultExportOptions())
	require.NoError(t, err)

	require.Equal(t, first, second)
	for _, p := range second {
		info, err := os.Stat(p)
		require.NoError(t, err)
		require.NotZero(t, info.Size())
	}
}

func TestFetchCourses(t *testing.T) {
	srv := fakeGradescope(t, nil)
	client := authenticated(t, srv)

	courses, err := client.FetchCourses(context.Background(), "Fall 2025", clients.DefaultExportOptions())
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, Course{
		CourseId:      "1227665",
		CourseNumber:  "MATH-UA 122.006",
		CourseName:    "MATH-UA 122.006 Calculus II, Spring 2026",
		Instructors:   []string{"Emmy Noether"},
		LmsCourseId:   "99887",
		LmsCourseName: "Calculus II Brightspace",
	}, courses[0])
}

func TestFetchCoursesUnknownTerm(t *testing.T) {
	srv := fakeGradescope(t, nil)
	client := authenticated(t, srv)

	courses, err := client.FetchCourses(context.Background(), "Fall 2031", clients.DefaultExportOptions())
	require.NoError(t, err)
	require.Empty(t, courses)
}

func TestSyncRoster(t *testing.T) {
	srv := fakeGradescope(t, nil)
	client := authenticated(t, srv)

	err := client.SyncRoster(context.Background(), "1227665", true, clients.DefaultExportOptions())
	require.NoError(t, err)
}

func TestSendRoster(t *testing.T) {
	got := map[string]string{}
	srv := fakeGradescope(t, &got)
	client := authenticated(t, srv)

	csvPath := filepath.Join(t.TempDir(), "staff.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(membershipsCsv), 0644))

	err := client.SendRoster(context.Background(), "1227665", csvPath, true, "TA", clients.DefaultExportOptions())
	require.NoError(t, err)
	require.Equal(t, membershipsCsv, got["csv"])
	require.Equal(t, "2", got["role"])
	require.Equal(t, "1", got["notify"])
}

func TestSendRosterInvalidRole(t *testing.T) {
	srv := fakeGradescope(t, nil)
	client := authenticated(t, srv)

	err := client.SendRoster(context.Background(), "1227665", "whatever.csv", false, "Auditor", clients.DefaultExportOptions())
	require.ErrorContains(t, err, "invalid role")
}

func TestExportWithoutSession(t *testing.T) {
	srv := fakeGradescope(t, nil)
	client := newTestClient(t, srv)

	_, err := client.SaveRoster(context.Background(), "1227665", t.TempDir(), clients.DefaultExportOptions())
	require.ErrorIs(t, err, clients.ErrNotAuthenticated)
}

func TestExportExpiredSession(t *testing.T) {
	srv := fakeGradescope(t, nil)
	client := newTestClient(t, srv)

	state := clients.State{Platform: Platform, BaseUrl: srv.URL}
	require.NoError(t, state.Save(client.AuthStatePath()))

	_, err := client.SaveRoster(context.Background(), "1227665", t.TempDir(), clients.DefaultExportOptions())
	var authErr *clients.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Contains(t, authErr.Reason, "expired")
}
