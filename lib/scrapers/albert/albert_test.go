package albert

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"edubag/lib/clients"
	"edubag/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func TestTermCodes(t *testing.T) {
	term, err := ParseTerm("Fall 2023")
	require.NoError(t, err)
	require.Equal(t, Term{Year: 2023, Season: SeasonFall}, term)
	require.Equal(t, 1238, term.Code())
	require.Equal(t, "Fall 2023", term.String())

	spring, err := ParseTerm("Spring 2025")
	require.NoError(t, err)
	require.Equal(t, 1254, spring.Code())
	require.Greater(t, spring.Compare(term), 0)

	_, err = ParseTerm("Fall")
	require.Error(t, err)
	_, err = ParseTerm("Winter 2023")
	require.Error(t, err)
	_, err = ParseTerm("Fall twenty")
	require.Error(t, err)
}

const rosterHtml = `<html><body>
<div><span><b>Class Detail:</b> MATH-UA 122 (0)-001</span></div>
<div><span><b>Semester:</b> Fall 2025</span></div>
<div><span><b>Instructor:</b> Ada Lovelace</span></div>
<table>
<tr><th>ID</th><th>Name</th><th>Email Address</th><th>Campus ID</th></tr>
<tr><td>1</td><td>Babbage,Charles</td><td>cb1234@nyu.edu</td><td>N10000001</td></tr>
<tr><td>2</td><td>Hopper,Grace</td><td>gh5678@nyu.edu</td><td>N10000002</td></tr>
</table>
</body></html>`

func TestParseRoster(t *testing.T) {
	roster, err := ParseRoster(strings.NewReader(rosterHtml))
	require.NoError(t, err)

	require.Equal(t, "MATH-UA 122 (0)-001", roster.Course["Class Detail"])
	require.Equal(t, "MATH-UA", roster.Course["Subject Code"])
	require.Equal(t, "122", roster.Course["Catalog Number"])
	require.Equal(t, "001", roster.Course["Section"])
	require.Equal(t, "Fall 2025", roster.Course["Semester"])

	require.Equal(t, []string{"ID", "Name", "Email Address", "Campus ID"}, roster.Students.Columns)
	require.Equal(t, 2, roster.Students.NumRows())
	require.Equal(t, "gh5678@nyu.edu", roster.Students.Get(1, "Email Address"))

	require.Equal(t, "MATH-UA_122_001_1258", roster.PathStem())
}

func TestParseRosterNoTable(t *testing.T) {
	_, err := ParseRoster(strings.NewReader("<html><body><p>nothing here</p></body></html>"))
	require.Error(t, err)
}

// fakePortal serves a minimal SIS portal: a login flow and a paginated
// class listing for Fall 2025 with two sections of one course.
func fakePortal(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	loggedIn := false

	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form id="login"><input name="ICSID" value="state123"></form></body></html>`)
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "state123", r.FormValue("ICSID"))
		if r.FormValue("userid") != "prof" || r.FormValue("pwd") != "hunter2" {
			fmt.Fprint(w, `<html><body><div id="login-error">Invalid credentials.</div></body></html>`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "PS_TOKEN", Value: "tok", Path: "/"})
		loggedIn = true
		fmt.Fprint(w, `<html><body>ok</body></html>`)
	})
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		cookie, _ := r.Cookie("PS_TOKEN")
		if !loggedIn || cookie == nil {
			fmt.Fprint(w, `<html><body><form id="login"><input name="ICSID" value="state123"></form></body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body><div id="IS_FSA_SchWrp">
			<a href="/term/1258">Fall 2025</a>
			<a href="/term/1254">Spring 2025</a>
		</div></body></html>`)
	})
	mux.HandleFunc("GET /term/1258", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `<html><body>
			<div class="isFSA_SchCrsWrp">
				<h2>Calculus I</h2>
				<a href="/roster/002">Class Roster</a>
			</div>
			</body></html>`)
			return
		}
		fmt.Fprint(w, `<html><body>
		<div class="isFSA_SchCrsWrp">
			<h2>Calculus I</h2>
			<a href="/roster/001">Class Roster</a>
		</div>
		<div class="isFSA_SchCrsWrp">
			<h2>Linear Algebra</h2>
			<a href="/roster/003">Class Roster</a>
		</div>
		<a class="isFSA_PNext" href="/term/1258?page=2">Next</a>
		</body></html>`)
	})
	mux.HandleFunc("GET /roster/001", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rosterHtml)
	})
	mux.HandleFunc("GET /roster/002", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.ReplaceAll(rosterHtml, "(0)-001", "(0)-002"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	client, err := NewClient(ClientOptions{
		BaseUrl:       srv.URL,
		AuthStatePath: filepath.Join(t.TempDir(), "albert_auth.json"),
	})
	require.NoError(t, err)
	return client
}

func TestAuthenticateAndFetchRosters(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/albert")
	defer cleanup()

	srv := fakePortal(t)
	client := newTestClient(t, srv)
	ctx := context.Background()

	creds := clients.Credentials{Username: "prof", Password: "hunter2"}
	err := client.Authenticate(ctx, creds, clients.DefaultAuthOptions())
	require.NoError(t, err)
	require.FileExists(t, client.AuthStatePath())

	saveDir := t.TempDir()
	term := Term{Year: 2025, Season: SeasonFall}
	paths, err := client.FetchAndSaveRosters(ctx, "Calculus I", term, saveDir, clients.DefaultExportOptions())
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(saveDir, "MATH-UA_122_001_1258.csv"),
		filepath.Join(saveDir, "MATH-UA_122_002_1258.csv"),
	}, paths)

	buff, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	require.Contains(t, string(buff), "gh5678@nyu.edu")
}

func TestFetchRostersTwiceMatches(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/albert")
	defer cleanup()

	srv := fakePortal(t)
	client := newTestClient(t, srv)
	ctx := context.Background()

	creds := clients.Credentials{Username: "prof", Password: "hunter2"}
	require.NoError(t, client.Authenticate(ctx, creds, clients.DefaultAuthOptions()))

	saveDir := t.TempDir()
	term := Term{Year: 2025, Season: SeasonFall}
	first, err := client.FetchAndSaveRosters(ctx, "Calculus I", term, saveDir, clients.DefaultExportOptions())
	require.NoError(t, err)
	second, err := client.FetchAndSaveRosters(ctx, "Calculus I", term, saveDir, clients.DefaultExportOptions())
	require.NoError(t, err)

	require.Equal(t, first, second)
	for _, p := range second {
		info, err := os.Stat(p)
		require.NoError(t, err)
		require.NotZero(t, info.Size())
	}
}

func TestAuthenticateBadCredentials(t *testing.T) {
	srv := fakePortal(t)
	client := newTestClient(t, srv)

	creds := clients.Credentials{Username: "prof", Password: "wrong"}
	err := client.Authenticate(context.Background(), creds, clients.DefaultAuthOptions())

	var authErr *clients.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, Platform, authErr.Platform)
	require.NoFileExists(t, client.AuthStatePath())
}

func TestAuthenticateHeadlessNeedsCredentials(t *testing.T) {
	srv := fakePortal(t)
	client := newTestClient(t, srv)

	err := client.Authenticate(context.Background(), clients.Credentials{}, clients.AuthOptions{Headless: true})

	var authErr *clients.AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestFetchRostersWithoutSession(t *testing.T) {
	srv := fakePortal(t)
	client := newTestClient(t, srv)

	term := Term{Year: 2025, Season: SeasonFall}
	_, err := client.FetchAndSaveRosters(context.Background(), "Calculus I", term, t.TempDir(), clients.DefaultExportOptions())
	require.ErrorIs(t, err, clients.ErrNotAuthenticated)
}

func TestFetchRostersExpiredSession(t *testing.T) {
	srv := fakePortal(t)
	client := newTestClient(t, srv)

	// a stale artifact whose cookies the portal no longer accepts
	state := clients.State{Platform: Platform, BaseUrl: srv.URL}
	require.NoError(t, state.Save(client.AuthStatePath()))

	term := Term{Year: 2025, Season: SeasonFall}
	_, err := client.FetchAndSaveRosters(context.Background(), "Calculus I", term, t.TempDir(), clients.DefaultExportOptions())

	var authErr *clients.AuthError
	require.ErrorAs(t, err, &authErr)
	require.Contains(t, authErr.Reason, "expired")
}

func TestFetchRostersNoMatchingCourse(t *testing.T) {
	srv := fakePortal(t)
	client := newTestClient(t, srv)
	ctx := context.Background()

	creds := clients.Credentials{Username: "prof", Password: "hunter2"}
	require.NoError(t, client.Authenticate(ctx, creds, clients.DefaultAuthOptions()))

	term := Term{Year: 2025, Season: SeasonFall}
	_, err := client.FetchAndSaveRosters(ctx, "Basket Weaving", term, t.TempDir(), clients.DefaultExportOptions())

	var exportErr *clients.ExportError
	require.ErrorAs(t, err, &exportErr)

	_, err = client.FetchAndSaveRosters(ctx, "Calculus I", Term{Year: 2031, Season: SeasonFall}, t.TempDir(), clients.DefaultExportOptions())
	require.ErrorAs(t, err, &exportErr)
}
