// Package gradescope scrapes and manages course rosters on the Gradescope
// platform.
package gradescope

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"edubag/lib/clients"
	"edubag/lib/htmlutil"
	"edubag/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/gradescope")

const Platform = "gradescope"

const DefaultBaseUrl = "https://www.gradescope.com"

// Roles a roster upload may assign to the imported users.
var Roles = map[string]string{
	"Student":    "0",
	"Instructor": "1",
	"TA":         "2",
	"Reader":     "3",
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	authStatePath string
	prompter      clients.Prompter
	sessionLoaded bool
}

type ClientOptions struct {
	BaseUrl       string
	AuthStatePath string
	Prompter      clients.Prompter
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if opts.AuthStatePath == "" {
		opts.AuthStatePath, err = clients.DefaultStatePath(Platform)
		if err != nil {
			return nil, err
		}
	}
	if opts.Prompter == nil {
		opts.Prompter = clients.TerminalPrompter{}
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/gradescope/http")

	return &Client{
		BaseUrl:       baseUrl,
		Http:          client,
		authStatePath: opts.AuthStatePath,
		prompter:      opts.Prompter,
	}, nil
}

func (c *Client) Platform() string {
	return Platform
}

func (c *Client) AuthStatePath() string {
	return c.authStatePath
}

// Authenticate logs in with the email/password form and persists the
// session artifact. Gradescope has no MFA step, so a headless login works
// whenever credentials are supplied.
func (c *Client) Authenticate(ctx context.Context, creds clients.Credentials, opts clients.AuthOptions) error {
	ctx, span := tracer.Start(ctx, "client:Authenticate")
	defer span.End()

	if creds.Username == "" || creds.Password == "" {
		if opts.Headless {
			return &clients.AuthError{
				Platform: Platform,
				Reason:   "credentials are required in headless mode",
			}
		}
		var err error
		creds, err = clients.PromptCredentials(ctx, c.prompter, Platform)
		if err != nil {
			return &clients.AuthError{Platform: Platform, Reason: "credential prompt failed", Err: err}
		}
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get("/login")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return &clients.AuthError{Platform: Platform, Reason: "could not reach login page", Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return &clients.AuthError{Platform: Platform, Reason: "could not parse login page", Err: err}
	}
	token := doc.Find("input[name=authenticity_token]").AttrOr("value", "")
	if token == "" {
		span.SetStatus(codes.Error, "failed to find authenticity token")
		return &clients.AuthError{Platform: Platform, Reason: "could not find authenticity token"}
	}

	res, err = c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"authenticity_token":    token,
			"session[email]":        creds.Username,
			"session[password]":     creds.Password,
			"session[remember_me]":  "1",
		}).
		Post("/login")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return &clients.AuthError{Platform: Platform, Reason: "login request failed", Err: err}
	}
	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return &clients.AuthError{Platform: Platform, Reason: "could not parse login response", Err: err}
	}
	if msg := htmlutil.NormalizeText(doc.Find(".alert-error").Text()); msg != "" {
		span.SetStatus(codes.Error, "login rejected")
		return &clients.AuthError{Platform: Platform, Reason: msg}
	}

	res, err = c.Http.R().
		SetContext(ctx).
		Get("/account")
	if err != nil {
		return &clients.AuthError{Platform: Platform, Reason: "could not load account page after login", Err: err}
	}
	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return &clients.AuthError{Platform: Platform, Reason: "could not parse account page", Err: err}
	}
	if doc.Find(".courseList").Length() == 0 {
		span.SetStatus(codes.Error, "post-login course list missing")
		return &clients.AuthError{Platform: Platform, Reason: "platform did not accept the session"}
	}

	state := clients.CaptureState(Platform, c.BaseUrl, c.Http.GetClient().Jar)
	if err := state.Save(c.authStatePath); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	c.sessionLoaded = true
	return nil
}

func (c *Client) ensureSession(ctx context.Context) error {
	if c.sessionLoaded {
		return nil
	}
	state, err := clients.LoadState(c.authStatePath)
	if os.IsNotExist(err) {
		return clients.NotAuthenticated(Platform)
	}
	if err != nil {
		return err
	}
	state.Apply(c.BaseUrl, c.Http.GetClient().Jar)
	c.sessionLoaded = true
	return nil
}

func courseId(course string) string {
	if strings.HasPrefix(course, "http://") || strings.HasPrefix(course, "https://") {
		u, err := url.Parse(course)
		if err == nil {
			return path.Base(u.Path)
		}
	}
	return course
}

func isLoginPage(doc *goquery.Document) bool {
	return doc.Find(`form[action="/login"]`).Length() > 0
}

func (c *Client) getPage(ctx context.Context, href string) (*goquery.Document, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(href)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, err
	}
	if isLoginPage(doc) {
		return nil, &clients.AuthError{Platform: Platform, Reason: "session expired"}
	}
	return doc, nil
}

// SaveRoster downloads the membership CSV for a course into saveDir.
func (c *Client) SaveRoster(ctx context.Context, course, saveDir string, opts clients.ExportOptions) ([]string, error) {
	ctx, span := tracer.Start(ctx, "client:SaveRoster")
	defer span.End()

	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	id := courseId(course)

	doc, err := c.getPage(ctx, fmt.Sprintf("/courses/%s/memberships", id))
	if err != nil {
		if authErr, ok := err.(*clients.AuthError); ok {
			return nil, authErr
		}
		return nil, &clients.ExportError{Platform: Platform, Subject: "roster", Err: err}
	}
	href := doc.Find(`a[href$="/memberships.csv"]`).AttrOr("href", "")
	if href == "" {
		span.SetStatus(codes.Error, "membership csv link missing")
		return nil, &clients.ExportError{
			Platform: Platform,
			Subject:  "roster",
			Err:      fmt.Errorf("membership csv link not found on roster page"),
		}
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get(href)
	if err != nil {
		return nil, &clients.ExportError{Platform: Platform, Subject: "roster", Err: err}
	}
	if _, err := ParseRoster(bytes.NewBuffer(res.Body())); err != nil {
		span.SetStatus(codes.Error, "membership csv unparseable")
		return nil, &clients.ExportError{Platform: Platform, Subject: "roster", Err: err}
	}

	if err := os.MkdirAll(saveDir, 0755); err != nil {
		return nil, &clients.ExportError{Platform: Platform, Subject: "roster", Err: err}
	}
	name := "memberships.csv"
	if _, params, err := mime.ParseMediaType(res.Header().Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = filepath.Base(params["filename"])
	}
	out := filepath.Join(saveDir, name)
	if err := os.WriteFile(out, res.Body(), 0644); err != nil {
		return nil, &clients.ExportError{Platform: Platform, Subject: "roster", Err: err}
	}
	return []string{out}, nil
}

var digitsRe = regexp.MustCompile(`\d+`)

func (c *Client) extractCourseDetails(ctx context.Context, courseHref string) (Course, error) {
	doc, err := c.getPage(ctx, courseHref)
	if err != nil {
		return Course{}, err
	}

	course := Course{
		CourseNumber: htmlutil.NormalizeText(doc.Find("h1.courseHeader--title").Text()),
		CourseName:   htmlutil.NormalizeText(doc.Find("div.sidebar--subtitle").Text()),
	}
	// the header shows "Course ID: 1227665"
	course.CourseId = digitsRe.FindString(doc.Find("div.courseHeader--courseID").Text())
	doc.Find(`li[aria-label^="Instructor:"]`).Each(func(_ int, item *goquery.Selection) {
		label := item.AttrOr("aria-label", "")
		name := strings.TrimSpace(strings.TrimPrefix(label, "Instructor:"))
		if name != "" {
			course.Instructors = append(course.Instructors, name)
		}
	})

	editDoc, err := c.getPage(ctx, strings.TrimSuffix(courseHref, "/")+"/edit")
	if err != nil {
		return course, err
	}
	lms := editDoc.Find("div.lmsResource[data-lms-id]").First()
	if lms.Length() > 0 {
		course.LmsCourseId = lms.AttrOr("data-lms-id", "")
		if text := lms.Text(); strings.Contains(text, "Linked to:") {
			_, name, _ := strings.Cut(text, "Linked to:")
			course.LmsCourseName = strings.TrimSpace(name)
		}
	}
	return course, nil
}

// FetchCourses scrapes the dashboard course list. A non-empty term like
// "Fall 2025" restricts the result to that term's courses.
func (c *Client) FetchCourses(ctx context.Context, term string, opts clients.ExportOptions) ([]Course, error) {
	ctx, span := tracer.Start(ctx, "client:FetchCourses")
	defer span.End()

	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	doc, err := c.getPage(ctx, "/")
	if err != nil {
		if authErr, ok := err.(*clients.AuthError); ok {
			return nil, authErr
		}
		return nil, &clients.ExportError{Platform: Platform, Subject: "courses", Err: err}
	}

	// term headings and per-term course containers alternate, index i of
	// one matches index i of the other
	terms := doc.Find("div.courseList--term")
	containers := doc.Find("div.courseList--coursesForTerm")

	var hrefs []string
	containers.Each(func(i int, container *goquery.Selection) {
		if term != "" {
			if i >= terms.Length() {
				return
			}
			heading := htmlutil.NormalizeText(terms.Eq(i).Text())
			if !strings.Contains(heading, term) {
				return
			}
		}
		container.Find("a.courseBox").Each(func(_ int, box *goquery.Selection) {
			href := box.AttrOr("href", "")
			if strings.HasPrefix(href, "/courses/") {
				hrefs = append(hrefs, href)
			}
		})
	})

	var result []Course
	for _, href := range hrefs {
		course, err := c.extractCourseDetails(ctx, href)
		if err != nil {
			span.SetStatus(codes.Error, "course detail fetch failed")
			return nil, &clients.ExportError{Platform: Platform, Subject: href, Err: err}
		}
		slog.InfoContext(ctx, "extracted course details", slog.String("course", course.String()))
		result = append(result, course)
	}
	return result, nil
}

// SyncRoster triggers a roster sync with the linked LMS. notify controls
// whether newly added users get an email.
func (c *Client) SyncRoster(ctx context.Context, course string, notify bool, opts clients.ExportOptions) error {
	ctx, span := tracer.Start(ctx, "client:SyncRoster")
	defer span.End()

	if err := c.ensureSession(ctx); err != nil {
		return err
	}
	id := courseId(course)

	doc, err := c.getPage(ctx, fmt.Sprintf("/courses/%s/memberships", id))
	if err != nil {
		if authErr, ok := err.(*clients.AuthError); ok {
			return authErr
		}
		return &clients.ExportError{Platform: Platform, Subject: "roster sync", Err: err}
	}
	token := doc.Find("input[name=authenticity_token]").AttrOr("value", "")
	if token == "" {
		return &clients.ExportError{
			Platform: Platform,
			Subject:  "roster sync",
			Err:      fmt.Errorf("could not find authenticity token on roster page"),
		}
	}

	notifyValue := "0"
	if notify {
		notifyValue = "1"
	}
	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"authenticity_token": token,
			"notify_by_email":    notifyValue,
		}).
		Post(fmt.Sprintf("/courses/%s/memberships/sync", id))
	if err != nil {
		span.SetStatus(codes.Error, "sync request failed")
		return &clients.ExportError{Platform: Platform, Subject: "roster sync", Err: err}
	}
	resDoc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return &clients.ExportError{Platform: Platform, Subject: "roster sync", Err: err}
	}
	if err := checkFlashMessages(ctx, resDoc); err != nil {
		span.SetStatus(codes.Error, "sync rejected")
		return &clients.ExportError{Platform: Platform, Subject: "roster sync", Err: err}
	}
	return nil
}

// SendRoster uploads a roster CSV to a course, adding or updating the
// listed users with the given role. role must be one of Student,
// Instructor, TA or Reader.
func (c *Client) SendRoster(ctx context.Context, course, csvPath string, notify bool, role string, opts clients.ExportOptions) error {
	ctx, span := tracer.Start(ctx, "client:SendRoster")
	defer span.End()

	roleValue, ok := Roles[role]
	if !ok {
		return fmt.Errorf("invalid role %q, must be one of Student, Instructor, TA, Reader", role)
	}
	file, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("roster csv not found: %w", err)
	}
	defer file.Close()

	if err := c.ensureSession(ctx); err != nil {
		return err
	}
	id := courseId(course)

	doc, err := c.getPage(ctx, fmt.Sprintf("/courses/%s/memberships", id))
	if err != nil {
		if authErr, ok := err.(*clients.AuthError); ok {
			return authErr
		}
		return &clients.ExportError{Platform: Platform, Subject: "roster upload", Err: err}
	}
	token := doc.Find("input[name=authenticity_token]").AttrOr("value", "")
	if token == "" {
		return &clients.ExportError{
			Platform: Platform,
			Subject:  "roster upload",
			Err:      fmt.Errorf("could not find authenticity token on roster page"),
		}
	}

	notifyValue := "0"
	if notify {
		notifyValue = "1"
	}
	res, err := c.Http.R().
		SetContext(ctx).
		SetFileReader("csv_file", filepath.Base(csvPath), file).
		SetFormData(map[string]string{
			"authenticity_token": token,
			"notify_by_email":    notifyValue,
			"options[role]":      roleValue,
		}).
		Post(fmt.Sprintf("/courses/%s/memberships/import", id))
	if err != nil {
		span.SetStatus(codes.Error, "upload request failed")
		return &clients.ExportError{Platform: Platform, Subject: "roster upload", Err: err}
	}
	resDoc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return &clients.ExportError{Platform: Platform, Subject: "roster upload", Err: err}
	}
	if err := checkFlashMessages(ctx, resDoc); err != nil {
		span.SetStatus(codes.Error, "upload rejected")
		return &clients.ExportError{Platform: Platform, Subject: "roster upload", Err: err}
	}
	return nil
}

// checkFlashMessages logs the flash messages of a response page and turns
// error-level ones into an error.
func checkFlashMessages(ctx context.Context, doc *goquery.Document) error {
	var failure error
	doc.Find(".alert.alert-flashMessage").Each(func(_ int, flash *goquery.Selection) {
		message := htmlutil.NormalizeText(flash.Find("span").First().Text())
		if message == "" {
			return
		}
		class := flash.AttrOr("class", "")
		switch {
		case strings.Contains(class, "alert-error"):
			slog.ErrorContext(ctx, message)
			if failure == nil {
				failure = fmt.Errorf("%s", message)
			}
		case strings.Contains(class, "alert-warning"):
			slog.WarnContext(ctx, message)
		default:
			slog.InfoContext(ctx, message)
		}
	})
	return failure
}
