// Package brightspace scrapes gradebooks and attendance registers from the
// Brightspace learning platform.
package brightspace

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"edubag/lib/clients"
	"edubag/lib/htmlutil"
	"edubag/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/brightspace")

const Platform = "brightspace"

const DefaultBaseUrl = "https://brightspace.nyu.edu"

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

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/brightspace/http")

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

// Authenticate runs the SSO flow: email, then password, then Duo approval.
// The Duo step needs an interactive session, so a headless login fails once
// the identity provider asks for it.
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
		Get("/d2l/login")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return &clients.AuthError{Platform: Platform, Reason: "could not reach login page", Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return &clients.AuthError{Platform: Platform, Reason: "could not parse login page", Err: err}
	}
	flowToken := doc.Find("input[name=flowToken]").AttrOr("value", "")
	if flowToken == "" {
		span.SetStatus(codes.Error, "failed to find sso flow token")
		return &clients.AuthError{Platform: Platform, Reason: "could not find sso flow token"}
	}

	doc, err = c.loginStep(ctx, "/d2l/login/email", map[string]string{
		"flowToken": flowToken,
		"email":     creds.Username,
	})
	if err != nil {
		return err
	}
	if doc.Find("input[type=password]").Length() == 0 {
		span.SetStatus(codes.Error, "password step missing")
		return &clients.AuthError{Platform: Platform, Reason: "identity provider did not offer a password step"}
	}

	doc, err = c.loginStep(ctx, "/d2l/login/password", map[string]string{
		"flowToken": flowToken,
		"password":  creds.Password,
	})
	if err != nil {
		return err
	}

	if doc.Find("#duo-approval").Length() > 0 {
		if opts.Headless {
			span.SetStatus(codes.Error, "duo approval required in headless mode")
			return &clients.AuthError{
				Platform: Platform,
				Reason:   "multi-factor approval requires an interactive session",
			}
		}
		_, err := c.prompter.Prompt(ctx, "Approve the Duo push, then press Enter")
		if err != nil {
			return &clients.AuthError{Platform: Platform, Reason: "mfa prompt failed", Err: err}
		}
		_, err = c.loginStep(ctx, "/d2l/login/duo", map[string]string{
			"flowToken": flowToken,
		})
		if err != nil {
			return err
		}
	}

	res, err = c.Http.R().
		SetContext(ctx).
		Get("/d2l/home")
	if err != nil {
		return &clients.AuthError{Platform: Platform, Reason: "could not load home after login", Err: err}
	}
	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return &clients.AuthError{Platform: Platform, Reason: "could not parse home page", Err: err}
	}
	if doc.Find("#d2l_home").Length() == 0 {
		span.SetStatus(codes.Error, "post-login home marker missing")
		return &clients.AuthError{Platform: Platform, Reason: "platform did not accept the session"}
	}

	state := clients.CaptureState(Platform, c.BaseUrl, c.Http.GetClient().Jar)
	if err := state.Save(c.authStatePath); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	c.sessionLoaded = true
	return nil
}

func (c *Client) loginStep(ctx context.Context, path string, form map[string]string) (*goquery.Document, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(path)
	if err != nil {
		return nil, &clients.AuthError{Platform: Platform, Reason: "login request failed", Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, &clients.AuthError{Platform: Platform, Reason: "could not parse login response", Err: err}
	}
	if msg := htmlutil.NormalizeText(doc.Find(".login-error").Text()); msg != "" {
		return nil, &clients.AuthError{Platform: Platform, Reason: msg}
	}
	return doc, nil
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

// courseId accepts either a bare org unit id or a full course url and
// returns the id.
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
	return doc.Find("input[name=flowToken]").Length() > 0
}

// openCourse loads the course home page to verify the session is still
// accepted before hitting export endpoints.
func (c *Client) openCourse(ctx context.Context, id string) error {
	res, err := c.Http.R().
		SetContext(ctx).
		Get("/d2l/home/" + id)
	if err != nil {
		return &clients.ExportError{Platform: Platform, Subject: "course " + id, Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return &clients.ExportError{Platform: Platform, Subject: "course " + id, Err: err}
	}
	if isLoginPage(doc) {
		return &clients.AuthError{Platform: Platform, Reason: "session expired"}
	}
	return nil
}

func filenameFromDisposition(header, fallback string) string {
	_, params, err := mime.ParseMediaType(header)
	if err == nil && params["filename"] != "" {
		return filepath.Base(params["filename"])
	}
	return fallback
}

// SaveGradebook exports the complete gradebook for a course and writes the
// CSV into saveDir. The session artifact must already exist; an expired
// session surfaces as an authentication error for the caller to handle.
func (c *Client) SaveGradebook(ctx context.Context, course, saveDir string, opts clients.ExportOptions) ([]string, error) {
	ctx, span := tracer.Start(ctx, "client:SaveGradebook")
	defer span.End()

	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	id := courseId(course)
	if err := c.openCourse(ctx, id); err != nil {
		return nil, err
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/d2l/lms/grades/%s/export?format=csv", id))
	if err != nil {
		span.SetStatus(codes.Error, "gradebook export request failed")
		return nil, &clients.ExportError{Platform: Platform, Subject: "gradebook", Err: err}
	}
	if _, err := ParseGradebook(bytes.NewBuffer(res.Body())); err != nil {
		span.SetStatus(codes.Error, "gradebook export unparseable")
		return nil, &clients.ExportError{Platform: Platform, Subject: "gradebook", Err: err}
	}

	if err := os.MkdirAll(saveDir, 0755); err != nil {
		return nil, &clients.ExportError{Platform: Platform, Subject: "gradebook", Err: err}
	}
	name := filenameFromDisposition(
		res.Header().Get("Content-Disposition"),
		fmt.Sprintf("gradebook_%s.csv", id),
	)
	out := filepath.Join(saveDir, name)
	if err := os.WriteFile(out, res.Body(), 0644); err != nil {
		return nil, &clients.ExportError{Platform: Platform, Subject: "gradebook", Err: err}
	}
	return []string{out}, nil
}

// SaveAttendance exports every attendance register of a course into
// saveDir. A course with no registers legitimately produces no files.
func (c *Client) SaveAttendance(ctx context.Context, course, saveDir string, opts clients.ExportOptions) ([]string, error) {
	ctx, span := tracer.Start(ctx, "client:SaveAttendance")
	defer span.End()

	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}
	id := courseId(course)
	if err := c.openCourse(ctx, id); err != nil {
		return nil, err
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get("/d2l/lms/attendance/" + id)
	if err != nil {
		return nil, &clients.ExportError{Platform: Platform, Subject: "attendance", Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, &clients.ExportError{Platform: Platform, Subject: "attendance", Err: err}
	}
	if isLoginPage(doc) {
		return nil, &clients.AuthError{Platform: Platform, Reason: "session expired"}
	}
	if doc.Find(".empty-state-container").Length() > 0 {
		span.SetStatus(codes.Ok, "no attendance registers")
		return nil, nil
	}

	registers := htmlutil.GetAnchors(doc.Find(`a[title^="View attendance data in"]`))
	if len(registers) == 0 {
		return nil, nil
	}

	var written []string
	for _, register := range registers {
		path, err := c.downloadRegister(ctx, register, saveDir)
		if err != nil {
			span.SetStatus(codes.Error, "register download failed")
			return nil, &clients.ExportError{Platform: Platform, Subject: register.Name, Err: err}
		}
		written = append(written, path)
	}
	return written, nil
}

func (c *Client) downloadRegister(ctx context.Context, register htmlutil.Anchor, saveDir string) (string, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(strings.TrimSuffix(register.Href, "/") + "/export")
	if err != nil {
		return "", err
	}
	if _, err := ParseAttendance(bytes.NewBuffer(res.Body())); err != nil {
		return "", err
	}
	if err := os.MkdirAll(saveDir, 0755); err != nil {
		return "", err
	}
	name := filenameFromDisposition(
		res.Header().Get("Content-Disposition"),
		fmt.Sprintf("%s.csv", strings.ReplaceAll(register.Name, " ", "_")),
	)
	out := filepath.Join(saveDir, name)
	if err := os.WriteFile(out, res.Body(), 0644); err != nil {
		return "", err
	}
	return out, nil
}
