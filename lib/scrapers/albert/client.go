// Package albert scrapes class rosters from the Albert student information
// system.
package albert

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"os"
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

var tracer = otel.Tracer("scrapers/albert")

const Platform = "albert"

const DefaultBaseUrl = "https://sis.portal.nyu.edu"

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	authStatePath string
	prompter      clients.Prompter
	sessionLoaded bool
}

type ClientOptions struct {
	// BaseUrl overrides the SIS portal url, primarily for testing.
	BaseUrl string
	// AuthStatePath overrides where the session artifact is stored.
	AuthStatePath string
	// Prompter supplies interactive input during headed authentication.
	Prompter clients.Prompter
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

	telemetry.InstrumentResty(client, "scrapers/albert/http")

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

// Authenticate logs into the SIS portal and persists the session artifact.
// The portal requires multi-factor approval, so headless authentication
// fails unless credentials alone are accepted.
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
		span.SetStatus(codes.Error, "failed to parse login page html")
		return &clients.AuthError{Platform: Platform, Reason: "could not parse login page", Err: err}
	}

	// ICSID is the PeopleSoft state token carried through the login flow.
	icsid := doc.Find("input[name=ICSID]").AttrOr("value", "")
	if icsid == "" {
		span.SetStatus(codes.Error, "failed to find login state token")
		return &clients.AuthError{Platform: Platform, Reason: "could not find login state token"}
	}

	res, err = c.Http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"ICSID":  icsid,
			"userid": creds.Username,
			"pwd":    creds.Password,
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

	if msg := htmlutil.NormalizeText(doc.Find("#login-error").Text()); msg != "" {
		span.SetStatus(codes.Error, "login rejected")
		return &clients.AuthError{Platform: Platform, Reason: msg}
	}

	if doc.Find("#mfa-challenge").Length() > 0 {
		if opts.Headless {
			span.SetStatus(codes.Error, "mfa required in headless mode")
			return &clients.AuthError{
				Platform: Platform,
				Reason:   "multi-factor approval requires an interactive session",
			}
		}
		code, err := c.prompter.Prompt(ctx, "Multi-factor verification code")
		if err != nil {
			return &clients.AuthError{Platform: Platform, Reason: "mfa prompt failed", Err: err}
		}
		res, err = c.Http.R().
			SetContext(ctx).
			SetFormData(map[string]string{
				"ICSID": icsid,
				"code":  strings.TrimSpace(code),
			}).
			Post("/login/mfa")
		if err != nil {
			return &clients.AuthError{Platform: Platform, Reason: "mfa request failed", Err: err}
		}
		doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
		if err != nil {
			return &clients.AuthError{Platform: Platform, Reason: "could not parse mfa response", Err: err}
		}
		if msg := htmlutil.NormalizeText(doc.Find("#login-error").Text()); msg != "" {
			span.SetStatus(codes.Error, "mfa rejected")
			return &clients.AuthError{Platform: Platform, Reason: msg}
		}
	}

	res, err = c.Http.R().
		SetContext(ctx).
		Get("/")
	if err != nil {
		return &clients.AuthError{Platform: Platform, Reason: "could not load portal home after login", Err: err}
	}
	doc, err = goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return &clients.AuthError{Platform: Platform, Reason: "could not parse portal home", Err: err}
	}
	if doc.Find("#IS_FSA_SchWrp").Length() == 0 {
		span.SetStatus(codes.Error, "post-login schedule wrapper missing")
		return &clients.AuthError{Platform: Platform, Reason: "portal did not accept the session"}
	}

	state := clients.CaptureState(Platform, c.BaseUrl, c.Http.GetClient().Jar)
	if err := state.Save(c.authStatePath); err != nil {
		return fmt.Errorf("save session state: %w", err)
	}
	c.sessionLoaded = true
	return nil
}

// ensureSession loads the persisted session artifact into the cookie jar.
// It never re-authenticates.
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

func loggedOut(doc *goquery.Document) bool {
	return doc.Find("form#login, input[name=ICSID]").Length() > 0 &&
		doc.Find("#IS_FSA_SchWrp").Length() == 0
}

// FetchAndSaveRosters walks the paginated class listing for a term,
// downloads the roster export for every section of the named course, and
// writes one CSV per section into saveDir. The returned paths are in the
// order the portal listed the sections. The session artifact must already
// exist, expired sessions surface as an authentication error for the
// caller to handle.
func (c *Client) FetchAndSaveRosters(ctx context.Context, courseName string, term Term, saveDir string, opts clients.ExportOptions) ([]string, error) {
	ctx, span := tracer.Start(ctx, "client:FetchAndSaveRosters")
	defer span.End()

	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get("/")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch portal home")
		return nil, &clients.ExportError{Platform: Platform, Subject: "rosters", Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, &clients.ExportError{Platform: Platform, Subject: "rosters", Err: err}
	}
	if loggedOut(doc) {
		span.SetStatus(codes.Error, "session expired")
		return nil, &clients.AuthError{Platform: Platform, Reason: "session expired"}
	}

	termHref := ""
	for _, anchor := range htmlutil.GetAnchors(doc.Find("#IS_FSA_SchWrp a")) {
		if anchor.Name == term.String() {
			termHref = anchor.Href
			break
		}
	}
	if termHref == "" {
		span.SetStatus(codes.Error, "term not listed")
		return nil, &clients.ExportError{
			Platform: Platform,
			Subject:  "rosters",
			Err:      fmt.Errorf("term %q is not listed on the schedule page", term),
		}
	}

	var written []string
	pageHref := termHref
	for pageHref != "" {
		res, err := c.Http.R().
			SetContext(ctx).
			Get(pageHref)
		if err != nil {
			return nil, &clients.ExportError{Platform: Platform, Subject: "rosters", Err: err}
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
		if err != nil {
			return nil, &clients.ExportError{Platform: Platform, Subject: "rosters", Err: err}
		}

		var sectionErr error
		doc.Find("div.isFSA_SchCrsWrp").EachWithBreak(func(_ int, course *goquery.Selection) bool {
			heading := htmlutil.NormalizeText(course.Find("h1, h2, h3").First().Text())
			if heading != courseName {
				return true
			}
			rosterHref := ""
			for _, anchor := range htmlutil.GetAnchors(course.Find("a")) {
				if anchor.Name == "Class Roster" {
					rosterHref = anchor.Href
					break
				}
			}
			if rosterHref == "" {
				sectionErr = fmt.Errorf("section %q has no roster link", heading)
				return false
			}
			path, err := c.downloadRoster(ctx, rosterHref, saveDir)
			if err != nil {
				sectionErr = err
				return false
			}
			written = append(written, path)
			return true
		})
		if sectionErr != nil {
			span.SetStatus(codes.Error, "roster download failed")
			return nil, &clients.ExportError{Platform: Platform, Subject: "rosters", Err: sectionErr}
		}

		pageHref = doc.Find("a.isFSA_PNext").AttrOr("href", "")
	}

	if len(written) == 0 {
		span.SetStatus(codes.Error, "no matching sections")
		return nil, &clients.ExportError{
			Platform: Platform,
			Subject:  "rosters",
			Err:      fmt.Errorf("no sections named %q found in %s", courseName, term),
		}
	}
	return written, nil
}

func (c *Client) downloadRoster(ctx context.Context, href, saveDir string) (string, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(href)
	if err != nil {
		return "", err
	}
	roster, err := ParseRoster(bytes.NewBuffer(res.Body()))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(saveDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(saveDir, roster.PathStem()+".csv")
	if err := roster.WriteCSVFile(path); err != nil {
		return "", err
	}
	return path, nil
}
