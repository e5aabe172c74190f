package clients

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"edubag/lib/timezone"
)

// State is the session artifact persisted after a successful login. It is
// opaque to callers; only the client that wrote it reads it back.
type State struct {
	Platform  string        `json:"platform"`
	BaseUrl   string        `json:"base_url"`
	CreatedAt time.Time     `json:"created_at"`
	Cookies   []StateCookie `json:"cookies"`
}

type StateCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DefaultStatePath is where a platform stores its session artifact unless
// the caller overrides it: <user cache dir>/edubag/<platform>_auth.json
func DefaultStatePath(platform string) (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(cacheDir, "edubag")
	err = os.MkdirAll(dir, 0700)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("%s_auth.json", platform)), nil
}

// CaptureState snapshots the cookies the jar holds for baseUrl.
func CaptureState(platform string, baseUrl *url.URL, jar http.CookieJar) State {
	state := State{
		Platform:  platform,
		BaseUrl:   baseUrl.String(),
		CreatedAt: timezone.Now(),
	}
	for _, c := range jar.Cookies(baseUrl) {
		state.Cookies = append(state.Cookies, StateCookie{Name: c.Name, Value: c.Value})
	}
	return state
}

// Apply restores the captured cookies into a jar for baseUrl.
func (s State) Apply(baseUrl *url.URL, jar http.CookieJar) {
	cookies := make([]*http.Cookie, len(s.Cookies))
	for i, c := range s.Cookies {
		cookies[i] = &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"}
	}
	jar.SetCookies(baseUrl, cookies)
}

func (s State) Save(path string) error {
	err := os.MkdirAll(filepath.Dir(path), 0700)
	if err != nil {
		return err
	}
	buff, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, buff, 0600)
}

func LoadState(path string) (State, error) {
	var state State
	buff, err := os.ReadFile(path)
	if err != nil {
		return state, err
	}
	err = json.Unmarshal(buff, &state)
	if err != nil {
		return state, fmt.Errorf("corrupt session state at %s: %w", path, err)
	}
	return state, nil
}
