package browser

import (
	"context"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"browseragent/internal/browseragent/bgerr"
	"browseragent/internal/browseragent/obslog"
)

// Manager owns the one rod.Browser process backing every Session it hands
// out. Adapted from the teacher's SessionManager, trimmed to the tab and
// incognito-context bookkeeping this module needs: no Mangle fact sink, no
// disk persistence, no React reification.
type Manager struct {
	mu         sync.Mutex
	cfg        Config
	browser    *rod.Browser
	controlURL string
	log        *obslog.Logger
}

// NewManager constructs a Manager that has not yet launched a browser.
func NewManager(cfg Config, log *obslog.Logger) *Manager {
	if log == nil {
		log = obslog.Default()
	}
	return &Manager{cfg: cfg, log: log}
}

// Start launches the underlying Chrome process and connects to it; it is a
// no-op when the Manager is already connected.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser != nil {
		return nil
	}

	l := launcher.New().Headless(m.cfg.Headless)
	if m.cfg.ChromeBin != "" {
		l = l.Bin(m.cfg.ChromeBin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return bgerr.Wrap(bgerr.InvalidInput, err, "failed to launch browser")
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return bgerr.Wrap(bgerr.InvalidInput, err, "failed to connect to browser")
	}

	m.browser = b
	m.controlURL = controlURL
	m.log.Info(obslog.CategoryBrowser, "browser started", map[string]any{"control_url": controlURL})
	return nil
}

// Shutdown closes the underlying browser process.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.browser == nil {
		return nil
	}
	err := m.browser.Close()
	m.browser = nil
	return err
}

// NewSession creates a fresh incognito browsing context navigated to
// startURL and returns the Session wrapping it. Each task gets exactly one
// Session (spec.md §5).
func (m *Manager) NewSession(ctx context.Context, startURL string) (*Session, error) {
	m.mu.Lock()
	b := m.browser
	cfg := m.cfg
	m.mu.Unlock()
	if b == nil {
		return nil, bgerr.New(bgerr.InvalidInput, "browser not started", nil)
	}

	incognito, err := b.Incognito()
	if err != nil {
		return nil, bgerr.Wrap(bgerr.InvalidInput, err, "failed to create incognito context")
	}

	page, err := incognito.Context(ctx).Page(proto.TargetCreateTarget{URL: startURL})
	if err != nil {
		return nil, bgerr.Wrap(bgerr.InvalidInput, err, "failed to open initial tab")
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}).Call(page); err != nil {
		m.log.Warn(obslog.CategoryBrowser, "viewport override failed", map[string]any{"error": err.Error()})
	}

	id := uuid.NewString()
	sess := newSession(id, incognito, page, cfg)
	m.log.Info(obslog.CategoryBrowser, "session created", map[string]any{"session_id": id})
	return sess, nil
}

// Fork creates a new Session inheriting the cookies and storage of src,
// navigated to url. Supports the Task Manager's queued follow-up tasks
// (spec.md §4.7; see SPEC_FULL.md §11/§12) that want to continue browsing
// in the same authenticated state rather than a cold session.
func (m *Manager) Fork(ctx context.Context, src *Session, url string) (*Session, error) {
	srcPage := src.page()

	cookies, err := proto.NetworkGetCookies{}.Call(srcPage)
	if err != nil {
		return nil, bgerr.Wrap(bgerr.InvalidInput, err, "failed to read source cookies")
	}

	storageRes, err := srcPage.Context(ctx).Evaluate(rod.Eval(`() => ({
	  local: JSON.stringify(localStorage),
	  session: JSON.stringify(sessionStorage),
	})`))
	if err != nil {
		return nil, bgerr.Wrap(bgerr.InvalidInput, err, "failed to snapshot storage")
	}

	dst, err := m.NewSession(ctx, url)
	if err != nil {
		return nil, err
	}

	params := make([]*proto.NetworkCookieParam, 0, len(cookies.Cookies))
	for _, c := range cookies.Cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	if len(params) > 0 {
		if err := dst.page().SetCookies(params); err != nil {
			m.log.Warn(obslog.CategoryBrowser, "cookie restore failed", map[string]any{"error": err.Error()})
		}
	}

	var storage struct{ Local, Session string }
	if err := storageRes.Value.Unmarshal(&storage); err == nil {
		const restoreJS = `(local, session) => {
		  const l = JSON.parse(local);
		  for (const k in l) localStorage.setItem(k, l[k]);
		  const s = JSON.parse(session);
		  for (const k in s) sessionStorage.setItem(k, s[k]);
		}`
		_, _ = dst.page().Context(ctx).Evaluate(rod.Eval(restoreJS, storage.Local, storage.Session))
	}

	return dst, nil
}
