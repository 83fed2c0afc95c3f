package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/declaranet/declara-cli/internal/config"
	"github.com/declaranet/declara-cli/internal/credentials"
	"github.com/declaranet/declara-cli/internal/engine"
	"github.com/declaranet/declara-cli/internal/portal"
)

// pageNavigator is the navigation capability beyond the engine.Page surface.
// The production Page implements it; the engine never needs it.
type pageNavigator interface {
	Navigate(ctx context.Context, url string) error
}

// Authenticator runs the portal's e.firma login flow and the session logout.
type Authenticator struct {
	cfg      config.PortalConfig
	mapping  *portal.Mapping
	cred     *credentials.EFirma
	gate     *engine.WaitGate
	executor *engine.StepExecutor
	logger   *zap.Logger
}

var _ engine.Authenticator = (*Authenticator)(nil)

// NewAuthenticator wires the login flow for one credential set.
func NewAuthenticator(cfg config.PortalConfig, mapping *portal.Mapping, cred *credentials.EFirma, gate *engine.WaitGate, executor *engine.StepExecutor, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		cfg:      cfg,
		mapping:  mapping,
		cred:     cred,
		gate:     gate,
		executor: executor,
		logger:   logger.Named("login"),
	}
}

// Login opens the portal, switches to e.firma authentication, attaches the
// certificate and key, enters the password and submits. It succeeds once the
// authenticated menu renders and fails on the portal's error banner or any
// known error phrase.
func (a *Authenticator) Login(ctx context.Context, page engine.Page) error {
	nav, ok := page.(pageNavigator)
	if !ok {
		return fmt.Errorf("page does not support navigation")
	}

	timeout := a.cfg.LoginTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := nav.Navigate(ctx, a.cfg.BaseURL); err != nil {
		return fmt.Errorf("opening portal: %w", err)
	}

	sess := engine.NewFormSession(page)
	login := a.mapping.Login

	steps := []struct {
		spec  engine.FieldSpec
		value string
	}{
		{login.EFirmaButton, ""},
		{login.CertificateInput, a.cred.CertificatePath},
		{login.KeyInput, a.cred.KeyPath},
		{login.PasswordInput, a.cred.Password},
		{login.SubmitButton, ""},
	}
	for _, s := range steps {
		if err := a.executor.Commit(ctx, sess, s.spec, s.value); err != nil {
			return fmt.Errorf("login step %q: %w", s.spec.Name, err)
		}
	}

	if err := a.awaitAuthenticated(ctx, page); err != nil {
		return err
	}
	a.logger.Info("Portal login succeeded.", zap.String("rfc", a.cred.RFC))
	return nil
}

// awaitAuthenticated races the authenticated menu against the error banner.
func (a *Authenticator) awaitAuthenticated(ctx context.Context, page engine.Page) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := a.gate.Await(ctx, page, a.mapping.Navigation.DeclarationMenu, 2*time.Second); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("login did not complete: %w", ctx.Err())
		}

		if banner := a.readBanner(ctx, page); banner != "" {
			return fmt.Errorf("portal rejected login: %s", banner)
		}
		if body, err := page.Text(ctx, "body"); err == nil {
			if phrase, found := ContainsErrorPhrase(body, a.mapping.ErrorPhrases); found {
				return fmt.Errorf("portal error during login: %q", phrase)
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("login did not complete: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (a *Authenticator) readBanner(ctx context.Context, page engine.Page) string {
	banner := a.mapping.Login.ErrorBanner
	for _, sel := range banner.Selectors {
		visible, err := page.Visible(ctx, sel)
		if err != nil || !visible {
			continue
		}
		text, err := page.Text(ctx, sel)
		if err == nil && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

// Logout ends the portal session. Best effort: the caller logs failures and
// moves on.
func (a *Authenticator) Logout(ctx context.Context, page engine.Page) error {
	sess := engine.NewFormSession(page)
	if err := a.executor.Commit(ctx, sess, a.mapping.Navigation.Logout, ""); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	a.logger.Info("Portal session closed.")
	return nil
}

// ContainsErrorPhrase reports the first known portal error phrase found in
// the rendered text. Matching is case-insensitive; the portal is not
// consistent about casing across its error pages.
func ContainsErrorPhrase(text string, phrases []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return phrase, true
		}
	}
	return "", false
}
