package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tonimelisma/zumo-go/internal/config"
	"github.com/tonimelisma/zumo-go/internal/sessionstore"
	"github.com/tonimelisma/zumo-go/pkg/zumo"
)

// errNotLoggedIn is returned by commands that need a stored session.
var errNotLoggedIn = errors.New("not logged in: run 'zumo-go login' first")

// dataDir locates sessions and the installation id. Tests replace it.
var dataDir = config.DefaultDataDir

var openKeyringStore = sessionstore.OpenKeyring

// CLISession ties a Mobile Services client to the store its session is
// persisted in, for the resolved profile.
type CLISession struct {
	Profile *config.ResolvedProfile
	Client  *zumo.Client
	Store   sessionstore.Store
	Logger  *slog.Logger
}

// NewCLISession creates the client for the resolved profile and restores
// any session stored for it. metrics may be nil.
func NewCLISession(rp *config.ResolvedProfile, metrics *zumo.Metrics, logger *slog.Logger) (*CLISession, error) {
	if err := rp.RequireServiceURL(); err != nil {
		return nil, err
	}

	client, err := newZumoClient(rp, metrics, logger)
	if err != nil {
		return nil, err
	}

	s := &CLISession{
		Profile: rp,
		Client:  client,
		Store:   openStore(rp, logger),
		Logger:  logger,
	}

	rec, err := s.Store.Load(rp.Name)
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	s.Apply(rec)

	return s, nil
}

// newZumoClient builds a client with the profile's network settings.
func newZumoClient(rp *config.ResolvedProfile, metrics *zumo.Metrics, logger *slog.Logger) (*zumo.Client, error) {
	opts := []zumo.Option{
		zumo.WithHTTPClient(&http.Client{Timeout: rp.TimeoutDuration()}),
		zumo.WithLogger(logger),
		zumo.WithUserAgent(userAgent(rp)),
		zumo.WithRateLimit(rp.Network.RateLimit),
		zumo.WithMetrics(metrics),
	}

	id, err := config.InstallationID(dataDir())
	if err != nil {
		logger.Warn("installation id unavailable", slog.String("error", err.Error()))
	} else {
		opts = append(opts, zumo.WithInstallationID(id))
	}

	return zumo.NewClient(rp.ServiceURL, rp.ApplicationKey, opts...)
}

func userAgent(rp *config.ResolvedProfile) string {
	if rp.Network.UserAgent != "" {
		return rp.Network.UserAgent
	}

	return "zumo-go/" + version
}

// openStore returns the profile's session store. An unavailable keyring
// falls back to the session file.
func openStore(rp *config.ResolvedProfile, logger *slog.Logger) sessionstore.Store {
	if rp.SessionStore == config.SessionStoreKeyring {
		ks, err := openKeyringStore()
		if err == nil {
			return ks
		}

		logger.Warn("keyring unavailable, using session file",
			slog.String("profile", rp.Name),
			slog.String("error", err.Error()),
		)
	}

	return sessionstore.NewFileStore(config.SessionDir(dataDir()))
}

// Apply installs rec as the client's session. A nil record, or one saved
// for another service URL, logs the client out.
func (s *CLISession) Apply(rec *sessionstore.Record) {
	if rec == nil {
		s.Client.Logout()
		return
	}

	if rec.ServiceURL != s.Client.Base() {
		s.Logger.Warn("stored session belongs to another service, ignoring it",
			slog.String("profile", s.Profile.Name),
			slog.String("session_service_url", rec.ServiceURL),
		)
		s.Client.Logout()

		return
	}

	s.Client.RestoreSession(rec.AuthenticationToken, rec.UserID)
	s.Logger.Debug("session restored",
		slog.String("profile", s.Profile.Name),
		slog.String("user_id", rec.UserID),
	)
}

// Save persists the client's current session.
func (s *CLISession) Save(provider string) error {
	user := s.Client.CurrentUser()
	if user == nil {
		return errNotLoggedIn
	}

	rec := &sessionstore.Record{
		ServiceURL:          s.Client.Base(),
		AuthenticationToken: s.Client.AuthToken(),
		UserID:              user.UserID,
		Provider:            provider,
		CreatedAt:           time.Now().UTC(),
	}

	if err := s.Store.Save(s.Profile.Name, rec); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	return nil
}

// Forget logs the client out and removes the stored session.
func (s *CLISession) Forget() error {
	s.Client.Logout()

	if err := s.Store.Delete(s.Profile.Name); err != nil {
		return fmt.Errorf("removing session: %w", err)
	}

	return nil
}

// RequireLogin returns errNotLoggedIn unless a session was restored.
func (s *CLISession) RequireLogin() error {
	if s.Client.State() != zumo.StateLoggedIn {
		return errNotLoggedIn
	}

	return nil
}
