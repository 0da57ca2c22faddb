package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command. Secrets
// are reported as set or unset, never printed.
func RenderEffective(rp *ResolvedProfile, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration for profile %q\n", rp.Name)
	ew.printf("# Config file: %s\n\n", rp.ConfigPath)

	renderProfileSection(ew, rp)
	renderLoggingSection(ew, &rp.Logging)
	renderNetworkSection(ew, &rp.Network)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderProfileSection(ew *errWriter, rp *ResolvedProfile) {
	ew.printf("[profile.%s]\n", rp.Name)
	ew.printf("  service_url          = %q\n", rp.ServiceURL)
	ew.printf("  application_key      = %s\n", secretState(rp.ApplicationKey))
	ew.printf("  session_store        = %q\n", rp.SessionStore)

	if rp.MicrosoftClientID != "" {
		ew.printf("  microsoft_client_id  = %q\n", rp.MicrosoftClientID)
	}

	if rp.GoogleClientID != "" {
		ew.printf("  google_client_id     = %q\n", rp.GoogleClientID)
		ew.printf("  google_client_secret = %s\n", secretState(rp.GoogleClientSecret))
	}

	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("# logging\n")
	ew.printf("log_level  = %q\n", l.LogLevel)
	ew.printf("log_format = %q\n", l.LogFormat)
	ew.printf("\n")
}

func renderNetworkSection(ew *errWriter, n *NetworkConfig) {
	ew.printf("# network\n")
	ew.printf("timeout    = %q\n", n.Timeout)
	ew.printf("rate_limit = %g\n", n.RateLimit)

	if n.UserAgent != "" {
		ew.printf("user_agent = %q\n", n.UserAgent)
	}
}

func secretState(v string) string {
	if v == "" {
		return "(unset)"
	}

	return "(set)"
}
