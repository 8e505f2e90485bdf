// Package logging provides the structured, subsystem-tagged logger used across scopegate.
//
// It is a thin layer over log/slog. Every entry carries a "subsystem" attribute so that
// output from the state machine, the OAuth broker and the HTTP layer can be filtered
// independently.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, logging.FormatText, os.Stderr)
//
//	logging.Info("Flow", "Redirecting user=%s for scope %q", logging.TruncateID(userID), scope)
//	logging.Error("OAuth", err, "Token exchange failed")
//
// # Security
//
// Access tokens must never be passed to these functions. User ids and registry keys
// should go through TruncateID so that full opaque keys do not end up in log storage.
package logging
