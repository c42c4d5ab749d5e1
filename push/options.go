package push

import "log/slog"

// Option configures an HPP Server.
type Option func(*Server)

// WithAuth sets the authenticator for the push server.
// If not set, NoopAuthenticator is used (development mode).
func WithAuth(auth Authenticator) Option {
	return func(s *Server) { s.auth = auth }
}

// WithCodec sets the default codec for the push server.
// Clients can override via the auth frame's format field.
func WithCodec(codec Codec) Option {
	return func(s *Server) { s.defaultCodec = codec }
}

// WithLogger sets the logger for the push server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithPath sets the base path for push endpoints.
// Default is "/push".
func WithPath(path string) Option {
	return func(s *Server) { s.basePath = path }
}
