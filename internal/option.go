package internal

// Mode selects what Run does after the vault index is synced.
type Mode string

// Run modes.
const (
	// ModeExport exports the vault (or the notes given via WithNotes) once and exits.
	ModeExport Mode = "export"
	// ModeWatch exports once, then re-exports notes as the vault changes.
	ModeWatch Mode = "watch"
	// ModeServe runs the HTTP API and the watcher.
	ModeServe Mode = "serve"
	// ModeMCP serves export tools over MCP stdio.
	ModeMCP Mode = "mcp"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	mode   Mode
	notes  []string
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMode sets the run mode. The default is ModeServe.
func WithMode(m Mode) Option {
	return func(a *application) {
		a.mode = m
	}
}

// WithNotes limits ModeExport to the given vault-relative note paths.
func WithNotes(paths ...string) Option {
	return func(a *application) {
		a.notes = paths
	}
}
