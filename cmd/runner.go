package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/aehx/internal/chat"
	"github.com/desertthunder/aehx/internal/models"
	"github.com/desertthunder/aehx/internal/repositories"
	"github.com/desertthunder/aehx/internal/services"
	"github.com/desertthunder/aehx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	client     *services.Client
	httpClient *http.Client
	db         *sql.DB
	items      *repositories.ItemRepository
	sessions   *repositories.SessionRepository
	auth       *repositories.AuthRepository
	restored   bool
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Client     *services.Client
	HTTPClient *http.Client
	DB         *sql.DB
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = services.NewHTTPClient(opts.Config.Server.Timeout())
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		client:     opts.Client,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	if r.client == nil {
		r.client = services.NewClient(r.config.Server.BaseURL, r.httpClient)
	}
	r.wireClient()

	if opts.DB != nil {
		r.useDB(opts.DB)
	}
	return r
}

func (r *Runner) wireClient() {
	r.client.SetLogger(r.logger)
	r.client.OnUnauthorized = func() {
		r.logger.Warn("session missing or expired, run 'aehx auth login'")
	}
}

// SetLogger replaces the logger used by the runner and its API client.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	r.client.SetLogger(l)
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, feedCommand, searchCommand, chatCommand,
		tasksCommand, exportCommand, cacheCommand, apiCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the config named by --config, when it exists, and rebuilds the
// API client against it.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	r.configPath = path

	if _, err := os.Stat(path); err == nil {
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, err
		}
		r.config = config
		r.httpClient = services.NewHTTPClient(config.Server.Timeout())
		r.client = services.NewClient(config.Server.BaseURL, r.httpClient)
		r.wireClient()
	}

	shared.SetLogLevel(r.logger, r.config.Log.LogLevel())
	return ctx, nil
}

func (r *Runner) useDB(db *sql.DB) {
	r.db = db
	r.items = repositories.NewItemRepository(db)
	r.sessions = repositories.NewSessionRepository(db)
	r.auth = repositories.NewAuthRepository(db)
}

// openDB opens the local cache on first use, applying pending migrations.
func (r *Runner) openDB() error {
	if r.db != nil {
		return nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	r.useDB(db)
	return nil
}

func (r *Runner) close() {
	if r.db != nil {
		r.db.Close()
	}
}

// api returns the client with the saved login, if any, installed.
func (r *Runner) api() *services.Client {
	if r.restored {
		return r.client
	}
	r.restored = true

	if err := r.openDB(); err != nil {
		r.logger.Warn("could not restore session", "error", err)
		return r.client
	}
	state, err := r.auth.Load(r.client.BaseURL())
	if err != nil {
		r.logger.Warn("could not restore session", "error", err)
		return r.client
	}
	if state == nil {
		return r.client
	}

	if err := r.client.SetCookies(state.Cookies); err != nil {
		r.logger.Warn("could not restore cookies", "error", err)
	}
	r.client.SetCSRFToken(state.CSRFToken)
	r.logger.Debug("restored session", "user", state.Username, "cookies", len(state.Cookies))
	return r.client
}

// saveAuth persists the client's current cookies and CSRF token.
func (r *Runner) saveAuth(username string) error {
	if err := r.openDB(); err != nil {
		return err
	}
	state := &models.AuthState{
		BaseURL:   r.client.BaseURL(),
		Username:  username,
		CSRFToken: r.client.CSRFToken(),
		Cookies:   r.client.Cookies(),
	}
	if err := r.auth.Save(state); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// chatStore builds a store over the API whose sessions are mirrored to the cache.
func (r *Runner) chatStore(mode, intent string) (*chat.Store, error) {
	if err := r.openDB(); err != nil {
		return nil, err
	}
	if mode == "" {
		mode = r.config.Chat.Mode
	}
	if intent == "" {
		intent = r.config.Chat.Intent
	}

	store := chat.NewStore(r.api(), chat.Options{
		Mode:   mode,
		Intent: intent,
		UILang: r.config.Server.UILang,
		Logger: r.logger,
		Saver:  repositories.NewSessionCache(r.sessions, nil),
	})

	cached, err := r.sessions.List(nil)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		store.Restore(cached)
	}
	return store, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
