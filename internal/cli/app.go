package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"finboard/internal/cache"
	"finboard/internal/config"
	"finboard/internal/console"
	"finboard/internal/core"
	"finboard/internal/dashboard"
	"finboard/internal/export"
	"finboard/internal/ledger"
	"finboard/internal/ledger/remote"
	logpkg "finboard/internal/log"

	"github.com/spf13/cobra"
)

// APIFactory builds the ledger client for a loaded configuration.
type APIFactory func(cfg *config.Config, logger *slog.Logger) (ledger.API, error)

// RemoteAPI is the default factory: an HTTP client for cfg.APIBaseURL.
func RemoteAPI(cfg *config.Config, logger *slog.Logger) (ledger.API, error) {
	c, err := remote.New(remote.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
		Retries: cfg.APIRetries,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// App is the finboard terminal dashboard.
type App struct {
	root   *cobra.Command
	newAPI APIFactory
	now    func() time.Time
}

type session struct {
	cfg     *config.Config
	dash    *dashboard.Service
	console *console.Console
	email   string
	rng     core.TimeRange
}

func NewApp(version string, newAPI APIFactory) *App {
	if newAPI == nil {
		newAPI = RemoteAPI
	}
	app := &App{newAPI: newAPI, now: time.Now}

	root := &cobra.Command{
		Use:           "finboard",
		Short:         "Personal finance dashboard in the terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          app.runDashboard,
	}
	root.SetVersionTemplate(`{{printf "finboard version: %s\n" .Version}}`)

	pf := root.PersistentFlags()
	pf.StringP("config-file", "C", "", "Path to a TOML, YAML, or JSON configuration file")
	pf.StringP("email", "e", "", "Ledger account email (default: DEFAULT_EMAIL)")
	pf.StringP("range", "r", string(core.RangeAll), "Time range: week, month, year or all")
	pf.String("api-url", "", "Ledger API base URL (default: API_BASE_URL)")
	pf.Bool("no-color", false, "Disable colored output")

	f := root.Flags()
	f.StringSliceP("report-type", "y", nil, "Also write reports: csv, json, pdf")
	f.StringP("report-name", "n", export.DefaultBaseName, "Base name for report files (without extension)")
	f.StringP("dir", "d", "", "Directory to save report files (default: current directory)")

	root.AddCommand(app.addCommand(), app.deleteCommand())
	app.root = root
	return app
}

func (a *App) SetOutput(w io.Writer) {
	a.root.SetOut(w)
	a.root.SetErr(w)
}

func (a *App) SetArgs(args []string) {
	a.root.SetArgs(args)
}

func (a *App) Execute(ctx context.Context) error {
	return a.root.ExecuteContext(ctx)
}

func (a *App) addCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a transaction (negative amounts are expenses)",
		Args:  cobra.NoArgs,
		RunE:  a.runAdd,
	}
	cmd.Flags().String("description", "", "Transaction description")
	cmd.Flags().String("amount", "", "Signed amount, e.g. -124.50")
	cmd.Flags().String("date", "", "Date as YYYY-MM-DD (default: today)")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (a *App) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction by ID",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runDelete,
	}
}

// newSession resolves flags over configuration and wires the dashboard
// service to the ledger API.
func (a *App) newSession(cmd *cobra.Command) (*session, error) {
	LoadEnvFile()

	flags := cmd.Flags()
	cfgFile, _ := flags.GetString("config-file")
	if cfgFile == "" {
		cfgFile = os.Getenv("CONFIG_FILE")
	}
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return nil, err
	}
	if u, _ := flags.GetString("api-url"); u != "" {
		cfg.APIBaseURL = strings.TrimRight(u, "/")
	}

	email, _ := flags.GetString("email")
	if email = strings.TrimSpace(email); email == "" {
		email = cfg.DefaultEmail
	}
	if email == "" {
		return nil, errors.New("an email is required: pass --email or set DEFAULT_EMAIL")
	}

	rawRange, _ := flags.GetString("range")
	rng, ok := core.ParseTimeRange(rawRange)
	if !ok {
		return nil, fmt.Errorf("invalid range %q: use week, month, year or all", rawRange)
	}

	if noColor, _ := flags.GetBool("no-color"); noColor {
		console.DisableColor()
	}
	out := cmd.OutOrStdout()

	level := logpkg.ParseLevel(cfg.LogLevel)
	if level < slog.LevelWarn && cfg.LogLevel != "debug" {
		level = slog.LevelWarn
	}
	logger := logpkg.New(logpkg.Config{Level: level, Format: cfg.LogFormat, Component: logpkg.ComponentCLI, Output: cmd.ErrOrStderr()})

	api, err := a.newAPI(cfg, logger.Slog())
	if err != nil {
		return nil, err
	}
	states := cache.NewLRUCache[dashboard.State](1, cfg.StateCacheTTL)
	dash := dashboard.NewService(api, states,
		dashboard.WithLogger(logger.Slog()),
		dashboard.WithClock(a.now))

	return &session{
		cfg:     cfg,
		dash:    dash,
		console: console.New(out, cfg.CurrencySymbol, out == os.Stdout),
		email:   email,
		rng:     rng,
	}, nil
}

func (a *App) runDashboard(cmd *cobra.Command, _ []string) error {
	types, _ := cmd.Flags().GetStringSlice("report-type")
	if err := export.ValidateTypes(types); err != nil {
		return err
	}
	s, err := a.newSession(cmd)
	if err != nil {
		return err
	}

	stop := s.console.Status("Fetching your dashboard...")
	st, err := s.dash.Load(cmd.Context(), s.email, s.rng)
	stop()
	if err != nil {
		return err
	}
	s.console.Render(st)
	if st.Failed() {
		return st.Err()
	}

	if len(types) == 0 {
		return nil
	}
	name, _ := cmd.Flags().GetString("report-name")
	dir, _ := cmd.Flags().GetString("dir")
	paths, err := export.New(dir, name, s.cfg.CurrencySymbol).Export(st, types)
	for _, p := range paths {
		s.console.Success("Report saved: %s", p)
	}
	return err
}

func (a *App) runAdd(cmd *cobra.Command, _ []string) error {
	s, err := a.newSession(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	desc, _ := flags.GetString("description")
	rawAmount, _ := flags.GetString("amount")
	rawDate, _ := flags.GetString("date")

	amount, err := core.ParseAmount(rawAmount)
	if err != nil {
		return fmt.Errorf("%w: %q", err, rawAmount)
	}
	today := a.now()
	date := core.NewDate(today.Year(), int(today.Month()), today.Day())
	if rawDate != "" {
		if date, err = core.ParseDate(rawDate); err != nil {
			return err
		}
	}

	draft := core.NewTransactionDraft{Description: strings.TrimSpace(desc), Amount: amount, Date: date}
	st, tx, err := s.dash.Create(cmd.Context(), s.email, s.rng, draft)
	if err != nil {
		return err
	}
	s.console.Success("Transaction added: %s %s (%s)", tx.Description, core.FormatAmount(tx.Amount, s.cfg.CurrencySymbol), tx.ID)
	s.console.Render(st)
	return nil
}

func (a *App) runDelete(cmd *cobra.Command, args []string) error {
	s, err := a.newSession(cmd)
	if err != nil {
		return err
	}
	st, err := s.dash.Delete(cmd.Context(), s.email, s.rng, args[0])
	if err != nil {
		return err
	}
	s.console.Success("Transaction deleted: %s", args[0])
	s.console.Render(st)
	return nil
}
