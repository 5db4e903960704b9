// Package main is the CredKeeper command line client. It works on the local
// stores directly and offers an interactive shell.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/atinyakov/CredKeeper/internal/config"
	"github.com/atinyakov/CredKeeper/internal/credtype"
	"github.com/atinyakov/CredKeeper/internal/logger"
	"github.com/atinyakov/CredKeeper/internal/models"
	"github.com/atinyakov/CredKeeper/internal/prompt"
	"github.com/atinyakov/CredKeeper/internal/service"
	"github.com/atinyakov/CredKeeper/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version   string
	buildDate string
)

// errLocked is returned when changes could not be saved for lack of a master
// password.
var errLocked = errors.New("secure storage is locked, run 'credkeeper unlock' first")

// console reads answers from the user.
type console interface {
	ReadLine(label string) (string, bool, error)
	ReadSecret(label string) (string, bool, error)
}

// app holds what the commands share. The model is built by the first command
// and reused by the commands run from the shell.
type app struct {
	opts      *config.Options
	log       *zap.Logger
	out       io.Writer
	stores    *storage.Stores
	model     *service.CredentialsModel
	prompters func(models.CredentialType) models.Prompter
	console   console

	configPath string
	flags      struct {
		store, driver, dsn, prefs, logLevel string
	}
}

func newApp(out io.Writer) *app {
	opts := config.Default()
	opts.LogLevel = "warn"
	return &app{opts: opts, log: zap.NewNop(), out: out}
}

// open loads the configuration and builds stores and model. Precedence is
// flags, then environment, then config file, then defaults.
func (a *app) open(cmd *cobra.Command) error {
	if a.model != nil {
		return nil
	}

	if err := config.LoadFile(a.configPath, a.opts); err != nil {
		return err
	}
	config.ApplyEnv(a.opts)
	overrides := []struct {
		flag string
		src  string
		dst  *string
	}{
		{"store", a.flags.store, &a.opts.Store},
		{"driver", a.flags.driver, &a.opts.Driver},
		{"dsn", a.flags.dsn, &a.opts.DatabaseDSN},
		{"prefs", a.flags.prefs, &a.opts.PrefsFile},
		{"log-level", a.flags.logLevel, &a.opts.LogLevel},
	}
	for _, ov := range overrides {
		if cmd.Flags().Changed(ov.flag) {
			*ov.dst = ov.src
		}
	}

	l := logger.New()
	if err := l.Init(a.opts.LogLevel); err != nil {
		return err
	}
	a.log = l.Log

	stores, err := storage.Open(cmd.Context(), a.opts, a.log)
	if err != nil {
		return err
	}
	a.stores = stores

	types := credtype.NewRegistry(a.log)
	types.Register(credtype.UserPassword{}, true)
	types.Register(credtype.Token{}, false)

	if a.console == nil {
		t := prompt.NewTerminal(os.Stdin, a.out)
		a.console = t
		a.prompters = t.Factory()
	}
	a.model = service.NewCredentialsModel(types, stores.Prefs, stores.Secure, a.prompters, a.log)
	return a.model.Load(cmd.Context())
}

func (a *app) close() error {
	_ = a.log.Sync()
	if a.stores == nil {
		return nil
	}
	return a.stores.Close()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "credkeeper",
		Short:         "Manage per-domain credentials",
		Version:       fmt.Sprintf("%s (built %s)", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A")),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}
	root.SetOut(a.out)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "config.json", "path to config file (.json or .toml)")
	pf.StringVar(&a.flags.store, "store", a.opts.Store, "preferences store (sql, file, memory)")
	pf.StringVar(&a.flags.driver, "driver", a.opts.Driver, "database driver (sqlite, postgres)")
	pf.StringVar(&a.flags.dsn, "dsn", a.opts.DatabaseDSN, "database connection string")
	pf.StringVar(&a.flags.prefs, "prefs", "", "preferences file for --store=file")
	pf.StringVar(&a.flags.logLevel, "log-level", a.opts.LogLevel, "log level")

	root.AddCommand(
		newDomainsCmd(a),
		newDomainCmd(a),
		newAddCmd(a),
		newRemoveCmd(a),
		newGetCmd(a),
		newDefaultCmd(a),
		newTypesCmd(a),
		newUnlockCmd(a),
		newShellCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdout)
	err := newRootCmd(a).ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
