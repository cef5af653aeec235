// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/mtls-binding/src/binding"
	"github.com/H0llyW00dzZ/mtls-binding/src/config"
	"github.com/H0llyW00dzZ/mtls-binding/src/internal/helper/gc"
	"github.com/H0llyW00dzZ/mtls-binding/src/internal/helper/posix"
	"github.com/H0llyW00dzZ/mtls-binding/src/internal/store"
	"github.com/H0llyW00dzZ/mtls-binding/src/logger"
)

var (
	// ErrMissingFlag is returned when a required flag combination is absent.
	ErrMissingFlag = errors.New("cli: required flag not set")

	// ErrInvalidFlag is returned when a flag value cannot be parsed.
	ErrInvalidFlag = errors.New("cli: invalid flag value")

	// ErrValidation is returned by the validate command when a binding does not resolve.
	ErrValidation = errors.New("cli: configuration does not validate")
)

// OperationPerformed reports whether the last call to [Execute] ran a
// command to completion.
var OperationPerformed bool

const (
	maxFileSize = 1 << 20
	maxBodySize = 16 << 20
)

// app carries the state shared by every command.
type app struct {
	version  string
	log      logger.Logger
	storeDir string
	// certConfig is the certificate command's --config.
	certConfig string
	jsonLogs bool
}

// Execute builds the command tree and runs it with the process arguments.
func Execute(ctx context.Context, version string, log logger.Logger) error {
	OperationPerformed = false

	if err := NewRootCommand(version, log).ExecuteContext(ctx); err != nil {
		return err
	}

	OperationPerformed = true
	return nil
}

// NewRootCommand returns the root command. log receives progress messages;
// it is redirected to the command's error stream so results on standard
// output stay machine readable.
func NewRootCommand(version string, log logger.Logger) *cobra.Command {
	if log == nil {
		log = logger.NewCLILogger()
	}
	a := &app{version: version, log: log}

	root := &cobra.Command{
		Use:   posix.GetExecutableName(),
		Short: "Manage mTLS certificate bindings and fetch through them",
		Long: `Upload client certificates, bind them by name in wrangler.toml, and make
HTTPS requests that present the bound certificate during the TLS handshake.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if a.jsonLogs {
				a.log = logger.NewJSONLogger(cmd.ErrOrStderr(), false).WithComponent(cmd.Name())
				return
			}
			a.log.SetOutput(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&a.storeDir, "store", "",
		fmt.Sprintf("certificate store directory (default: $%s or %s)", config.EnvStoreDir, config.DefaultStoreDir))
	root.PersistentFlags().BoolVar(&a.jsonLogs, "json-logs", false, "write log lines as JSON")

	root.AddCommand(
		a.newCertificateCommand(),
		a.newFetchCommand(),
		a.newServeCommand(),
		a.newValidateCommand(),
	)

	return root
}

// openStore opens the store named by --store, then the configuration, then
// the environment, then the default location.
func (a *app) openStore(cfg *config.Config) (*store.Store, error) {
	dir := a.storeDir
	if dir == "" && cfg != nil {
		dir = cfg.Store.Dir
	}
	if dir == "" {
		dir = os.Getenv(config.EnvStoreDir)
	}
	if dir == "" {
		dir = config.DefaultStoreDir
	}
	return store.Open(dir)
}

// openCertificateStore opens the store for the certificate commands. The
// binding configuration is consulted for [store] dir when it exists; only an
// explicit --config must be present.
func (a *app) openCertificateStore() (*store.Store, error) {
	if a.storeDir != "" {
		return a.openStore(nil)
	}

	cfg, err := config.Load(a.certConfig)
	switch {
	case err == nil:
		return a.openStore(cfg)
	case a.certConfig == "" && errors.Is(err, os.ErrNotExist):
		return a.openStore(nil)
	default:
		return nil, err
	}
}

// loadEnv loads the binding configuration and builds an environment over
// the store. The caller must Close the environment.
func (a *app) loadEnv(configPath string) (*config.Config, *binding.Env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	s, err := a.openStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []binding.Option{binding.WithLogger(a.log)}
	if cfg.Fetch.UserAgent == "" {
		opts = append(opts, binding.WithUserAgent(binding.DefaultUserAgent(a.version)))
	}

	env, err := binding.NewEnv(cfg, s, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, env, nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := gc.ReadAll(f, maxFileSize)
	if errors.Is(err, gc.ErrTooLarge) {
		return nil, fmt.Errorf("%s is larger than %s: %w", path, humanize.IBytes(maxFileSize), err)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}
