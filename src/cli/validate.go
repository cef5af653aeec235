// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"fmt"
	"net/url"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/mtls-binding/src/binding"
)

func (a *app) newValidateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and that every binding resolves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, env, err := a.loadEnv(configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			names := env.Names()
			rows := make([][]string, 0, len(names))
			failed := 0

			for _, name := range names {
				decl, _ := cfg.Binding(name)
				status := "ok"

				cert, err := env.Get(name)
				if err != nil {
					failed++
					status = err.Error()
				} else if leaf := cert.Leaf(); leaf != nil {
					status = "ok, expires " + humanize.Time(leaf.NotAfter)
				}

				rows = append(rows, []string{name, decl.CertificateID, status})
			}

			if len(rows) > 0 {
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Binding", "Certificate ID", "Status"}, rows))
			} else {
				a.log.Printf("Warning: %s declares no mtls_certificates", cfg.Path())
			}

			if cfg.Upstream != "" && binding.InProxiedZone(upstreamHost(cfg.Upstream), cfg.ProxiedZones) {
				a.log.Printf("Warning: upstream %s is in a proxied zone; fetches will return 520", cfg.Upstream)
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d bindings failed to resolve", ErrValidation, failed, len(names))
			}

			a.log.Printf("Configuration %s is valid", cfg.Path())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "binding configuration file (default: $MTLS_BINDING_CONFIG or wrangler.toml)")

	return cmd
}

func upstreamHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
