// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/mtls-binding/src/binding"
	"github.com/H0llyW00dzZ/mtls-binding/src/worker"
)

// DefaultListenAddr is where serve listens unless told otherwise.
const DefaultListenAddr = "127.0.0.1:8787"

func (a *app) newServeCommand() *cobra.Command {
	var configPath, listen, bindingName string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the example handler on a local HTTP server",
		Long: `Serve every request by fetching the configured upstream through an mTLS
binding and relaying the response. The server stops gracefully on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, env, err := a.loadEnv(configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			if _, ok := cfg.Binding(bindingName); !ok {
				a.log.Printf("Warning: binding %s is not declared in %s; requests will fail with 500", bindingName, cfg.Path())
			}

			upstream := cfg.Upstream
			if upstream == "" {
				upstream = worker.DefaultUpstream
			}
			if u := upstreamHost(upstream); binding.InProxiedZone(u, cfg.ProxiedZones) {
				a.log.Printf("Warning: upstream %s is in a proxied zone; requests will return 520", upstream)
			}

			metrics := worker.NewMetricsCollector()
			reg := prometheus.NewRegistry()
			reg.MustRegister(metrics, collectors.NewGoCollector())

			handler := worker.NewHandler(env, worker.Options{
				Binding:  bindingName,
				Upstream: upstream,
				Logger:   a.log,
				Metrics:  metrics,
			})

			a.log.Printf("Serving on http://%s (binding %s, upstream %s)", listen, bindingName, upstream)
			return worker.Serve(cmd.Context(), listen, worker.NewRouter(handler, a.log, reg))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "binding configuration file (default: $MTLS_BINDING_CONFIG or wrangler.toml)")
	cmd.Flags().StringVarP(&listen, "listen", "l", DefaultListenAddr, "listen address")
	cmd.Flags().StringVarP(&bindingName, "binding", "b", worker.DefaultBinding, "binding used by the handler")

	return cmd
}
