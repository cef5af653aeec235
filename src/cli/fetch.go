// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/mtls-binding/src/binding"
	"github.com/H0llyW00dzZ/mtls-binding/src/internal/helper/gc"
	"github.com/H0llyW00dzZ/mtls-binding/src/worker"
)

func (a *app) newFetchCommand() *cobra.Command {
	var (
		configPath, bindingName, method, data, redirect string
		headers                                         []string
		include                                         bool
	)

	cmd := &cobra.Command{
		Use:   "fetch URL",
		Short: "Fetch a URL presenting the certificate of a binding",
		Long: `Fetch an HTTPS URL through an mTLS certificate binding. The status line is
logged and the response body is written to standard output. Hosts inside a
proxied zone answer with status 520.`,
		Example: "  fetch https://api.example.com/endpoint\n  fetch -b PARTNER_CERT -X POST -H 'Content-Type: application/json' -d '{}' https://partner.example/api",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			header, err := parseHeaders(headers)
			if err != nil {
				return err
			}

			_, env, err := a.loadEnv(configPath)
			if err != nil {
				return err
			}
			defer env.Close()

			cert, err := env.Get(bindingName)
			if err != nil {
				return err
			}

			var body io.Reader
			if data != "" {
				body = strings.NewReader(data)
			}

			resp, err := cert.Fetch(cmd.Context(), args[0], &binding.RequestInit{
				Method:   method,
				Header:   header,
				Body:     body,
				Redirect: binding.RedirectMode(redirect),
			})
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			a.log.Printf("%s %s", resp.Proto, resp.Status)

			out := cmd.OutOrStdout()
			if include {
				fmt.Fprintf(out, "%s %s\r\n", resp.Proto, resp.Status)
				if err := resp.Header.Write(out); err != nil {
					return err
				}
				fmt.Fprint(out, "\r\n")
			}

			payload, err := gc.ReadAll(resp.Body, maxBodySize)
			if err != nil {
				return err
			}
			_, err = out.Write(payload)
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "binding configuration file (default: $MTLS_BINDING_CONFIG or wrangler.toml)")
	cmd.Flags().StringVarP(&bindingName, "binding", "b", worker.DefaultBinding, "binding to fetch through")
	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "request method")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "request header as 'Name: value'")
	cmd.Flags().StringVarP(&data, "data", "d", "", "request body")
	cmd.Flags().StringVar(&redirect, "redirect", string(binding.RedirectFollow), "redirect handling: follow, manual or error")
	cmd.Flags().BoolVarP(&include, "include", "i", false, "print the status line and response headers")

	return cmd
}

// parseHeaders converts "Name: value" pairs into a header.
func parseHeaders(raw []string) (http.Header, error) {
	header := make(http.Header, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: header %q must be 'Name: value'", ErrInvalidFlag, h)
		}
		header.Add(name, strings.TrimSpace(value))
	}
	return header, nil
}
