// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/H0llyW00dzZ/mtls-binding/src/internal/store"
	x509certs "github.com/H0llyW00dzZ/mtls-binding/src/internal/x509/certs"
)

func (a *app) newCertificateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "certificate",
		Aliases: []string{"mtls-certificate", "cert"},
		Short:   "Manage certificates in the local store",
	}

	cmd.PersistentFlags().StringVarP(&a.certConfig, "config", "c", "",
		"binding configuration whose [store] dir is used (default: $MTLS_BINDING_CONFIG or wrangler.toml when present)")

	cmd.AddCommand(
		a.newUploadCommand(),
		a.newUploadCACommand(),
		a.newListCommand(),
		a.newDeleteCommand(),
		a.newGenerateCommand(),
	)
	return cmd
}

func (a *app) newUploadCommand() *cobra.Command {
	var certFile, keyFile, p12File, password, name string

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload a client certificate and private key",
		Long: `Upload a client certificate (optionally followed by its intermediates) and
the matching private key. The new certificate ID is printed on standard output;
reference it as certificate_id in the mtls_certificates section of wrangler.toml.`,
		Example: "  upload --cert cert.pem --key key.pem\n  upload --p12 client.p12 --password secret --name partner-api",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openCertificateStore()
			if err != nil {
				return err
			}

			var rec *store.Certificate
			switch {
			case p12File != "":
				data, err := readFile(p12File)
				if err != nil {
					return err
				}
				kp, err := x509certs.LoadPKCS12(data, password)
				if err != nil {
					return err
				}
				if rec, err = s.UploadKeyPair(cmd.Context(), name, kp); err != nil {
					return err
				}

			case certFile != "" && keyFile != "":
				certPEM, err := readFile(certFile)
				if err != nil {
					return err
				}
				keyPEM, err := readFile(keyFile)
				if err != nil {
					return err
				}
				rec, err = s.Upload(cmd.Context(), store.UploadRequest{
					Name:           name,
					CertificatePEM: certPEM,
					PrivateKeyPEM:  keyPEM,
				})
				if err != nil {
					return err
				}

			default:
				return fmt.Errorf("%w: --cert and --key, or --p12", ErrMissingFlag)
			}

			a.log.Printf("Uploaded certificate %q issued by %q, expires %s",
				rec.Subject, rec.Issuer, humanize.Time(rec.ExpiresOn))
			fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&certFile, "cert", "", "PEM certificate file, leaf first")
	cmd.Flags().StringVar(&keyFile, "key", "", "PEM private key file")
	cmd.Flags().StringVar(&p12File, "p12", "", "PKCS#12 bundle holding certificate and key")
	cmd.Flags().StringVar(&password, "password", "", "PKCS#12 bundle password")
	cmd.Flags().StringVar(&name, "name", "", "optional unique name for the certificate")
	cmd.MarkFlagsMutuallyExclusive("p12", "cert")
	cmd.MarkFlagsMutuallyExclusive("p12", "key")
	cmd.MarkFlagsRequiredTogether("cert", "key")

	return cmd
}

func (a *app) newUploadCACommand() *cobra.Command {
	var caFile, name string

	cmd := &cobra.Command{
		Use:   "upload-ca",
		Short: "Upload a CA bundle used to verify origin certificates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if caFile == "" || name == "" {
				return fmt.Errorf("%w: --ca-cert and --name", ErrMissingFlag)
			}

			bundle, err := readFile(caFile)
			if err != nil {
				return err
			}

			s, err := a.openCertificateStore()
			if err != nil {
				return err
			}

			rec, err := s.UploadCA(cmd.Context(), name, bundle)
			if err != nil {
				return err
			}

			a.log.Printf("Uploaded CA bundle %q (%s)", rec.Name, rec.Subject)
			fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&caFile, "ca-cert", "", "PEM file with one or more CA certificates")
	cmd.Flags().StringVar(&name, "name", "", "unique name for the bundle")

	return cmd
}

func (a *app) newListCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored certificates",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openCertificateStore()
			if err != nil {
				return err
			}

			certs := s.List()
			out := cmd.OutOrStdout()

			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(certs)
			}

			if len(certs) == 0 {
				fmt.Fprintln(out, "No certificates stored")
				return nil
			}

			rows := make([][]string, 0, len(certs))
			for _, c := range certs {
				kind := "client"
				if c.CA {
					kind = "ca"
				}
				rows = append(rows, []string{
					c.ID,
					c.Name,
					kind,
					c.Subject,
					fmt.Sprintf("%s (%s)", c.ExpiresOn.Format(time.DateOnly), humanize.Time(c.ExpiresOn)),
				})
			}
			fmt.Fprint(out, renderTable([]string{"ID", "Name", "Type", "Subject", "Expires"}, rows))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "print records as JSON")

	return cmd
}

func (a *app) newDeleteCommand() *cobra.Command {
	var id, name string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a stored certificate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id == "" && name == "" {
				return fmt.Errorf("%w: --id or --name", ErrMissingFlag)
			}

			s, err := a.openCertificateStore()
			if err != nil {
				return err
			}

			if id == "" {
				rec, err := s.GetByName(name)
				if err != nil {
					return err
				}
				id = rec.ID
			}

			if err := s.Delete(cmd.Context(), id); err != nil {
				return err
			}

			a.log.Printf("Deleted certificate %s", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "certificate ID")
	cmd.Flags().StringVar(&name, "name", "", "certificate name")
	cmd.MarkFlagsMutuallyExclusive("id", "name")

	return cmd
}

func (a *app) newGenerateCommand() *cobra.Command {
	var (
		commonName, parentCert, parentKey, certOut, keyOut string
		organization, dnsNames, ipAddresses                []string
		isCA, derFormat                                    bool
		days, rsaBits                                      int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Issue a development CA or client certificate",
		Example: "  generate --cn \"Dev CA\" --ca --cert-out ca.pem --key-out ca-key.pem\n" +
			"  generate --cn worker --parent-cert ca.pem --parent-key ca-key.pem --cert-out cert.pem --key-out key.pem",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if commonName == "" || certOut == "" || keyOut == "" {
				return fmt.Errorf("%w: --cn, --cert-out and --key-out", ErrMissingFlag)
			}
			if (parentCert == "") != (parentKey == "") {
				return fmt.Errorf("%w: --parent-cert and --parent-key go together", ErrMissingFlag)
			}
			if days <= 0 {
				return fmt.Errorf("%w: --days must be positive", ErrInvalidFlag)
			}

			opts := x509certs.GenerateOptions{
				CommonName:   commonName,
				Organization: organization,
				DNSNames:     dnsNames,
				IsCA:         isCA,
				Validity:     time.Duration(days) * 24 * time.Hour,
				RSABits:      rsaBits,
			}

			for _, raw := range ipAddresses {
				ip := net.ParseIP(strings.TrimSpace(raw))
				if ip == nil {
					return fmt.Errorf("%w: --ip %q", ErrInvalidFlag, raw)
				}
				opts.IPAddresses = append(opts.IPAddresses, ip)
			}

			if parentCert != "" {
				certPEM, err := readFile(parentCert)
				if err != nil {
					return err
				}
				keyPEM, err := readFile(parentKey)
				if err != nil {
					return err
				}
				if opts.Parent, err = x509certs.LoadKeyPair(certPEM, keyPEM); err != nil {
					return err
				}
			}

			kp, err := x509certs.Generate(opts)
			if err != nil {
				return err
			}

			keyPEM, err := kp.PrivateKeyPEM()
			if err != nil {
				return err
			}
			certData := kp.CertificatePEM()
			if derFormat {
				certData = x509certs.New().EncodeMultipleDER(kp.Chain)
			}
			if err := os.WriteFile(certOut, certData, 0o644); err != nil {
				return err
			}
			if err := os.WriteFile(keyOut, keyPEM, 0o600); err != nil {
				return err
			}

			a.log.Printf("Generated %q (SHA-256 %s) valid until %s",
				kp.Leaf().Subject.CommonName, x509certs.Fingerprint(kp.Leaf()), kp.Leaf().NotAfter.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&commonName, "cn", "", "subject common name")
	cmd.Flags().StringSliceVar(&organization, "org", nil, "subject organization")
	cmd.Flags().StringSliceVar(&dnsNames, "dns", nil, "DNS subject alternative names")
	cmd.Flags().StringSliceVar(&ipAddresses, "ip", nil, "IP subject alternative names")
	cmd.Flags().BoolVar(&isCA, "ca", false, "issue a certificate authority")
	cmd.Flags().StringVar(&parentCert, "parent-cert", "", "PEM certificate of the issuing CA (default: self-signed)")
	cmd.Flags().StringVar(&parentKey, "parent-key", "", "PEM private key of the issuing CA")
	cmd.Flags().StringVar(&certOut, "cert-out", "", "where to write the certificate chain")
	cmd.Flags().BoolVarP(&derFormat, "der", "d", false, "write the certificate chain as DER instead of PEM")
	cmd.Flags().StringVar(&keyOut, "key-out", "", "where to write the PEM private key")
	cmd.Flags().IntVar(&days, "days", int(x509certs.DefaultValidity/(24*time.Hour)), "validity in days")
	cmd.Flags().IntVar(&rsaBits, "rsa", 0, "issue an RSA key of this size instead of ECDSA P-256")

	return cmd
}
