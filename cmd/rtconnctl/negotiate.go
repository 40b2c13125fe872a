package main

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/rtconn-go/pkg/endpoint"
	rterrors "github.com/ajitpratap0/rtconn-go/pkg/errors"
	"github.com/ajitpratap0/rtconn-go/pkg/httpclient"
	"github.com/ajitpratap0/rtconn-go/pkg/negotiate"
	"github.com/ajitpratap0/rtconn-go/pkg/protocol"
)

// negotiateResult is what the negotiate command prints.
type negotiateResult struct {
	URL       string                      `json:"url"`
	Redirects int                         `json:"redirects"`
	Response  *protocol.NegotiateResponse `json:"response"`
}

func newNegotiateCmd(a *app) *cobra.Command {
	var noFollow bool

	cmd := &cobra.Command{
		Use:   "negotiate",
		Short: "Print the server's negotiation result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireURL(); err != nil {
				return err
			}
			current, err := endpoint.Resolve(a.cfg.URL, nil)
			if err != nil {
				return err
			}

			hc := httpclient.New(httpclient.WithLogger(a.logger), httpclient.WithHeaders(a.cfg.Headers))
			client := negotiate.New(hc, negotiate.WithLogger(a.logger))
			token := negotiate.StaticToken(a.cfg.AccessToken)

			result := negotiateResult{URL: current}
			for {
				resp, err := client.Negotiate(cmd.Context(), current, token)
				if err != nil {
					return err
				}
				result.Response = resp
				if noFollow || !resp.IsRedirect() || resp.Error != "" {
					break
				}
				if result.Redirects >= rterrors.MaxRedirects {
					return rterrors.RedirectLimitExceeded(current)
				}
				if resp.AccessToken != "" {
					token = negotiate.StaticToken(resp.AccessToken)
				}
				base, _ := url.Parse(current)
				if current, err = endpoint.Resolve(resp.URL, base); err != nil {
					return err
				}
				result.Redirects++
				result.URL = current
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("encode result: %w", err)
			}

			switch {
			case result.Response.Error != "":
				return rterrors.ServerReported(result.Response.Error)
			case result.Response.IsLegacy():
				return rterrors.LegacyServer()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noFollow, "no-follow", false, "print the first response without following redirects")
	return cmd
}
