package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/entrhq/soulcore/pkg/api"
	"github.com/entrhq/soulcore/pkg/embedding"
	"github.com/entrhq/soulcore/pkg/logging"
	"github.com/entrhq/soulcore/pkg/router"
	"github.com/entrhq/soulcore/pkg/verify"
)

func newEmbedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "embed <text>...",
		Short: "Print the embedding of each argument as a JSON line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeFn, err := a.provider(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			enc := json.NewEncoder(cmd.OutOrStdout())
			for i, vec := range p.EmbedBatch(cmd.Context(), args) {
				if err := enc.Encode(map[string]any{
					"text":       args[i],
					"provider":   p.Name(),
					"dimensions": p.Dimensions(),
					"vector":     vec,
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newSimilarityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "similarity <a> <b>",
		Short: "Print the cosine similarity of two texts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeFn, err := a.provider(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			vecs := p.EmbedBatch(cmd.Context(), args)
			score := embedding.CosineSimilarity(vecs[0], vecs[1])
			fmt.Fprintf(cmd.OutOrStdout(), "%.4f %s\n", score, mutedStyle.Render("("+p.Name()+")"))
			return nil
		},
	}
}

// provider builds an embedding provider from the configuration. A soul
// directory is optional here.
func (a *app) provider(cmd *cobra.Command) (*embedding.Provider, func(), error) {
	cfg, err := a.loadConfig(true)
	if err != nil {
		return nil, nil, err
	}
	l := a.logger("embedding")
	p := embedding.NewProvider(cmd.Context(), cfg.EmbeddingSettings(), embedding.WithLogger(l))
	return p, func() { _ = l.Close() }, nil
}

func newVerifyCmd(a *app) *cobra.Command {
	var (
		query  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "verify <reply>",
		Short: "Check the memory claims in a generated reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			res := c.Verify(cmd.Context(), args[0], query)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printVerification(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "user message the reply answers")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func printVerification(w io.Writer, res verify.Result) {
	if len(res.Claims) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("no memory claims found"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d claims", len(res.Claims))))
	for _, cv := range res.Claims {
		fmt.Fprintf(w, "  %s %s %q\n",
			statusStyle(cv.Status).Render(fmt.Sprintf("%-12s", cv.Status)),
			mutedStyle.Render(string(cv.Type)),
			cv.Text)
		if cv.Evidence != "" {
			fmt.Fprintf(w, "    %s %s\n", mutedStyle.Render("evidence:"), cv.Evidence)
		}
	}
	if res.Modified {
		fmt.Fprintln(w, warnStyle.Render("reply was amended:"))
		fmt.Fprintln(w, replyStyle.Render(res.Text))
	}
}

func newRouteCmd(a *app) *cobra.Command {
	var (
		interests []string
		text      string
		subject   string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "route",
		Short: "File learned interests and personal facts into the soul",
		Example: `  soulcore route --interest synthwave --interest jazz
  soulcore route --text "My sister Lena lives in Hamburg" --subject "Anna Schmidt"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(interests) == 0 && strings.TrimSpace(text) == "" {
				return fmt.Errorf("nothing to route: pass --interest or --text")
			}
			c, err := a.openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			rep := c.Route(cmd.Context(), router.Learned{Interests: interests}, text, subject)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			printEntries(cmd.OutOrStdout(), rep.Interests)
			printEntries(cmd.OutOrStdout(), rep.Personal)
			if len(rep.Interests)+len(rep.Personal) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("nothing routed"))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&interests, "interest", "i", nil, "interest keyword (repeatable)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "raw user message to mine for personal facts")
	cmd.Flags().StringVar(&subject, "subject", "", "person the message is about")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printEntries(w io.Writer, entries []router.RouteLogEntry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%s %s %s %s\n",
			mutedStyle.Render(fmt.Sprintf("%-9s", e.Route)),
			actionStyle(e.Action).Render(fmt.Sprintf("%-14s", e.Action)),
			e.Target,
			mutedStyle.Render(fmt.Sprintf("%q", e.Trigger)))
	}
}

func newRememberCmd(a *app) *cobra.Command {
	var tags []string
	cmd := &cobra.Command{
		Use:   "remember <content>",
		Short: "Store a memory in the soul's memory store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			m, err := c.Remember(cmd.Context(), args[0], tags)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("stored"), m.ID)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "memory tag (repeatable)")
	return cmd
}

func newClustersCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "clusters",
		Short: "List the interest clusters keywords are filed under",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			clusters := c.Router.Clusters().Clusters()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), clusters)
			}
			for _, cl := range clusters {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
					headerStyle.Render(fmt.Sprintf("%-14s", cl.Name)),
					strings.Join(cl.Keywords, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the clusters as JSON")
	return cmd
}

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve embed, verify and route over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCore(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()

			srvCfg := c.Config.Server
			if addr != "" {
				srvCfg.Addr = addr
			}
			l := a.logger("api")
			defer l.Close()
			srv := api.NewServer(srvCfg, api.Services{
				Embedder: c.Embedder,
				Verifier: c.Verifier,
				Router:   c.Router,
			}, l)
			fmt.Fprintf(cmd.ErrOrStderr(), "%s http://%s\n", headerStyle.Render("soulcore listening on"), srv.Addr())
			if dir, err := logging.GetLogDirectory(); err == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", mutedStyle.Render("logs in"), dir)
			}
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
