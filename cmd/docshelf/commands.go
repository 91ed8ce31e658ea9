package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/docshelf/internal/server"
	"github.com/rzpsarthak13/docshelf/pkg/docshelf"
)

func (a *app) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [document]",
		Short: "Store a new document and print it with its _id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := parseObject(args[0])
			if err != nil {
				return err
			}
			return a.withTable(cmd.Context(), func(d docshelf.Driver) error {
				stored, err := d.Set(cmd.Context(), doc)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stored)
			})
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [query]",
		Short: "Print the documents matching an equality query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := optionalQuery(args)
			if err != nil {
				return err
			}
			return a.withTable(cmd.Context(), func(d docshelf.Driver) error {
				docs, err := d.Get(cmd.Context(), q)
				if err != nil {
					return err
				}
				if docs == nil {
					docs = []docshelf.Document{}
				}
				return printJSON(cmd.OutOrStdout(), docs)
			})
		},
	}
}

func (a *app) countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count [query]",
		Short: "Count the documents matching an equality query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := optionalQuery(args)
			if err != nil {
				return err
			}
			return a.withTable(cmd.Context(), func(d docshelf.Driver) error {
				n, err := d.Count(cmd.Context(), q)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

func (a *app) updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update [query] [patch]",
		Short: "Merge a patch into every matching document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseObject(args[0])
			if err != nil {
				return err
			}
			patch, err := parseObject(args[1])
			if err != nil {
				return err
			}
			return a.withTable(cmd.Context(), func(d docshelf.Driver) error {
				n, err := d.Update(cmd.Context(), docshelf.Query(q), patch)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated %d document(s)\n", n)
				return nil
			})
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [query]",
		Short: "Delete every matching document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseObject(args[0])
			if err != nil {
				return err
			}
			return a.withTable(cmd.Context(), func(d docshelf.Driver) error {
				n, err := d.Delete(cmd.Context(), docshelf.Query(q))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d document(s)\n", n)
				return nil
			})
		},
	}
}

// tableCmd wraps a table-level operation that takes no arguments.
func (a *app) tableCmd(use, short string, op func(docshelf.Driver, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withTable(cmd.Context(), func(d docshelf.Driver) error {
				if err := op(d, cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", use)
				return nil
			})
		},
	}
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the document HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if addr := a.v.GetString("address"); addr != "" {
				cfg.Server.Address = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := docshelf.NewClient(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := client.Close(context.Background()); err != nil {
					log.Printf("[SERVER] Close failed: %v", err)
				}
			}()

			// Tables listed in the configuration are created up front.
			for name := range cfg.Tables {
				if _, err := client.Table(ctx, name); err != nil {
					return err
				}
			}
			if err := client.Start(ctx); err != nil {
				return err
			}
			return server.New(client, cfg.Server).Run(ctx)
		},
	}
	cmd.Flags().String("address", "", "Listen address, overriding server.address")
	return cmd
}
