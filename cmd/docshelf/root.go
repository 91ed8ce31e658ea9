package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rzpsarthak13/docshelf/pkg/docshelf"
)

// app carries the state shared by every subcommand.
type app struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "docshelf",
		Short: "Schema-less documents on a relational table",
		Long: `docshelf stores JSON documents in MySQL, PostgreSQL or SQLite tables.

Flags can also be set through the environment as DOCSHELF_<FLAG>
(e.g. DOCSHELF_TABLE=users). Every configuration key can be overridden
with DOCSHELF_<SECTION>_<KEY> (e.g. DOCSHELF_DATABASE_TYPE=sqlite).`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Path to a YAML or JSON configuration file")
	flags.String("table", "", "Table to operate on")
	flags.String("env-file", ".env", "Environment file loaded before reading DOCSHELF_* variables")

	root.AddCommand(
		a.setCmd(),
		a.getCmd(),
		a.countCmd(),
		a.updateCmd(),
		a.deleteCmd(),
		a.tableCmd("clear", "Delete every document in the table", docshelf.Driver.Clear),
		a.tableCmd("drop", "Drop the table", docshelf.Driver.Drop),
		a.tableCmd("optimize", "Reclaim space in the table", docshelf.Driver.Optimize),
		a.tableCmd("analyze", "Refresh planner statistics for the table", docshelf.Driver.Analyze),
		a.serveCmd(),
	)
	return root
}

func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	a.v.SetEnvPrefix("docshelf")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	return a.v.BindPFlags(cmd.Flags())
}

func (a *app) loadConfig() (*docshelf.Config, error) {
	return docshelf.LoadConfig(a.v.GetString("config"))
}

// withTable opens a client for the configured table, runs fn against it and
// closes everything afterwards.
func (a *app) withTable(ctx context.Context, fn func(docshelf.Driver) error) error {
	name := a.v.GetString("table")
	if name == "" {
		return fmt.Errorf("a table is required (--table or DOCSHELF_TABLE)")
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	client, err := docshelf.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close(ctx)

	driver, err := client.Table(ctx, name)
	if err != nil {
		return err
	}
	return fn(driver)
}

// parseObject decodes a JSON object argument. An empty argument yields an
// empty object.
func parseObject(arg string) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if strings.TrimSpace(arg) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(arg), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON object %q: %w", arg, err)
	}
	return out, nil
}

func optionalQuery(args []string) (docshelf.Query, error) {
	if len(args) == 0 {
		return docshelf.Query{}, nil
	}
	q, err := parseObject(args[0])
	if err != nil {
		return nil, err
	}
	return docshelf.Query(q), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
