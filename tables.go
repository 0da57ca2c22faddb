package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/zumo-go/pkg/zumo"
)

// deleteConcurrency caps in-flight requests for `table delete`.
const deleteConcurrency = 4

// Query flags for `table get`, bound in newTableGetCmd().
var (
	flagTop     int
	flagSkip    int
	flagFilter  string
	flagSelect  string
	flagOrderBy string
)

func newTableCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Read and write rows of a table",
	}

	cmd.AddCommand(newTableGetCmd())
	cmd.AddCommand(newTableInsertCmd())
	cmd.AddCommand(newTableUpdateCmd())
	cmd.AddCommand(newTableDeleteCmd())
	cmd.AddCommand(newTableTailCmd())

	return cmd
}

func newTableGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <table>",
		Short: "List rows, optionally filtered",
		Example: `  zumo-go table get todoitem --filter "complete eq false" --orderby "text desc" --top 10`,
		Args: cobra.ExactArgs(1),
		RunE: runTableGet,
	}

	cmd.Flags().IntVar(&flagTop, "top", 0, "return at most this many rows")
	cmd.Flags().IntVar(&flagSkip, "skip", 0, "skip this many rows")
	cmd.Flags().StringVar(&flagFilter, "filter", "", "OData filter expression")
	cmd.Flags().StringVar(&flagSelect, "select", "", "comma-separated columns to return")
	cmd.Flags().StringVar(&flagOrderBy, "orderby", "", "sort clause, e.g. \"text desc\"")

	return cmd
}

func newTableInsertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insert <table> <json|@file|->",
		Short: "Insert a row",
		Long:  "Insert a row. The row is a JSON object given inline, read from @file, or read from stdin with -.",
		Args:  cobra.ExactArgs(2),
		RunE:  runTableInsert,
	}
}

func newTableUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <table> <json|@file|->",
		Short: "Update a row by its id field",
		Long:  "Update a row. The JSON object must carry the row's \"id\"; its other fields are written.",
		Args:  cobra.ExactArgs(2),
		RunE:  runTableUpdate,
	}
}

func newTableDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <id>...",
		Short: "Delete rows by id",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runTableDelete,
	}
}

// queryFromFlags builds the query for `table get` from the flags the user set.
func queryFromFlags(cmd *cobra.Command) zumo.Query {
	q := zumo.NewQuery()
	flags := cmd.Flags()

	if flags.Changed("top") {
		q = q.Top(flagTop)
	}

	if flags.Changed("skip") {
		q = q.Skip(flagSkip)
	}

	if flagFilter != "" {
		q = q.Filter(flagFilter)
	}

	if flagSelect != "" {
		q = q.Select(flagSelect)
	}

	if flagOrderBy != "" {
		q = q.OrderBy(flagOrderBy)
	}

	return q
}

func runTableGet(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	sess, err := NewCLISession(resolvedCfg, nil, logger)
	if err != nil {
		return err
	}

	q := queryFromFlags(cmd)
	logger.Debug("reading table", slog.String("table", args[0]), slog.String("query", q.String()))

	rows, err := sess.Client.Table(args[0]).Get(cmd.Context(), q)
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), rows)
	}

	return printItems(cmd.OutOrStdout(), rows)
}

func runTableInsert(cmd *cobra.Command, args []string) error {
	item, err := readItem(args[1], cmd.InOrStdin())
	if err != nil {
		return err
	}

	sess, err := NewCLISession(resolvedCfg, nil, buildLogger())
	if err != nil {
		return err
	}

	row, err := sess.Client.Table(args[0]).Insert(cmd.Context(), item)
	if err != nil {
		return fmt.Errorf("inserting into %s: %w", args[0], err)
	}

	statusf("Inserted into %s.\n", args[0])

	return printRow(cmd, row)
}

func runTableUpdate(cmd *cobra.Command, args []string) error {
	item, err := readItem(args[1], cmd.InOrStdin())
	if err != nil {
		return err
	}

	sess, err := NewCLISession(resolvedCfg, nil, buildLogger())
	if err != nil {
		return err
	}

	row, err := sess.Client.Table(args[0]).Update(cmd.Context(), item)
	if err != nil {
		return fmt.Errorf("updating %s: %w", args[0], err)
	}

	statusf("Updated %s.\n", args[0])

	return printRow(cmd, row)
}

// runTableDelete deletes every id concurrently. The first failure cancels
// the deletes that have not started yet.
func runTableDelete(cmd *cobra.Command, args []string) error {
	logger := buildLogger()

	sess, err := NewCLISession(resolvedCfg, nil, logger)
	if err != nil {
		return err
	}

	table := sess.Client.Table(args[0])
	ids := args[1:]

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(deleteConcurrency)

	for _, id := range ids {
		g.Go(func() error {
			if err := table.Delete(ctx, id); err != nil {
				return fmt.Errorf("deleting %s/%s: %w", args[0], id, err)
			}

			logger.Debug("row deleted", slog.String("table", args[0]), slog.String("id", id))
			statusf("Deleted %s/%s\n", args[0], id)

			return nil
		})
	}

	return g.Wait()
}

// printRow writes a single row returned by insert or update. Services that
// answer with an empty body produce no output.
func printRow(cmd *cobra.Command, row zumo.Item) error {
	if row == nil {
		return nil
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), row)
	}

	return printItems(cmd.OutOrStdout(), []zumo.Item{row})
}

// readItem parses a row argument: inline JSON, @path for a file, or - for
// stdin. Numbers are kept exact so large ids survive the round trip.
func readItem(arg string, stdin io.Reader) (zumo.Item, error) {
	var (
		data []byte
		err  error
	)

	switch {
	case arg == "-":
		data, err = io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading row from stdin: %w", err)
		}
	case strings.HasPrefix(arg, "@"):
		data, err = os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
	default:
		data = []byte(arg)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var item zumo.Item
	if err := dec.Decode(&item); err != nil {
		return nil, fmt.Errorf("row must be a JSON object: %w", err)
	}

	if item == nil {
		return nil, errors.New("row must be a JSON object, got null")
	}

	if dec.More() {
		return nil, errors.New("row must be a single JSON object")
	}

	return item, nil
}
