package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	domidx "github.com/kailas-cloud/mongomap/internal/index"
)

// withApp opens the shared connections for one admin command and closes them afterwards.
func withApp(flags *globalFlags, fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, flags)
		if err != nil {
			return err
		}
		defer a.Close(context.Background())
		return fn(ctx, a, cmd, args)
	}
}

func newCollectionsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List and drop collections",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List collections of the configured database",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			names, err := a.collections.List(ctx)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "drop <collection>",
		Short: "Drop a collection with its documents and indexes",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.collections.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", args[0])
			return nil
		}),
	})
	return cmd
}

func newIndexesCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indexes",
		Short: "Inspect and manage the indexes of a collection",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list <collection>",
		Short: "List indexes with their keys and options",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			infos, err := a.indexes.List(ctx, args[0])
			if err != nil {
				return err
			}
			return printIndexes(cmd.OutOrStdout(), infos)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "drop <collection> <index>",
		Short: "Drop an index by name",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(flags, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.indexes.Drop(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %s.%s\n", args[0], args[1])
			return nil
		}),
	})
	for _, hidden := range []bool{true, false} {
		use, verb := "hide", "Hide"
		if !hidden {
			use, verb = "unhide", "Unhide"
		}
		cmd.AddCommand(&cobra.Command{
			Use:   use + " <collection> <index>",
			Short: verb + " an index from the query planner",
			Args:  cobra.ExactArgs(2),
			RunE: withApp(flags, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
				if err := a.indexes.SetHidden(ctx, args[0], args[1], hidden); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s.%s\n", use, args[0], args[1])
				return nil
			}),
		})
	}
	return cmd
}

func newSearchIndexesCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search-indexes",
		Short: "Inspect and drop Atlas search and vector search indexes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list <collection>",
		Short: "List search indexes with their status",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			infos, err := a.indexes.ListSearch(ctx, args[0])
			if err != nil {
				return err
			}
			return printSearchIndexes(cmd.OutOrStdout(), infos)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "drop <collection> <index>",
		Short: "Drop a search index",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(flags, func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if err := a.indexes.DropSearch(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "drop requested for %s.%s\n", args[0], args[1])
			return nil
		}),
	})
	return cmd
}

func printIndexes(out io.Writer, infos []domidx.Info) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKEYS\tOPTIONS")
	for i := range infos {
		info := &infos[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, indexKeys(info), indexOptions(info))
	}
	return tw.Flush()
}

func indexKeys(info *domidx.Info) string {
	keys := make([]string, len(info.Fields))
	for i, f := range info.Fields {
		switch f.Type {
		case domidx.FieldGeo:
			keys[i] = fmt.Sprintf("%s:%s", f.Key, f.GeoType)
		case domidx.FieldText:
			keys[i] = fmt.Sprintf("%s:text(%g)", f.Key, f.Weight)
		case domidx.FieldHashed:
			keys[i] = f.Key + ":hashed"
		default:
			keys[i] = fmt.Sprintf("%s:%d", f.Key, f.Direction)
		}
	}
	return strings.Join(keys, ",")
}

func indexOptions(info *domidx.Info) string {
	var opts []string
	if info.Unique {
		opts = append(opts, "unique")
	}
	if info.Sparse {
		opts = append(opts, "sparse")
	}
	if info.Hidden {
		opts = append(opts, "hidden")
	}
	if info.ExpireAfter != nil {
		opts = append(opts, "ttl="+info.ExpireAfter.String())
	}
	if len(info.PartialFilterExpression) > 0 {
		opts = append(opts, "partial")
	}
	if info.Collation != nil {
		opts = append(opts, "collation="+info.Collation.Locale)
	}
	if len(opts) == 0 {
		return "-"
	}
	return strings.Join(opts, ",")
}

func printSearchIndexes(out io.Writer, infos []domidx.SearchIndexInfo) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tSTATUS\tQUERYABLE")
	for i := range infos {
		info := &infos[i]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", info.Name, info.Type, info.Status, info.Queryable)
	}
	return tw.Flush()
}
