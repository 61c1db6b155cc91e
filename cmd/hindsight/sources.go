package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hindsight-io/hindsight/internal/domain"
)

func sourcesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage data sources",
	}

	addCmd := &cobra.Command{
		Use:   "add <label>",
		Short: "Register a data source, or look it up if the label already exists",
		Args:  cobra.ExactArgs(1),
		RunE:  runSourcesAdd,
	}
	addCmd.Flags().String("kind", "user", "Source kind: user, forecaster, scheduler or decomposer")
	cmd.AddCommand(addCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List data sources",
		RunE:  runSourcesList,
	})

	return cmd
}

func runSourcesAdd(cmd *cobra.Command, args []string) error {
	kind, _ := cmd.Flags().GetString("kind")

	ctx := cmd.Context()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	source, err := e.sources.LookupOrCreate(ctx, args[0], domain.SourceKind(kind))
	if err != nil {
		return err
	}
	fmt.Printf("Source %q (id %d, kind %s)\n", source.Label, source.ID, source.Kind)
	return nil
}

func runSourcesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.close()

	sources, err := e.sources.List(ctx)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Println("No sources registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tKIND")
	for _, s := range sources {
		fmt.Fprintf(w, "%d\t%s\t%s\n", s.ID, s.Label, s.Kind)
	}
	return w.Flush()
}
