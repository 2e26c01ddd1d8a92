package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// storageCmd groups blob store maintenance commands.
var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect and clean the pCloud audio folders",
}

var storageLsCmd = &cobra.Command{
	Use:   "ls <folder>",
	Short: "List audio objects in a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		objs, err := newCloud(GetConfig()).ListObjects(ctx, args[0])
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSIZE\tPATH")
		for _, o := range objs {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", o.Name, o.Size, o.Path)
		}
		return tw.Flush()
	},
}

var storagePurgeCmd = &cobra.Command{
	Use:   "purge <folder>",
	Short: "Revoke public links and delete every object in a folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()
		n, err := newCloud(GetConfig()).DeleteAll(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d objects from %s\n", n, args[0])
		return nil
	},
}

func init() {
	storageCmd.AddCommand(storageLsCmd, storagePurgeCmd)
	rootCmd.AddCommand(storageCmd)
}
