package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge bases and their knowledge interactions",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().String("kb", "", "only show this knowledge base")
	listCmd.Flags().Bool("interactions", false, "also list knowledge interactions")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	client, err := newClient(cfg, cfg.Connector.Endpoint, log, nil)
	if err != nil {
		return err
	}

	id, _ := cmd.Flags().GetString("kb")
	withInteractions, _ := cmd.Flags().GetBool("interactions")

	ctx := cmd.Context()

	kbs, err := client.KnowledgeBases(ctx, id)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tNAME\tLEASE\tDESCRIPTION")
	for _, sc := range kbs {
		lease := "-"
		if sc.LeaseRenewalTime > 0 {
			lease = fmt.Sprintf("%ds", sc.LeaseRenewalTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", sc.KnowledgeBaseID, sc.KnowledgeBaseName, lease, sc.KnowledgeBaseDescription)

		if !withInteractions {
			continue
		}
		kis, err := client.KnowledgeBaseHandle(sc.KnowledgeBaseID).KnowledgeInteractions(ctx)
		if err != nil {
			return err
		}
		for _, ki := range kis {
			pattern := ki.GraphPattern
			if pattern == "" {
				pattern = ki.ArgumentGraphPattern
				if ki.ResultGraphPattern != "" {
					pattern += " -> " + ki.ResultGraphPattern
				}
			}
			fmt.Fprintf(w, "  %s\t%s\t\t%s\n", ki.ID, ki.Kind, pattern)
		}
	}
	return nil
}
