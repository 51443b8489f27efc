package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var secretsJSON bool

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "List loaded secret names and where they came from",
	Long: `List every loaded secret with its active source and the full list of
sources that defined it. Values are never printed.`,
	Args: cobra.NoArgs,
	RunE: listSecrets,
}

func init() {
	secretsCmd.Flags().BoolVar(&secretsJSON, "json", false, "output JSON")
}

func listSecrets(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	md := a.service.Secrets()
	out := cmd.OutOrStdout()

	if secretsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(md)
	}

	if len(md) == 0 {
		fmt.Fprintln(out, "No secrets loaded.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tACTIVE SOURCE\tSOURCES")
	for _, m := range md {
		fmt.Fprintf(w, "%s\t%s\t%s\n", m.Name, m.ActiveSource, strings.Join(m.Sources, ", "))
	}
	return w.Flush()
}
