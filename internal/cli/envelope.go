package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hearthkeep/hearth/internal/daemon"
	"github.com/hearthkeep/hearth/internal/domain"
	"github.com/hearthkeep/hearth/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(envelopeCmd)
	envelopeCmd.AddCommand(envelopeListCmd)
	envelopeListCmd.Flags().String("person", "", "Person ID to list envelopes for")
}

var envelopeCmd = &cobra.Command{
	Use:   "envelope",
	Short: "Inspect savings envelopes",
}

var envelopeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List envelopes and balances",
	RunE:  runEnvelopeList,
}

func runEnvelopeList(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig(configPath)
	if err != nil {
		return err
	}
	db, err := sqlite.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var people []domain.Person
	if personID, _ := cmd.Flags().GetString("person"); personID != "" {
		p, err := db.GetPerson(domain.PersonID(personID))
		if err != nil {
			return err
		}
		people = []domain.Person{p}
	} else {
		people, err = db.ListPeople()
		if err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PERSON\tENVELOPE\tDEFAULT\tBALANCES")
	for _, p := range people {
		envs, err := db.EnvelopesFor(p.ID)
		if err != nil {
			return err
		}
		for _, env := range envs {
			def := ""
			if env.IsDefault {
				def = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, env.Name, def, formatBalances(env.Balances))
		}
	}
	return w.Flush()
}

func formatBalances(b domain.Balances) string {
	if len(b) == 0 {
		return "(empty)"
	}
	out := ""
	for cur, amt := range b {
		if out != "" {
			out += ", "
		}
		out += amt.String() + " " + cur
	}
	return out
}
