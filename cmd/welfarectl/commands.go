package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	citizenstore "welfare/internal/citizen/store"
	"welfare/internal/ledger"
	outboxstore "welfare/internal/outbox/store"
	"welfare/internal/platform/postgres"
	schemeservice "welfare/internal/scheme/service"
	"welfare/internal/settlement"
	"welfare/pkg/domain"
	dErrors "welfare/pkg/domain-errors"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "welfarectl",
		Short:         "Manage welfare schemes, applications and payments",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, err.Error())
	})
	root.PersistentFlags().StringVar(&a.operatorPhone, "as", "", "phone number of the acting official")

	root.AddCommand(migrateCmd(a))
	root.AddCommand(seedCmd(a))
	root.AddCommand(schemeCmd(a))
	root.AddCommand(settleCmd(a))
	root.AddCommand(outboxCmd(a))
	return root
}

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := postgres.Migrate(cmd.Context(), a.db, a.log); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "migration failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func seedCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create demo citizens (existing phone numbers are skipped)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw := defaultFixtures
			if file != "" {
				b, err := os.ReadFile(file)
				if err != nil {
					return dErrors.Wrap(err, dErrors.CodeInvalidInput, "cannot read fixtures file")
				}
				raw = b
			}
			fx, err := parseFixtures(raw)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
			}
			n, err := seedCitizens(cmd.Context(), citizenstore.NewPostgres(a.db), fx)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "seeding failed")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d of %d citizens\n", n, len(fx.Citizens))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML fixtures file (defaults to the built-in demo set)")
	return cmd
}

func schemeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheme",
		Short: "Create schemes and inspect their applications",
	}
	cmd.AddCommand(schemeCreateCmd(a))
	cmd.AddCommand(schemeRescanCmd(a))
	cmd.AddCommand(schemeApplicationsCmd(a))
	return cmd
}

func schemeCreateCmd(a *app) *cobra.Command {
	var req schemeservice.CreateRequest
	var criteria string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a scheme and queue the eligibility scan",
		Example: `  welfarectl scheme create --as 9999999999 --title "UP Student Scholarship" \
    --amount 12000 --state "Uttar Pradesh" --criteria '{"incomeLimit": 50000}'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			actor, err := a.operator(cmd.Context())
			if err != nil {
				return err
			}
			req.Criteria = json.RawMessage(criteria)
			sc, err := a.schemes().Create(cmd.Context(), actor, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scheme %s created; eligibility scan queued\n", sc.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "scheme title")
	cmd.Flags().StringVar(&req.Description, "description", "", "scheme description")
	cmd.Flags().StringVar(&req.Category, "category", "", "scheme category")
	cmd.Flags().Int64Var(&req.Amount, "amount", 0, "benefit amount in rupees")
	cmd.Flags().StringVar(&req.State, "state", "", "state, or All")
	cmd.Flags().StringVar(&req.District, "district", "", "district, or All")
	cmd.Flags().StringVar(&criteria, "criteria", "", "rule set as a JSON object")
	return cmd
}

func schemeRescanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rescan <scheme-id>",
		Short: "Queue another eligibility scan for a scheme",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseSchemeID(args[0])
			if err != nil {
				return err
			}
			actor, err := a.operator(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.schemes().Rescan(cmd.Context(), actor, id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "scan queued")
			return nil
		},
	}
}

func schemeApplicationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "applications <scheme-id>",
		Short: "List matched citizens with their payment status",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseSchemeID(args[0])
			if err != nil {
				return err
			}
			actor, err := a.operator(cmd.Context())
			if err != nil {
				return err
			}
			apps, err := a.schemes().Applications(cmd.Context(), actor, id)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "APPLICATION\tNAME\tPHONE\tBANK ACCOUNT\tIFSC\tSTATUS\tTRANSACTION")
			for _, row := range apps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					row.Record.ID, row.CitizenName, row.Phone, row.BankAccount, row.IFSC,
					row.Record.Status, row.Record.TransactionID)
			}
			return w.Flush()
		},
	}
}

func settleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "settle <application-id>",
		Short: "Disburse the payment for one application",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := domain.ParseMatchID(args[0])
			if err != nil {
				return err
			}
			actor, err := a.operator(cmd.Context())
			if err != nil {
				return err
			}
			res, err := a.settlement().Settle(cmd.Context(), actor, id)
			if err != nil {
				return err
			}
			return reportSettlement(cmd.OutOrStdout(), res)
		},
	}
}

// reportSettlement prints the outcome. A failed payment is an error so the
// exit status tells scripts to retry.
func reportSettlement(out io.Writer, res *settlement.Result) error {
	fmt.Fprintf(out, "%s: %s\n", res.Status, res.Message)
	if res.TransactionID != "" {
		fmt.Fprintf(out, "transaction: %s\n", res.TransactionID)
	}
	if res.Status == ledger.StatusPaymentFailed {
		return dErrors.New(dErrors.CodeUnavailable, "payment failed, run settle again to retry")
	}
	return nil
}

func outboxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Maintain the job outbox",
	}
	var olderThan time.Duration
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete published outbox entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return dErrors.New(dErrors.CodeInvalidInput, "--older-than must be positive")
			}
			n, err := outboxstore.NewPostgres(a.db).PurgePublished(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "purge failed")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d entries\n", n)
			return nil
		},
	}
	purge.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "only purge entries published before this age")
	cmd.AddCommand(purge)
	return cmd
}

// exactArgs is cobra.ExactArgs with an error the CLI can show.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, err.Error())
		}
		return nil
	}
}
