package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vividd/internal/ledger"
)

func buildCreditsCmd(flags *rootFlags) *cobra.Command {
	credits := &cobra.Command{
		Use:   "credits",
		Short: "Inspect and adjust user credit accounts",
	}

	openLedger := func() (*ledger.Ledger, error) {
		cfg, err := loadConfig(flags)
		if err != nil {
			return nil, err
		}
		return ledger.Open(cfg.DataDir, ledger.WithLogger(newLogger(flags.logLevel)))
	}

	var initial int64
	var unlimited bool
	create := &cobra.Command{
		Use:   "create <user-id>",
		Short: "Create a credit account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lg, err := openLedger()
			if err != nil {
				return err
			}
			defer lg.Close()
			return lg.CreateAccount(args[0], initial, unlimited)
		},
	}
	create.Flags().Int64Var(&initial, "initial", 0, "starting credit balance")
	create.Flags().BoolVar(&unlimited, "unlimited", false, "exempt the account from deductions")

	balance := &cobra.Command{
		Use:   "balance <user-id>",
		Short: "Show an account's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lg, err := openLedger()
			if err != nil {
				return err
			}
			defer lg.Close()
			bal, unlim, err := lg.Balance(args[0])
			if err != nil {
				return err
			}
			if unlim {
				fmt.Println("unlimited")
				return nil
			}
			fmt.Println(bal)
			return nil
		},
	}

	var reason string
	grant := &cobra.Command{
		Use:   "grant <user-id> <amount>",
		Short: "Add credits to an account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var amount int64
			if _, err := fmt.Sscan(args[1], &amount); err != nil {
				return fmt.Errorf("parse amount: %w", err)
			}
			lg, err := openLedger()
			if err != nil {
				return err
			}
			defer lg.Close()
			return lg.Credit(args[0], amount, reason, "")
		},
	}
	grant.Flags().StringVar(&reason, "reason", "manual_grant", "reason recorded on the transaction")

	history := &cobra.Command{
		Use:   "history <user-id>",
		Short: "Show recent transactions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lg, err := openLedger()
			if err != nil {
				return err
			}
			defer lg.Close()
			txs, err := lg.History(args[0], 20)
			if err != nil {
				return err
			}
			for _, tx := range txs {
				fmt.Printf("%s  %+6d  %-14s %s\n",
					tx.Timestamp.Format("2006-01-02 15:04:05"), tx.Delta, tx.Reason, tx.ReferenceID)
			}
			return nil
		},
	}

	credits.AddCommand(create, balance, grant, history)
	return credits
}
