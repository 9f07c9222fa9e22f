package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pilacorp/go-batchevm-sdk/batch"
	"github.com/pilacorp/go-batchevm-sdk/units"
)

type sendFlags struct {
	to       string
	amount   string
	gasPrice string
	gasLimit string
	data     string
	selected []string
}

func (f *sendFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.to, "to", "", "recipient address (empty creates a contract from --data)")
	cmd.Flags().StringVar(&f.amount, "amount", "", "ether sent by each account")
	cmd.Flags().StringVar(&f.data, "data", "", "hex call data")
	cmd.Flags().StringSliceVar(&f.selected, "select", nil, "accounts to use (default: all)")
}

func newEstimateCmd() *cobra.Command {
	var f sendFlags

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Suggest gas price and limit for a batch send",
		Long:  "Estimate gas for the transfer as the first selected account would send it. Nothing is submitted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(true); err != nil {
				return err
			}
			if _, err := a.selectAccounts(f.selected); err != nil {
				return err
			}

			s, err := a.client.Estimate(cmd.Context(), f.to, f.amount, f.data)
			if err != nil {
				return err
			}
			fmt.Printf("Gas price: %s gwei\n", s.GasPriceGwei)
			fmt.Printf("Gas limit: %d\n", s.GasLimit)
			return nil
		},
	}

	f.register(cmd)
	return cmd
}

func newSendCmd() *cobra.Command {
	var (
		f        sendFlags
		estimate bool
		yes      bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send the same amount from every selected account",
		Long: `Send --amount ether from every selected account to --to, one account at a
time. A failure on one account is recorded and the batch continues.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(true); err != nil {
				return err
			}
			selected, err := a.selectAccounts(f.selected)
			if err != nil {
				return err
			}

			sc := &batch.BatchSendCommand{
				Selected:         selected,
				To:               f.to,
				AmountPerAddress: f.amount,
				GasPrice:         f.gasPrice,
				GasLimit:         f.gasLimit,
				Data:             f.data,
			}
			if estimate {
				s, err := a.client.Estimate(cmd.Context(), f.to, f.amount, f.data)
				if err != nil {
					return err
				}
				s.ApplyTo(sc)
				dimColor.Printf("Using estimate: %s gwei, limit %d\n", s.GasPriceGwei, s.GasLimit)
			}

			if !yes {
				total, err := units.MulString(f.amount, len(selected))
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "Accounts:           %d\n", len(selected))
				fmt.Fprintf(os.Stderr, "Amount per account: %s ETH\n", f.amount)
				fmt.Fprintf(os.Stderr, "Total:              %s ETH\n", total)
				ok, err := confirm("Execute batch send")
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("cancelled")
				}
			}

			res, err := a.client.Orchestrator().BatchSend(cmd.Context(), sc)
			if err != nil {
				return err
			}
			if err := printRecords(os.Stdout, res.Records); err != nil {
				return err
			}
			if !jsonMode {
				fmt.Printf("Batch %s: %d succeeded, %d failed\n", res.ID, res.Succeeded, res.Failed)
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d of %d transfers failed", res.Failed, len(res.Records))
			}
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&f.gasPrice, "gas-price", "20", "gas price in gwei")
	cmd.Flags().StringVar(&f.gasLimit, "gas-limit", "21000", "gas limit per transaction")
	cmd.Flags().BoolVar(&estimate, "estimate", false, "ask the node for gas price and limit first")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
