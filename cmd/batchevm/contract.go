package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pilacorp/go-batchevm-sdk/bytecode"
	"github.com/pilacorp/go-batchevm-sdk/calldata"
	"github.com/pilacorp/go-batchevm-sdk/ledger"
)

func newAssembleCmd() *cobra.Command {
	var (
		token    string
		selected []string
		out      string
	)

	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Build the batch contract bytecode for the selected accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(true); err != nil {
				return err
			}
			list, err := a.selectAccounts(selected)
			if err != nil {
				return err
			}

			code, err := a.client.Assemble(token)
			if err != nil {
				return err
			}
			if out != "" {
				if err := os.WriteFile(out, []byte(code+"\n"), 0o644); err != nil {
					return fmt.Errorf("failed to write bytecode: %w", err)
				}
			} else {
				fmt.Println(code)
			}
			dimColor.Fprintf(os.Stderr, "%d addresses, %d bytes\n", len(list), bytecode.Size(code))
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "ERC-20 token address (default from BATCHEVM_TOKEN_ADDRESS)")
	cmd.Flags().StringSliceVar(&selected, "select", nil, "accounts to embed (default: all)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the bytecode to a file")
	return cmd
}

func newDeployCmd() *cobra.Command {
	var (
		token     string
		selected  []string
		fromIndex int
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the batch contract for the selected accounts",
		Long: `Assemble and deploy the batch contract. The deployer becomes the contract
owner; it is the stored account at --from-index, or the key in
BATCHEVM_SIGNER_KEY, or a key typed at the prompt.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(true); err != nil {
				return err
			}
			_, err = a.selectAccounts(selected)
			if err != nil {
				return err
			}
			deployer, err := a.signerFor(fromIndex)
			if err != nil {
				return err
			}

			res, err := a.client.Deploy(cmd.Context(), deployer, token)
			if err != nil {
				printLastRecord(a.client.Ledger())
				return err
			}
			if err := printRecords(os.Stdout, []ledger.Transaction{res.Record}); err != nil {
				return err
			}
			successColor.Printf("✓ Contract deployed at %s\n", res.ContractAddress)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "ERC-20 token address (default from BATCHEVM_TOKEN_ADDRESS)")
	cmd.Flags().StringSliceVar(&selected, "select", nil, "accounts to embed (default: all)")
	cmd.Flags().IntVar(&fromIndex, "from-index", -1, "stored account that deploys (default: external key)")
	return cmd
}

func newCallCmd() *cobra.Command {
	var (
		kind      string
		contract  string
		address   string
		amount    string
		fromIndex int
	)

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Call the transfer or receive entry point of a batch contract",
		Long: `Send one transaction to the batch contract. "transfer" pulls --amount tokens
from --address into every embedded account; "receive" pushes --amount tokens
from every embedded account to --address. The amount is in token base units.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := calldata.ParseFunctionKind(kind)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if fromIndex >= 0 {
				if err := a.load(true); err != nil {
					return err
				}
			}
			caller, err := a.signerFor(fromIndex)
			if err != nil {
				return err
			}

			rec, err := a.client.Call(cmd.Context(), caller, k, contract, address, amount)
			if err != nil {
				printLastRecord(a.client.Ledger())
				return err
			}
			return printRecords(os.Stdout, []ledger.Transaction{*rec})
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "transfer", `entry point: "transfer" or "receive"`)
	cmd.Flags().StringVar(&contract, "contract", "", "batch contract address")
	cmd.Flags().StringVar(&address, "address", "", "from address (transfer) or to address (receive)")
	cmd.Flags().StringVar(&amount, "amount", "0", "token amount in base units")
	cmd.Flags().IntVar(&fromIndex, "from-index", -1, "stored account that calls (default: external key)")
	return cmd
}

// printLastRecord shows the record a failed operation left behind, if any.
func printLastRecord(l *ledger.Ledger) {
	if rec, ok := l.Last(); ok {
		_ = printRecords(os.Stderr, []ledger.Transaction{rec})
	}
}
