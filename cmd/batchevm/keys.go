package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pilacorp/go-batchevm-sdk/keystore"
)

func newGenerateCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate new accounts",
		Long:  "Generate random accounts and append them to the address file, creating it if needed.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(false); err != nil {
				return err
			}
			list, err := a.client.Store().Generate(cmd.Context(), count)
			if err != nil {
				return err
			}
			if err := a.save(keysFile, encrypted); err != nil {
				return err
			}

			color.New(color.FgGreen).Printf("✓ Generated %d addresses", len(list))
			fmt.Printf(" (%d total in %s)\n", a.client.Store().Len(), keysFile)
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of accounts to generate")
	return cmd
}

func newImportCmd() *cobra.Command {
	var (
		keysText string
		jsonFile string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import accounts from private keys or an export file",
		Long: `Import accounts into the address file.

--private-keys reads a text file with one hex private key per line; invalid
lines are skipped. --from reads an export file; entries whose private key does
not derive the listed address are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (keysText == "") == (jsonFile == "") {
				return fmt.Errorf("exactly one of --private-keys or --from is required")
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(false); err != nil {
				return err
			}

			var n int
			if keysText != "" {
				data, err := os.ReadFile(keysText)
				if err != nil {
					return fmt.Errorf("failed to read keys: %w", err)
				}
				n = a.client.Store().ImportPrivateKeys(string(data))
				clear(data)
				if n == 0 {
					return fmt.Errorf("no valid private key found in %s", keysText)
				}
			} else {
				f, err := os.Open(jsonFile)
				if err != nil {
					return fmt.Errorf("failed to open import file: %w", err)
				}
				n, err = a.client.Store().ImportJSON(f)
				_ = f.Close()
				if err != nil {
					return err
				}
			}

			if err := a.save(keysFile, encrypted); err != nil {
				return err
			}
			color.New(color.FgGreen).Printf("✓ Imported %d addresses\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&keysText, "private-keys", "", "text file with one private key per line")
	cmd.Flags().StringVar(&jsonFile, "from", "", "export file to import")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		out     string
		encrypt bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the address file, private keys included",
		Long: `Write every account, private keys included, to a new file. Without --out
the file is named evm-addresses-<date>-<timestamp>.json.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(true); err != nil {
				return err
			}
			if out == "" {
				out = keystore.ExportFileName(time.Now())
			}
			if err := a.save(out, encrypt); err != nil {
				return err
			}

			color.New(color.FgYellow).Fprintln(os.Stderr, "! The export contains private keys. Keep it safe.")
			color.New(color.FgGreen).Printf("✓ Exported %d addresses to %s\n", a.client.Store().Len(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file")
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "password protect the export")
	return cmd
}

func newListCmd() *cobra.Command {
	var balances bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(true); err != nil {
				return err
			}
			store := a.client.Store()
			if balances {
				a.client.RefreshBalances(cmd.Context())
			}

			list := store.List()
			if jsonMode {
				type row struct {
					Address string `json:"address"`
					Balance string `json:"balance,omitempty"`
				}
				rows := make([]row, len(list))
				for i, acc := range list {
					rows[i] = row{Address: acc.Address, Balance: acc.Balance}
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tADDRESS\tBALANCE (ETH)")
			for i, acc := range list {
				balance := acc.Balance
				if balance == "" {
					balance = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", i, acc.Address, balance)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			dimColor.Printf("%d addresses\n", len(list))
			return nil
		},
	}

	cmd.Flags().BoolVar(&balances, "balances", false, "fetch balances from the node")
	return cmd
}
