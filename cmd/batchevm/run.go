package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pilacorp/go-batchevm-sdk/batch"
	"github.com/pilacorp/go-batchevm-sdk/calldata"
	"github.com/pilacorp/go-batchevm-sdk/ledger"
	logging "github.com/pilacorp/go-batchevm-sdk/log"
)

// plan is a YAML list of operations run in order against one address file.
type plan struct {
	Keys  string `yaml:"keys"`
	Steps []step `yaml:"steps"`
}

// step holds exactly one operation.
type step struct {
	Name     string        `yaml:"name"`
	Generate *generateStep `yaml:"generate"`
	Send     *sendStep     `yaml:"send"`
	Deploy   *deployStep   `yaml:"deploy"`
	Call     *callStep     `yaml:"call"`
	Save     *saveStep     `yaml:"save"`
}

type generateStep struct {
	Count int `yaml:"count"`
}

type sendStep struct {
	To       string   `yaml:"to"`
	Amount   string   `yaml:"amount"`
	GasPrice string   `yaml:"gasPrice"`
	GasLimit string   `yaml:"gasLimit"`
	Data     string   `yaml:"data"`
	Select   []string `yaml:"select"`
	Estimate bool     `yaml:"estimate"`
}

type deployStep struct {
	Token     string   `yaml:"token"`
	Select    []string `yaml:"select"`
	FromIndex *int     `yaml:"fromIndex"`
}

type callStep struct {
	Kind     string `yaml:"kind"`
	Contract string `yaml:"contract"`
	// UseDeployed targets the contract deployed by an earlier step.
	UseDeployed bool   `yaml:"useDeployed"`
	Address     string `yaml:"address"`
	Amount      string `yaml:"amount"`
	FromIndex   *int   `yaml:"fromIndex"`
}

type saveStep struct {
	Path    string `yaml:"path"`
	Encrypt bool   `yaml:"encrypt"`
}

func (s step) action() (string, int) {
	name, n := "", 0
	for _, a := range []struct {
		name string
		set  bool
	}{
		{"generate", s.Generate != nil},
		{"send", s.Send != nil},
		{"deploy", s.Deploy != nil},
		{"call", s.Call != nil},
		{"save", s.Save != nil},
	} {
		if a.set {
			name = a.name
			n++
		}
	}
	return name, n
}

func parsePlan(r io.Reader) (*plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("plan is empty")
		}
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if len(p.Steps) == 0 {
		return nil, errors.New("plan has no steps")
	}

	for i, s := range p.Steps {
		action, n := s.action()
		if n != 1 {
			return nil, fmt.Errorf("step %d: expected exactly one action, got %d", i+1, n)
		}
		switch action {
		case "generate":
			if s.Generate.Count <= 0 {
				return nil, fmt.Errorf("step %d: generate count must be positive", i+1)
			}
		case "call":
			if _, err := calldata.ParseFunctionKind(s.Call.Kind); err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			if s.Call.UseDeployed && s.Call.Contract != "" {
				return nil, fmt.Errorf("step %d: contract and useDeployed are exclusive", i+1)
			}
		}
	}
	return &p, nil
}

func indexOr(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

func newRunCmd() *cobra.Command {
	var continueOnError bool

	cmd := &cobra.Command{
		Use:   "run PLAN",
		Short: "Run a YAML plan of operations",
		Long: `Run the steps of a YAML plan in order. Each step has exactly one of
generate, send, deploy, call or save. Example:

  keys: addresses.json
  steps:
    - generate: {count: 20}
    - save: {}
    - name: fund recipient
      send: {to: "0x...", amount: "0.001", estimate: true}
    - deploy: {token: "0x...", fromIndex: 0}
    - call: {kind: receive, useDeployed: true, address: "0x...", amount: "1000", fromIndex: 0}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open plan: %w", err)
			}
			p, err := parsePlan(f)
			_ = f.Close()
			if err != nil {
				return err
			}
			if p.Keys != "" {
				keysFile = p.Keys
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.load(false); err != nil {
				return err
			}

			cmd.SetContext(logging.WithLogger(cmd.Context(), a.logger.Named("plan")))
			r := &planRunner{app: a, cmd: cmd}
			failed := 0
			for i, s := range p.Steps {
				action, _ := s.action()
				label := s.Name
				if label == "" {
					label = action
				}
				dimColor.Printf("[%d/%d] %s\n", i+1, len(p.Steps), label)
				logging.FromContext(cmd.Context()).Info("plan step", zap.Int("step", i+1), zap.String("action", action), zap.String("name", s.Name))

				if err := r.run(s); err != nil {
					failColor.Fprintf(os.Stderr, "✗ step %d (%s): %v\n", i+1, label, err)
					failed++
					if !continueOnError {
						return fmt.Errorf("plan stopped at step %d", i+1)
					}
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d steps failed", failed, len(p.Steps))
			}
			successColor.Printf("✓ Plan finished, %d steps\n", len(p.Steps))
			return nil
		},
	}

	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "run the remaining steps after a failure")
	return cmd
}

type planRunner struct {
	app      *app
	cmd      *cobra.Command
	deployed string
}

func (r *planRunner) run(s step) error {
	ctx := r.cmd.Context()
	logger := logging.FromContext(ctx)
	c := r.app.client

	switch {
	case s.Generate != nil:
		list, err := c.Store().Generate(ctx, s.Generate.Count)
		if err != nil {
			return err
		}
		fmt.Printf("generated %d addresses\n", len(list))
		return nil

	case s.Send != nil:
		selected, err := r.app.selectAccounts(s.Send.Select)
		if err != nil {
			return err
		}
		sc := &batch.BatchSendCommand{
			Selected:         selected,
			To:               s.Send.To,
			AmountPerAddress: s.Send.Amount,
			GasPrice:         s.Send.GasPrice,
			GasLimit:         s.Send.GasLimit,
			Data:             s.Send.Data,
		}
		if s.Send.Estimate {
			sug, err := c.Estimate(ctx, s.Send.To, s.Send.Amount, s.Send.Data)
			if err != nil {
				return err
			}
			sug.ApplyTo(sc)
		}
		res, err := c.Orchestrator().BatchSend(ctx, sc)
		if err != nil {
			return err
		}
		if err := printRecords(os.Stdout, res.Records); err != nil {
			return err
		}
		if res.Failed > 0 {
			return fmt.Errorf("%d of %d transfers failed", res.Failed, len(res.Records))
		}
		return nil

	case s.Deploy != nil:
		if _, err := r.app.selectAccounts(s.Deploy.Select); err != nil {
			return err
		}
		deployer, err := r.app.signerFor(indexOr(s.Deploy.FromIndex))
		if err != nil {
			return err
		}
		res, err := c.Deploy(ctx, deployer, s.Deploy.Token)
		if err != nil {
			return err
		}
		r.deployed = res.ContractAddress
		logger.Info("plan deployed contract", zap.String("contract", res.ContractAddress))
		fmt.Printf("contract deployed at %s\n", res.ContractAddress)
		return printRecords(os.Stdout, []ledger.Transaction{res.Record})

	case s.Call != nil:
		contract := s.Call.Contract
		if s.Call.UseDeployed {
			if r.deployed == "" {
				return errors.New("no contract deployed by an earlier step")
			}
			contract = r.deployed
			logger.Debug("calling contract from earlier step", zap.String("contract", contract))
		}
		kind, err := calldata.ParseFunctionKind(s.Call.Kind)
		if err != nil {
			return err
		}
		caller, err := r.app.signerFor(indexOr(s.Call.FromIndex))
		if err != nil {
			return err
		}
		rec, err := c.Call(ctx, caller, kind, contract, s.Call.Address, s.Call.Amount)
		if err != nil {
			return err
		}
		return printRecords(os.Stdout, []ledger.Transaction{*rec})

	case s.Save != nil:
		path := s.Save.Path
		if path == "" {
			path = keysFile
		}
		return r.app.save(path, s.Save.Encrypt || encrypted)
	}
	return errors.New("empty step")
}
