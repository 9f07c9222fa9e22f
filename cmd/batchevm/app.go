package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	batchevm "github.com/pilacorp/go-batchevm-sdk"
	"github.com/pilacorp/go-batchevm-sdk/config"
	"github.com/pilacorp/go-batchevm-sdk/keystore"
	logging "github.com/pilacorp/go-batchevm-sdk/log"
	"github.com/pilacorp/go-batchevm-sdk/signer"
)

// passwordEnv supplies the address file password without a prompt.
const passwordEnv = config.EnvPrefix + "_PASSWORD"

// deployerKeyEnv supplies the deployer/caller private key without a prompt.
const deployerKeyEnv = config.EnvPrefix + "_SIGNER_KEY"

// app is the per-invocation state shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	client   *batchevm.Client
	password []byte
	// flush syncs the logger and closes its file.
	flush func()
}

// newApp loads configuration, applies flag overrides and connects.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if rpcURL != "" {
		cfg.RPC = rpcURL
	}
	if chainID != 0 {
		cfg.ChainID = chainID
	}
	if logDev {
		cfg.LogDev = true
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}

	logger, flush, err := logging.DefaultLogger(logging.Options{Dev: cfg.LogDev, FilePath: cfg.LogFile})
	if err != nil {
		return nil, err
	}

	// the client picks the logger up from the context
	client, err := batchevm.NewClient(logging.WithLogger(ctx, logger), batchevm.WithConfig(*cfg))
	if err != nil {
		flush()
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, client: client, flush: flush}, nil
}

func (a *app) close() {
	clear(a.password)
	a.client.Store().Clear()
	a.client.Close()
	a.flush()
}

// load reads the address file into the store. A missing file is only an
// error when required is set.
func (a *app) load(required bool) error {
	data, err := os.ReadFile(keysFile)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read address file: %w", err)
	}
	defer clear(data)

	store := a.client.Store()
	if encrypted {
		pw, err := a.passwordOnce()
		if err != nil {
			return err
		}
		_, err = store.ImportEncrypted(bytes.NewReader(data), pw)
		return err
	}
	_, err = store.ImportJSON(bytes.NewReader(data))
	return err
}

// save writes the store back to path, encrypted when --encrypted is set.
func (a *app) save(path string, encrypt bool) error {
	var buf bytes.Buffer
	defer func() { clear(buf.Bytes()) }()

	store := a.client.Store()
	if encrypt {
		pw, err := a.passwordOnce()
		if err != nil {
			return err
		}
		if err := store.ExportEncrypted(&buf, pw); err != nil {
			return err
		}
	} else if err := store.ExportJSON(&buf); err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write address file: %w", err)
	}
	return nil
}

func (a *app) passwordOnce() ([]byte, error) {
	if a.password != nil {
		return a.password, nil
	}
	if pw := os.Getenv(passwordEnv); pw != "" {
		a.password = []byte(pw)
		return a.password, nil
	}
	pw, err := readSecret("Address file password")
	if err != nil {
		return nil, err
	}
	if len(pw) == 0 {
		return nil, errors.New("password is required")
	}
	a.password = pw
	return pw, nil
}

// selectAccounts selects the given addresses, or every account when none
// are given, and returns the selection.
func (a *app) selectAccounts(list []string) ([]*keystore.Address, error) {
	store := a.client.Store()
	if len(list) == 0 {
		store.SelectAll(true)
	} else if n := store.SelectAddresses(list); n != len(list) {
		return nil, fmt.Errorf("%d of %d selected addresses are not in %s", len(list)-n, len(list), keysFile)
	}
	selected := store.Selected()
	if len(selected) == 0 {
		return nil, fmt.Errorf("no accounts in %s", keysFile)
	}
	return selected, nil
}

// signerFor returns the signer for deploy and call: a stored account when
// index >= 0, otherwise the key from the environment or a prompt.
func (a *app) signerFor(index int) (signer.SignerProvider, error) {
	if index >= 0 {
		list := a.client.Store().List()
		if index >= len(list) {
			return nil, fmt.Errorf("account index %d out of range (%d accounts)", index, len(list))
		}
		return list[index].Key.Signer()
	}

	key := os.Getenv(deployerKeyEnv)
	if key == "" {
		raw, err := readSecret("Signer private key")
		if err != nil {
			return nil, err
		}
		defer clear(raw)
		key = strings.TrimSpace(string(raw))
	}
	secret, err := keystore.ParseSecret(key)
	if err != nil {
		return nil, err
	}
	defer secret.Destroy()
	return secret.Signer()
}

func readSecret(label string) ([]byte, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	//nolint:unconvert // syscall.Stdin is not an int on every platform
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret input: %w", err)
	}
	return b, nil
}
