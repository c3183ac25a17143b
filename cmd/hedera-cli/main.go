package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	hedera "github.com/smartcontractkit/chainlink-hedera"
	"github.com/smartcontractkit/chainlink-hedera/config"
	"github.com/smartcontractkit/chainlink-hedera/entity"
	"github.com/smartcontractkit/chainlink-hedera/keystore"
	"github.com/smartcontractkit/chainlink-hedera/operations"
	"github.com/smartcontractkit/chainlink-hedera/txm"
)

const usage = `usage: hedera-cli [-config file] [-network name] [-env file] <command> [flags]

commands:
  balance        [-account id]           print the hbar balance, of the operator by default
  transfer       -to id -amount tinybars transfer hbar from the operator and wait for the receipt
  receipt        -tx transaction-id      print the receipt of a transaction
  file-contents  -file id [-max-payment] print the contents of a file
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("hedera-cli", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage) }
	configFile := fs.String("config", "", "path to a TOML configuration file")
	networkName := fs.String("network", "testnet", "preset network when no configuration file is given")
	envFile := fs.String("env", ".env", "dotenv file with HEDERA_OPERATOR_ID and HEDERA_OPERATOR_KEY")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", *envFile, err)
	}

	lggr, err := logger.New()
	if err != nil {
		return err
	}

	var cfg *config.TOMLConfig
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
		if err != nil {
			return err
		}
	} else {
		cfg = config.NewDefault(*networkName)
	}

	client, err := hedera.NewClient(cfg, lggr)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(); cerr != nil && !errors.Is(cerr, context.Canceled) {
			lggr.Warnw("failed to close client", "err", cerr)
		}
	}()
	if err := setOperator(client, cfg); err != nil {
		return err
	}
	if err := client.Start(context.Background()); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "balance":
		return balance(ctx, client, cmdArgs)
	case "transfer":
		return transfer(ctx, client, cmdArgs)
	case "receipt":
		return receipt(ctx, client, cmdArgs)
	case "file-contents":
		return fileContents(ctx, client, cmdArgs)
	}
	fs.Usage()
	return fmt.Errorf("unknown command %q", cmd)
}

// setOperator reads the operator from the environment, falling back to the
// configured account id. Without a key the client stays read only.
func setOperator(client *hedera.Client, cfg *config.TOMLConfig) error {
	rawKey := os.Getenv("HEDERA_OPERATOR_KEY")
	if rawKey == "" {
		return nil
	}
	key, err := keystore.ParsePrivateKey(rawKey)
	if err != nil {
		return fmt.Errorf("HEDERA_OPERATOR_KEY: %w", err)
	}

	var account entity.AccountID
	if raw := os.Getenv("HEDERA_OPERATOR_ID"); raw != "" {
		if account, err = entity.Parse(raw); err != nil {
			return fmt.Errorf("HEDERA_OPERATOR_ID: %w", err)
		}
	} else {
		var ok bool
		if account, ok, err = cfg.OperatorAccountID(); err != nil {
			return err
		} else if !ok {
			return errors.New("HEDERA_OPERATOR_KEY is set without HEDERA_OPERATOR_ID or Operator.AccountID")
		}
	}
	return client.SetOperator(account, key)
}

func balance(ctx context.Context, client *hedera.Client, args []string) error {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	accountFlag := fs.String("account", "", "account id, the operator when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var account entity.AccountID
	if *accountFlag != "" {
		var err error
		if account, err = entity.Parse(*accountFlag); err != nil {
			return err
		}
	} else {
		op, err := client.Operator()
		if err != nil {
			return fmt.Errorf("-account is required: %w", err)
		}
		account = op.AccountID()
	}

	tinybars, err := client.GetAccountBalance(ctx, account)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s ℏ (%d tinybars)\n", account.StringWithChecksum(client.Ledger()), formatHbar(tinybars), tinybars)
	return nil
}

func transfer(ctx context.Context, client *hedera.Client, args []string) error {
	fs := flag.NewFlagSet("transfer", flag.ContinueOnError)
	to := fs.String("to", "", "recipient account id")
	amount := fs.Int64("amount", 0, "tinybars to transfer")
	memo := fs.String("memo", "", "transaction memo")
	maxFee := fs.Uint64("max-fee", 0, "max transaction fee in tinybars, the configured default when zero")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *to == "" || *amount <= 0 {
		return errors.New("-to and a positive -amount are required")
	}
	recipient, err := entity.Parse(*to)
	if err != nil {
		return err
	}
	op, err := client.Operator()
	if err != nil {
		return err
	}

	data := operations.NewTransfer().
		AddHbarTransfer(op.AccountID(), -*amount).
		AddHbarTransfer(recipient, *amount)
	tx := txm.NewTransaction(data).SetTransactionMemo(*memo).SetMaxTransactionFee(*maxFee)

	resp, err := client.Execute(ctx, tx)
	if err != nil {
		return err
	}
	fmt.Printf("submitted %s to node %s, hash %s\n", resp.TransactionID, resp.NodeID, resp.HashHex())

	r, err := resp.GetReceipt(ctx)
	if err != nil {
		return err
	}
	fmt.Println("status", r.Status)
	return nil
}

func receipt(ctx context.Context, client *hedera.Client, args []string) error {
	fs := flag.NewFlagSet("receipt", flag.ContinueOnError)
	txFlag := fs.String("tx", "", "transaction id, account@seconds.nanos")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := entity.ParseTransactionID(*txFlag)
	if err != nil {
		return err
	}

	r, err := client.GetReceipt(ctx, id)
	var statusErr *txm.ReceiptStatusError
	if errors.As(err, &statusErr) {
		fmt.Printf("%s failed: %s\n", id, statusErr.Status)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", id, r.Status)
	if r.AccountID != nil {
		fmt.Println("account", r.AccountID)
	}
	if r.FileID != nil {
		fmt.Println("file", r.FileID)
	}
	if r.TokenID != nil {
		fmt.Println("token", r.TokenID)
	}
	return nil
}

func fileContents(ctx context.Context, client *hedera.Client, args []string) error {
	fs := flag.NewFlagSet("file-contents", flag.ContinueOnError)
	fileFlag := fs.String("file", "", "file id")
	maxPayment := fs.Uint64("max-payment", 0, "max query payment in tinybars, the configured default when zero")
	if err := fs.Parse(args); err != nil {
		return err
	}
	file, err := entity.Parse(*fileFlag)
	if err != nil {
		return err
	}

	contents, err := client.GetFileContents(ctx, file, *maxPayment)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(contents)
	return err
}

func formatHbar(tinybars uint64) string {
	return strconv.FormatFloat(float64(tinybars)/100_000_000, 'f', 8, 64)
}
