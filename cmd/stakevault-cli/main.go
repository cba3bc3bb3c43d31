package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"stakevault/cmd/internal/passphrase"
	"stakevault/config"
	"stakevault/crypto"
	"stakevault/native/rewards"
	"stakevault/rpc"
)

const passphraseEnv = "STAKEVAULT_KEYSTORE_PASSPHRASE"

func newPassphrase() *passphrase.Source {
	return passphrase.NewSource(passphraseEnv, "keystore")
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}
	var err error
	switch args[0] {
	case "keygen":
		err = runKeygen(args[1:], stdout)
	case "address":
		err = runAddress(args[1:], stdout)
	case "digest":
		err = runDigest(args[1:], stdout)
	case "sign-claim":
		err = runSignClaim(args[1:], stdout)
	case "token":
		err = runToken(args[1:], stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		printUsage(stderr)
		return 2
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: stakevault-cli <command> [flags]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  keygen      -out <file>                     create an encrypted signing key")
	fmt.Fprintln(w, "  address     -keystore <file>                print the address of a key")
	fmt.Fprintln(w, "  digest      -participant -amount -epoch     print the reward claim digest")
	fmt.Fprintln(w, "  sign-claim  -keystore -participant -amount -epoch")
	fmt.Fprintln(w, "                                              sign a reward claim")
	fmt.Fprintln(w, "  token       -subject [-origin] [-config]    mint a development API token")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Keystore passphrases are read from %s or prompted for.\n", passphraseEnv)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func runKeygen(args []string, stdout io.Writer) error {
	fs := newFlagSet("keygen")
	out := fs.String("out", "", "keystore file to create")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*out) == "" {
		return errors.New("-out is required")
	}
	if _, err := os.Stat(*out); err == nil {
		return fmt.Errorf("%s already exists", *out)
	}
	pass, err := newPassphrase().Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(*out, key, pass); err != nil {
		return err
	}
	addr := key.PubKey().Address()
	fmt.Fprintf(stdout, "address: %s\nhex: 0x%s\nkeystore: %s\n", addr.String(), hex.EncodeToString(addr.Bytes()), *out)
	return nil
}

func loadKey(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("-keystore is required")
	}
	pass, err := newPassphrase().Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

func runAddress(args []string, stdout io.Writer) error {
	fs := newFlagSet("address")
	keystorePath := fs.String("keystore", "", "keystore file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := loadKey(*keystorePath)
	if err != nil {
		return err
	}
	addr := key.PubKey().Address()
	fmt.Fprintf(stdout, "address: %s\nhex: 0x%s\n", addr.String(), hex.EncodeToString(addr.Bytes()))
	return nil
}

type claimFlags struct {
	participant *string
	amount      *string
	epoch       *uint64
	ledger      *string
}

func bindClaimFlags(fs *flag.FlagSet) claimFlags {
	return claimFlags{
		participant: fs.String("participant", "", "participant identifier"),
		amount:      fs.String("amount", "", "reward amount in base units"),
		epoch:       fs.Uint64("epoch", 0, "reward epoch"),
		ledger:      fs.String("ledger", "", "reward ledger address (defaults to the rewards module address)"),
	}
}

func (f claimFlags) message() (rewards.ClaimMessage, error) {
	participant := strings.TrimSpace(*f.participant)
	if participant == "" {
		return rewards.ClaimMessage{}, errors.New("-participant is required")
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(*f.amount), 10)
	if !ok || amount.Sign() <= 0 {
		return rewards.ClaimMessage{}, errors.New("-amount must be a positive integer")
	}
	if *f.epoch == 0 {
		return rewards.ClaimMessage{}, errors.New("-epoch must be non-zero")
	}
	ledger := crypto.ModuleAddress(rewards.ModuleName)
	if raw := strings.TrimSpace(*f.ledger); raw != "" {
		parsed, err := crypto.ParseAddress(raw)
		if err != nil {
			return rewards.ClaimMessage{}, fmt.Errorf("-ledger: %w", err)
		}
		ledger = parsed
	}
	return rewards.ClaimMessage{Ledger: ledger, Participant: participant, Amount: amount, Epoch: *f.epoch}, nil
}

func runDigest(args []string, stdout io.Writer) error {
	fs := newFlagSet("digest")
	flags := bindClaimFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	msg, err := flags.message()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "0x%s\n", hex.EncodeToString(msg.Hash()))
	return nil
}

func runSignClaim(args []string, stdout io.Writer) error {
	fs := newFlagSet("sign-claim")
	keystorePath := fs.String("keystore", "", "trusted signer keystore file")
	flags := bindClaimFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	msg, err := flags.message()
	if err != nil {
		return err
	}
	key, err := loadKey(*keystorePath)
	if err != nil {
		return err
	}
	sig, err := crypto.SignDigest(key, msg.Hash())
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "0x%s\n", hex.EncodeToString(sig))
	return nil
}

func runToken(args []string, stdout io.Writer) error {
	fs := newFlagSet("token")
	cfgPath := fs.String("config", "", "node configuration supplying the secret, issuer and audience")
	secret := fs.String("secret", "", "HMAC secret (overrides -config)")
	subject := fs.String("subject", "", "sender address")
	origin := fs.String("origin", "", "optional origin address")
	ttl := fs.Duration("ttl", 0, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req := rpc.TokenRequest{Secret: strings.TrimSpace(*secret), TTL: *ttl}
	if strings.TrimSpace(*cfgPath) != "" {
		cfg, err := config.Load(*cfgPath)
		if err != nil {
			return err
		}
		if req.Secret == "" {
			if req.Secret, err = cfg.ResolveHMACSecret(); err != nil {
				return err
			}
		}
		req.Issuer = cfg.Auth.Issuer
		req.Audience = cfg.Auth.Audience
		if req.TTL <= 0 {
			req.TTL = cfg.Auth.TokenTTL.Duration
		}
	}
	if req.Secret == "" {
		return errors.New("-secret or -config is required")
	}
	sender, err := crypto.ParseAddress(*subject)
	if err != nil {
		return fmt.Errorf("-subject: %w", err)
	}
	req.Subject = sender
	if strings.TrimSpace(*origin) != "" {
		if req.Origin, err = crypto.ParseAddress(*origin); err != nil {
			return fmt.Errorf("-origin: %w", err)
		}
	}
	if req.TTL <= 0 {
		req.TTL = time.Hour
	}
	token, err := rpc.IssueToken(req)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, token)
	return nil
}
