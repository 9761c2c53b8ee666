package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"nftmarket/cmd/internal/secret"
	"nftmarket/crypto"
	"nftmarket/gateway/middleware"
)

const (
	defaultNode      = "http://127.0.0.1:8080"
	defaultSecretEnv = "MARKET_JWT_SECRET"
	defaultPassEnv   = "MARKET_KEYSTORE_PASS"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "token":
		err = runToken(os.Args[2:])
	case "keygen":
		err = runKeygen(os.Args[2:])
	case "addr":
		err = runAddr(os.Args[2:])
	case "export-sales":
		err = runExportSales(os.Args[2:])
	case "contract-addr":
		err = runContractAddr(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	sender := fs.String("sender", "", "Account placed in the sub claim")
	issuer := fs.String("issuer", "", "Issuer claim")
	audience := fs.String("audience", "", "Audience claim")
	scopes := fs.String("scopes", middleware.ScopeExecute, "Space separated scopes")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	secretEnv := fs.String("secret-env", defaultSecretEnv, "Environment variable holding the HMAC secret")
	fs.Parse(args)

	key, err := secret.NewSource(*secretEnv, "JWT HMAC secret").Get()
	if err != nil {
		return err
	}
	token, err := middleware.IssueToken([]byte(strings.TrimSpace(key)), *sender, *issuer, *audience, strings.Fields(*scopes), *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runKeygen(args []string) error {
	fs := flag.NewFlagSet("keygen", flag.ExitOnError)
	out := fs.String("keystore", "account.keystore", "Output path for the encrypted key file")
	prefix := fs.String("prefix", string(crypto.DefaultPrefix), "Address prefix")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	light := fs.Bool("light", false, "Use light scrypt parameters")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	fs.Parse(args)

	if _, err := os.Stat(*out); err == nil && !*force {
		return fmt.Errorf("keystore %s already exists; pass -force to overwrite", *out)
	}
	pass, err := secret.NewSource(*passEnv, "keystore passphrase").Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	params := crypto.StandardScrypt
	if *light {
		params = crypto.LightScrypt
	}
	if err := crypto.SaveToKeystore(*out, key, pass, params); err != nil {
		return err
	}
	fmt.Println(key.PubKey().Address(crypto.AddressPrefix(*prefix)).String())
	return nil
}

func runAddr(args []string) error {
	fs := flag.NewFlagSet("addr", flag.ExitOnError)
	path := fs.String("keystore", "account.keystore", "Encrypted key file")
	prefix := fs.String("prefix", string(crypto.DefaultPrefix), "Address prefix")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	fs.Parse(args)

	pass, err := secret.NewSource(*passEnv, "keystore passphrase").Get()
	if err != nil {
		return err
	}
	key, err := crypto.LoadFromKeystore(*path, pass)
	if err != nil {
		return err
	}
	fmt.Println(key.PubKey().Address(crypto.AddressPrefix(*prefix)).String())
	return nil
}

func runContractAddr(args []string) error {
	fs := flag.NewFlagSet("contract-addr", flag.ExitOnError)
	prefix := fs.String("prefix", string(crypto.DefaultPrefix), "Address prefix")
	chainID := fs.String("chain-id", "", "Chain identifier")
	label := fs.String("label", "", "Contract label")
	fs.Parse(args)

	addr, err := crypto.ContractAddress(crypto.AddressPrefix(*prefix), *chainID+"/"+*label)
	if err != nil {
		return err
	}
	fmt.Println(addr.String())
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: marketctl <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  token          issue a bearer token for an account")
	fmt.Fprintln(os.Stderr, "  keygen         generate an account key into an encrypted keystore")
	fmt.Fprintln(os.Stderr, "  addr           print the address held in a keystore")
	fmt.Fprintln(os.Stderr, "  contract-addr  derive a contract address from chain id and label")
	fmt.Fprintln(os.Stderr, "  export-sales   write the primary sale schedule of a node to parquet")
}
