// Command keytool seals a hex private key into the password-protected JSON
// file the bot reads via wallet.encrypted_key_path, and can verify an
// existing file by printing the address it unlocks.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/alanyoungcy/auctionbot/internal/crypto"
)

func main() {
	out := flag.String("out", "data/key.json", "where to write the encrypted key")
	verify := flag.String("verify", "", "decrypt this file and print its address instead of encrypting")
	flag.Parse()

	_ = godotenv.Load()

	password := os.Getenv("AUCTIONBOT_WALLET_KEY_PASSWORD")
	if password == "" {
		fatalf("AUCTIONBOT_WALLET_KEY_PASSWORD must be set")
	}

	if *verify != "" {
		signer, err := crypto.LoadSigner(crypto.KeyConfig{EncryptedKeyPath: *verify, KeyPassword: password})
		if err != nil {
			fatalf("verify %s: %v", *verify, err)
		}
		fmt.Println(signer.Address().Hex())
		return
	}

	keyHex := firstNonEmpty(os.Getenv("AUCTIONBOT_WALLET_PRIVATE_KEY"), os.Getenv("PK"))
	if keyHex == "" {
		fmt.Fprint(os.Stderr, "private key (hex): ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fatalf("read private key: %v", err)
		}
		keyHex = strings.TrimSpace(line)
	}

	signer, err := crypto.NewKeySignerFromHex(keyHex)
	if err != nil {
		fatalf("%v", err)
	}

	sealed, err := crypto.EncryptKey(keyHex, password)
	if err != nil {
		fatalf("%v", err)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o700); err != nil {
		fatalf("create %s: %v", filepath.Dir(*out), err)
	}
	if err := os.WriteFile(*out, sealed, 0o600); err != nil {
		fatalf("write %s: %v", *out, err)
	}

	fmt.Printf("wrote %s for %s\n", *out, signer.Address().Hex())
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "keytool: "+format+"\n", args...)
	os.Exit(1)
}
