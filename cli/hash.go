package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/telecuidar/docsign/internal/config"
	"github.com/telecuidar/docsign/internal/signing"
	"github.com/telecuidar/docsign/internal/store"
	"github.com/telecuidar/docsign/pkg/logger"
	"github.com/telecuidar/docsign/vault"
)

// CheckHashCommand answers whether a verification token belongs to a signed
// document. This is the only subcommand that talks to the database.
func CheckHashCommand() {
	hashFlags := flag.NewFlagSet("check-hash", flag.ExitOnError)
	configPath := hashFlags.String("config", config.DefaultLocation, "Path of the configuration file")

	hashFlags.Usage = func() {
		fmt.Printf("Usage: %s check-hash [options] <hash>\n\n", os.Args[0])
		fmt.Println("Check whether a document hash belongs to a signed document")
		fmt.Println("\nOptions:")
		hashFlags.PrintDefaults()
	}

	if err := hashFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse check-hash flags: %v", err)
		osExit(1)
		return
	}
	if len(hashFlags.Args()) < 1 {
		hashFlags.Usage()
		osExit(1)
		return
	}

	CheckHash(*configPath, hashFlags.Arg(0))
}

// CheckHash is a variable so tests can intercept the call.
var CheckHash = checkHashImpl

func checkHashImpl(configPath, hash string) {
	cfg, err := config.Read(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
		return
	}

	zl, err := logger.New(cfg.Environment)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
		return
	}
	defer func() { _ = zl.Sync() }()

	db, err := store.OpenPostgres(cfg.PostgresOptions())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
		return
	}

	service := signing.NewService(
		store.NewCertificateRepo(db),
		store.NewDocumentRepo(db),
		vault.New(cfg.Vault.Secret),
		zl,
		signing.Options{
			Location: cfg.Signing.Location,
			Reason:   cfg.Signing.Reason,
			TSA:      cfg.TSA(),
		},
	)

	signed, err := service.ValidateDocumentHash(context.Background(), hash)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
		return
	}

	jsonData, err := json.Marshal(map[string]bool{"signed": signed})
	if err != nil {
		fmt.Println(err)
		osExit(1)
		return
	}
	fmt.Println(string(jsonData))
}
