// Package cli implements the docsign command line: container validation,
// signing and verification without the database-backed service.
package cli

import (
	"fmt"
	"os"
)

// osExit is swapped out in tests.
var osExit = os.Exit

func Usage() {
	fmt.Printf("Usage: %s <command> [options] <args>\n\n", os.Args[0])
	fmt.Println("Commands:")
	fmt.Println("  validate-pfx  Show the metadata of a PKCS#12 signing certificate")
	fmt.Println("  sign          Sign a PDF file with a PKCS#12 certificate")
	fmt.Println("  verify        Verify a PDF signature")
	fmt.Println("  check-hash    Check a document hash against the signed documents database")
	fmt.Println("")
	fmt.Printf("Use '%s <command> -h' for command-specific help\n", os.Args[0])
	osExit(1)
}

// Run dispatches the subcommand. Called by the main package.
func Run() {
	if len(os.Args) < 2 {
		Usage()
		return
	}

	switch os.Args[1] {
	case "validate-pfx":
		ValidateCommand()
	case "sign":
		SignCommand()
	case "verify":
		VerifyCommand()
	case "check-hash":
		CheckHashCommand()
	case "-h", "--help", "help":
		Usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		Usage()
	}
}

// readPassphrase resolves the container passphrase from the -p flag or the
// DOCSIGN_PFX_PASSWORD environment variable. It is never echoed back.
func readPassphrase(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("DOCSIGN_PFX_PASSWORD")
}
