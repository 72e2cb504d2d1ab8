package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/telecuidar/docsign/pfx"
)

type certificateOutput struct {
	SubjectDN  string    `json:"subject_dn"`
	IssuerDN   string    `json:"issuer_dn"`
	Thumbprint string    `json:"thumbprint"`
	HolderName string    `json:"holder_name,omitempty"`
	HolderCPF  string    `json:"holder_cpf,omitempty"`
	NotBefore  time.Time `json:"not_before"`
	NotAfter   time.Time `json:"not_after"`
	Expired    bool      `json:"expired"`
}

func ValidateCommand() {
	validateFlags := flag.NewFlagSet("validate-pfx", flag.ExitOnError)
	passphrase := validateFlags.String("p", "", "Passphrase of the container (or DOCSIGN_PFX_PASSWORD)")

	validateFlags.Usage = func() {
		fmt.Printf("Usage: %s validate-pfx [options] <certificate.pfx>\n\n", os.Args[0])
		fmt.Println("Show the metadata of a PKCS#12 signing certificate")
		fmt.Println("\nOptions:")
		validateFlags.PrintDefaults()
	}

	if err := validateFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse validate-pfx flags: %v", err)
		osExit(1)
		return
	}
	if len(validateFlags.Args()) < 1 {
		validateFlags.Usage()
		osExit(1)
		return
	}

	ValidatePFX(validateFlags.Arg(0), readPassphrase(*passphrase))
}

// ValidatePFX is a variable so tests can intercept the call.
var ValidatePFX = validatePFXImpl

func validatePFXImpl(path, passphrase string) {
	pfxData, err := os.ReadFile(path)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}

	cred, err := pfx.Parse(pfxData, passphrase)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
		return
	}
	meta := pfx.Extract(cred.Cert)

	out := certificateOutput{
		SubjectDN:  meta.SubjectDN,
		IssuerDN:   meta.IssuerDN,
		Thumbprint: meta.Thumbprint,
		HolderName: meta.HolderName,
		HolderCPF:  meta.HolderCPF,
		NotBefore:  meta.NotBefore,
		NotAfter:   meta.NotAfter,
		Expired:    meta.Expired(time.Now()),
	}
	jsonData, err := json.Marshal(out)
	if err != nil {
		fmt.Println(err)
		osExit(1)
		return
	}
	fmt.Println(string(jsonData))
}
