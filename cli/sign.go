package cli

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/telecuidar/docsign/pfx"
	"github.com/telecuidar/docsign/sign"
)

var (
	InfoName, InfoLocation, InfoReason, InfoContact, TSA string
)

func SignCommand() {
	signFlags := flag.NewFlagSet("sign", flag.ExitOnError)

	signFlags.StringVar(&InfoName, "name", "", "Name of the signatory (defaults to the certificate holder)")
	signFlags.StringVar(&InfoLocation, "location", "", "Location of the signatory")
	signFlags.StringVar(&InfoReason, "reason", "", "Reason for signing")
	signFlags.StringVar(&InfoContact, "contact", "", "Contact information for signatory")
	signFlags.StringVar(&TSA, "tsa", "", "URL for Time-Stamp Authority")
	passphrase := signFlags.String("p", "", "Passphrase of the container (or DOCSIGN_PFX_PASSWORD)")

	signFlags.Usage = func() {
		fmt.Printf("Usage: %s sign [options] <input.pdf> <output.pdf> <certificate.pfx>\n\n", os.Args[0])
		fmt.Println("Sign a PDF file with a PKCS#12 certificate")
		fmt.Println("\nOptions:")
		signFlags.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Printf("  %s sign -reason \"Receituario\" input.pdf output.pdf cert.pfx\n", os.Args[0])
	}

	if err := signFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse sign flags: %v", err)
		osExit(1)
		return
	}

	if len(signFlags.Args()) < 3 {
		signFlags.Usage()
		osExit(1)
		return
	}

	SignPDF(signFlags.Arg(0), signFlags.Arg(1), signFlags.Arg(2), readPassphrase(*passphrase))
}

// SignPDF is a variable so tests can intercept the call.
var SignPDF = signPDFImpl

func signPDFImpl(input, output, certPath, passphrase string) {
	pfxData, err := os.ReadFile(certPath)
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

	inputData, err := os.ReadFile(input)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}

	name := InfoName
	if name == "" {
		meta := pfx.Extract(cred.Cert)
		name = meta.HolderName
		if name == "" {
			name = meta.SubjectDN
		}
	}

	signed, err := sign.Sign(inputData, sign.Request{
		Signer:      cred.Key,
		Certificate: cred.Cert,
		Chain:       cred.Chain,
		Name:        name,
		Location:    InfoLocation,
		Reason:      InfoReason,
		ContactInfo: InfoContact,
		TSA:         sign.TSA{URL: TSA},
	})
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}

	if err := os.WriteFile(output, signed, 0o644); err != nil {
		log.Println(err)
		osExit(1)
		return
	}
	log.Println("Signed PDF written to " + output)
}
