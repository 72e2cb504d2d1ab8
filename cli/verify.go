package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/telecuidar/docsign/verify"
)

func VerifyCommand() {
	verifyFlags := flag.NewFlagSet("verify", flag.ExitOnError)

	verifyFlags.Usage = func() {
		fmt.Printf("Usage: %s verify <input.pdf>\n\n", os.Args[0])
		fmt.Println("Verify the digital signatures of a PDF file")
	}

	if err := verifyFlags.Parse(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse verify flags: %v\n", err)
		osExit(1)
		return
	}
	if len(verifyFlags.Args()) < 1 {
		verifyFlags.Usage()
		osExit(1)
		return
	}

	VerifyPDF(verifyFlags.Arg(0))
}

// VerifyPDF is a variable so tests can intercept the call.
var VerifyPDF = verifyPDFImpl

func verifyPDFImpl(input string) {
	content, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
		return
	}

	resp, err := verify.File(content)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
		return
	}

	jsonData, err := json.Marshal(resp)
	if err != nil {
		fmt.Println(err)
		osExit(1)
		return
	}
	fmt.Println(string(jsonData))
}
