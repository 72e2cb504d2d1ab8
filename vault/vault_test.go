package vault

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := New("server-held-secret")

	cases := [][]byte{
		[]byte("p"),
		[]byte("a passphrase with spaces"),
		bytes.Repeat([]byte{0xAB}, 16),   // exactly one block
		bytes.Repeat([]byte{0x00}, 4096), // pfx-sized blob
	}

	for _, plaintext := range cases {
		ct, iv, err := v.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		got, err := v.Decrypt(ct, iv)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("round trip mismatch for %d byte plaintext", len(plaintext))
		}
	}
}

func TestEncryptGeneratesFreshIVs(t *testing.T) {
	v := New("secret")

	_, iv1, err := v.Encrypt([]byte("same plaintext"))
	if err != nil {
		t.Fatal(err)
	}
	_, iv2, err := v.Encrypt([]byte("same plaintext"))
	if err != nil {
		t.Fatal(err)
	}
	if iv1 == iv2 {
		t.Fatal("two Encrypt calls returned the same IV")
	}
}

func TestDecryptWithWrongKeyNeverReturnsPlaintext(t *testing.T) {
	plaintext := []byte("confidential pfx passphrase")

	ct, iv, err := New("right secret").Encrypt(plaintext)
	if err != nil {
		t.Fatal(err)
	}

	got, err := New("wrong secret").Decrypt(ct, iv)
	if err == nil && bytes.Equal(got, plaintext) {
		t.Fatal("decryption under the wrong key recovered the plaintext")
	}
}

func TestDecryptCorruptedCiphertextFailsLoudly(t *testing.T) {
	v := New("secret")
	ct, iv, err := v.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]struct{ ct, iv string }{
		"truncated ciphertext": {ct[:4], iv},
		"not base64":           {"%%%", iv},
		"bad iv":               {ct, "short"},
		"empty ciphertext":     {"", iv},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Decrypt(c.ct, c.iv); !errors.Is(err, ErrDecryptionFailed) {
				t.Fatalf("got %v, want ErrDecryptionFailed", err)
			}
		})
	}
}

func TestCiphertextIsNotPlaintext(t *testing.T) {
	v := New("secret")
	plaintext := strings.Repeat("sensitive", 10)
	ct, _, err := v.Encrypt([]byte(plaintext))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(ct, "sensitive") {
		t.Fatal("ciphertext leaks plaintext")
	}
}
