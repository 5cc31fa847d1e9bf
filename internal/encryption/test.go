package encryption

import (
	"bytes"
	"fmt"
	"io"

	"docvault/internal/backup"
)

// testHeader marks streams sealed by TestEncryptor.
var testHeader = []byte("DVENC\x00\x00\x00")

// TestEncryptor prepends a fixed header instead of encrypting. Sealed
// output differs from its input and is trivially reversible, which is all
// tests of the backup pipeline need.
type TestEncryptor struct {
	configured bool
}

var _ backup.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor returns an encryptor that reports itself configured.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{configured: true}
}

func (e *TestEncryptor) Setup(string) error {
	e.configured = true
	return nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return e.configured
}

func (e *TestEncryptor) Seal(w io.Writer) (io.WriteCloser, error) {
	if _, err := w.Write(testHeader); err != nil {
		return nil, fmt.Errorf("writing test header: %w", err)
	}
	return nopWriteCloser{w}, nil
}

func (e *TestEncryptor) Unlock(string) (backup.Opener, error) {
	return TestOpener{}, nil
}

// TestOpener strips the header written by TestEncryptor.
type TestOpener struct{}

var _ backup.Opener = TestOpener{}

func (TestOpener) Open(r io.Reader) (io.Reader, error) {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return nil, fmt.Errorf("invalid test encryption header")
	}
	return r, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
