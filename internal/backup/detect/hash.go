package detect

import (
	"encoding/hex"
	"io"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/Shevanio/snapback/internal/core/domain"
)

// hashFile computes the BLAKE2b-256 content hash of a regular file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", domain.ErrSourceUnreadable.WithDetails(path).WithCause(err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", domain.ErrSourceUnreadable.WithDetails(path).WithCause(err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
