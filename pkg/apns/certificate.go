package apns

import (
	"crypto/tls"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sideshow/apns2/certificate"
)

// loadCertificate reads the client certificate and key. PEM is the normal
// form (certificate and key in one file); PKCS#12 bundles are accepted by
// extension.
func loadCertificate(path, passphrase string) (tls.Certificate, error) {
	var (
		cert tls.Certificate
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".p12", ".pfx":
		cert, err = certificate.FromP12File(path, passphrase)
	default:
		cert, err = certificate.FromPemFile(path, passphrase)
	}
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to load apns certificate %s: %w", path, err)
	}
	return cert, nil
}
