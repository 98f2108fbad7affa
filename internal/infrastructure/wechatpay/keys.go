package wechatpay

import (
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/wechatpay-apiv3/wechatpay-go/utils"
)

// ParsePrivateKey accepts a PKCS#8 PEM block, or a base64 encoded PEM block
// as stored in environment variables.
func ParsePrivateKey(data string) (*rsa.PrivateKey, error) {
	raw, err := pemText(data)
	if err != nil {
		return nil, err
	}
	return utils.LoadPrivateKey(raw)
}

// ParsePublicKey accepts a PKIX public key or a platform certificate, PEM or
// base64 PEM.
func ParsePublicKey(data string) (*rsa.PublicKey, error) {
	raw, err := pemText(data)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(raw, "CERTIFICATE") {
		return utils.LoadPublicKey(raw)
	}

	cert, err := utils.LoadCertificate(raw)
	if err != nil {
		return nil, err
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate %s does not carry an RSA key", utils.GetCertificateSerialNumber(*cert))
	}
	return pub, nil
}

func pemText(data string) (string, error) {
	raw := strings.TrimSpace(data)
	if strings.HasPrefix(raw, "-----BEGIN") {
		return raw, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("key is neither PEM nor base64 PEM: %w", err)
	}
	return string(decoded), nil
}
