package sdk

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// sign returns the hex HMAC-SHA256 of message keyed by the private key
func sign(privateKey, message string) string {
	mac := hmac.New(sha256.New, []byte(privateKey))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// stringify encodes params compactly, keeping struct field order and leaving
// HTML characters unescaped so the signed payload matches the body sent.
func stringify(params interface{}) (string, error) {
	if params == nil {
		return "{}", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(params); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
