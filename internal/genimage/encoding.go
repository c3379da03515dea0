package genimage

import "encoding/base64"

func base64Body(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func decodeBody(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
