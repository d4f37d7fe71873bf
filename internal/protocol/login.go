package protocol

import (
	"github.com/dbbouncer/gomysql/internal/codec"
)

// LoginRequest is Protocol::HandshakeResponse41 (spec.md §4.3).
type LoginRequest struct {
	Capabilities    CapabilityFlags
	MaxPacketSize   uint32
	CharacterSet    uint8
	Username        string
	AuthResponse    []byte
	Database        string
	AuthPluginName  string
	ConnectAttrs    map[string]string
}

// EncodeLoginRequest serializes a HandshakeResponse41 payload.
func EncodeLoginRequest(req LoginRequest) []byte {
	w := codec.NewWriter(64 + len(req.Username) + len(req.AuthResponse) + len(req.Database))
	w.PutUint32(uint32(req.Capabilities))
	w.PutUint32(req.MaxPacketSize)
	w.PutUint8(req.CharacterSet)
	w.PutZeros(23) // reserved

	w.PutNullTerminatedString(req.Username)

	if req.Capabilities.Has(CapPluginAuthLenencData) {
		w.PutLengthEncodedString(req.AuthResponse)
	} else if req.Capabilities.Has(CapSecureConnection) {
		w.PutUint8(uint8(len(req.AuthResponse)))
		w.PutFixedString(req.AuthResponse)
	} else {
		w.PutFixedString(req.AuthResponse)
		w.PutUint8(0)
	}

	if req.Capabilities.Has(CapConnectWithDB) {
		w.PutNullTerminatedString(req.Database)
	}

	if req.Capabilities.Has(CapPluginAuth) {
		w.PutNullTerminatedString(req.AuthPluginName)
	}

	if req.Capabilities.Has(CapConnectAttrs) && len(req.ConnectAttrs) > 0 {
		attrs := codec.NewWriter(0)
		for k, v := range req.ConnectAttrs {
			attrs.PutLengthEncodedString([]byte(k))
			attrs.PutLengthEncodedString([]byte(v))
		}
		w.PutLengthEncodedInt(uint64(attrs.Len()))
		w.PutFixedString(attrs.Bytes())
	}

	return w.Bytes()
}

// EncodeSSLRequest serializes the SSLRequest packet: the same prefix as
// a login request up through the reserved filler, with no credentials
// (spec.md §4.3). This packet precedes the TLS handshake when SSL is
// negotiated.
func EncodeSSLRequest(caps CapabilityFlags, maxPacketSize uint32, charset uint8) []byte {
	w := codec.NewWriter(32)
	w.PutUint32(uint32(caps))
	w.PutUint32(maxPacketSize)
	w.PutUint8(charset)
	w.PutZeros(23)
	return w.Bytes()
}

// EncodeAuthSwitchResponse serializes the bare auth-response payload
// sent after an auth-switch request (spec.md §4.6 rule 4).
func EncodeAuthSwitchResponse(authResponse []byte) []byte {
	w := codec.NewWriter(len(authResponse))
	w.PutFixedString(authResponse)
	return w.Bytes()
}
