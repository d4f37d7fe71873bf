package protocol

import (
	gomysql "github.com/dbbouncer/gomysql"

	"github.com/dbbouncer/gomysql/internal/codec"
)

const (
	headerAuthMoreData   = 0x01
	headerAuthSwitchReq  = 0xfe
)

// AuthSwitchRequest is the server's request to restart the
// challenge/response with a different plugin and scramble (spec.md
// §4.6 rule 4).
type AuthSwitchRequest struct {
	PluginName string
	Data       []byte
}

func DecodeAuthSwitchRequest(payload []byte) (AuthSwitchRequest, error) {
	r := codec.NewReader(payload)
	if _, err := r.Uint8(); err != nil { // 0xfe header
		return AuthSwitchRequest{}, err
	}
	name, err := r.NullTerminatedString()
	if err != nil {
		return AuthSwitchRequest{}, err
	}
	return AuthSwitchRequest{PluginName: string(name), Data: r.EOFString()}, nil
}

// DecodeAuthMoreData extracts the single status byte of an
// AuthMoreData packet (spec.md §4.5: 0x03 fast-auth success, 0x04
// full-auth required).
func DecodeAuthMoreData(payload []byte) (byte, error) {
	if len(payload) < 2 {
		return 0, gomysql.New(gomysql.KindIncompleteMessage, nil)
	}
	return payload[1], nil
}

// IsAuthSwitchRequest / IsAuthMoreData classify a handshake reply
// packet by its leading byte (spec.md §4.3).
func IsAuthSwitchRequest(payload []byte) bool {
	return len(payload) > 0 && payload[0] == headerAuthSwitchReq
}

func IsAuthMoreData(payload []byte) bool {
	return len(payload) > 0 && payload[0] == headerAuthMoreData
}
