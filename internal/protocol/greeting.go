package protocol

import (
	"strings"

	gomysql "github.com/dbbouncer/gomysql"

	"github.com/dbbouncer/gomysql/internal/codec"
)

// Greeting is Protocol::HandshakeV10 (spec.md §4.3), the server's first
// packet. AuthPluginData is the concatenated 20-byte scramble (the
// wire's 8-byte part plus the 12-byte part, NUL terminator dropped).
type Greeting struct {
	ProtocolVersion uint8
	ServerVersion   string
	ConnectionID    uint32
	AuthPluginData  []byte
	Capabilities    CapabilityFlags
	CharacterSet    uint8
	StatusFlags     ServerStatusFlags
	AuthPluginName  string
}

// IsMariaDB reports whether the server version string identifies a
// MariaDB server, per spec.md §4.6 rule 5.
func (g Greeting) IsMariaDB() bool {
	return strings.Contains(strings.ToUpper(g.ServerVersion), "MARIADB")
}

// DecodeGreeting parses a server greeting packet. Protocol version
// other than 10 is server_unsupported (spec.md §4.3).
func DecodeGreeting(payload []byte) (Greeting, error) {
	r := codec.NewReader(payload)
	var g Greeting

	version, err := r.Uint8()
	if err != nil {
		return g, err
	}
	if version != 10 {
		return g, gomysql.Newf(gomysql.KindServerUnsupported, "unsupported protocol version %d", version)
	}
	g.ProtocolVersion = version

	serverVersion, err := r.NullTerminatedString()
	if err != nil {
		return g, err
	}
	g.ServerVersion = string(serverVersion)

	connID, err := r.Uint32()
	if err != nil {
		return g, err
	}
	g.ConnectionID = connID

	authData1, err := r.FixedString(8)
	if err != nil {
		return g, err
	}

	if _, err := r.Uint8(); err != nil { // filler
		return g, err
	}

	capLow, err := r.Uint16()
	if err != nil {
		return g, err
	}
	caps := CapabilityFlags(capLow)

	if r.Len() == 0 {
		g.AuthPluginData = authData1
		g.Capabilities = caps
		return g, nil
	}

	charset, err := r.Uint8()
	if err != nil {
		return g, err
	}
	g.CharacterSet = charset

	status, err := r.Uint16()
	if err != nil {
		return g, err
	}
	g.StatusFlags = ServerStatusFlags(status)

	capHigh, err := r.Uint16()
	if err != nil {
		return g, err
	}
	caps |= CapabilityFlags(capHigh) << 16
	g.Capabilities = caps

	authDataLen, err := r.Uint8()
	if err != nil {
		return g, err
	}

	if _, err := r.FixedString(10); err != nil { // reserved
		return g, err
	}

	var authData2 []byte
	if caps.Has(CapSecureConnection) {
		n := int(authDataLen) - 8
		if n < 13 {
			n = 13
		}
		authData2, err = r.FixedString(n)
		if err != nil {
			return g, err
		}
		// Drop the NUL terminator spec.md §4.3 describes as part 2's tail.
		if len(authData2) > 0 && authData2[len(authData2)-1] == 0 {
			authData2 = authData2[:len(authData2)-1]
		}
	}
	g.AuthPluginData = append(append([]byte{}, authData1...), authData2...)

	if caps.Has(CapPluginAuth) {
		pluginName, err := r.NullTerminatedString()
		if err != nil {
			return g, err
		}
		g.AuthPluginName = string(pluginName)
	}

	return g, nil
}
