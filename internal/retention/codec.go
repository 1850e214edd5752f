package retention

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	reterrors "git.home.luguber.info/inful/retentiond/internal/errors"
)

// Kind classifies a store key as belonging to a host or a service entry.
type Kind int

const (
	KindInvalid Kind = iota
	KindHost
	KindService
)

const (
	hostPrefix    = "HOST-"
	servicePrefix = "SERVICE-"

	// spaceToken replaces literal spaces in service keys; the store key
	// alphabet forbids whitespace. Host names or service descriptions
	// containing the token verbatim would decode incorrectly (see the
	// package comment).
	spaceToken = "SPACE"
)

// HostKey returns the store key for a host identity.
func HostKey(hostName string) string {
	return hostPrefix + hostName
}

// ServiceKey returns the store key for a service identity. Spaces in the
// combined "host,description" string are replaced by the reserved token.
func ServiceKey(hostName, description string) string {
	combined := hostName + "," + description
	return servicePrefix + strings.ReplaceAll(combined, " ", spaceToken)
}

// DecodeKey parses a store key back into its identity. Keys matching
// neither prefix, and service keys without a host/description separator,
// are classified KindInvalid; callers skip them rather than fail.
func DecodeKey(key string) (kind Kind, hostName, description string) {
	switch {
	case strings.HasPrefix(key, hostPrefix):
		return KindHost, strings.TrimPrefix(key, hostPrefix), ""
	case strings.HasPrefix(key, servicePrefix):
		rest := strings.TrimPrefix(key, servicePrefix)
		idx := strings.Index(rest, ",")
		if idx < 0 {
			return KindInvalid, "", ""
		}
		host := strings.ReplaceAll(rest[:idx], spaceToken, " ")
		desc := strings.ReplaceAll(rest[idx+1:], spaceToken, " ")
		return KindService, host, desc
	default:
		return KindInvalid, "", ""
	}
}

// payloadVersion is bumped whenever the envelope layout changes, so a
// payload written by a different program version is rejected instead of
// misread.
const payloadVersion = 1

// envelope wraps the scheduler's opaque state blob with enough framing
// to reject foreign or truncated payloads on decode.
type envelope struct {
	Version int    `json:"v"`
	State   []byte `json:"state"`
}

// EncodePayload serializes an opaque state blob for storage.
func EncodePayload(state []byte) ([]byte, error) {
	data, err := json.Marshal(envelope{Version: payloadVersion, State: state})
	if err != nil {
		return nil, reterrors.DecodeError(err, "encode retention payload")
	}
	return data, nil
}

// DecodePayload reverses EncodePayload. A malformed, truncated, or
// wrong-version payload yields a codec error, never a partial blob.
func DecodePayload(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, reterrors.DecodeError(err, "decode retention payload")
	}
	if env.Version != payloadVersion {
		return nil, reterrors.DecodeError(
			fmt.Errorf("payload version %d, want %d", env.Version, payloadVersion),
			"unsupported retention payload version")
	}
	return env.State, nil
}
