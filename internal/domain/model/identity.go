package model

import (
	"slices"
	"strings"
)

// Identity is the stable bridge identity announced over SSDP and in the
// description document.
type Identity struct {
	UUID      string   `json:"uuid"`
	BridgeID  string   `json:"bridge_id"`
	MAC       string   `json:"mac"`
	Usernames []string `json:"usernames,omitempty"`
}

// Serial is the bridge serial number: the MAC without separators.
func (i Identity) Serial() string {
	return strings.ReplaceAll(i.MAC, ":", "")
}

// KnowsUsername reports whether username was issued by a pairing handshake.
func (i Identity) KnowsUsername(username string) bool {
	return slices.Contains(i.Usernames, username)
}
