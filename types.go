package culturebridge

import (
	"github.com/totegamma/culturebridge/nostr"
)

// Address is the NIP-33 coordinate of a replaceable record: every revision
// of a record shares the same Address.
type Address struct {
	Kind       int    `json:"kind"`
	PubKey     string `json:"pubkey"`
	Identifier string `json:"identifier"`
}

// Filter returns the relay filter selecting all revisions of the address.
func (a Address) Filter() nostr.Filter {
	return nostr.Filter{
		Kinds:   []int{a.Kind},
		Authors: []string{a.PubKey},
		Tags:    nostr.TagMap{"d": {a.Identifier}},
	}
}

func (a Address) String() string {
	return ComposeAddress(a.Kind, a.PubKey, a.Identifier)
}

// NodeInfo is served from the well-known endpoint.
type NodeInfo struct {
	Version        string            `json:"version"`
	Domain         string            `json:"domain"`
	PubKey         string            `json:"pubkey"`
	Npub           string            `json:"npub"`
	Relays         []string          `json:"relays"`
	BlossomServers []string          `json:"blossomServers"`
	Endpoints      map[string]string `json:"endpoints"`
}
