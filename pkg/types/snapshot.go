package types

// ServerMessage is the websocket push frame. The only message type today is
// "VaultSnapshot", carrying the full vault after a successful mutation;
// clients apply it as a complete replacement, same as a poll result.
type ServerMessage struct {
	Type    string         `json:"type"` // "VaultSnapshot" | "Error"
	Version int            `json:"version,omitempty"`
	Vault   *VaultResponse `json:"vault,omitempty"`
	Error   string         `json:"error,omitempty"`
}
