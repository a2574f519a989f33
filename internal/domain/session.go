package domain

// WalletKind identifies the signing backend of a session.
type WalletKind string

const (
	WalletExtension WalletKind = "extension"
	WalletEmbedded  WalletKind = "embedded"
)

// String returns the string representation of WalletKind.
func (k WalletKind) String() string {
	return string(k)
}

// IsValid checks if the wallet kind is a valid value.
func (k WalletKind) IsValid() bool {
	return k == WalletExtension || k == WalletEmbedded
}

// Capability is a signing primitive offered by a wallet.
type Capability string

const (
	CanSignOnly    Capability = "sign_only"
	CanSignAndSend Capability = "sign_and_send"
)

// SigningSession describes the connected wallet.
// Created on connect, discarded on disconnect.
type SigningSession struct {
	WalletKind   WalletKind
	PublicKey    string
	Capabilities []Capability
}

// Has reports whether the session offers the capability.
func (s SigningSession) Has(c Capability) bool {
	for _, have := range s.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}
