package genesis

import (
	"fmt"
	"strings"

	"nftmarket/crypto"
)

func parseAccount(prefix crypto.AddressPrefix, addr string) (string, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return "", fmt.Errorf("address must be provided")
	}
	canonical, err := crypto.ValidateAddress(prefix, trimmed)
	if err != nil {
		return "", fmt.Errorf("decode bech32 account: %w", err)
	}
	return canonical, nil
}
