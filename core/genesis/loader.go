package genesis

import (
	"context"
	"fmt"

	"nftmarket/core"
)

// Apply instantiates the contract on a fresh host. It reports false without
// touching state when the host has already committed a call.
func Apply(ctx context.Context, host *core.Host, spec *GenesisSpec) (bool, error) {
	if spec == nil {
		return false, fmt.Errorf("genesis spec must not be nil")
	}
	if host == nil {
		return false, fmt.Errorf("host must not be nil")
	}
	if host.Height() > 0 {
		return false, nil
	}
	msg, balances := spec.InstantiateMsg()
	if _, err := host.Instantiate(ctx, spec.Owner, msg, balances); err != nil {
		return false, fmt.Errorf("instantiate: %w", err)
	}
	return true, nil
}
