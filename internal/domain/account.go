package domain

import "fmt"

// Account identifies a holder of funds or positions.
type Account string

// PoolAccount holds everything deposited into the pool: liquidity, stakes
// and unclaimed rewards.
const PoolAccount Account = "pool"

// Asset selects which balance a call moves. Native funds are wrapped into
// the token 1:1 on the way into the pool and unwrapped on the way out.
type Asset uint8

const (
	AssetToken Asset = iota
	AssetNative
)

func (a Asset) String() string {
	switch a {
	case AssetToken:
		return "token"
	case AssetNative:
		return "native"
	default:
		return fmt.Sprintf("asset(%d)", uint8(a))
	}
}

func (a Asset) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Asset) UnmarshalText(b []byte) error {
	switch string(b) {
	case "", "token":
		*a = AssetToken
	case "native":
		*a = AssetNative
	default:
		return fmt.Errorf("unknown asset %q", string(b))
	}
	return nil
}
