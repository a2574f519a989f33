package jupiter

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ProgramID is the Jupiter v6 aggregator program.
var ProgramID = solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")

// Route instruction discriminators.
var (
	discRoute                              = []byte{0xE5, 0x17, 0xCB, 0x97, 0x7A, 0xE3, 0xAD, 0x2A}
	discRouteWithTokenLedger               = []byte{0x96, 0x56, 0x47, 0x74, 0xA7, 0x5D, 0x0E, 0x68}
	discSharedAccountsRoute                = []byte{0xC1, 0x20, 0x9B, 0x33, 0x41, 0xD6, 0x9C, 0x81}
	discSharedAccountsRouteWithTokenLedger = []byte{0xE6, 0x79, 0x8F, 0x50, 0x77, 0x9F, 0x6A, 0xAA}
	discExactOutRoute                      = []byte{0xD0, 0x33, 0xEF, 0x97, 0x7B, 0x2B, 0xED, 0x5C}
	discSharedAccountsExactOutRoute        = []byte{0xB0, 0xD1, 0x69, 0xA8, 0x9A, 0x7D, 0x45, 0x3E}
)

// routeArgsTail is the size of the amount/slippage/fee fields that end every route instruction.
const routeArgsTail = 8 + 8 + 2 + 1

// RouteArgs are the amount fields of a route instruction.
type RouteArgs struct {
	ExactOut bool
	// FixedAmount is in_amount for exact-in routes and out_amount for exact-out routes.
	FixedAmount uint64
	// QuotedAmount is quoted_out_amount or quoted_in_amount.
	QuotedAmount   uint64
	SlippageBps    uint16
	PlatformFeeBps uint8
}

// IsRouteInstruction reports whether data starts with a route discriminator.
func IsRouteInstruction(data []byte) bool {
	_, ok := routeKind(data)
	return ok
}

func routeKind(data []byte) (exactOut bool, ok bool) {
	if len(data) < 8 {
		return false, false
	}
	disc := data[:8]
	switch {
	case bytes.Equal(disc, discRoute),
		bytes.Equal(disc, discRouteWithTokenLedger),
		bytes.Equal(disc, discSharedAccountsRoute),
		bytes.Equal(disc, discSharedAccountsRouteWithTokenLedger):
		return false, true
	case bytes.Equal(disc, discExactOutRoute),
		bytes.Equal(disc, discSharedAccountsExactOutRoute):
		return true, true
	}
	return false, false
}

// ParseRouteArgs decodes the trailing amount fields of a route instruction.
// The route plan in between is variable length and is not decoded.
func ParseRouteArgs(data []byte) (*RouteArgs, error) {
	exactOut, ok := routeKind(data)
	if !ok {
		return nil, fmt.Errorf("not a jupiter route instruction")
	}
	if len(data) < 8+routeArgsTail {
		return nil, fmt.Errorf("route instruction too short: %d bytes", len(data))
	}

	dec := bin.NewBorshDecoder(data[len(data)-routeArgsTail:])
	args := &RouteArgs{ExactOut: exactOut}
	var err error
	if args.FixedAmount, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("read fixed amount: %w", err)
	}
	if args.QuotedAmount, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("read quoted amount: %w", err)
	}
	if args.SlippageBps, err = dec.ReadUint16(bin.LE); err != nil {
		return nil, fmt.Errorf("read slippage: %w", err)
	}
	if args.PlatformFeeBps, err = dec.ReadUint8(); err != nil {
		return nil, fmt.Errorf("read platform fee: %w", err)
	}
	return args, nil
}

// EncodeRouteArgs builds route instruction data with an empty route plan.
// It mirrors the on-chain layout closely enough for ParseRouteArgs.
func EncodeRouteArgs(args RouteArgs) []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if args.ExactOut {
		buf.Write(discExactOutRoute)
	} else {
		buf.Write(discRoute)
	}
	_ = enc.WriteUint32(0, bin.LE) // route plan length
	_ = enc.WriteUint64(args.FixedAmount, bin.LE)
	_ = enc.WriteUint64(args.QuotedAmount, bin.LE)
	_ = enc.WriteUint16(args.SlippageBps, bin.LE)
	_ = enc.WriteUint8(args.PlatformFeeBps)
	return buf.Bytes()
}
