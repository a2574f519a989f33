package raydium

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ErrInvalidAccount is returned when account data does not decode as the expected type.
var ErrInvalidAccount = errors.New("invalid raydium account")

// poolStateMinSize covers every field read by DecodePoolState.
const poolStateMinSize = 8 + 10*32 + 5 + 7*8 + 2 + 6 + 2*8

// ammConfigMinSize covers every field read by DecodeAmmConfig.
const ammConfigMinSize = 8 + 1 + 1 + 2 + 4*8

// PoolState is the on-chain CPMM pool account.
type PoolState struct {
	AmmConfig      solana.PublicKey
	PoolCreator    solana.PublicKey
	Token0Vault    solana.PublicKey
	Token1Vault    solana.PublicKey
	LPMint         solana.PublicKey
	Token0Mint     solana.PublicKey
	Token1Mint     solana.PublicKey
	Token0Program  solana.PublicKey
	Token1Program  solana.PublicKey
	ObservationKey solana.PublicKey

	AuthBump       uint8
	Status         uint8
	LPMintDecimals uint8
	Mint0Decimals  uint8
	Mint1Decimals  uint8

	LPSupply           uint64
	ProtocolFeesToken0 uint64
	ProtocolFeesToken1 uint64
	FundFeesToken0     uint64
	FundFeesToken1     uint64
	OpenTime           uint64
	RecentEpoch        uint64

	CreatorFeeOn      uint8
	EnableCreatorFee  bool
	CreatorFeesToken0 uint64
	CreatorFeesToken1 uint64
}

// Pool status bits. A set bit disables the operation.
const (
	StatusDisableDeposit  uint8 = 1 << 0
	StatusDisableWithdraw uint8 = 1 << 1
	StatusDisableSwap     uint8 = 1 << 2
)

// SwapEnabled reports whether the pool accepts swaps.
func (p *PoolState) SwapEnabled() bool {
	return p.Status&StatusDisableSwap == 0
}

// Side returns the vault, token program and decimals of mint in the pool.
func (p *PoolState) Side(mint solana.PublicKey) (vault, program solana.PublicKey, decimals uint8, ok bool) {
	switch {
	case mint.Equals(p.Token0Mint):
		return p.Token0Vault, p.Token0Program, p.Mint0Decimals, true
	case mint.Equals(p.Token1Mint):
		return p.Token1Vault, p.Token1Program, p.Mint1Decimals, true
	}
	return solana.PublicKey{}, solana.PublicKey{}, 0, false
}

// Reserves returns the tradable token0/token1 reserves given raw vault
// balances. Accrued protocol, fund and creator fees sit in the vaults but
// are not liquidity.
func (p *PoolState) Reserves(vault0Balance, vault1Balance uint64) (uint64, uint64, error) {
	fees0 := p.ProtocolFeesToken0 + p.FundFeesToken0 + p.CreatorFeesToken0
	fees1 := p.ProtocolFeesToken1 + p.FundFeesToken1 + p.CreatorFeesToken1
	if fees0 > vault0Balance || fees1 > vault1Balance {
		return 0, 0, fmt.Errorf("%w: accrued fees exceed vault balance", ErrInvalidAccount)
	}
	return vault0Balance - fees0, vault1Balance - fees1, nil
}

// AmmConfig holds the fee schedule shared by pools of one config index.
type AmmConfig struct {
	Bump              uint8
	DisableCreatePool bool
	Index             uint16
	TradeFeeRate      uint64
	ProtocolFeeRate   uint64
	FundFeeRate       uint64
	CreatePoolFee     uint64
}

// DecodePoolState decodes a PoolState account.
func DecodePoolState(data []byte) (*PoolState, error) {
	if len(data) < poolStateMinSize {
		return nil, fmt.Errorf("%w: pool state is %d bytes", ErrInvalidAccount, len(data))
	}
	if !bytes.Equal(data[:8], poolStateDiscriminator) {
		return nil, fmt.Errorf("%w: not a CPMM pool state", ErrInvalidAccount)
	}

	r := reader{dec: bin.NewBorshDecoder(data[8:])}
	p := &PoolState{}
	for _, key := range []*solana.PublicKey{
		&p.AmmConfig, &p.PoolCreator, &p.Token0Vault, &p.Token1Vault, &p.LPMint,
		&p.Token0Mint, &p.Token1Mint, &p.Token0Program, &p.Token1Program, &p.ObservationKey,
	} {
		*key = r.pubkey()
	}
	p.AuthBump = r.u8()
	p.Status = r.u8()
	p.LPMintDecimals = r.u8()
	p.Mint0Decimals = r.u8()
	p.Mint1Decimals = r.u8()
	for _, v := range []*uint64{
		&p.LPSupply, &p.ProtocolFeesToken0, &p.ProtocolFeesToken1,
		&p.FundFeesToken0, &p.FundFeesToken1, &p.OpenTime, &p.RecentEpoch,
	} {
		*v = r.u64()
	}
	p.CreatorFeeOn = r.u8()
	p.EnableCreatorFee = r.u8() != 0
	r.skip(6)
	p.CreatorFeesToken0 = r.u64()
	p.CreatorFeesToken1 = r.u64()

	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccount, r.err)
	}
	return p, nil
}

// DecodeAmmConfig decodes an AmmConfig account.
func DecodeAmmConfig(data []byte) (*AmmConfig, error) {
	if len(data) < ammConfigMinSize {
		return nil, fmt.Errorf("%w: amm config is %d bytes", ErrInvalidAccount, len(data))
	}
	if !bytes.Equal(data[:8], ammConfigDiscriminator) {
		return nil, fmt.Errorf("%w: not an amm config", ErrInvalidAccount)
	}

	r := reader{dec: bin.NewBorshDecoder(data[8:])}
	c := &AmmConfig{}
	c.Bump = r.u8()
	c.DisableCreatePool = r.u8() != 0
	c.Index = r.u16()
	c.TradeFeeRate = r.u64()
	c.ProtocolFeeRate = r.u64()
	c.FundFeeRate = r.u64()
	c.CreatePoolFee = r.u64()

	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccount, r.err)
	}
	if c.TradeFeeRate >= FeeRateDenominator {
		return nil, fmt.Errorf("%w: trade fee rate %d", ErrInvalidAccount, c.TradeFeeRate)
	}
	return c, nil
}

// reader keeps the first decode error so field reads stay linear.
type reader struct {
	dec *bin.Decoder
	err error
}

func (r *reader) pubkey() solana.PublicKey {
	if r.err != nil {
		return solana.PublicKey{}
	}
	b, err := r.dec.ReadNBytes(32)
	if err != nil {
		r.err = err
		return solana.PublicKey{}
	}
	return solana.PublicKeyFromBytes(b)
}

func (r *reader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint8()
	r.err = err
	return v
}

func (r *reader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint16(bin.LE)
	r.err = err
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(bin.LE)
	r.err = err
	return v
}

func (r *reader) skip(n int) {
	if r.err != nil {
		return
	}
	_, r.err = r.dec.ReadNBytes(n)
}

// Account sizes including the discriminator and trailing padding.
const (
	PoolStateSize = 637
	AmmConfigSize = 236
)

// MarshalBinary encodes the pool state as account data.
func (p *PoolState) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	w := writer{enc: bin.NewBorshEncoder(buf)}
	w.bytes(poolStateDiscriminator)
	for _, key := range []solana.PublicKey{
		p.AmmConfig, p.PoolCreator, p.Token0Vault, p.Token1Vault, p.LPMint,
		p.Token0Mint, p.Token1Mint, p.Token0Program, p.Token1Program, p.ObservationKey,
	} {
		w.bytes(key[:])
	}
	for _, v := range []uint8{p.AuthBump, p.Status, p.LPMintDecimals, p.Mint0Decimals, p.Mint1Decimals} {
		w.u8(v)
	}
	for _, v := range []uint64{
		p.LPSupply, p.ProtocolFeesToken0, p.ProtocolFeesToken1,
		p.FundFeesToken0, p.FundFeesToken1, p.OpenTime, p.RecentEpoch,
	} {
		w.u64(v)
	}
	w.u8(p.CreatorFeeOn)
	w.u8(boolByte(p.EnableCreatorFee))
	w.bytes(make([]byte, 6))
	w.u64(p.CreatorFeesToken0)
	w.u64(p.CreatorFeesToken1)
	return w.finish(buf, PoolStateSize)
}

// MarshalBinary encodes the config as account data.
func (c *AmmConfig) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	w := writer{enc: bin.NewBorshEncoder(buf)}
	w.bytes(ammConfigDiscriminator)
	w.u8(c.Bump)
	w.u8(boolByte(c.DisableCreatePool))
	w.u16(c.Index)
	w.u64(c.TradeFeeRate)
	w.u64(c.ProtocolFeeRate)
	w.u64(c.FundFeeRate)
	w.u64(c.CreatePoolFee)
	return w.finish(buf, AmmConfigSize)
}

type writer struct {
	enc *bin.Encoder
	err error
}

func (w *writer) bytes(b []byte) {
	if w.err == nil {
		w.err = w.enc.WriteBytes(b, false)
	}
}

func (w *writer) u8(v uint8) {
	if w.err == nil {
		w.err = w.enc.WriteUint8(v)
	}
}

func (w *writer) u16(v uint16) {
	if w.err == nil {
		w.err = w.enc.WriteUint16(v, bin.LE)
	}
}

func (w *writer) u64(v uint64) {
	if w.err == nil {
		w.err = w.enc.WriteUint64(v, bin.LE)
	}
}

// finish pads the encoded fields to the full account size.
func (w *writer) finish(buf *bytes.Buffer, size int) ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	out := buf.Bytes()
	if len(out) < size {
		out = append(out, make([]byte, size-len(out))...)
	}
	return out, nil
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
