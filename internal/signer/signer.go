// Package signer constructs and EIP-712-signs CTF exchange orders. Signing
// is pure CPU work — no I/O — so it runs inline on the calling goroutine and
// is safe to fan out across many goroutines for the pre-sign cache.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"btcupdown/internal/decimalx"
	"btcupdown/pkg/types"
)

// Exchange contract addresses on Polygon mainnet. The regular domain signs
// orders for ordinary binary markets; the neg-risk domain signs orders for
// mutually-exclusive-outcome markets.
const (
	CTFExchangeAddress       = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	NegRiskCTFExchangeAddress = "0xC5d563A36AE78145C45a50134d48A1215220f80a"
	ChainID                  = 137

	// OrderExpiry is how far in the future a signed order's expiration is
	// set — longer than any 15-minute session, so no mid-session rotation
	// is needed.
	OrderExpiry = time.Hour
)

// Signer holds the EOA key used to produce EIP-712 signatures over orders.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	funder     common.Address
}

// New builds a Signer from a hex-encoded private key (with or without the
// 0x prefix) and an optional funder/proxy address (defaults to the EOA).
func New(privateKeyHex, funderAddress string) (*Signer, error) {
	keyHex := privateKeyHex
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}
	pk, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	addr := crypto.PubkeyToAddress(pk.PublicKey)
	funder := addr
	if funderAddress != "" {
		funder = common.HexToAddress(funderAddress)
	}
	return &Signer{privateKey: pk, address: addr, funder: funder}, nil
}

// Address returns the EOA signer address.
func (s *Signer) Address() common.Address { return s.address }

// Funder returns the maker/funder address orders are placed on behalf of.
func (s *Signer) Funder() common.Address { return s.funder }

// createFields builds an unsigned order's pre-signature fields: salt,
// amounts, expiration. Price and size are decimal.Decimal values.
func (s *Signer) createFields(tokenID string, price, size decimal.Decimal, side types.Side, tick types.TickSize) (salt string, makerAmt, takerAmt *big.Int, expiration int64) {
	salt = newSalt()
	expiration = time.Now().Add(OrderExpiry).Unix()

	cost := price.Mul(size).Truncate(int32(tick.AmountDecimals()))
	sizeAmt := decimalx.ToUSDCAmount(size)
	costAmt := decimalx.ToUSDCAmount(cost)

	switch side {
	case types.BUY:
		makerAmt, takerAmt = costAmt, sizeAmt
	case types.SELL:
		makerAmt, takerAmt = sizeAmt, costAmt
	}
	return salt, makerAmt, takerAmt, expiration
}

// newSalt renders a UUIDv4's 128 random bits as a base-10 string, matching
// the order struct's salt field.
func newSalt() string {
	id := uuid.New()
	n := new(big.Int).SetBytes(id[:])
	return n.String()
}

// Sign builds and EIP-712-signs a fully-formed SignedOrder for the given
// (tokenID, price, size, side) against the regular or neg-risk domain.
func (s *Signer) Sign(tokenID string, price, size decimal.Decimal, side types.Side, tick types.TickSize, negRisk bool) (*types.SignedOrder, error) {
	if price.LessThanOrEqual(decimal.Zero) || price.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("invalid price %s: must be in (0,1)", price)
	}

	salt, makerAmt, takerAmt, expiration := s.createFields(tokenID, price, size, side, tick)

	order := &types.SignedOrder{
		Salt:          salt,
		Maker:         s.funder.Hex(),
		Signer:        s.address.Hex(),
		Taker:         common.Address{}.Hex(),
		TokenID:       tokenID,
		MakerAmount:   makerAmt,
		TakerAmount:   takerAmt,
		Side:          side,
		Expiration:    fmt.Sprintf("%d", expiration),
		Nonce:         "0",
		FeeRateBps:    "0",
		SignatureType: types.SigEOA,
	}

	sig, err := s.signEIP712(order, negRisk)
	if err != nil {
		return nil, fmt.Errorf("sign order: %w", err)
	}
	order.Signature = sig
	return order, nil
}

func sideInt(side types.Side) string {
	if side == types.SELL {
		return "1"
	}
	return "0"
}

// signEIP712 signs the Order struct over the exchange domain selected by
// negRisk, with fields in the exact wire order the exchange contract expects.
func (s *Signer) signEIP712(order *types.SignedOrder, negRisk bool) (string, error) {
	verifyingContract := CTFExchangeAddress
	if negRisk {
		verifyingContract = NegRiskCTFExchangeAddress
	}

	domain := apitypes.TypedDataDomain{
		Name:              "Polymarket CTF Exchange",
		Version:           "1",
		ChainId:           (*ethmath.HexOrDecimal256)(big.NewInt(ChainID)),
		VerifyingContract: verifyingContract,
	}

	typesDef := apitypes.Types{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"Order": {
			{Name: "salt", Type: "uint256"},
			{Name: "maker", Type: "address"},
			{Name: "signer", Type: "address"},
			{Name: "taker", Type: "address"},
			{Name: "tokenId", Type: "uint256"},
			{Name: "makerAmount", Type: "uint256"},
			{Name: "takerAmount", Type: "uint256"},
			{Name: "expiration", Type: "uint256"},
			{Name: "nonce", Type: "uint256"},
			{Name: "feeRateBps", Type: "uint256"},
			{Name: "side", Type: "uint8"},
			{Name: "signatureType", Type: "uint8"},
		},
	}

	message := apitypes.TypedDataMessage{
		"salt":          order.Salt,
		"maker":         order.Maker,
		"signer":        order.Signer,
		"taker":         order.Taker,
		"tokenId":       order.TokenID,
		"makerAmount":   order.MakerAmount.String(),
		"takerAmount":   order.TakerAmount.String(),
		"expiration":    order.Expiration,
		"nonce":         order.Nonce,
		"feeRateBps":    order.FeeRateBps,
		"side":          sideInt(order.Side),
		"signatureType": fmt.Sprintf("%d", order.SignatureType),
	}

	typedData := apitypes.TypedData{
		Types:       typesDef,
		PrimaryType: "Order",
		Domain:      domain,
		Message:     message,
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return "", fmt.Errorf("typed data hash: %w", err)
	}

	sig, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return "0x" + common.Bytes2Hex(sig), nil
}

// Ladder is one price/size pair within a ladder of orders on the same side.
type Ladder struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// BuildLadder composes `levels` orders on the same side at decreasing (BUY)
// prices spaced `spacing` apart starting from basePrice, snapping every
// price to tick and floor-clamping at the tick. Prices that would land at or
// beyond [0,1] are rejected by the caller via SignLadder's validation.
func BuildLadder(basePrice, totalSize decimal.Decimal, levels int, spacing decimal.Decimal, tick types.TickSize) []Ladder {
	if levels <= 0 {
		return nil
	}
	tickDec := tickDecimal(tick)
	sizePerLevel := totalSize.Div(decimal.NewFromInt(int64(levels)))

	out := make([]Ladder, 0, levels)
	for k := 0; k < levels; k++ {
		price := basePrice.Sub(spacing.Mul(decimal.NewFromInt(int64(k))))
		price = decimalx.RoundDownToTick(price, tickDec)
		out = append(out, Ladder{Price: price, Size: sizePerLevel})
	}
	return out
}

func tickDecimal(tick types.TickSize) decimal.Decimal {
	d, err := decimal.NewFromString(string(tick))
	if err != nil {
		return decimal.NewFromFloat(0.01)
	}
	return d
}

// SignLadder signs every rung of a ladder, rejecting any rung whose price is
// out of (0,1) bounds rather than silently clamping it away.
func (s *Signer) SignLadder(tokenID string, side types.Side, tick types.TickSize, negRisk bool, rungs []Ladder) ([]*types.SignedOrder, error) {
	orders := make([]*types.SignedOrder, 0, len(rungs))
	for _, r := range rungs {
		if r.Price.LessThanOrEqual(decimal.Zero) || r.Price.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("ladder rung price %s out of bounds", r.Price)
		}
		order, err := s.Sign(tokenID, r.Price, r.Size, side, tick, negRisk)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}
