package reputation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"btcupdown/internal/exchange"
	"btcupdown/internal/signer"
	"btcupdown/pkg/types"
)

// MarketResolver resolves an order-flow signal's condition ID and outcome to
// a tradable token ID, tick size, and neg-risk flag. Satisfied by
// *discovery.Discoverer's ByCondition method.
type MarketResolver interface {
	ByCondition(ctx context.Context, conditionID string) (*types.Market, error)
}

// ExchangeSubmitter routes an executable order-flow signal to the CLOB: it
// resolves the signal's market, signs a BUY order sized by the executor's
// Kelly allocation, and submits it through the shared exchange client. This
// is the live half of the Submitter interface executor.go drains signals
// into; EnablePaperTrading bypasses it entirely.
type ExchangeSubmitter struct {
	client   *exchange.Client
	signer   *signer.Signer
	resolver MarketResolver
}

// NewExchangeSubmitter builds a submitter sharing the session's signed
// exchange client and signer.
func NewExchangeSubmitter(client *exchange.Client, sgn *signer.Signer, resolver MarketResolver) *ExchangeSubmitter {
	return &ExchangeSubmitter{client: client, signer: sgn, resolver: resolver}
}

// SubmitSignal signs and submits a BUY order for the signal's recommended
// outcome, sized to sizeUSD at the signal's MaxPrice ceiling.
func (s *ExchangeSubmitter) SubmitSignal(ctx context.Context, sig types.OrderFlowSignal, sizeUSD decimal.Decimal) error {
	market, err := s.resolver.ByCondition(ctx, sig.MarketID)
	if err != nil {
		return fmt.Errorf("resolve market %s: %w", sig.MarketID, err)
	}

	tokenID := market.UpTokenID
	if sig.Outcome == types.Down {
		tokenID = market.DownTokenID
	}

	price, err := decimal.NewFromString(sig.MaxPrice)
	if err != nil || price.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("invalid signal max price %q", sig.MaxPrice)
	}
	size := sizeUSD.Div(price).Truncate(int32(market.TickSize.AmountDecimals()))
	if size.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("sizeUSD %s at price %s rounds to zero shares", sizeUSD, price)
	}

	order, err := s.signer.Sign(tokenID, price, size, types.BUY, market.TickSize, market.NegRisk)
	if err != nil {
		return fmt.Errorf("sign order-flow order: %w", err)
	}

	if _, err := s.client.SubmitOrder(ctx, *order, s.signer.Funder().Hex()); err != nil {
		return fmt.Errorf("submit order-flow order: %w", err)
	}
	return nil
}
