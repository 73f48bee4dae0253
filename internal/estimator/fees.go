package estimator

import (
	"context"

	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/ledger"
	"github.com/eternalab/hop-wallet/internal/protocol"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

// EstimateSendGasFee previews sending amount EDS (e.g. "1.5"). Any failure
// yields the fallback fee.
func (e *Estimator) EstimateSendGasFee(ctx context.Context, from string, publicKey []byte, to, amount, network string) string {
	return e.feeOnly(ctx, "native", constants.FallbackNativeFee, from, publicKey, network, func() (protocol.EntryFunctionPayload, error) {
		octas, err := ledger.ParseNativeAmount(amount)
		if err != nil {
			return protocol.EntryFunctionPayload{}, err
		}
		return ledger.NativeTransfer(to, octas), nil
	})
}

// EstimateSendCoinGasFee previews sending a raw amount of a fungible coin.
func (e *Estimator) EstimateSendCoinGasFee(ctx context.Context, from string, publicKey []byte, coinID, to, amount, network string) string {
	return e.feeOnly(ctx, "coin", constants.FallbackCoinFee, from, publicKey, network, func() (protocol.EntryFunctionPayload, error) {
		return ledger.CoinTransfer(to, amount, coinID), nil
	})
}

func (e *Estimator) EstimateSendNftGasFee(ctx context.Context, from string, publicKey []byte, nft, to, network string) string {
	return e.feeOnly(ctx, "nft", constants.FallbackNftFee, from, publicKey, network, func() (protocol.EntryFunctionPayload, error) {
		return ledger.NftTransfer(nft, to), nil
	})
}

func (e *Estimator) feeOnly(ctx context.Context, kind, fallback, from string, publicKey []byte, network string, build func() (protocol.EntryFunctionPayload, error)) (fee string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("gas fee estimate panicked, using fallback", "kind", kind, "panic", rec, "fallback", fallback)
			fee = fallback
		}
	}()

	payload, err := build()
	if err != nil {
		log.Warn("gas fee estimate failed, using fallback", "kind", kind, "error", err, "fallback", fallback)
		return fallback
	}

	sim, err := e.simulate(ctx, from, publicKey, payload, protocol.TransactionOptions{}, network)
	if err == nil {
		fee, err = ledger.FormatGasFee(sim.GasUsed)
	}
	if err != nil {
		log.Warn("gas fee estimate failed, using fallback", "kind", kind, "error", err, "fallback", fallback)
		return fallback
	}
	return fee
}
