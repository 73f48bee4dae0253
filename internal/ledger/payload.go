package ledger

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/eternalab/hop-wallet/internal/constants"
	"github.com/eternalab/hop-wallet/internal/protocol"
)

// PayloadDetail splits an entry function id for display.
type PayloadDetail struct {
	ModuleAddress     string            `json:"moduleAddress"`
	ModuleName        string            `json:"moduleName"`
	FunctionName      string            `json:"functionName"`
	FunctionArguments []json.RawMessage `json:"functionArguments,omitempty"`
}

type ParsedPayload struct {
	IsParsed      bool           `json:"isParsed"`
	PayloadDetail *PayloadDetail `json:"payloadDetail,omitempty"`
}

func ParsePayload(p protocol.EntryFunctionPayload) ParsedPayload {
	parts := strings.Split(p.Function, "::")
	if len(parts) != 3 {
		return ParsedPayload{}
	}
	return ParsedPayload{
		IsParsed: true,
		PayloadDetail: &PayloadDetail{
			ModuleAddress:     parts[0],
			ModuleName:        parts[1],
			FunctionName:      parts[2],
			FunctionArguments: p.FunctionArguments,
		},
	}
}

// Args marshals each value into a function argument.
func Args(values ...any) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// NativeTransfer sends octas of EDS to to.
func NativeTransfer(to string, octas uint64) protocol.EntryFunctionPayload {
	args, _ := Args(to, strconv.FormatUint(octas, 10))
	return protocol.EntryFunctionPayload{
		Function:          constants.NativeTransferFunction,
		TypeArguments:     []string{},
		FunctionArguments: args,
	}
}

// CoinTransfer sends a raw amount of the fungible coin coinID to to.
func CoinTransfer(to, rawAmount, coinID string) protocol.EntryFunctionPayload {
	args, _ := Args(to, rawAmount, coinID)
	return protocol.EntryFunctionPayload{
		Function:          constants.CoinTransferFunction,
		TypeArguments:     []string{constants.FungibleMetadataType},
		FunctionArguments: args,
	}
}

// NftTransfer moves the token object nft to to.
func NftTransfer(nft, to string) protocol.EntryFunctionPayload {
	args, _ := Args(nft, to)
	return protocol.EntryFunctionPayload{
		Function:          constants.NftTransferFunction,
		TypeArguments:     []string{constants.TokenType},
		FunctionArguments: args,
	}
}
