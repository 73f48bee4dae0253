package http

// Generic HTTP / JSON strings
const (
	HTTPErrorMethodNotAllowedText = "method not allowed"
	HTTPErrorInvalidJSONText      = "invalid JSON"
	HTTPErrorBadRequestText       = "bad request"
	HTTPErrorForbiddenText        = "forbidden"
	HTTPErrorForbiddenOriginText  = "forbidden origin"
	HTTPErrorForbiddenHostText    = "forbidden host"
	HTTPErrorUnauthorizedText     = "unauthorized"
)

// Common JSON keys
const (
	JSONKeyOK       = "ok"
	JSONKeyStatus   = "status"
	JSONKeyUnlocked = "unlocked"
	JSONKeyNetwork  = "network"
	JSONKeyNetworks = "networks"
	JSONKeyPending  = "pending"
)

// UISessionHeader carries the session token handed to the approval UI at
// startup.
const UISessionHeader = "X-Hop-Session"

// Wallet / approval messages
const (
	WalletLockedText            = "wallet is locked"
	WalletMissingRequestIDText  = "missing requestId"
	WalletMissingNetworkText    = "missing network"
	WalletMissingOriginText     = "missing origin"
	WalletUnknownFeeKindText    = "unknown fee kind"
	WalletCommandNotAllowedText = "command not allowed"
	WalletPreviewFailedText     = "failed to estimate transaction"
	WalletAssetsFailedText      = "failed to update assets"
	WalletPermissionsFailedText = "failed to update permissions"
	WalletWrongPasswordText     = "wrong password"
	WalletUnlockFailedText      = "failed to unlock wallet"
)

// Fee preview kinds
const (
	FeeKindNative = "native"
	FeeKindCoin   = "coin"
	FeeKindNft    = "nft"
)

const corsMaxAgeSeconds = 600
