package constants

import "time"

const (
	AppName          = "hop-wallet"
	AssetsFile       = "assets.json"
	PermissionsFile  = "allowed_origins.json"
	KeystoreFile     = "keystore.json"
	EnvVar           = "HOP_ENV"
	PrivateKeyEnvVar = "HOP_PRIVATE_KEY"
	PasswordEnvVar   = "HOP_KEYSTORE_PASSWORD"

	SchemaV1      = 1
	FilePerm      = 0o600
	DirectoryPerm = 0o700

	// AAD for the keystore envelope (must match on decrypt).
	KeystoreAAD = "hop-wallet:keystore:v1"

	DefaultRequestTimeout = 60 * time.Second
)

// Page transport envelope tags.
const (
	EnvelopeRequest  = "ENDLESS_WALLET_REQUEST"
	EnvelopeResponse = "ENDLESS_WALLET_RESPONSE"
	EnvelopeEvent    = "ENDLESS_WALLET_EVENT"

	// RuntimeEvent tags events pushed from the privileged context to relays.
	RuntimeEvent = "WALLET_EVENT"
)

// Ledger event types consumed by the balance engine.
const (
	WithdrawEventType = "0x1::fungible_asset::Withdraw"
	DepositEventType  = "0x1::fungible_asset::Deposit"
)

// Entry functions used for fee-only previews.
const (
	NativeTransferFunction = "0x1::endless_coin::transfer"
	CoinTransferFunction   = "0x1::endless_account::transfer_coins"
	NftTransferFunction    = "0x4::object::transfer"

	FungibleMetadataType = "0x1::fungible_asset::Metadata"
	TokenType            = "0x4::token::Token"

	FallbackNativeFee = "0.001"
	FallbackCoinFee   = "0.00001"
	FallbackNftFee    = "0.00001"
)

// Native coin metadata. The ledger reports it under its coin address; the
// engine short-circuits metadata lookups for it.
const (
	NativeCoinID       = "ENDLESSsssssssssssssssssssssssssssssssssssss"
	NativeSymbol       = "EDS"
	NativeName         = "Endless Coin"
	NativeDecimals     = 8
	NativeSupply       = "10000000000"
	NativeProjectURI   = "https://www.endless.link"
	NativeIconURI      = "https://www.endless.link/eds-icon.svg"
	NativeOctasPerCoin = 100_000_000
)

// Signed message framing.
const (
	SignMessagePrefix    = "Endless"
	SignMessagePrefixTag = "Endless::Message"
)
