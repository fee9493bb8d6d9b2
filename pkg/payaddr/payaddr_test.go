package payaddr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChecksumAddress(t *testing.T) {
	// EIP-55 reference vectors.
	vectors := []string{
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		"0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
		"0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb",
	}

	for _, want := range vectors {
		got, err := ChecksumAddress(strings.ToLower(want))
		require.NoError(t, err)
		require.Equal(t, want, got)

		// Already-checksummed input is a fixed point.
		got, err = ChecksumAddress(want)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestChecksumAddressRejectsMalformed(t *testing.T) {
	for _, addr := range []string{
		"",
		"5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", // missing 0x
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeA",  // too short
		"0xZZZeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
	} {
		_, err := ChecksumAddress(addr)
		require.Error(t, err, addr)
	}
}

func TestNormalize(t *testing.T) {
	eth := "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	want := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

	require.Equal(t, want, Normalize(eth, "eth"))
	require.Equal(t, want, Normalize(" "+eth+" ", "eth"))
	require.Equal(t, want, Normalize(eth, "usdterc20"))

	// Non-EVM chains are case-sensitive; only whitespace is stripped.
	btc := "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"
	require.Equal(t, btc, Normalize(" "+btc, "btc"))

	tron := "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	require.Equal(t, tron, Normalize(tron, "usdttrc20"))

	sol := "7v91N7iZ9mNicL8WfG6cgSCKyRXydQjLh6UYBWwm6y1Q"
	require.Equal(t, sol, Normalize(sol, "sol"))

	// A non-address string for an EVM currency passes through untouched.
	require.Equal(t, "not-an-address", Normalize("not-an-address", "eth"))
	require.Equal(t, "", Normalize("   ", "eth"))
}

func TestPaymentURISimple(t *testing.T) {
	addr := "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"
	require.Equal(t, addr, PaymentURI(addr, "btc", 0.0042, true))
}

func TestPaymentURIDeeplinks(t *testing.T) {
	btc := "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"
	require.Equal(t, "bitcoin:"+btc+"?amount=0.0042", PaymentURI(btc, "btc", 0.0042, false))
	require.Equal(t, "bitcoin:"+btc, PaymentURI(btc, "btc", 0, false))

	ltc := "ltc1qd30t8zsnyeme5zg3023t5mmpts4lhqt8a0vlkx"
	require.Equal(t, "litecoin:"+ltc+"?amount=1.5", PaymentURI(ltc, "ltc", 1.5, false))

	eth := "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	ethChecksummed := "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	require.Equal(t, "ethereum:"+ethChecksummed+"?value=500000000000000000", PaymentURI(eth, "eth", 0.5, false))
	require.Equal(t, "ethereum:"+ethChecksummed, PaymentURI(eth, "eth", 0, false))

	sol := "7v91N7iZ9mNicL8WfG6cgSCKyRXydQjLh6UYBWwm6y1Q"
	require.Equal(t, "solana:"+sol+"?amount=2.25", PaymentURI(sol, "sol", 2.25, false))

	// USDT has no universal deeplink; the address stands alone.
	tron := "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	require.Equal(t, tron, PaymentURI(tron, "usdttrc20", 10, false))
}

func TestFormatCoin8(t *testing.T) {
	require.Equal(t, "0.0042", FormatCoin8(0.0042))
	require.Equal(t, "1.5", FormatCoin8(1.5))
	require.Equal(t, "1", FormatCoin8(1.0))
	require.Equal(t, "0.00000001", FormatCoin8(0.00000001))
	require.Equal(t, "", FormatCoin8(0))
	require.Equal(t, "", FormatCoin8(-3))
}

func TestNetworkHint(t *testing.T) {
	require.Equal(t, "Network: TRON (USDT TRC-20)", NetworkHint("usdttrc20"))
	require.Equal(t, "Network: Ethereum (USDT ERC-20)", NetworkHint("USDTERC20"))
	require.Equal(t, "", NetworkHint("doge"))
}
