// Package payaddr normalizes cryptocurrency addresses and builds
// wallet-friendly payment URIs for display and QR encoding.
package payaddr

import (
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Currency keys as the payment backend reports them.
const (
	BTC       = "btc"
	ETH       = "eth"
	LTC       = "ltc"
	SOL       = "sol"
	USDTERC20 = "usdterc20"
	USDTTRC20 = "usdttrc20"
)

var evmAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Normalize prepares an address for display and QR encoding.
// EVM-family addresses (ETH and ERC-20 tokens) are rendered in EIP-55
// mixed-case checksum form when they match the 40-hex-digit pattern; the
// raw trimmed string is returned if checksumming fails. All other
// currencies only get surrounding whitespace stripped.
func Normalize(addr, currency string) string {
	a := strings.TrimSpace(addr)
	if a == "" {
		return ""
	}

	switch strings.ToLower(currency) {
	case ETH, USDTERC20:
		if !evmAddressPattern.MatchString(a) {
			return a
		}
		checksummed, err := ChecksumAddress(a)
		if err != nil {
			return a
		}
		return checksummed
	default:
		// TRON base58, BTC/LTC/SOL: no case transform.
		return a
	}
}

// ChecksumAddress converts a 0x-prefixed hex address to its EIP-55
// mixed-case checksum form.
func ChecksumAddress(addr string) (string, error) {
	if !evmAddressPattern.MatchString(addr) {
		return "", fmt.Errorf("not a 40-hex-digit address: %q", addr)
	}

	lower := strings.ToLower(strings.TrimPrefix(addr, "0x"))

	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(lower))
	hash := h.Sum(nil)

	out := []byte(lower)
	for i := range out {
		if out[i] < 'a' || out[i] > 'f' {
			continue
		}

		nibble := hash[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}

		if nibble >= 8 {
			out[i] = out[i] - 'a' + 'A'
		}
	}

	return "0x" + string(out), nil
}

// NetworkHint returns a human-readable network label for a currency key.
func NetworkHint(currency string) string {
	switch strings.ToLower(currency) {
	case USDTERC20:
		return "Network: Ethereum (USDT ERC-20)"
	case USDTTRC20:
		return "Network: TRON (USDT TRC-20)"
	case ETH:
		return "Network: Ethereum"
	case BTC:
		return "Network: Bitcoin"
	case LTC:
		return "Network: Litecoin"
	case SOL:
		return "Network: Solana"
	default:
		return ""
	}
}

// PaymentURI builds a QR payload for the given address and amount.
// With simple=true (the default used by callers) it returns the bare
// normalized address, which has the widest scanner support. Otherwise it
// emits the per-chain deeplink format: BIP-21 style for BTC/LTC, EIP-681
// for ETH (value in wei), Solana Pay for SOL. USDT variants have no
// universal deeplink and always fall back to the raw address.
func PaymentURI(addr, currency string, amount float64, simple bool) string {
	cur := strings.ToLower(currency)
	a := Normalize(addr, cur)
	if a == "" {
		return ""
	}
	if simple {
		return a
	}

	switch cur {
	case BTC:
		return coinURI("bitcoin", a, amount)
	case LTC:
		return coinURI("litecoin", a, amount)
	case ETH:
		if amount > 0 {
			return fmt.Sprintf("ethereum:%s?value=%s", a, weiString(amount))
		}
		return "ethereum:" + a
	case SOL:
		if amount > 0 {
			q := url.Values{}
			q.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
			return fmt.Sprintf("solana:%s?%s", a, q.Encode())
		}
		return "solana:" + a
	default:
		return a
	}
}

// coinURI renders a BIP-21 style URI with an 8-decimal amount.
func coinURI(scheme, addr string, amount float64) string {
	amt := FormatCoin8(amount)
	if amt == "" {
		return scheme + ":" + addr
	}

	q := url.Values{}
	q.Set("amount", amt)
	return fmt.Sprintf("%s:%s?%s", scheme, addr, q.Encode())
}

// FormatCoin8 formats a coin amount with up to 8 decimal places,
// trailing zeros stripped. Non-finite or non-positive amounts yield "".
func FormatCoin8(amount float64) string {
	if amount <= 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
		return ""
	}

	s := strconv.FormatFloat(amount, 'f', 8, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

// weiString converts a decimal ETH amount to an integer wei string
// without going through floating point for the fractional expansion.
func weiString(amount float64) string {
	s := strconv.FormatFloat(amount, 'f', -1, 64)

	intPart, fracPart, _ := strings.Cut(s, ".")
	if len(fracPart) > 18 {
		fracPart = fracPart[:18]
	}
	fracPart += strings.Repeat("0", 18-len(fracPart))

	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return "0"
	}
	return combined
}
