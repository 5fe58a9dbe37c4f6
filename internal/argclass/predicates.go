package argclass

import (
	"errors"
	"net/netip"
	"strconv"
	"strings"
)

var urlSchemes = []string{
	"http", "https", "ftp", "file", "data", "ws",
	"socks4", "socks4a", "socks5", "socks5h",
}

func isDashed(token string) bool {
	return strings.HasPrefix(token, "-")
}

func isFlag(token string) bool {
	return isDashed(token) && !strings.Contains(token, "=")
}

// isOperand accepts --name=value as well as dd-style if=/dev/zero and
// make-style CFLAGS+=-O2. URLs with query strings are left to isURL.
func isOperand(token string) bool {
	if !strings.Contains(token, "=") {
		return false
	}
	return isDashed(token) || !strings.Contains(token, "://")
}

func isURL(token string) bool {
	for _, scheme := range urlSchemes {
		if strings.HasPrefix(token, scheme+"://") {
			return true
		}
	}
	return false
}

// isNumber accepts decimal literals, including ones overflowing to ±Inf.
// Hex floats are not numbers here.
func isNumber(token string) bool {
	unsigned := strings.TrimLeft(token, "+-")
	if strings.HasPrefix(unsigned, "0x") || strings.HasPrefix(unsigned, "0X") {
		return false
	}
	_, err := strconv.ParseFloat(token, 64)
	return err == nil || errors.Is(err, strconv.ErrRange)
}

// isIP accepts a dotted-quad IPv4 address with an optional :port.
func isIP(token string) bool {
	host, port, hasPort := strings.Cut(token, ":")
	if hasPort {
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return false
		}
	}
	if strings.Count(host, ".") != 3 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	return err == nil && addr.Is4()
}

// purePredicates are side-effect free and checked before any filesystem probe.
var purePredicates = []struct {
	category Category
	match    func(string) bool
}{
	{CategoryFlag, isFlag},
	{CategoryOperand, isOperand},
	{CategoryURL, isURL},
	{CategoryNumber, isNumber},
	{CategoryIP, isIP},
}
