package storage

import (
	"database/sql/driver"
	"net/netip"
	"sync"

	"modernc.org/sqlite"
)

var registerFuncsOnce sync.Once
var registerFuncsErr error

// upperIPv6 packs the first 64 bits of an IPv6 address into a signed
// 64-bit integer, the sortable column type ip range tables key on,
// mirroring the original's native upperIPv6() helper (grounded on its
// use from DatabaseConnector::upperIPv6SQL; the bit-packing routine
// itself lives in stk_ipv6, absent from this retrieval pack, so the
// "top 64 bits as int64" semantics are re-derived from the SQL usage
// pattern: range queries compare it against ip_start/ip_end columns).
func upperIPv6(addr string) int64 {
	a, err := netip.ParseAddr(addr)
	if err != nil || !a.Is6() {
		return 0
	}
	b := a.As16()
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return int64(v)
}

// insideIPv6CIDR reports whether ipv6In falls within the ipv6Cidr
// block, mirroring DatabaseConnector::insideIPv6CIDRSQL.
func insideIPv6CIDR(ipv6CIDR, ipv6In string) bool {
	prefix, err := netip.ParsePrefix(ipv6CIDR)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(ipv6In)
	if err != nil {
		return false
	}
	return prefix.Contains(addr)
}

// registerSQLFunctions installs upperIPv6/insideIPv6CIDR as SQLite
// scalar functions, mirroring the sqlite3_create_function calls in
// DatabaseConnector::DatabaseConnector.
func registerSQLFunctions() error {
	registerFuncsOnce.Do(func() {
		registerFuncsErr = sqlite.RegisterScalarFunction("upperIPv6", 1,
			func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				s, _ := args[0].(string)
				return upperIPv6(s), nil
			})
		if registerFuncsErr != nil {
			return
		}
		registerFuncsErr = sqlite.RegisterScalarFunction("insideIPv6CIDR", 2,
			func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				cidr, _ := args[0].(string)
				in, _ := args[1].(string)
				if insideIPv6CIDR(cidr, in) {
					return int64(1), nil
				}
				return int64(0), nil
			})
	})
	return registerFuncsErr
}
