package redis

import "fmt"

// Key prefix for all relay credential data
const keyPrefix = "relay"

// accountsKey returns the Redis LIST holding the accounts of one address
func accountsKey(address string) string {
	return fmt.Sprintf("%s:accounts:%s", keyPrefix, address)
}

// addressIndexKey returns the Redis SET of every address with accounts
func addressIndexKey() string {
	return fmt.Sprintf("%s:idx:addresses", keyPrefix)
}

// countKey returns the Redis counter of stored accounts
func countKey() string {
	return fmt.Sprintf("%s:count", keyPrefix)
}
