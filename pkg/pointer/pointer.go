package pointer

// Uint32 returns a pointer to the provided uint32 value
func Uint32(value uint32) *uint32 {
	return &value
}

// Uint32OrDefault returns the value if not nil, otherwise the default value
func Uint32OrDefault(value *uint32, defaultValue uint32) uint32 {
	if value != nil {
		return *value
	}
	return defaultValue
}

// Uint64 returns a pointer to the provided uint64 value
func Uint64(value uint64) *uint64 {
	return &value
}

// Uint64OrDefault returns the value if not nil, otherwise the default value
func Uint64OrDefault(value *uint64, defaultValue uint64) uint64 {
	if value != nil {
		return *value
	}
	return defaultValue
}
