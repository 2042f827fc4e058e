package crypto

// Zero wipes key material in place. Callers defer this on every derived key
// and decrypted buffer that leaves scope.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
