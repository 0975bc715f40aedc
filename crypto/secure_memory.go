package crypto

import (
	"crypto/subtle"
	"runtime"
)

// ZeroBytes overwrites key material in place. The constant-time compare keeps
// the compiler from eliding the copy.
func ZeroBytes(data []byte) {
	if len(data) == 0 {
		return
	}
	zeros := make([]byte, len(data))
	subtle.ConstantTimeCompare(data, zeros)
	copy(data, zeros)
	runtime.KeepAlive(data)
}
