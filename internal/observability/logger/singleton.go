package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var global atomic.Pointer[zap.Logger]

// Init construye el logger global. Cada llamada reemplaza al anterior; el
// CLI la invoca una vez por comando, después de cargar la config.
func Init(cfg Config) {
	global.Store(build(cfg))
}

// Replace instala un logger ya construido (tests usan zaptest o zap.NewNop)
// y devuelve una función que restaura el previo.
func Replace(l *zap.Logger) (restore func()) {
	prev := global.Swap(l)
	return func() { global.Store(prev) }
}

// L devuelve el logger global. Sin Init previo arma uno de desarrollo.
func L() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	global.CompareAndSwap(nil, build(Config{}))
	return global.Load()
}

// Sync vacía los buffers del logger global. Los errores de sync sobre
// stdout/stderr (EINVAL, ENOTTY) no son accionables y se descartan.
func Sync() error {
	l := global.Load()
	if l == nil {
		return nil
	}
	if err := l.Sync(); err != nil && !isTTYSyncErr(err) {
		return err
	}
	return nil
}
