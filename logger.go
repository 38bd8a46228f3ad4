package idcache

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is the leveled logger the cache reports to. Adapters for zap,
// logrus and slog live under log/. A nil Config.Logger disables logging.
//
// Levels used by the cache:
//
//	Debug  bypassed reads, lost write-back races, completed invalidations
//	Warn   backend failures and undecodable entries (served as misses)
//	Error  invalidations that left keys untombstoned
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}

func (c *Cache) logBypass(key, reason string) {
	c.log.Debug("cache bypassed", Fields{"key": key, "reason": reason})
}

func (c *Cache) logCorrupt(key string) {
	c.log.Warn("undecodable cache entry", Fields{"key": key})
}

func (c *Cache) logLostRace(key string) {
	c.log.Debug("write-back lost race", Fields{"key": key})
}

func (c *Cache) logBackendError(op, key string, err error) {
	c.log.Warn("cache backend error", Fields{"op": op, "key": key, "err": err})
}

func (c *Cache) logInvalidation(entity string, kind EventKind, keys int, failures []KeyError) {
	if len(failures) == 0 {
		c.log.Debug("invalidated", Fields{"entity": entity, "event": kind.String(), "keys": keys})
		return
	}
	c.log.Error("invalidation incomplete", Fields{
		"entity": entity,
		"event":  kind.String(),
		"keys":   keys,
		"failed": len(failures),
		"err":    failures[0].Err,
	})
}
