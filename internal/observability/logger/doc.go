// Package logger expone un logger Zap singleton con scoping por contexto.
//
// Inicialización (una vez, en cmd/service):
//
//	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level})
//	defer logger.Sync()
//
// En services (con contexto del request):
//
//	log := logger.From(ctx).With(logger.Component("watch.ledger"))
//	log.Info("session opened", logger.ProfileID(id), logger.SessionID(sid))
//
// El middleware HTTP WithLogging inyecta un logger con request_id, method y
// path; fuera de un request From(ctx) cae al singleton.
package logger
