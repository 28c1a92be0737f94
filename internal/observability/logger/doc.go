// Package logger envuelve zap para toolgate: un logger global que el CLI
// configura con app.env/app.log_level, y loggers por request que viajan en
// el context.Context.
//
//	log := logger.From(ctx).With(logger.Component("token"))
//	log.Info("tokens issued", logger.ClientID(id), logger.GrantType(gt))
//
// Codes, tokens, verifiers y secrets nunca se loguean; los emails pasan por
// logger.Email, que los enmascara.
package logger
