// Package repository declara los contratos de persistencia de toolgate:
// clientes registrados, authorization codes, pending authorizations,
// refresh tokens y service tokens.
//
// Hay tres drivers (internal/store/memory, pg y redis) y todos pasan la
// misma batería de internal/store/storetest. Reglas comunes:
//
//   - ctx primero en cada método.
//   - Codes y pending requests se consumen con Take: leer y borrar en un
//     solo paso, así un replay concurrente recibe ErrNotFound.
//   - Refresh y service tokens se indexan por SHA-256 base64url; el valor
//     en claro nunca llega al store.
package repository
