// Package repository define los contratos de almacenamiento del núcleo.
//
// Los services (jwt, revocation, watch, gateway) dependen solo de estas
// interfaces; las implementaciones viven en internal/store/pg (PostgreSQL) e
// internal/store/memory (desarrollo y tests).
//
// Convenciones:
//   - Context siempre es el primer parámetro.
//   - "No existe" se reporta con ErrNotFound, nunca con (nil, nil).
//   - Cualquier otro error es de infraestructura y el caller decide la política.
package repository
