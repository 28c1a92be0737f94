// Package scopes define el vocabulario de scopes "<familia>:<acción>", los presets
// y la semántica de wildcard "<familia>:*".
package scopes

import (
	"sort"
	"strings"
)

// Familias de recursos protegidos.
const (
	FamilyBooking = "booking"
	FamilyProduct = "product"
	FamilyOrder   = "order"
	FamilyForm    = "form"
)

// Acciones por familia.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionCancel = "cancel"
	ActionAdmin  = "admin"
)

// Wildcard es la acción que cubre todas las acciones de una familia.
const Wildcard = "*"

// Families en orden estable (define el orden de metadata y presets).
var Families = []string{FamilyBooking, FamilyProduct, FamilyOrder, FamilyForm}

var actions = []string{ActionRead, ActionCreate, ActionCancel, ActionAdmin}

// Set es un conjunto de scopes normalizado.
type Set map[string]struct{}

// New construye un Set ignorando entradas vacías.
func New(values ...string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			s[v] = struct{}{}
		}
	}
	return s
}

// Parse separa un scope OAuth (delimitado por espacios) en un Set.
func Parse(raw string) Set {
	return New(strings.Fields(raw)...)
}

// FromClaim normaliza un claim de scopes que puede venir como string
// delimitado por espacios o como lista ([]string / []any).
func FromClaim(v any) Set {
	switch t := v.(type) {
	case string:
		return Parse(t)
	case []string:
		return New(t...)
	case []any:
		out := make(Set, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				for _, f := range strings.Fields(s) {
					out[f] = struct{}{}
				}
			}
		}
		return out
	}
	return Set{}
}

// Has indica si el scope está presente textualmente.
func (s Set) Has(scope string) bool {
	_, ok := s[scope]
	return ok
}

// Satisfies indica si el Set cubre el scope requerido, ya sea textual
// o por el wildcard "<familia>:*" de su familia.
func (s Set) Satisfies(required string) bool {
	if s.Has(required) {
		return true
	}
	family, _, ok := strings.Cut(required, ":")
	if !ok || family == "" {
		return false
	}
	return s.Has(family + ":" + Wildcard)
}

// Missing devuelve el primer scope requerido no cubierto, en el orden dado.
func (s Set) Missing(required []string) (string, bool) {
	for _, r := range required {
		if !s.Satisfies(r) {
			return r, true
		}
	}
	return "", false
}

// SubsetOf indica si cada scope del Set está cubierto por other (wildcards de other incluidos).
func (s Set) SubsetOf(other Set) bool {
	for k := range s {
		if !other.Satisfies(k) {
			return false
		}
	}
	return true
}

// Intersect devuelve los scopes de s cubiertos por other.
func (s Set) Intersect(other Set) Set {
	out := make(Set, len(s))
	for k := range s {
		if other.Satisfies(k) {
			out[k] = struct{}{}
		}
	}
	return out
}

// List devuelve los scopes ordenados.
func (s Set) List() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// String serializa en formato OAuth (ordenado, separado por espacios).
func (s Set) String() string {
	return strings.Join(s.List(), " ")
}

// Supported devuelve todos los scopes concretos (sin wildcards) que el servidor emite.
func Supported() []string {
	out := make([]string, 0, len(Families)*len(actions))
	for _, f := range Families {
		for _, a := range actions {
			out = append(out, f+":"+a)
		}
	}
	return out
}

// IsSupported indica si el scope pertenece al vocabulario (incluye wildcards de familia).
func IsSupported(scope string) bool {
	family, action, ok := strings.Cut(scope, ":")
	if !ok {
		return false
	}
	known := false
	for _, f := range Families {
		if f == family {
			known = true
			break
		}
	}
	if !known {
		return false
	}
	if action == Wildcard {
		return true
	}
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// DiscoveryReadOnly es el set de solo lectura que se anuncia en metadata y se
// usa por defecto en client_credentials.
func DiscoveryReadOnly() []string {
	out := make([]string, 0, len(Families))
	for _, f := range Families {
		out = append(out, f+":"+ActionRead)
	}
	return out
}

// UserPreset: read/create/cancel sobre todas las familias.
func UserPreset() []string {
	out := make([]string, 0, len(Families)*3)
	for _, f := range Families {
		out = append(out, f+":"+ActionRead, f+":"+ActionCreate, f+":"+ActionCancel)
	}
	return out
}

// AdminPreset: "<familia>:*" para todas las familias.
func AdminPreset() []string {
	out := make([]string, 0, len(Families))
	for _, f := range Families {
		out = append(out, f+":"+Wildcard)
	}
	return out
}

// Preset resuelve un preset por nombre ("user" | "admin").
func Preset(name string) ([]string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "user":
		return UserPreset(), true
	case "admin":
		return AdminPreset(), true
	}
	return nil, false
}
